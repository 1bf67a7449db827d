// Package environment implements the stochastic coin environments that
// generate outcomes and reward signals for the recommendation
// experiment.
package environment

import (
	"fmt"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Outcome is the realization of one coin flip.
type Outcome int

const (
	Failure Outcome = iota
	Success
)

// String returns the outcome label used in exported records. The
// Heads/Tails names are kept for compatibility with existing session
// logs.
func (o Outcome) String() string {
	if o == Success {
		return "Heads"
	}
	return "Tails"
}

// StepResult packages everything one environment step produces.
type StepResult struct {
	HumanReward     float64
	AgentRewards    []float64
	Outcome         Outcome
	Done            bool
	NextObservation mat.Vector
}

// Bandit is the base coin environment. Each round shows a success
// probability p drawn uniformly from [0, 1]; stepping realizes a
// Bernoulli outcome at the p that was shown and then draws a fresh p
// for the next round. The observation is the bare probability.
type Bandit struct {
	p        float64
	steps    int
	maxSteps int

	pDist   distuv.Uniform
	outcome distuv.Bernoulli
}

// NewBandit creates a coin environment whose episodes last maxSteps
// steps.
func NewBandit(maxSteps int) (*Bandit, error) {
	b := &Bandit{}
	if err := b.init(maxSteps); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bandit) init(maxSteps int) error {
	if maxSteps < 1 {
		return fmt.Errorf("newbandit: maxSteps must be >= 1 \n\thave(%v)",
			maxSteps)
	}

	src := rand.NewSource(uint64(time.Now().UnixNano()))
	b.maxSteps = maxSteps
	b.pDist = distuv.Uniform{Min: 0, Max: 1, Src: src}
	b.outcome = distuv.Bernoulli{Src: src}
	return nil
}

// Reset starts a new episode: draws a fresh probability and zeroes the
// step counter. It returns the initial observation.
func (b *Bandit) Reset() mat.Vector {
	b.resetState()
	return mat.NewVecDense(1, []float64{b.p})
}

func (b *Bandit) resetState() {
	b.steps = 0
	b.p = b.pDist.Rand()
}

// Step realizes the outcome of one round. The human's reward is 1 iff
// the recommendation they followed agrees with the outcome (recommend
// with Success, or no-recommend with Failure). Each agent is paid +1 if
// the human followed it and -1 otherwise; this popularity signal is
// deliberately independent of whether the agent's own recommendation
// was correct.
//
// humanChoice must index into recommendations; the environment does not
// validate this.
func (b *Bandit) Step(humanChoice int, recommendations []int) StepResult {
	humanReward, agentRewards, outcome, done :=
		b.advance(humanChoice, recommendations)

	return StepResult{
		HumanReward:     humanReward,
		AgentRewards:    agentRewards,
		Outcome:         outcome,
		Done:            done,
		NextObservation: mat.NewVecDense(1, []float64{b.p}),
	}
}

// advance runs the shared step logic: outcome realization, rewards,
// step accounting, and the draw of the next round's probability. The
// probability is redrawn only when the episode continues, so the final
// observation of an episode still carries a well-defined p.
func (b *Bandit) advance(humanChoice int, recommendations []int) (float64,
	[]float64, Outcome, bool) {
	// The coin realizes the probability that was shown with the
	// current observation
	b.outcome.P = b.p
	outcome := Failure
	if b.outcome.Rand() > 0 {
		outcome = Success
	}

	followed := recommendations[humanChoice]
	humanReward := 0.0
	if (outcome == Success && followed == 1) ||
		(outcome == Failure && followed == 0) {
		humanReward = 1.0
	}

	agentRewards := make([]float64, len(recommendations))
	for i := range agentRewards {
		if i == humanChoice {
			agentRewards[i] = 1
		} else {
			agentRewards[i] = -1
		}
	}

	b.steps++
	done := b.steps >= b.maxSteps

	if !done {
		b.p = b.pDist.Rand()
	}

	return humanReward, agentRewards, outcome, done
}

// Steps returns the number of steps elapsed in the current episode
func (b *Bandit) Steps() int {
	return b.steps
}

// MaxSteps returns the episode length
func (b *Bandit) MaxSteps() int {
	return b.maxSteps
}

// Probability returns the success probability currently shown
func (b *Bandit) Probability() float64 {
	return b.p
}

// SetProbability pins the success probability of the next outcome.
// Useful for forced-outcome runs; the probability is redrawn on the
// next non-terminal step as usual.
func (b *Bandit) SetProbability(p float64) {
	b.p = p
}
