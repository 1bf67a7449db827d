package environment

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/pickwise/pickwise/timestep"
)

// TimedBandit extends Bandit with an episode-time coordinate in the
// observation and an in-memory per-agent transition log for the
// current episode. The observation is [p, t] where t is the step index
// within the episode.
//
// The transition log exists purely for after-the-fact export; learning
// runs off the agents' own replay buffers.
type TimedBandit struct {
	Bandit
	numAgents int
	history   [][]timestep.Transition
}

// NewTimedBandit creates a timed coin environment logging transitions
// for numAgents agents.
func NewTimedBandit(maxSteps, numAgents int) (*TimedBandit, error) {
	if numAgents < 1 {
		return nil, fmt.Errorf("newtimedbandit: numAgents must be >= 1 "+
			"\n\thave(%v)", numAgents)
	}

	e := &TimedBandit{numAgents: numAgents}
	if err := e.init(maxSteps); err != nil {
		return nil, err
	}
	e.clearHistory()
	return e, nil
}

func (e *TimedBandit) clearHistory() {
	e.history = make([][]timestep.Transition, e.numAgents)
	for i := range e.history {
		e.history[i] = []timestep.Transition{}
	}
}

// Reset starts a new episode and clears the per-agent transition log.
func (e *TimedBandit) Reset() mat.Vector {
	e.resetState()
	e.clearHistory()
	return e.observation()
}

func (e *TimedBandit) observation() mat.Vector {
	return mat.NewVecDense(2, []float64{e.p, float64(e.steps)})
}

// Step realizes one round exactly as Bandit.Step, but the returned
// observation carries the incremented step index alongside the
// probability. This holds on the terminal step too, so the final
// observation is still well-defined.
func (e *TimedBandit) Step(humanChoice int, recommendations []int) StepResult {
	humanReward, agentRewards, outcome, done :=
		e.advance(humanChoice, recommendations)

	return StepResult{
		HumanReward:     humanReward,
		AgentRewards:    agentRewards,
		Outcome:         outcome,
		Done:            done,
		NextObservation: e.observation(),
	}
}

// StoreTransition appends one transition to an agent's episode log.
func (e *TimedBandit) StoreTransition(agentID int,
	t timestep.Transition) error {
	if agentID < 0 || agentID >= e.numAgents {
		return fmt.Errorf("storetransition: agent id out of range "+
			"\n\twant[0, %v)\n\thave(%v)", e.numAgents, agentID)
	}
	e.history[agentID] = append(e.history[agentID], t)
	return nil
}

// History returns the per-agent transition logs of the current episode.
// The returned slices are replaced, not mutated, on Reset, so callers
// may hold the result across an episode boundary.
func (e *TimedBandit) History() [][]timestep.Transition {
	return e.history
}
