package environment

import (
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/pickwise/pickwise/timestep"
)

func TestResetDrawsProbabilityInRange(t *testing.T) {
	env, err := NewBandit(10)
	if err != nil {
		t.Fatalf("could not create environment: %v", err)
	}

	for i := 0; i < 50; i++ {
		obs := env.Reset()
		if obs.Len() != 1 {
			t.Fatalf("wrong observation length \n\twant(1)\n\thave(%v)",
				obs.Len())
		}
		p := obs.AtVec(0)
		if p < 0 || p > 1 {
			t.Fatalf("probability out of range: %v", p)
		}
		if env.Steps() != 0 {
			t.Fatalf("steps not reset: %v", env.Steps())
		}
	}
}

// With p pinned to 1 the coin always lands Success; with p pinned to 0
// it always lands Failure. Note the agent payoff is a pure popularity
// signal: the followed agent earns +1 and the other -1 regardless of
// whether either recommendation was correct. That asymmetry is the
// designed reward rule, not a bug.
func TestForcedOutcomeRewards(t *testing.T) {
	env, err := NewBandit(10)
	if err != nil {
		t.Fatalf("could not create environment: %v", err)
	}

	env.Reset()
	env.SetProbability(1.0)
	res := env.Step(0, []int{1, 0})

	if res.Outcome != Success {
		t.Errorf("pinned p=1 must realize Success, got %v", res.Outcome)
	}
	if res.HumanReward != 1 {
		t.Errorf("recommend followed by Success must pay the human 1, "+
			"got %v", res.HumanReward)
	}
	if res.AgentRewards[0] != 1 || res.AgentRewards[1] != -1 {
		t.Errorf("wrong agent payoffs \n\twant([1 -1])\n\thave(%v)",
			res.AgentRewards)
	}

	env.Reset()
	env.SetProbability(0.0)
	res = env.Step(0, []int{1, 0})

	if res.Outcome != Failure {
		t.Errorf("pinned p=0 must realize Failure, got %v", res.Outcome)
	}
	if res.HumanReward != 0 {
		t.Errorf("recommend followed by Failure must pay the human 0, "+
			"got %v", res.HumanReward)
	}
	if res.AgentRewards[0] != 1 || res.AgentRewards[1] != -1 {
		t.Errorf("agent payoffs must not depend on the outcome "+
			"\n\twant([1 -1])\n\thave(%v)", res.AgentRewards)
	}
}

func TestEpisodeLength(t *testing.T) {
	const maxSteps = 7

	env, err := NewBandit(maxSteps)
	if err != nil {
		t.Fatalf("could not create environment: %v", err)
	}
	env.Reset()

	for i := 1; i < maxSteps; i++ {
		res := env.Step(0, []int{1, 0})
		if res.Done {
			t.Fatalf("done on step %v of %v", i, maxSteps)
		}
	}
	res := env.Step(0, []int{1, 0})
	if !res.Done {
		t.Fatalf("not done after %v steps", maxSteps)
	}
}

func TestMaxStepsValidation(t *testing.T) {
	if _, err := NewBandit(0); err == nil {
		t.Error("expected error for maxSteps < 1")
	}
	if _, err := NewTimedBandit(0, 2); err == nil {
		t.Error("expected error for maxSteps < 1")
	}
	if _, err := NewTimedBandit(5, 0); err == nil {
		t.Error("expected error for numAgents < 1")
	}
}

func TestTimedObservationCarriesStepIndex(t *testing.T) {
	const maxSteps = 3

	env, err := NewTimedBandit(maxSteps, 2)
	if err != nil {
		t.Fatalf("could not create environment: %v", err)
	}

	obs := env.Reset()
	if obs.Len() != 2 {
		t.Fatalf("wrong observation length \n\twant(2)\n\thave(%v)",
			obs.Len())
	}
	if obs.AtVec(1) != 0 {
		t.Errorf("initial time index \n\twant(0)\n\thave(%v)", obs.AtVec(1))
	}

	for i := 1; i <= maxSteps; i++ {
		res := env.Step(0, []int{1, 0})
		if res.NextObservation.AtVec(1) != float64(i) {
			t.Errorf("time index after step %v \n\twant(%v)\n\thave(%v)",
				i, i, res.NextObservation.AtVec(1))
		}
		// The terminal observation must still be well-formed
		if res.Done {
			p := res.NextObservation.AtVec(0)
			if p < 0 || p > 1 {
				t.Errorf("terminal probability out of range: %v", p)
			}
		}
	}
}

func TestTimedHistoryPerAgent(t *testing.T) {
	env, err := NewTimedBandit(5, 2)
	if err != nil {
		t.Fatalf("could not create environment: %v", err)
	}
	env.Reset()

	tr := timestep.New(
		mat.NewVecDense(2, []float64{0.5, 0}),
		1,
		1.0,
		mat.NewVecDense(2, []float64{0.2, 1}),
		false,
	)
	if err := env.StoreTransition(0, tr); err != nil {
		t.Fatalf("could not store transition: %v", err)
	}
	if err := env.StoreTransition(2, tr); err == nil {
		t.Error("expected error for out-of-range agent id")
	}

	history := env.History()
	if len(history) != 2 {
		t.Fatalf("wrong history size \n\twant(2)\n\thave(%v)", len(history))
	}
	if len(history[0]) != 1 || len(history[1]) != 0 {
		t.Errorf("wrong per-agent history lengths: %v, %v",
			len(history[0]), len(history[1]))
	}

	// Reset clears the log but leaves captured history intact
	captured := env.History()
	env.Reset()
	if len(env.History()[0]) != 0 {
		t.Error("reset did not clear the episode log")
	}
	if len(captured[0]) != 1 {
		t.Error("captured history was mutated by reset")
	}
}
