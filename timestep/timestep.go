// Package timestep implements the units of experience exchanged
// between the environment, the agents, and the orchestrator.
package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Actions available to a recommender agent.
const (
	NoRecommend int = iota
	Recommend
)

// Transition packages one (state, action, reward, next state, done)
// tuple. Transitions are immutable once created: the constructor copies
// both observation vectors so a Transition never aliases data owned by
// the environment or an agent.
type Transition struct {
	State     mat.Vector
	Action    int
	Reward    float64
	NextState mat.Vector
	Done      bool
}

// New creates a Transition, copying both observations.
func New(state mat.Vector, action int, reward float64, nextState mat.Vector,
	done bool) Transition {
	return Transition{
		State:     CopyObs(state),
		Action:    action,
		Reward:    reward,
		NextState: CopyObs(nextState),
		Done:      done,
	}
}

func (t Transition) String() string {
	return fmt.Sprintf("Transition | State: %v  |  Action: %v  |  "+
		"Reward: %.2f  |  Next State: %v  |  Done: %v",
		mat.Formatted(t.State.T()), t.Action, t.Reward,
		mat.Formatted(t.NextState.T()), t.Done)
}

// CopyObs returns a copy of an observation vector. Observations are
// owned by whoever produced them, so every hand-off across a component
// boundary goes through a copy.
func CopyObs(obs mat.Vector) mat.Vector {
	return mat.VecDenseCopyOf(obs)
}

// RawObs returns the backing data of an observation as a []float64,
// copying if the vector is not a *mat.VecDense.
func RawObs(obs mat.Vector) []float64 {
	if v, ok := obs.(*mat.VecDense); ok {
		return v.RawVector().Data
	}
	data := make([]float64, obs.Len())
	for i := range data {
		data[i] = obs.AtVec(i)
	}
	return data
}
