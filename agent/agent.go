// Package agent implements the value-based learning agents of the
// recommendation experiment: the recommender agents that learn to be
// followed, and the proxy agent that simulates the human following
// them.
package agent

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"

	"github.com/pickwise/pickwise/network"
	"github.com/pickwise/pickwise/timestep"
)

// Agent is the contract the orchestrator drives: pick an action for an
// observation, record experience, take one learning step, and sync the
// target network at episode boundaries.
type Agent interface {
	ID() int
	SelectAction(state mat.Vector) int
	StoreTransition(t timestep.Transition) error
	Update() error
	UpdateTargetNetwork() error
	Epsilon() float64
}

// Optimizer names accepted in configuration files.
const (
	Adam    = "adam"
	Vanilla = "vanilla"
)

// Hyperparameters holds the fixed hyperparameters of a value-based
// agent. They are set once at construction and never change.
//
// WeightInit names a scheme known to network.InitFromName and
// Optimizer one of Adam or Vanilla; both default to the empty string,
// meaning Glorot uniform and Adam.
type Hyperparameters struct {
	LearningRate   float64
	Gamma          float64
	Epsilon        float64
	EpsilonDecay   float64
	EpsilonMin     float64
	InputDim       int
	ActionDim      int
	BufferCapacity int
	BatchSize      int
	HiddenSizes    []int
	WeightInit     string
	Optimizer      string
}

// Validate checks that the hyperparameters are in range.
func (h Hyperparameters) Validate() error {
	if h.LearningRate < 0 {
		return fmt.Errorf("validate: learning rate must be >= 0 "+
			"\n\thave(%v)", h.LearningRate)
	}
	if h.Gamma < 0 || h.Gamma > 1 {
		return fmt.Errorf("validate: discount must be in [0, 1] "+
			"\n\thave(%v)", h.Gamma)
	}
	for name, value := range map[string]float64{
		"epsilon":       h.Epsilon,
		"epsilon decay": h.EpsilonDecay,
		"epsilon min":   h.EpsilonMin,
	} {
		if value < 0 || value > 1 {
			return fmt.Errorf("validate: %v must be in [0, 1] \n\thave(%v)",
				name, value)
		}
	}
	if h.InputDim < 1 || h.ActionDim < 1 {
		return fmt.Errorf("validate: input and action dimensions must be "+
			">= 1 \n\thave(%v, %v)", h.InputDim, h.ActionDim)
	}
	if h.BufferCapacity < 1 || h.BatchSize < 1 {
		return fmt.Errorf("validate: buffer capacity and batch size must "+
			"be >= 1 \n\thave(%v, %v)", h.BufferCapacity, h.BatchSize)
	}
	if _, err := network.InitFromName(h.WeightInit); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	switch h.Optimizer {
	case "", Adam, Vanilla:
	default:
		return fmt.Errorf("validate: unknown optimizer %q", h.Optimizer)
	}
	return nil
}

// newSolver builds the configured gradient solver.
func (h Hyperparameters) newSolver() G.Solver {
	opts := []G.SolverOpt{
		G.WithLearnRate(h.LearningRate),
		G.WithBatchSize(float64(h.BatchSize)),
	}
	if h.Optimizer == Vanilla {
		return G.NewVanillaSolver(opts...)
	}
	return G.NewAdamSolver(opts...)
}

// greedyAction returns the index of the largest action value, breaking
// ties toward the lowest index.
func greedyAction(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}
