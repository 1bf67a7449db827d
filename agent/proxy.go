package agent

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// HumanProxyAgent simulates the human in the loop. It is a ValueAgent
// whose action is the index of the agent to follow and whose
// observation is built from the agents' current recommendations, the
// episode time index, and each agent's running success count this
// episode. It never observes the coin probability directly.
type HumanProxyAgent struct {
	*ValueAgent
	numAgents int
}

// ProxyInputDim returns the observation length of a proxy watching
// numAgents recommenders: one recommendation and one success counter
// per agent, plus the time index.
func ProxyInputDim(numAgents int) int {
	return 2*numAgents + 1
}

// NewHumanProxy creates a proxy for choosing between numAgents
// recommenders. The InputDim and ActionDim of hp are overridden to
// match the proxy's observation and choice spaces.
func NewHumanProxy(numAgents int, hp Hyperparameters) (*HumanProxyAgent,
	error) {
	if numAgents < 1 {
		return nil, fmt.Errorf("newhumanproxy: numAgents must be >= 1")
	}

	hp.InputDim = ProxyInputDim(numAgents)
	hp.ActionDim = numAgents

	inner, err := NewValue(0, hp)
	if err != nil {
		return nil, fmt.Errorf("newhumanproxy: %v", err)
	}

	return &HumanProxyAgent{ValueAgent: inner, numAgents: numAgents}, nil
}

// NumAgents returns the number of recommenders the proxy chooses
// between.
func (h *HumanProxyAgent) NumAgents() int {
	return h.numAgents
}

// Observation builds the proxy's observation vector
// [rec_0 .. rec_{n-1}, t, success_0 .. success_{n-1}].
func (h *HumanProxyAgent) Observation(recommendations []int, t int,
	successes []int) (mat.Vector, error) {
	if len(recommendations) != h.numAgents || len(successes) != h.numAgents {
		return nil, fmt.Errorf("observation: expected %v recommendations "+
			"and successes \n\thave(%v, %v)", h.numAgents,
			len(recommendations), len(successes))
	}

	data := make([]float64, ProxyInputDim(h.numAgents))
	for i, rec := range recommendations {
		data[i] = float64(rec)
	}
	data[h.numAgents] = float64(t)
	for i, s := range successes {
		data[h.numAgents+1+i] = float64(s)
	}
	return mat.NewVecDense(len(data), data), nil
}
