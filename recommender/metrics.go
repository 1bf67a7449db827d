package recommender

import "gonum.org/v1/gonum/mat"

// AgentBelief reports one agent's exploration rate and its action
// values at the fixed probe observations, giving a cheap view into
// what the agent currently believes without touching its buffers.
type AgentBelief struct {
	AgentID     int         `json:"agent_id"`
	Epsilon     float64     `json:"epsilon"`
	ProbeValues [][]float64 `json:"probe_values"`
}

// AgentAccuracy summarizes how often an agent's recommendations agreed
// with the realized outcome. The rates are 0 when the corresponding
// count is 0.
type AgentAccuracy struct {
	TruePositives      int     `json:"true_positives"`
	Recommendations    int     `json:"recommendations"`
	TrueNegatives      int     `json:"true_negatives"`
	NonRecommendations int     `json:"non_recommendations"`
	TruePositiveRate   float64 `json:"true_positive_rate"`
	TrueNegativeRate   float64 `json:"true_negative_rate"`
}

// Snapshot is a read-only copy of the session statistics. Taking a
// Snapshot never mutates the system, so two consecutive snapshots with
// no step in between are identical.
type Snapshot struct {
	EpisodeCount          int             `json:"episode_count"`
	StepCount             int             `json:"step_count"`
	AgentBeliefs          []AgentBelief   `json:"agent_beliefs"`
	RecommendationCounts  []int           `json:"recommendation_counts"`
	SelectionCounts       []int           `json:"selection_counts"`
	CumulativeHumanReward float64         `json:"cumulative_human_reward"`
	AgentAccuracy         []AgentAccuracy `json:"agent_accuracy"`
	EpisodeReward         float64         `json:"episode_reward"`
	AverageReward         float64         `json:"average_reward"`
	AgentSuccesses        []int           `json:"agent_successes"`
}

// confusion tracks recommendation correctness for one agent. A
// recommendation is correct when the coin lands Success, a
// non-recommendation when it lands Failure.
type confusion struct {
	truePositives      int
	recommendations    int
	trueNegatives      int
	nonRecommendations int
}

func (c confusion) accuracy() AgentAccuracy {
	acc := AgentAccuracy{
		TruePositives:      c.truePositives,
		Recommendations:    c.recommendations,
		TrueNegatives:      c.trueNegatives,
		NonRecommendations: c.nonRecommendations,
	}
	if c.recommendations > 0 {
		acc.TruePositiveRate = float64(c.truePositives) /
			float64(c.recommendations)
	}
	if c.nonRecommendations > 0 {
		acc.TrueNegativeRate = float64(c.trueNegatives) /
			float64(c.nonRecommendations)
	}
	return acc
}

// probeStates returns the fixed observations at which agent beliefs
// are sampled: a low-probability coin at the episode start, a fair
// coin late in the episode, and a high-probability coin at the start.
func probeStates() []mat.Vector {
	return []mat.Vector{
		mat.NewVecDense(2, []float64{0.25, 0}),
		mat.NewVecDense(2, []float64{0.50, 10}),
		mat.NewVecDense(2, []float64{0.75, 0}),
	}
}
