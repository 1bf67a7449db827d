package recommender

import "github.com/pickwise/pickwise/timestep"

// StepRecord is the flat per-step record handed to persistence after
// each completed episode. Its shape is stable: external writers may
// land it in a file, a database row, or a spreadsheet, but the fields
// never change meaning.
type StepRecord struct {
	T               int       `json:"t"`
	P               float64   `json:"p"`
	Recommendations []int     `json:"recommendations"`
	HumanChoice     int       `json:"human_choice"`
	AgentPayoffs    []float64 `json:"agent_payoffs"`
	Outcome         string    `json:"outcome"`
	HumanPayoff     float64   `json:"human_payoff"`
	TNext           int       `json:"t_next"`
	Done            bool      `json:"done"`
}

// EpisodeWriter receives the recorded steps of each completed episode.
// Implementations must log and swallow their own failures: a
// persistence problem never aborts an in-progress simulation step.
type EpisodeWriter interface {
	WriteEpisode(episode int, records []StepRecord) error
}

// TransitionRecord is the exportable form of a logged transition.
type TransitionRecord struct {
	State     []float64 `json:"state"`
	Action    int       `json:"action"`
	Reward    float64   `json:"reward"`
	NextState []float64 `json:"next_state"`
	Done      bool      `json:"done"`
}

// exportHistory flattens the environment's per-agent transition logs
// into plain records.
func exportHistory(history [][]timestep.Transition) [][]TransitionRecord {
	out := make([][]TransitionRecord, len(history))
	for i, transitions := range history {
		out[i] = make([]TransitionRecord, len(transitions))
		for j, tr := range transitions {
			out[i][j] = TransitionRecord{
				State:     timestep.RawObs(tr.State),
				Action:    tr.Action,
				Reward:    tr.Reward,
				NextState: timestep.RawObs(tr.NextState),
				Done:      tr.Done,
			}
		}
	}
	return out
}
