// Package recommender implements the session orchestrator: it owns the
// coin environment and its learning agents, runs the
// recommend-choose-learn loop, and maintains the session statistics.
package recommender

import (
	"errors"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"github.com/pickwise/pickwise/agent"
	"github.com/pickwise/pickwise/config"
	"github.com/pickwise/pickwise/environment"
	"github.com/pickwise/pickwise/timestep"
)

// ErrNotActive is returned by Step when no episode has been started.
var ErrNotActive = errors.New("no active episode, call Reset first")

// observationDim is the dimension of the [p, t] observation the timed
// environment produces.
const observationDim = 2

// System runs one experiment session. It alternates between two modes:
// inactive after construction and Active once Reset has started an
// episode. Step may only be called while active and either completes
// fully or returns an error before mutating any state it has not
// already reached.
//
// A System is not safe for concurrent use; callers serialize access.
type System struct {
	cfg    config.Simulation
	env    *environment.TimedBandit
	agents []*agent.ValueAgent
	writer EpisodeWriter
	log    *slog.Logger

	active      bool
	currentObs  mat.Vector
	currentRecs []int

	// Session-level counters survive episode boundaries
	episodeCount          int
	stepCount             int
	recommendationCounts  []int
	selectionCounts       []int
	stats                 []confusion
	cumulativeHumanReward float64

	// Per-episode counters reset at every episode boundary
	episodeReward  float64
	agentReturns   []float64
	agentSuccesses []int

	episodeRecords []StepRecord
}

// New creates an inactive System from a validated configuration. The
// writer receives each completed episode's records and may be nil; a
// nil logger falls back to slog.Default.
func New(cfg config.Simulation, writer EpisodeWriter,
	logger *slog.Logger) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	if cfg.InputDim != observationDim {
		return nil, fmt.Errorf("new: input dimension must match the "+
			"[p, t] observation \n\twant(%v)\n\thave(%v)", observationDim,
			cfg.InputDim)
	}
	if logger == nil {
		logger = slog.Default()
	}

	env, err := environment.NewTimedBandit(cfg.StepsPerEpisode, cfg.NumAgents)
	if err != nil {
		return nil, fmt.Errorf("new: could not create environment: %v", err)
	}

	agents := make([]*agent.ValueAgent, cfg.NumAgents)
	for i := range agents {
		agents[i], err = agent.NewValue(i, cfg.Hyperparameters())
		if err != nil {
			return nil, fmt.Errorf("new: could not create agent %v: %v", i,
				err)
		}
	}

	return &System{
		cfg:    cfg,
		env:    env,
		agents: agents,
		writer: writer,
		log:    logger,

		recommendationCounts: make([]int, cfg.NumAgents),
		selectionCounts:      make([]int, cfg.NumAgents),
		stats:                make([]confusion, cfg.NumAgents),
		agentReturns:         make([]float64, cfg.NumAgents),
		agentSuccesses:       make([]int, cfg.NumAgents),
	}, nil
}

// NumAgents returns the number of recommender agents in the session.
func (s *System) NumAgents() int {
	return len(s.agents)
}

// Active reports whether an episode is in progress.
func (s *System) Active() bool {
	return s.active
}

// Agents returns the session's recommender agents.
func (s *System) Agents() []*agent.ValueAgent {
	return s.agents
}

// Observation returns a copy of the current observation.
func (s *System) Observation() mat.Vector {
	return timestep.CopyObs(s.currentObs)
}

// Reset starts a fresh episode and returns the agents' recommendations
// for its first observation. Session-level counters are left intact;
// per-episode counters start over.
func (s *System) Reset() []int {
	s.currentObs = timestep.CopyObs(s.env.Reset())
	s.resetEpisodeCounters()
	s.episodeRecords = s.episodeRecords[:0]
	s.active = true

	s.currentRecs = s.recommend()
	return append([]int(nil), s.currentRecs...)
}

func (s *System) resetEpisodeCounters() {
	s.episodeReward = 0
	for i := range s.agents {
		s.agentReturns[i] = 0
		s.agentSuccesses[i] = 0
	}
}

// recommend asks every agent for an action at the current observation.
func (s *System) recommend() []int {
	recs := make([]int, len(s.agents))
	for i, ag := range s.agents {
		recs[i] = ag.SelectAction(s.currentObs)
	}
	return recs
}

// StepResult reports everything one round produced: the pre-step
// state, the realized outcome and payoffs, the post-step state with
// fresh recommendations, and the running session statistics. When the
// round ended the episode, FinishedEpisode carries the per-agent
// transition logs of the episode just closed.
type StepResult struct {
	T               int       `json:"t"`
	P               float64   `json:"p"`
	Recommendations []int     `json:"recommendations"`
	HumanChoice     int       `json:"human_choice"`
	AgentPayoffs    []float64 `json:"agent_payoffs"`
	Outcome         string    `json:"outcome"`
	HumanPayoff     float64   `json:"human_payoff"`
	TNext           int       `json:"t_next"`
	PNext           float64   `json:"p_next"`
	Done            bool      `json:"done"`

	NextRecommendations []int `json:"next_recommendations"`

	// AgentCorrectness flags, per agent, whether this round's
	// recommendation agreed with the realized outcome
	AgentCorrectness []bool `json:"agent_correctness"`

	EpisodeCount           int       `json:"episode_count"`
	StepCount              int       `json:"step_count"`
	EpisodeReward          float64   `json:"episode_reward"`
	AverageReward          float64   `json:"average_reward"`
	AgentSuccesses         []int     `json:"agent_successes"`
	CumulativeAgentRewards []float64 `json:"cumulative_agent_rewards"`
	AgentEpsilons          []float64 `json:"agent_epsilons"`

	NewEpisode      bool                 `json:"new_episode"`
	FinishedEpisode [][]TransitionRecord `json:"finished_episode,omitempty"`
}

// Step runs one round: the environment realizes the coin flip for the
// human's choice among the standing recommendations, every agent
// stores the transition and takes one learning step, and fresh
// recommendations are drawn for the next observation. At an episode
// boundary the recorded steps are handed to the writer, every target
// network is synced, and the environment is reset.
func (s *System) Step(humanChoice int) (*StepResult, error) {
	if !s.active {
		return nil, ErrNotActive
	}
	if humanChoice < 0 || humanChoice >= len(s.agents) {
		return nil, fmt.Errorf("step: human choice out of range "+
			"\n\twant[0, %v)\n\thave(%v)", len(s.agents), humanChoice)
	}

	prevObs := s.currentObs
	prevRecs := append([]int(nil), s.currentRecs...)

	envRes := s.env.Step(humanChoice, prevRecs)
	nextObs := timestep.CopyObs(envRes.NextObservation)

	s.stepCount++
	s.cumulativeHumanReward += envRes.HumanReward
	s.episodeReward += envRes.HumanReward
	s.selectionCounts[humanChoice]++

	success := envRes.Outcome == environment.Success
	correctness := make([]bool, len(s.agents))
	for i := range s.agents {
		s.agentReturns[i] += envRes.AgentRewards[i]
		if prevRecs[i] == timestep.Recommend {
			s.recommendationCounts[i]++
			s.stats[i].recommendations++
			if success {
				s.stats[i].truePositives++
				s.agentSuccesses[i]++
				correctness[i] = true
			}
		} else {
			s.stats[i].nonRecommendations++
			if !success {
				s.stats[i].trueNegatives++
				s.agentSuccesses[i]++
				correctness[i] = true
			}
		}
	}

	s.episodeRecords = append(s.episodeRecords, StepRecord{
		T:               int(prevObs.AtVec(1)),
		P:               prevObs.AtVec(0),
		Recommendations: prevRecs,
		HumanChoice:     humanChoice,
		AgentPayoffs:    append([]float64(nil), envRes.AgentRewards...),
		Outcome:         envRes.Outcome.String(),
		HumanPayoff:     envRes.HumanReward,
		TNext:           int(nextObs.AtVec(1)),
		Done:            envRes.Done,
	})

	for i, ag := range s.agents {
		tr := timestep.New(prevObs, prevRecs[i], envRes.AgentRewards[i],
			nextObs, envRes.Done)
		if err := s.env.StoreTransition(i, tr); err != nil {
			return nil, fmt.Errorf("step: %v", err)
		}
		if err := ag.StoreTransition(tr); err != nil {
			return nil, fmt.Errorf("step: agent %v: %v", i, err)
		}
		if err := ag.Update(); err != nil {
			return nil, fmt.Errorf("step: agent %v: %v", i, err)
		}
	}
	s.currentObs = nextObs

	// Per-episode statistics are reported as they stood when the round
	// finished, before any boundary reset
	result := &StepResult{
		T:                int(prevObs.AtVec(1)),
		P:                prevObs.AtVec(0),
		Recommendations:  prevRecs,
		HumanChoice:      humanChoice,
		AgentPayoffs:     append([]float64(nil), envRes.AgentRewards...),
		Outcome:          envRes.Outcome.String(),
		HumanPayoff:      envRes.HumanReward,
		TNext:            int(nextObs.AtVec(1)),
		PNext:            nextObs.AtVec(0),
		Done:             envRes.Done,
		AgentCorrectness: correctness,
		EpisodeReward:    s.episodeReward,
		AgentSuccesses:   append([]int(nil), s.agentSuccesses...),
		CumulativeAgentRewards: append([]float64(nil),
			s.agentReturns...),
	}

	if envRes.Done {
		if err := s.closeEpisode(result); err != nil {
			return nil, err
		}
	}

	s.currentRecs = s.recommend()

	result.NextRecommendations = append([]int(nil), s.currentRecs...)
	result.EpisodeCount = s.episodeCount
	result.StepCount = s.stepCount
	result.AverageReward = s.averageReward()
	result.AgentEpsilons = s.epsilons()

	return result, nil
}

// closeEpisode persists the finished episode, syncs every target
// network, and resets the environment for the next episode. The
// episode's transition logs are attached to the result before the
// environment discards them.
func (s *System) closeEpisode(result *StepResult) error {
	s.persistEpisode()
	result.NewEpisode = true
	result.FinishedEpisode = exportHistory(s.env.History())

	s.episodeCount++
	for i, ag := range s.agents {
		if err := ag.UpdateTargetNetwork(); err != nil {
			return fmt.Errorf("step: agent %v: %v", i, err)
		}
	}

	s.currentObs = timestep.CopyObs(s.env.Reset())
	s.resetEpisodeCounters()
	return nil
}

// persistEpisode hands the episode's records to the writer. Writer
// failures are logged and swallowed so persistence never aborts the
// simulation.
func (s *System) persistEpisode() {
	if s.writer == nil || len(s.episodeRecords) == 0 {
		s.episodeRecords = s.episodeRecords[:0]
		return
	}

	records := make([]StepRecord, len(s.episodeRecords))
	copy(records, s.episodeRecords)
	if err := s.writer.WriteEpisode(s.episodeCount, records); err != nil {
		s.log.Error("could not persist episode",
			"episode", s.episodeCount,
			"steps", len(records),
			"error", err,
		)
	}
	s.episodeRecords = s.episodeRecords[:0]
}

func (s *System) averageReward() float64 {
	if s.episodeCount == 0 {
		return 0
	}
	return s.cumulativeHumanReward / float64(s.episodeCount)
}

func (s *System) epsilons() []float64 {
	eps := make([]float64, len(s.agents))
	for i, ag := range s.agents {
		eps[i] = ag.Epsilon()
	}
	return eps
}

// Metrics returns a copy of the current session statistics, including
// every agent's beliefs at the probe observations. The call reads but
// never mutates the session.
func (s *System) Metrics() Snapshot {
	probes := probeStates()
	beliefs := make([]AgentBelief, len(s.agents))
	accuracy := make([]AgentAccuracy, len(s.agents))
	for i, ag := range s.agents {
		values := make([][]float64, len(probes))
		for j, probe := range probes {
			values[j] = ag.QValues(probe)
		}
		beliefs[i] = AgentBelief{
			AgentID:     ag.ID(),
			Epsilon:     ag.Epsilon(),
			ProbeValues: values,
		}
		accuracy[i] = s.stats[i].accuracy()
	}

	return Snapshot{
		EpisodeCount:          s.episodeCount,
		StepCount:             s.stepCount,
		AgentBeliefs:          beliefs,
		RecommendationCounts:  append([]int(nil), s.recommendationCounts...),
		SelectionCounts:       append([]int(nil), s.selectionCounts...),
		CumulativeHumanReward: s.cumulativeHumanReward,
		AgentAccuracy:         accuracy,
		EpisodeReward:         s.episodeReward,
		AverageReward:         s.averageReward(),
		AgentSuccesses:        append([]int(nil), s.agentSuccesses...),
	}
}
