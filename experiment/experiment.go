// Package experiment runs complete self-play experiments: a proxy
// agent stands in for the human and drives a recommender session for a
// fixed number of episodes.
package experiment

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/samuelfneumann/progressbar"

	"github.com/pickwise/pickwise/agent"
	"github.com/pickwise/pickwise/experiment/trackers"
	"github.com/pickwise/pickwise/recommender"
	"github.com/pickwise/pickwise/timestep"
)

// ProxyExperiment runs a recommender session with a HumanProxyAgent
// choosing which recommendation to follow. The proxy learns from the
// human payoffs it collects, so over many episodes it gravitates
// toward the agent whose recommendations pay off most often.
type ProxyExperiment struct {
	sys      *recommender.System
	proxy    *agent.HumanProxyAgent
	episodes int
	trackers []trackers.Tracker
	log      *slog.Logger

	showProgress bool
}

// NewProxy creates a proxy experiment running the given session for
// episodes episodes. A nil logger falls back to slog.Default.
func NewProxy(sys *recommender.System, proxy *agent.HumanProxyAgent,
	episodes int, logger *slog.Logger,
	ts ...trackers.Tracker) (*ProxyExperiment, error) {
	if episodes < 1 {
		return nil, fmt.Errorf("newproxy: episodes must be >= 1 "+
			"\n\thave(%v)", episodes)
	}
	if proxy.NumAgents() != sys.NumAgents() {
		return nil, fmt.Errorf("newproxy: proxy and session disagree on "+
			"the number of agents \n\twant(%v)\n\thave(%v)", sys.NumAgents(),
			proxy.NumAgents())
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ProxyExperiment{
		sys:      sys,
		proxy:    proxy,
		episodes: episodes,
		trackers: ts,
		log:      logger,
	}, nil
}

// Register registers a Tracker with the experiment so that data
// generated while it runs is cached and saved.
func (e *ProxyExperiment) Register(t trackers.Tracker) {
	e.trackers = append(e.trackers, t)
}

// ShowProgress enables a terminal progress bar over episodes.
func (e *ProxyExperiment) ShowProgress() {
	e.showProgress = true
}

// Run runs the whole experiment and then saves every registered
// Tracker.
func (e *ProxyExperiment) Run() error {
	recs := e.sys.Reset()

	var pbar *progressbar.ProgressBar
	if e.showProgress {
		pbar = progressbar.New(50, e.episodes, time.Second, true)
		pbar.Display()
		defer pbar.Close()
	}

	for i := 0; i < e.episodes; i++ {
		next, reward, err := e.runEpisode(recs)
		if err != nil {
			return fmt.Errorf("run: episode %v: %v", i, err)
		}
		recs = next

		e.log.Debug("episode finished",
			"episode", i,
			"return", reward,
			"proxy_epsilon", e.proxy.Epsilon(),
		)
		if pbar != nil {
			pbar.Increment()
		}
	}

	return e.save()
}

// runEpisode plays one episode to completion and trains the proxy on
// it. It takes the standing recommendations for the episode's first
// observation and returns those for the next episode, along with the
// episode's human return.
func (e *ProxyExperiment) runEpisode(recs []int) ([]int, float64, error) {
	successes := make([]int, e.sys.NumAgents())
	t := 0
	steps := 0

	for {
		obs, err := e.proxy.Observation(recs, t, successes)
		if err != nil {
			return nil, 0, err
		}
		choice := e.proxy.SelectAction(obs)

		result, err := e.sys.Step(choice)
		if err != nil {
			return nil, 0, err
		}
		steps++
		e.track(result)

		nextObs, err := e.proxy.Observation(result.NextRecommendations,
			result.TNext, result.AgentSuccesses)
		if err != nil {
			return nil, 0, err
		}
		if err := e.proxy.StoreTransition(timestep.New(obs, choice,
			result.HumanPayoff, nextObs, result.Done)); err != nil {
			return nil, 0, err
		}

		recs = result.NextRecommendations
		t = result.TNext
		successes = result.AgentSuccesses

		if result.Done {
			// The proxy learns only at episode boundaries, one update
			// per step played
			for i := 0; i < steps; i++ {
				if err := e.proxy.Update(); err != nil {
					return nil, 0, err
				}
			}
			if err := e.proxy.UpdateTargetNetwork(); err != nil {
				return nil, 0, err
			}
			return recs, result.EpisodeReward, nil
		}
	}
}

// track caches the current step's data in each Tracker.
func (e *ProxyExperiment) track(result *recommender.StepResult) {
	for _, tracker := range e.trackers {
		tracker.Track(result)
	}
}

// save saves all the data cached by the Trackers to disk.
func (e *ProxyExperiment) save() error {
	for _, tracker := range e.trackers {
		if err := tracker.Save(); err != nil {
			return fmt.Errorf("save: %v", err)
		}
	}
	return nil
}
