package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pickwise/pickwise/agent"
	"github.com/pickwise/pickwise/config"
	"github.com/pickwise/pickwise/experiment"
	"github.com/pickwise/pickwise/experiment/trackers"
	"github.com/pickwise/pickwise/recommender"
	"github.com/pickwise/pickwise/sessionlog"
	"github.com/pickwise/pickwise/storage"
)

var (
	simEpisodes    int
	simConfig      string
	simOut         string
	simParticipant string
	simSQLite      string
	simSummary     string
	simProgress    bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a closed-loop proxy experiment",
	Long: `simulate plays a whole experiment without a human: a proxy
agent chooses which recommendation to follow and learns from the
payoffs it collects. Episodic returns and exploration rates are saved
to the output directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return simulate()
	},
}

func init() {
	simulateCmd.Flags().IntVar(&simEpisodes, "episodes", 100,
		"number of episodes to play")
	simulateCmd.Flags().StringVar(&simConfig, "config", "",
		"YAML file with the session configuration")
	simulateCmd.Flags().StringVar(&simOut, "out", "results",
		"directory for tracker output")
	simulateCmd.Flags().StringVar(&simParticipant, "participant", "proxy",
		"participant name recorded in the session document")
	simulateCmd.Flags().StringVar(&simSQLite, "sqlite", "",
		"persist the session to this SQLite file")
	simulateCmd.Flags().StringVar(&simSummary, "summary", "",
		"append per-episode summary rows to this CSV file")
	simulateCmd.Flags().BoolVar(&simProgress, "progress", true,
		"show a progress bar")
	rootCmd.AddCommand(simulateCmd)
}

// episodeSink fans completed episodes out to the session document and,
// when configured, the CSV summary.
type episodeSink struct {
	log     *sessionlog.Logger
	summary *storage.SummaryWriter
}

func (s *episodeSink) WriteEpisode(episode int,
	records []recommender.StepRecord) error {
	if err := s.log.WriteEpisode(episode, records); err != nil {
		return err
	}
	if s.summary != nil {
		return s.summary.Append(episode, records)
	}
	return nil
}

func simulate() error {
	logger := newLogger()

	cfg := config.Default()
	if simConfig != "" {
		var err error
		if cfg, err = config.Load(simConfig); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(simOut, 0o755); err != nil {
		return fmt.Errorf("could not create output directory: %w", err)
	}

	var store storage.Store
	if simSQLite != "" {
		var err error
		store, err = storage.NewSQLite(context.Background(), simSQLite)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	sessLog := sessionlog.New("", simParticipant, cfg, store, logger)
	sink := &episodeSink{log: sessLog}
	if simSummary != "" {
		summary, err := storage.NewSummaryWriter(simSummary,
			sessLog.SessionID())
		if err != nil {
			return err
		}
		defer summary.Close()
		sink.summary = summary
	}

	sys, err := recommender.New(cfg, sink, logger)
	if err != nil {
		return err
	}
	proxy, err := agent.NewHumanProxy(cfg.NumAgents, cfg.Hyperparameters())
	if err != nil {
		return err
	}

	exp, err := experiment.NewProxy(sys, proxy, simEpisodes, logger,
		trackers.NewReturn(filepath.Join(simOut, "returns.bin")),
		trackers.NewEpsilon(filepath.Join(simOut, "epsilons.bin")),
	)
	if err != nil {
		return err
	}
	if simProgress {
		exp.ShowProgress()
	}

	logger.Info("starting experiment",
		"session_id", sessLog.SessionID(),
		"episodes", simEpisodes,
		"agents", cfg.NumAgents,
	)
	if err := exp.Run(); err != nil {
		return err
	}

	snapshot := sys.Metrics()
	logger.Info("experiment finished",
		"episodes", snapshot.EpisodeCount,
		"steps", snapshot.StepCount,
		"average_reward", snapshot.AverageReward,
		"selection_counts", snapshot.SelectionCounts,
	)
	return nil
}
