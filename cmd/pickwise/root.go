package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "pickwise",
	Short: "Sequential recommendation experiment engine",
	Long: `pickwise runs sequential recommendation experiments: learning
agents recommend whether to bet on a stochastic coin, a human (or a
learned proxy standing in for one) picks which agent to follow, and
everyone learns from the payoffs.

Use "serve" to expose sessions over HTTP or "simulate" to run a
closed-loop proxy experiment locally.`,
}

// Execute runs the root command, exiting non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
}

// newLogger builds the process logger at the configured level and
// installs it as the slog default.
func newLogger() *slog.Logger {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
