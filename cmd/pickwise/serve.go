package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pickwise/pickwise/api"
	"github.com/pickwise/pickwise/config"
	"github.com/pickwise/pickwise/session"
	"github.com/pickwise/pickwise/storage"
)

var (
	serveAddr    string
	serveConfig  string
	sqlitePath   string
	postgresDSN  string
	shutdownWait = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve simulation sessions over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080",
		"address to listen on")
	serveCmd.Flags().StringVar(&serveConfig, "config", "",
		"YAML file with default session configuration")
	serveCmd.Flags().StringVar(&sqlitePath, "sqlite", "",
		"persist sessions to this SQLite file")
	serveCmd.Flags().StringVar(&postgresDSN, "postgres", "",
		"persist sessions to this Postgres DSN")
	rootCmd.AddCommand(serveCmd)
}

// openStore builds the session store selected by the flags. Both
// stores given is an error; neither disables persistence.
func openStore(ctx context.Context) (storage.Store, error) {
	switch {
	case sqlitePath != "" && postgresDSN != "":
		return nil, fmt.Errorf("choose one of --sqlite and --postgres")
	case sqlitePath != "":
		return storage.NewSQLite(ctx, sqlitePath)
	case postgresDSN != "":
		return storage.NewPostgres(ctx, postgresDSN)
	default:
		return nil, nil
	}
}

func serve() error {
	logger := newLogger()

	defaults := config.Default()
	if serveConfig != "" {
		var err error
		if defaults, err = config.Load(serveConfig); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	srv := api.NewServer(defaults, session.NewRegistry(), store, logger)
	httpServer := &http.Server{
		Addr:    serveAddr,
		Handler: srv.Handler(),
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", serveAddr)
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		shutdownWait)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
