package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixir/disease-literature-harvester/internal/events"
	"github.com/helixir/disease-literature-harvester/internal/harvest"
	"github.com/helixir/disease-literature-harvester/internal/observability"
	httpserver "github.com/helixir/disease-literature-harvester/internal/server/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the harvest HTTP API",
	Long: `Serve starts the HTTP API: POST /api/v1/harvests starts a background run,
GET /api/v1/harvests/{id} reports progress and /export downloads the corpus.

When kafka.request_topic is set, harvest requests are also consumed from
that topic. Finished runs are saved to PostgreSQL when database.enabled is
set and announced on kafka.topic when kafka.enabled is set.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := observability.WithComponent(newLogger(cfg.Logging), "server")
	logger.Info().Str("version", version).Msg("disease-literature-harvester starting")

	ctx := cmd.Context()
	a := newApp(cfg, logger)
	defer a.close()

	if cfg.Database.Enabled {
		if err := a.openStore(ctx); err != nil {
			return err
		}
	}
	if cfg.Kafka.Enabled {
		if err := a.openPublisher(); err != nil {
			return err
		}
	}

	runner, err := a.runner()
	if err != nil {
		return err
	}
	manager := harvest.NewManager(runner, a.defaults(), cfg.Server.MaxActiveRuns, logger)

	deps := httpserver.Deps{Runs: manager, Sources: a.catalog.Registry}
	if a.db != nil {
		deps.Store = a.store
		deps.DB = a.db
	}
	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	if cfg.Metrics.Enabled {
		httpCfg.MetricsPath = cfg.Metrics.Path
	}
	srv := httpserver.NewServer(httpCfg, deps, logger)

	errCh := make(chan error, 2)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	listenerCtx, stopListener := context.WithCancel(ctx)
	defer stopListener()
	if cfg.Kafka.Enabled && cfg.Kafka.RequestTopic != "" {
		listener, err := events.NewListener(cfg.Kafka, manager, logger)
		if err != nil {
			return fmt.Errorf("create request listener: %w", err)
		}
		defer func() {
			if err := listener.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close request listener")
			}
		}()
		go func() {
			if err := listener.Run(listenerCtx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("request listener error: %w", err)
			}
		}()
		logger.Info().Str("topic", cfg.Kafka.RequestTopic).Msg("harvest request listener started")
	}

	logger.Info().
		Str("http_address", httpCfg.Address).
		Bool("persistence", a.store != nil).
		Bool("publishing", a.publisher != nil).
		Msg("disease-literature-harvester is ready")

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case serveErr = <-errCh:
		logger.Error().Err(serveErr).Msg("server error")
	}

	stopListener()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Int("active_runs", manager.Active()).Msg("runs still active at shutdown")
	}

	logger.Info().Msg("disease-literature-harvester shutdown complete")
	return serveErr
}
