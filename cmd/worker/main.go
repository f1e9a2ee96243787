package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/rendezvous/adapter/cli"
	"github.com/felixgeelhaar/rendezvous/internal/app"
	"github.com/felixgeelhaar/rendezvous/pkg/config"
	"github.com/felixgeelhaar/rendezvous/pkg/observability"
)

func main() {
	logger := observability.LoggerFromEnv("rendezvous-worker")
	logger.Info("starting rendezvous worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger = observability.NewLogger(observability.ConfigFor("rendezvous-worker", cfg.AppEnv, cfg.LogLevel, cfg.LogFormat, cli.Version))
	slog.SetDefault(logger)

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()
	container.RegisterWorkerChecks()

	if cfg.OutboxProcessorEnabled {
		if err := container.OutboxProcessor.Start(ctx); err != nil {
			logger.Error("failed to start outbox processor", "error", err)
			os.Exit(1)
		}
		defer func() {
			container.OutboxProcessor.Stop()
			stats := container.OutboxProcessor.GetStats()
			logger.Info("outbox stats",
				"published", stats.PublishedCount,
				"failed", stats.FailedCount,
				"dead", stats.DeadCount,
			)
		}()
	}

	if cfg.WorkerHealthAddr != "" {
		healthSrv := &http.Server{
			Addr:              cfg.WorkerHealthAddr,
			Handler:           healthMux(container),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("health server starting", "addr", cfg.WorkerHealthAddr)
			if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("health server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := healthSrv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("health server shutdown error", "error", err)
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return container.SyncWorker.Run(gctx)
	})

	if listener := container.NewSyncListener(); listener != nil {
		g.Go(func() error {
			return listener.Run(gctx)
		})
	}

	watcher, err := container.NewSourceWatcher(ctx)
	if err != nil {
		logger.Error("failed to start calendar file watcher", "error", err)
		os.Exit(1)
	}
	if watcher != nil {
		defer watcher.Close()
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("worker shutdown complete")
}

func healthMux(c *app.Container) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/healthz", observability.LiveHandler())
	mux.Handle("/readyz", c.Health.ReadyHandler())
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		stats := c.OutboxProcessor.GetStats()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"outbox": map[string]any{
				"running":           stats.IsRunning,
				"published":         stats.PublishedCount,
				"failed":            stats.FailedCount,
				"dead":              stats.DeadCount,
				"lag_seconds":       stats.LagSeconds,
				"last_processed_at": stats.LastProcessedAt,
				"last_error":        stats.LastError,
			},
			"metrics": c.Metrics.Snapshot(),
		})
	})
	return mux
}
