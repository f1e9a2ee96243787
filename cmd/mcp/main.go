// Command rendezvous-mcp serves the sync, availability and conflict tools
// over MCP's streamable HTTP transport.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/rendezvous/adapter/cli"
	"github.com/felixgeelhaar/rendezvous/internal/app"
	mcpinternal "github.com/felixgeelhaar/rendezvous/internal/mcp"
	"github.com/felixgeelhaar/rendezvous/pkg/config"
	"github.com/felixgeelhaar/rendezvous/pkg/observability"
	"github.com/google/uuid"
)

const service = "rendezvous-mcp"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		slog.Error("mcp server exited", "error", err)
		cancel()
		os.Exit(1)
	}
}

// run returns instead of exiting so the container and the outbox relay are
// always shut down.
func run(ctx context.Context) error {
	slog.SetDefault(observability.LoggerFromEnv(service))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(observability.ConfigFor(service, cfg.AppEnv, cfg.LogLevel, cfg.LogFormat, cli.Version))
	slog.SetDefault(logger)

	userID, err := uuid.Parse(cfg.UserID)
	if err != nil {
		return fmt.Errorf("invalid RENDEZVOUS_USER_ID: %w", err)
	}

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize container: %w", err)
	}
	defer container.Close()

	if cfg.OutboxProcessorEnabled {
		if err := container.OutboxProcessor.Start(ctx); err != nil {
			return fmt.Errorf("start outbox processor: %w", err)
		}
		defer container.OutboxProcessor.Stop()
	}

	err = mcpinternal.Serve(ctx, cfg, mcpinternal.NewCLIApp(container, userID), logger)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
