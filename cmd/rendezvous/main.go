package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/rendezvous/adapter/cli"
	"github.com/felixgeelhaar/rendezvous/adapter/cli/conflict"
	cliMCP "github.com/felixgeelhaar/rendezvous/adapter/cli/mcp"
	"github.com/felixgeelhaar/rendezvous/adapter/cli/provider"
	"github.com/felixgeelhaar/rendezvous/internal/app"
	mcpinternal "github.com/felixgeelhaar/rendezvous/internal/mcp"
	"github.com/felixgeelhaar/rendezvous/pkg/config"
	"github.com/felixgeelhaar/rendezvous/pkg/observability"
	"github.com/google/uuid"
)

func main() {
	// Setup logger
	logger := observability.LoggerFromEnv("rendezvous")

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger = observability.NewLogger(observability.ConfigFor("rendezvous", cfg.AppEnv, cfg.LogLevel, cfg.LogFormat, cli.Version))
	slog.SetDefault(logger)
	cli.SetLogger(logger)

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		// version and help still work without a store
		logger.Warn("failed to initialize container, running in limited mode", "error", err)
	} else {
		defer container.Close()

		userID, err := uuid.Parse(cfg.UserID)
		if err != nil {
			logger.Error("invalid RENDEZVOUS_USER_ID", "error", err)
			os.Exit(1)
		}
		cli.SetApp(mcpinternal.NewCLIApp(container, userID))
		provider.SetOAuthFlow(container.Tokens)
	}

	// Register commands
	cli.AddCommand(provider.Cmd)
	cli.AddCommand(conflict.Cmd)
	cli.AddCommand(cliMCP.Cmd)

	if err := cli.Root().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
