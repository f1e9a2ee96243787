// Package cli implements the rendezvous command line.
package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/rendezvous/pkg/observability"
)

var (
	userFlag string
	logger   = slog.Default()
)

// invocation ties the log lines of one command run together.
type invocation struct {
	id      string
	started time.Time
}

type invocationKey struct{}

var rootCmd = &cobra.Command{
	Use:   "rendezvous",
	Short: "Merge calendars and find free time",
	Long: `Rendezvous reads Google, Microsoft and local calendars into one store,
reports overlapping events and computes when one or more people are free.

Configuration comes from the environment (and a .env file), see
'rendezvous health' to check the store and providers.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		inv := invocation{id: uuid.NewString(), started: time.Now()}
		ctx := observability.WithCorrelationID(cmd.Context(), inv.id)
		ctx = context.WithValue(ctx, invocationKey{}, inv)
		cmd.SetContext(ctx)
		logger.DebugContext(ctx, "command started", "command", cmd.CommandPath())
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		inv, ok := cmd.Context().Value(invocationKey{}).(invocation)
		if !ok {
			return
		}
		logger.DebugContext(cmd.Context(), "command finished",
			"command", cmd.CommandPath(),
			"duration_ms", time.Since(inv.started).Milliseconds(),
		)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "user ID to act for (default RENDEZVOUS_USER_ID)")
}

// Root returns the root command; binaries attach their subcommand groups to it.
func Root() *cobra.Command {
	return rootCmd
}

// AddCommand attaches cmd to the root command.
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

// SetLogger replaces the logger used for command tracing. nil is ignored.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}
