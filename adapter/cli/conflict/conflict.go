// Package conflict implements the conflict commands.
package conflict

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/rendezvous/adapter/cli"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Cmd is the conflicts command group
var Cmd = &cobra.Command{
	Use:     "conflicts",
	Aliases: []string{"conflict"},
	Short:   "Review overlapping events",
	Long: `Events from different providers that overlap are recorded as conflicts
during sync. Nothing is changed on the providers; resolve a conflict once
you have dealt with it.`,
}

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List unresolved conflicts",
	Aliases: []string{"ls"},
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		userID, err := app.UserID()
		if err != nil {
			return fmt.Errorf("invalid --user: %w", err)
		}

		records, err := app.ConflictResolver.ListUnresolved(cmd.Context(), userID)
		if err != nil {
			return fmt.Errorf("failed to list conflicts: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(records) == 0 {
			fmt.Fprintln(out, "No unresolved conflicts.")
			return nil
		}
		fmt.Fprintf(out, "Conflicts (%d):\n", len(records))
		fmt.Fprintln(out, strings.Repeat("-", 60))
		for _, r := range records {
			fmt.Fprintf(out, "%s  detected %s\n", r.ID, r.DetectedAt.Local().Format("2006-01-02 15:04"))
			fmt.Fprintf(out, "   events: %s <> %s\n", r.EventIDA, r.EventIDB)
		}
		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <conflict-id>",
	Short: "Mark a conflict as resolved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		userID, err := app.UserID()
		if err != nil {
			return fmt.Errorf("invalid --user: %w", err)
		}
		conflictID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid conflict ID: %w", err)
		}

		if err := app.ConflictResolver.Resolve(cmd.Context(), userID, conflictID); err != nil {
			return fmt.Errorf("failed to resolve conflict: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Conflict %s resolved.\n", conflictID)
		return nil
	},
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(resolveCmd)
}
