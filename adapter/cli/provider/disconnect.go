package provider

import (
	"fmt"

	"github.com/felixgeelhaar/rendezvous/adapter/cli"
	calendarDomain "github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/spf13/cobra"
)

var disconnectCmd = &cobra.Command{
	Use:   "disconnect <provider>",
	Short: "Disconnect a provider and remove its events",
	Long: `Stop any running sync, forget the stored credential and delete the
provider's connection, sync state and events.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		userID, err := app.UserID()
		if err != nil {
			return fmt.Errorf("invalid --user: %w", err)
		}
		provider, err := calendarDomain.ParseProviderType(args[0])
		if err != nil {
			return err
		}

		result, err := app.ConnectionService.Disconnect(cmd.Context(), userID, provider)
		app.Flush(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to disconnect: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Disconnected %s, removed %d event(s).\n", provider.DisplayName(), result.EventsRemoved)
		if result.SyncCancelled {
			fmt.Fprintln(out, "A running sync was cancelled.")
		}
		return nil
	},
}
