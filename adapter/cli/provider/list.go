package provider

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/rendezvous/adapter/cli"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List supported and connected providers",
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

		conns, err := app.ConnectionService.List(cmd.Context(), userID)
		if err != nil {
			return fmt.Errorf("failed to list connections: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Providers:")
		fmt.Fprintln(out, strings.Repeat("-", 60))
		for _, p := range app.Providers.SupportedProviders() {
			conn, ok := conns[p]
			if !ok {
				fmt.Fprintf(out, "  %-10s not connected\n", p)
				continue
			}
			state := "connected"
			if !conn.Enabled {
				state = "paused (reconnect to resume)"
			}
			fmt.Fprintf(out, "  %-10s %s\n", p, state)
			fmt.Fprintf(out, "             calendars: %s\n", strings.Join(conn.Calendars(), ", "))
			if conn.SourceURL != "" {
				fmt.Fprintf(out, "             source: %s\n", conn.SourceURL)
			}
			if conn.Username != "" {
				fmt.Fprintf(out, "             user: %s\n", conn.Username)
			}
		}
		return nil
	},
}
