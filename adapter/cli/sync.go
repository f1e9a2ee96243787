package cli

import (
	"fmt"

	calendarDomain "github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/spf13/cobra"
)

var syncNotify bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch every connected calendar and refresh the local store",
	Long: `Fetch events from every enabled provider, reconcile them with the stored
events and record overlapping events as conflicts.

A failing provider is reported but does not stop the others.

Examples:
  rendezvous sync
  rendezvous sync --notify     # ask a running worker to sync instead`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := RequireApp()
		if err != nil {
			return err
		}
		userID, err := app.UserID()
		if err != nil {
			return fmt.Errorf("invalid --user: %w", err)
		}
		out := cmd.OutOrStdout()

		if syncNotify {
			if app.NotifySync == nil {
				return fmt.Errorf("sync notifications are not available")
			}
			if err := app.NotifySync(cmd.Context(), userID); err != nil {
				return fmt.Errorf("failed to notify workers: %w", err)
			}
			fmt.Fprintln(out, "Sync requested.")
			return nil
		}

		report, err := app.SyncService.SyncUser(cmd.Context(), userID)
		app.Flush(cmd.Context())
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}

		if len(report.Providers) == 0 {
			fmt.Fprintln(out, "No providers connected. Use 'rendezvous providers connect' first.")
			return nil
		}

		fmt.Fprintf(out, "Window: %s - %s\n",
			report.Window.Start.Format("2006-01-02"), report.Window.End.Format("2006-01-02"))
		for _, p := range report.Providers {
			if p.Err != nil {
				fmt.Fprintf(out, "  %-10s failed (%s): %v\n", p.Provider, calendarDomain.KindName(p.Err), p.Err)
				continue
			}
			fmt.Fprintf(out, "  %-10s created=%d updated=%d deleted=%d", p.Provider, p.Result.Created, p.Result.Updated, p.Result.Deleted)
			if p.Skipped > 0 {
				fmt.Fprintf(out, " skipped=%d", p.Skipped)
			}
			fmt.Fprintln(out)
		}
		if report.Conflicts != nil && report.Conflicts.New > 0 {
			fmt.Fprintf(out, "New conflicts: %d\n", report.Conflicts.New)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncNotify, "notify", false, "notify running workers instead of syncing in this process")
	rootCmd.AddCommand(syncCmd)
}
