package cli

import (
	"fmt"
	"sort"

	"github.com/felixgeelhaar/rendezvous/pkg/observability"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the store and configured backends",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := RequireApp()
		if err != nil {
			return err
		}
		if app.Health == nil {
			return fmt.Errorf("health checks are not configured")
		}

		report := app.Health.GetOverallHealth(cmd.Context())
		names := make([]string, 0, len(report.Checks))
		for name := range report.Checks {
			names = append(names, name)
		}
		sort.Strings(names)

		out := cmd.OutOrStdout()
		for _, name := range names {
			result := report.Checks[name]
			fmt.Fprintf(out, "  %-12s %s", name, result.Status)
			if result.Message != "" {
				fmt.Fprintf(out, " (%s)", result.Message)
			}
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "Overall: %s\n", report.Status)
		if report.Status == observability.HealthStatusUnhealthy {
			return fmt.Errorf("unhealthy")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
