package cli

import (
	"fmt"

	availabilityDomain "github.com/felixgeelhaar/rendezvous/internal/availability/domain"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/security"
	"github.com/spf13/cobra"
)

var prefsDryRun bool

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Manage availability preferences",
}

var prefsImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import availability preferences from a YAML file",
	Long: `Validate a preferences document and store every entry in one transaction.

Example document:
  preferences:
    - user_id: 00000000-0000-0000-0000-000000000001
      preferred_days: [1, 2, 3, 4, 5]
      daily_window: {start: "09:00", end: "17:00"}
      granularity_minutes: 30
      time_zone: Europe/Berlin`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := RequireApp()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		var prefs []availabilityDomain.AvailabilityPreferences
		if prefsDryRun {
			f, err := security.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()
			prefs, err = app.PreferencesImporter.Parse(f)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Valid document, %d entries, nothing saved:\n", len(prefs))
		} else {
			prefs, err = app.PreferencesImporter.ImportFile(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			fmt.Fprintf(out, "Imported preferences for %d user(s):\n", len(prefs))
		}
		for _, p := range prefs {
			fmt.Fprintf(out, "  %s  %02d:%02d-%02d:%02d %s, %d min grid\n",
				p.UserID,
				p.DailyWindowStart/60, p.DailyWindowStart%60,
				p.DailyWindowEnd/60, p.DailyWindowEnd%60,
				p.TimeZone, p.SlotGranularityMinutes,
			)
		}
		return nil
	},
}

func init() {
	prefsImportCmd.Flags().BoolVar(&prefsDryRun, "dry-run", false, "validate without saving")
	prefsCmd.AddCommand(prefsImportCmd)
	rootCmd.AddCommand(prefsCmd)
}
