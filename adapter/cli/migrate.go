package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long: `Apply the schema to the configured store. Every command does this on
start; migrate only reports what was applied.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := RequireApp()
		if err != nil {
			return err
		}
		if app.AppliedMigrations == nil {
			return fmt.Errorf("migrations are not available")
		}
		files, err := app.AppliedMigrations()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Schema up to date (%d migrations):\n", len(files))
		for _, f := range files {
			fmt.Fprintf(out, "  %s\n", f)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
