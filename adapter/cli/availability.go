package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	availabilityQueries "github.com/felixgeelhaar/rendezvous/internal/availability/application/queries"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

var (
	availFrom         string
	availTo           string
	availDays         int
	availSuggest      bool
	mutualUsers       []string
	mutualGranularity int
)

var availabilityCmd = &cobra.Command{
	Use:   "availability",
	Short: "Show free slots",
	Long: `Show the free slots of a user from the stored events and the user's
availability preferences. Run 'rendezvous sync' first to refresh the events.

Examples:
  rendezvous availability                    # next 7 days
  rendezvous availability --from 2025-03-03 --days 5
  rendezvous availability --from 2025-03-03 --to 2025-03-07
  rendezvous availability --suggest          # meeting-sized windows only`,
	Aliases: []string{"avail"},
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := RequireApp()
		if err != nil {
			return err
		}
		userID, err := app.UserID()
		if err != nil {
			return fmt.Errorf("invalid --user: %w", err)
		}
		start, end, err := availabilityRange(availFrom, availTo, availDays)
		if err != nil {
			return err
		}

		var slots []availabilityQueries.TimeSlotDTO
		if availSuggest {
			slots, err = app.SuggestWindowsHandler.Handle(cmd.Context(), availabilityQueries.SuggestWindowsQuery{
				UserID: userID, Start: start, End: end,
			})
		} else {
			slots, err = app.AvailabilityHandler.Handle(cmd.Context(), availabilityQueries.ComputeAvailabilityQuery{
				UserID: userID, Start: start, End: end,
			})
		}
		if err != nil {
			return fmt.Errorf("failed to compute availability: %w", err)
		}
		printSlots(cmd.OutOrStdout(), slots)
		return nil
	},
}

var mutualCmd = &cobra.Command{
	Use:   "mutual",
	Short: "Show slots free for every given user",
	Long: `Intersect the free slots of several users.

Examples:
  rendezvous availability mutual --users <id>,<id> --days 3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := RequireApp()
		if err != nil {
			return err
		}
		if len(mutualUsers) == 0 {
			return fmt.Errorf("--users is required")
		}
		userIDs := make([]uuid.UUID, 0, len(mutualUsers))
		for _, raw := range mutualUsers {
			id, err := uuid.Parse(strings.TrimSpace(raw))
			if err != nil {
				return fmt.Errorf("invalid user ID %q: %w", raw, err)
			}
			userIDs = append(userIDs, id)
		}
		start, end, err := availabilityRange(availFrom, availTo, availDays)
		if err != nil {
			return err
		}

		slots, err := app.MutualAvailabilityHandler.Handle(cmd.Context(), availabilityQueries.ComputeMutualAvailabilityQuery{
			UserIDs:     userIDs,
			Start:       start,
			End:         end,
			Granularity: mutualGranularity,
		})
		if err != nil {
			return fmt.Errorf("failed to compute mutual availability: %w", err)
		}
		printSlots(cmd.OutOrStdout(), slots)
		return nil
	},
}

// availabilityRange returns [from, to] as whole UTC days, or days from from
// when to is empty. from defaults to today.
func availabilityRange(from, to string, days int) (time.Time, time.Time, error) {
	start := time.Now().UTC().Truncate(24 * time.Hour)
	if from != "" {
		t, err := time.Parse(dateLayout, from)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from format, use YYYY-MM-DD: %w", err)
		}
		start = t
	}
	if to != "" {
		t, err := time.Parse(dateLayout, to)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to format, use YYYY-MM-DD: %w", err)
		}
		if t.Before(start) {
			return time.Time{}, time.Time{}, fmt.Errorf("--to must not be before --from")
		}
		return start, t.AddDate(0, 0, 1), nil
	}
	if days <= 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("--days must be positive")
	}
	return start, start.AddDate(0, 0, days), nil
}

func printSlots(out io.Writer, slots []availabilityQueries.TimeSlotDTO) {
	if len(slots) == 0 {
		fmt.Fprintln(out, "No free slots found.")
		return
	}
	fmt.Fprintf(out, "Free slots (%d):\n", len(slots))
	fmt.Fprintln(out, strings.Repeat("-", 40))
	day := ""
	for _, s := range slots {
		if d := s.Start.Format("Mon 2006-01-02"); d != day {
			day = d
			fmt.Fprintln(out, day)
		}
		fmt.Fprintf(out, "  %s - %s  (%d min)\n", s.Start.Format("15:04"), s.End.Format("15:04"), s.DurationMin)
	}
}

func init() {
	for _, c := range []*cobra.Command{availabilityCmd, mutualCmd} {
		c.Flags().StringVar(&availFrom, "from", "", "first day (YYYY-MM-DD, default today)")
		c.Flags().StringVar(&availTo, "to", "", "last day, inclusive (YYYY-MM-DD); overrides --days")
		c.Flags().IntVar(&availDays, "days", 7, "number of days")
	}
	availabilityCmd.Flags().BoolVar(&availSuggest, "suggest", false, "only show windows long enough for a meeting")
	mutualCmd.Flags().StringSliceVar(&mutualUsers, "users", nil, "comma-separated user IDs")
	mutualCmd.Flags().IntVar(&mutualGranularity, "granularity", 0, "grid step in minutes (default: smallest among users)")

	availabilityCmd.AddCommand(mutualCmd)
	rootCmd.AddCommand(availabilityCmd)
}
