package domain

import (
	"sort"
	"time"
)

// TimeSlot is a free interval [Start, End).
type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns the slot length.
func (s TimeSlot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Minutes returns the slot length in whole minutes.
func (s TimeSlot) Minutes() int {
	return int(s.Duration() / time.Minute)
}

type slotKey struct {
	start int64
	end   int64
}

func keyOf(s TimeSlot) slotKey {
	return slotKey{start: s.Start.UnixNano(), end: s.End.UnixNano()}
}

// SortSlots orders slots chronologically.
func SortSlots(slots []TimeSlot) {
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Start.Equal(slots[j].Start) {
			return slots[i].End.Before(slots[j].End)
		}
		return slots[i].Start.Before(slots[j].Start)
	})
}

// MergeAdjacent joins chronologically ordered slots that touch or overlap
// into runs.
func MergeAdjacent(slots []TimeSlot) []TimeSlot {
	if len(slots) == 0 {
		return nil
	}
	runs := []TimeSlot{slots[0]}
	for _, s := range slots[1:] {
		last := &runs[len(runs)-1]
		if !s.Start.After(last.End) {
			if s.End.After(last.End) {
				last.End = s.End
			}
			continue
		}
		runs = append(runs, s)
	}
	return runs
}

// DropShortRuns keeps only the slots belonging to a run of at least minMinutes.
func DropShortRuns(slots []TimeSlot, minMinutes int) []TimeSlot {
	if minMinutes <= 0 || len(slots) == 0 {
		return slots
	}
	minRun := time.Duration(minMinutes) * time.Minute
	kept := make([]TimeSlot, 0, len(slots))
	runStart := 0
	for i := 1; i <= len(slots); i++ {
		if i < len(slots) && !slots[i].Start.After(slots[i-1].End) {
			continue
		}
		run := slots[runStart:i]
		if run[len(run)-1].End.Sub(run[0].Start) >= minRun {
			kept = append(kept, run...)
		}
		runStart = i
	}
	return kept
}

// SuggestWindows merges slots into meeting windows no shorter than the
// user's minimum and no longer than the maximum. Runs longer than the
// maximum are cut into consecutive windows; a remainder shorter than the
// minimum is dropped.
func SuggestWindows(slots []TimeSlot, prefs AvailabilityPreferences) []TimeSlot {
	minLen := time.Duration(prefs.MinSlotMinutes) * time.Minute
	maxLen := time.Duration(prefs.MaxSlotMinutes) * time.Minute

	var windows []TimeSlot
	for _, run := range MergeAdjacent(slots) {
		for cursor := run.Start; cursor.Before(run.End); {
			end := run.End
			if maxLen > 0 && end.Sub(cursor) > maxLen {
				end = cursor.Add(maxLen)
			}
			if end.Sub(cursor) >= minLen {
				windows = append(windows, TimeSlot{Start: cursor, End: end})
			}
			cursor = end
		}
	}
	return windows
}
