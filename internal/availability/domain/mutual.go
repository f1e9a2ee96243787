package domain

import (
	"time"

	calendarDomain "github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
)

// Participant is one user's input to a mutual availability computation.
// A nil Preferences means the user has none stored.
type Participant struct {
	Preferences *AvailabilityPreferences
	Busy        []calendarDomain.BusyPeriod
}

// CommonGranularity returns the smallest grid step among the participants and
// whether their steps differ. Participants without preferences are skipped.
func CommonGranularity(participants []Participant) (int, bool) {
	common := 0
	mismatch := false
	for _, p := range participants {
		if p.Preferences == nil {
			continue
		}
		g := p.Preferences.SlotGranularityMinutes
		if common != 0 && g != common {
			mismatch = true
		}
		if common == 0 || g < common {
			common = g
		}
	}
	return common, mismatch
}

// ComputeMutualSlots returns the slots free for every participant.
//
// Each participant's slots are computed on a grid of granularity minutes
// (their own step when granularity is zero), runs shorter than their
// MinSlotMinutes are dropped, and the remaining slots are intersected by
// exact (start, end) equality.
func ComputeMutualSlots(participants []Participant, start, end time.Time, granularity int) []TimeSlot {
	if len(participants) == 0 {
		return nil
	}

	counts := make(map[slotKey]int)
	var first []TimeSlot
	for i, p := range participants {
		if p.Preferences == nil {
			return nil
		}
		prefs := *p.Preferences
		if granularity > 0 {
			prefs.SlotGranularityMinutes = granularity
		}
		slots := DropShortRuns(ComputeSlots(prefs, p.Busy, start, end), prefs.MinSlotMinutes)
		if len(slots) == 0 {
			return nil
		}
		if i == 0 {
			first = slots
		}
		seen := make(map[slotKey]struct{}, len(slots))
		for _, s := range slots {
			k := keyOf(s)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			counts[k]++
		}
	}

	var mutual []TimeSlot
	for _, s := range first {
		if counts[keyOf(s)] == len(participants) {
			mutual = append(mutual, s)
		}
	}
	return mutual
}
