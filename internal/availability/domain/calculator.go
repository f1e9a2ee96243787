package domain

import (
	"sort"
	"time"

	calendarDomain "github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
)

// ComputeSlots generates the user's free slots in [start, end).
//
// Each preferred day in the user's zone is cut into granularity-sized slots
// inside the daily window, aligned on granularity boundaries from local
// midnight. Grid times a DST jump skips do not exist and get no slot. A slot
// survives when it lies fully inside [start, end) and does not strictly
// overlap any busy period. Invalid preferences yield no slots.
func ComputeSlots(prefs AvailabilityPreferences, busy []calendarDomain.BusyPeriod, start, end time.Time) []TimeSlot {
	if !end.After(start) || prefs.Validate() != nil || len(prefs.PreferredWeekdays) == 0 {
		return nil
	}

	loc := prefs.Location()
	step := prefs.SlotGranularityMinutes
	firstMinute := alignUp(prefs.DailyWindowStart, step)

	sorted := make([]calendarDomain.BusyPeriod, len(busy))
	copy(sorted, busy)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	var (
		slots   []TimeSlot
		lastEnd time.Time
	)
	local := start.In(loc)
	for day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc); day.Before(end); day = day.AddDate(0, 0, 1) {
		if !prefs.IsPreferredDay(day.Weekday()) {
			continue
		}
		for m := firstMinute; m+step <= prefs.DailyWindowEnd; m += step {
			slotStart := time.Date(day.Year(), day.Month(), day.Day(), 0, m, 0, 0, loc)
			if wallMinute(slotStart) != m || slotStart.Before(lastEnd) {
				continue
			}
			slotEnd := slotStart.Add(time.Duration(step) * time.Minute)
			if slotStart.Before(start) || slotEnd.After(end) {
				continue
			}
			lastEnd = slotEnd
			if overlapsBusy(sorted, slotStart, slotEnd) {
				continue
			}
			slots = append(slots, TimeSlot{Start: slotStart.UTC(), End: slotEnd.UTC()})
		}
	}
	return slots
}

func overlapsBusy(sorted []calendarDomain.BusyPeriod, start, end time.Time) bool {
	for _, b := range sorted {
		if !b.Start.Before(end) {
			return false
		}
		if calendarDomain.Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}

func wallMinute(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func alignUp(minute, step int) int {
	if rem := minute % step; rem != 0 {
		return minute + step - rem
	}
	return minute
}
