package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	calendarDomain "github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/google/uuid"
)

const (
	// DefaultSlotGranularityMinutes is the grid step used when none is stored.
	DefaultSlotGranularityMinutes = 30
	DefaultMinSlotMinutes         = 30
	DefaultMaxSlotMinutes         = 240
	minutesPerDay                 = 24 * 60
)

var (
	ErrInvalidDailyWindow = errors.New("daily window start must be before end and within the day")
	ErrInvalidGranularity = errors.New("slot granularity must be positive")
	ErrInvalidWeekday     = errors.New("preferred weekdays must be between 1 (Monday) and 7 (Sunday)")
	ErrInvalidSlotBounds  = errors.New("min slot minutes must not exceed max slot minutes")
	ErrInvalidTimeZone    = errors.New("unknown time zone")

	// ErrSettingsNotFound is returned by PreferencesRepository.Get for users without preferences.
	ErrSettingsNotFound = calendarDomain.ErrSettingsNotFound
)

// AvailabilityPreferences describe when a user is willing to meet.
// Weekdays are ISO numbered: 1 is Monday, 7 is Sunday. Daily window bounds
// are minutes after local midnight; the end is exclusive.
type AvailabilityPreferences struct {
	UserID                 uuid.UUID
	PreferredWeekdays      []int
	DailyWindowStart       int
	DailyWindowEnd         int
	SlotGranularityMinutes int
	MinSlotMinutes         int
	MaxSlotMinutes         int
	TimeZone               string
	// HideEventDetails keeps event titles out of anything shared with the partner.
	HideEventDetails bool
	UpdatedAt        time.Time
}

// DefaultPreferences returns every day, 09:00-21:00 UTC, on a 30 minute grid.
func DefaultPreferences(userID uuid.UUID) AvailabilityPreferences {
	return AvailabilityPreferences{
		UserID:                 userID,
		PreferredWeekdays:      []int{1, 2, 3, 4, 5, 6, 7},
		DailyWindowStart:       9 * 60,
		DailyWindowEnd:         21 * 60,
		SlotGranularityMinutes: DefaultSlotGranularityMinutes,
		MinSlotMinutes:         DefaultMinSlotMinutes,
		MaxSlotMinutes:         DefaultMaxSlotMinutes,
		TimeZone:               "UTC",
	}
}

// Validate checks the preferences are usable by the calculator.
func (p AvailabilityPreferences) Validate() error {
	if p.DailyWindowStart < 0 || p.DailyWindowEnd > minutesPerDay || p.DailyWindowStart >= p.DailyWindowEnd {
		return ErrInvalidDailyWindow
	}
	if p.SlotGranularityMinutes <= 0 {
		return ErrInvalidGranularity
	}
	for _, d := range p.PreferredWeekdays {
		if d < 1 || d > 7 {
			return ErrInvalidWeekday
		}
	}
	if p.MinSlotMinutes < 0 || (p.MaxSlotMinutes > 0 && p.MinSlotMinutes > p.MaxSlotMinutes) {
		return ErrInvalidSlotBounds
	}
	if _, err := time.LoadLocation(p.TimeZone); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTimeZone, p.TimeZone)
	}
	return nil
}

// Location returns the user's time zone, UTC when unset or unknown.
func (p AvailabilityPreferences) Location() *time.Location {
	if p.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsPreferredDay reports whether the weekday is one the user meets on.
func (p AvailabilityPreferences) IsPreferredDay(day time.Weekday) bool {
	iso := ISOWeekday(day)
	for _, d := range p.PreferredWeekdays {
		if d == iso {
			return true
		}
	}
	return false
}

// NormalizedWeekdays returns the preferred weekdays sorted and de-duplicated.
func (p AvailabilityPreferences) NormalizedWeekdays() []int {
	seen := make(map[int]struct{}, len(p.PreferredWeekdays))
	days := make([]int, 0, len(p.PreferredWeekdays))
	for _, d := range p.PreferredWeekdays {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	sort.Ints(days)
	return days
}

// ISOWeekday converts time.Weekday (Sunday=0) to 1..7 with Monday=1.
func ISOWeekday(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}

// PreferencesRepository persists availability preferences.
type PreferencesRepository interface {
	// Get returns the user's preferences or ErrSettingsNotFound.
	Get(ctx context.Context, userID uuid.UUID) (*AvailabilityPreferences, error)

	// Save upserts the user's preferences.
	Save(ctx context.Context, prefs AvailabilityPreferences) error
}
