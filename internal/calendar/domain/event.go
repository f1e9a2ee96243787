package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Availability is how an event affects the owner's free/busy state.
type Availability string

const (
	AvailabilityFree      Availability = "free"
	AvailabilityBusy      Availability = "busy"
	AvailabilityTentative Availability = "tentative"
)

// IsValid returns true for the three canonical values.
func (a Availability) IsValid() bool {
	switch a {
	case AvailabilityFree, AvailabilityBusy, AvailabilityTentative:
		return true
	}
	return false
}

// ParseAvailability maps a stored value back to Availability, defaulting to busy.
func ParseAvailability(s string) Availability {
	a := Availability(strings.ToLower(s))
	if !a.IsValid() {
		return AvailabilityBusy
	}
	return a
}

// EventStatus is the lifecycle status of an event at the provider.
type EventStatus string

const (
	StatusConfirmed EventStatus = "confirmed"
	StatusTentative EventStatus = "tentative"
	StatusCancelled EventStatus = "cancelled"
)

// IsValid returns true for the three canonical values.
func (s EventStatus) IsValid() bool {
	switch s {
	case StatusConfirmed, StatusTentative, StatusCancelled:
		return true
	}
	return false
}

// ParseEventStatus maps a stored value back to EventStatus, defaulting to confirmed.
func ParseEventStatus(s string) EventStatus {
	st := EventStatus(strings.ToLower(s))
	if st == "canceled" {
		return StatusCancelled
	}
	if !st.IsValid() {
		return StatusConfirmed
	}
	return st
}

// Event is the provider-independent calendar event.
//
// Start and End are UTC instants with End after Start. All-day events span
// whole days in their Timezone and end at the (exclusive) start of the day
// after their last day.
type Event struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Provider        ProviderType
	ProviderEventID string
	CalendarID      string
	Title           string
	Description     string
	Location        string
	Start           time.Time
	End             time.Time
	IsAllDay        bool
	Timezone        string
	Availability    Availability
	Status          EventStatus
	Recurring       bool
	LastSyncedAt    time.Time
}

// EventID derives the stable identifier of a provider event for a user.
// The user ID is the name-space so the same shared invitation stored for
// both members of a couple gets two distinct rows.
func EventID(userID uuid.UUID, provider ProviderType, providerEventID string) uuid.UUID {
	return uuid.NewSHA1(userID, []byte(string(provider)+":"+providerEventID))
}

// Duration returns the length of the event.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Window returns the interval covered by the event.
func (e Event) Window() TimeWindow {
	return TimeWindow{Start: e.Start, End: e.End}
}

// IsCancelled returns true if the provider cancelled the event.
func (e Event) IsCancelled() bool {
	return e.Status == StatusCancelled
}

// BlocksTime reports whether the event should make its owner unavailable:
// anything that is not free and not cancelled.
func (e Event) BlocksTime() bool {
	return e.Availability != AvailabilityFree && !e.IsCancelled()
}

// IsBusy reports whether the event counts as a hard busy block, the only kind
// that can take part in a cross-provider conflict.
func (e Event) IsBusy() bool {
	return e.Availability == AvailabilityBusy && !e.IsCancelled()
}

// SameContent compares every field except LastSyncedAt.
func (e Event) SameContent(other Event) bool {
	return e.ID == other.ID &&
		e.UserID == other.UserID &&
		e.Provider == other.Provider &&
		e.ProviderEventID == other.ProviderEventID &&
		e.CalendarID == other.CalendarID &&
		e.Title == other.Title &&
		e.Description == other.Description &&
		e.Location == other.Location &&
		e.Start.Equal(other.Start) &&
		e.End.Equal(other.End) &&
		e.IsAllDay == other.IsAllDay &&
		e.Timezone == other.Timezone &&
		e.Availability == other.Availability &&
		e.Status == other.Status &&
		e.Recurring == other.Recurring
}

// BusyPeriod is an interval during which a user is unavailable.
type BusyPeriod struct {
	Start         time.Time
	End           time.Time
	SourceEventID uuid.UUID
}

// BusyPeriods derives the busy periods of a set of events.
func BusyPeriods(events []Event) []BusyPeriod {
	periods := make([]BusyPeriod, 0, len(events))
	for _, e := range events {
		if !e.BlocksTime() {
			continue
		}
		periods = append(periods, BusyPeriod{Start: e.Start, End: e.End, SourceEventID: e.ID})
	}
	return periods
}
