package application_test

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/application"
	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizer_TimedWithOffset(t *testing.T) {
	userID := uuid.New()
	n := application.NewNormalizer()

	event, err := n.Normalize(domain.ProviderGoogle, userID, domain.RawEvent{
		ID:           "abc",
		Title:        "  Dentist ",
		Start:        domain.RawTime{DateTime: "2024-03-15T10:00:00+01:00"},
		End:          domain.RawTime{DateTime: "2024-03-15T11:00:00+01:00"},
		Transparency: "opaque",
		Status:       "confirmed",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.EventID(userID, domain.ProviderGoogle, "abc"), event.ID)
	assert.Equal(t, "Dentist", event.Title)
	assert.Equal(t, time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC), event.Start)
	assert.Equal(t, time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC), event.End)
	assert.Equal(t, time.UTC, event.Start.Location())
	assert.Equal(t, domain.AvailabilityBusy, event.Availability)
	assert.Equal(t, domain.StatusConfirmed, event.Status)
	assert.False(t, event.IsAllDay)
}

func TestNormalizer_GraphLocalTime(t *testing.T) {
	n := application.NewNormalizer()

	event, err := n.Normalize(domain.ProviderMicrosoft, uuid.New(), domain.RawEvent{
		ID:           "graph-1",
		Start:        domain.RawTime{DateTime: "2024-07-01T09:30:00.0000000", TimeZone: "Europe/Berlin"},
		End:          domain.RawTime{DateTime: "2024-07-01T10:00:00.0000000", TimeZone: "Europe/Berlin"},
		Transparency: "tentative",
	})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 7, 1, 7, 30, 0, 0, time.UTC), event.Start)
	assert.Equal(t, time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC), event.End)
	assert.Equal(t, domain.AvailabilityTentative, event.Availability)
	assert.Equal(t, "Europe/Berlin", event.Timezone)
}

func TestNormalizer_AllDay(t *testing.T) {
	n := application.NewNormalizer()

	t.Run("exclusive end date", func(t *testing.T) {
		event, err := n.Normalize(domain.ProviderGoogle, uuid.New(), domain.RawEvent{
			ID:    "holiday",
			Start: domain.RawTime{Date: "2024-12-24"},
			End:   domain.RawTime{Date: "2024-12-26"},
		})
		require.NoError(t, err)
		assert.True(t, event.IsAllDay)
		assert.Equal(t, time.Date(2024, 12, 24, 0, 0, 0, 0, time.UTC), event.Start)
		assert.Equal(t, time.Date(2024, 12, 26, 0, 0, 0, 0, time.UTC), event.End)
	})

	t.Run("missing end covers one day", func(t *testing.T) {
		event, err := n.Normalize(domain.ProviderLocal, uuid.New(), domain.RawEvent{
			ID:    "birthday",
			Start: domain.RawTime{Date: "20240501"},
		})
		require.NoError(t, err)
		assert.Equal(t, 24*time.Hour, event.Duration())
	})

	t.Run("local midnight in the event zone", func(t *testing.T) {
		event, err := n.Normalize(domain.ProviderGoogle, uuid.New(), domain.RawEvent{
			ID:    "trip",
			Start: domain.RawTime{Date: "2024-01-10", TimeZone: "Europe/Berlin"},
			End:   domain.RawTime{Date: "2024-01-11", TimeZone: "Europe/Berlin"},
		})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 1, 9, 23, 0, 0, 0, time.UTC), event.Start)
	})
}

func TestNormalizer_Vocabulary(t *testing.T) {
	n := application.NewNormalizer()
	raw := timed("x", "2024-01-01T10:00:00Z", "2024-01-01T11:00:00Z")

	tests := []struct {
		name         string
		provider     domain.ProviderType
		transparency string
		status       string
		cancelled    bool
		availability domain.Availability
		eventStatus  domain.EventStatus
	}{
		{"google transparent", domain.ProviderGoogle, "transparent", "", false, domain.AvailabilityFree, domain.StatusConfirmed},
		{"ics tentative status", domain.ProviderLocal, "OPAQUE", "TENTATIVE", false, domain.AvailabilityBusy, domain.StatusTentative},
		{"graph oof is busy", domain.ProviderMicrosoft, "oof", "", false, domain.AvailabilityBusy, domain.StatusConfirmed},
		{"graph cancelled flag", domain.ProviderMicrosoft, "busy", "", true, domain.AvailabilityBusy, domain.StatusCancelled},
		{"unknown values", domain.ProviderGoogle, "mystery", "weird", false, domain.AvailabilityBusy, domain.StatusConfirmed},
		{"google cancelled", domain.ProviderGoogle, "", "cancelled", false, domain.AvailabilityBusy, domain.StatusCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := raw
			r.Transparency = tt.transparency
			r.Status = tt.status
			r.Cancelled = tt.cancelled

			event, err := n.Normalize(tt.provider, uuid.New(), r)
			require.NoError(t, err)
			assert.Equal(t, tt.availability, event.Availability)
			assert.Equal(t, tt.eventStatus, event.Status)
		})
	}
}

func TestNormalizer_Errors(t *testing.T) {
	n := application.NewNormalizer()

	tests := []struct {
		name  string
		raw   domain.RawEvent
		field string
	}{
		{"missing id", domain.RawEvent{Start: domain.RawTime{DateTime: "2024-01-01T10:00:00Z"}}, "id"},
		{"missing start", domain.RawEvent{ID: "a", End: domain.RawTime{DateTime: "2024-01-01T10:00:00Z"}}, "start"},
		{"garbage end", timed("b", "2024-01-01T10:00:00Z", "tomorrow"), "end"},
		{"end before start", timed("c", "2024-01-01T10:00:00Z", "2024-01-01T09:00:00Z"), "end"},
		{"zero length", timed("d", "2024-01-01T10:00:00Z", "2024-01-01T10:00:00Z"), "end"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(domain.ProviderGoogle, uuid.New(), tt.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrParse)

			var pe *domain.ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.field, pe.Field)
			assert.Equal(t, domain.ProviderGoogle, pe.Provider)
		})
	}
}

func TestNormalizer_Deterministic(t *testing.T) {
	n := application.NewNormalizer()
	userID := uuid.New()
	raw := timed("same", "2024-05-05T08:00:00Z", "2024-05-05T09:15:00Z")

	a, err := n.Normalize(domain.ProviderLocal, userID, raw)
	require.NoError(t, err)
	b, err := n.Normalize(domain.ProviderLocal, userID, raw)
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.True(t, a.Start.Equal(b.Start))
	assert.True(t, a.End.Equal(b.End))
	assert.True(t, a.SameContent(b))

	other, err := n.Normalize(domain.ProviderLocal, uuid.New(), raw)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, other.ID)
}
