package domain_test

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func sampleEvent(userID uuid.UUID) domain.Event {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	return domain.Event{
		ID:              domain.EventID(userID, domain.ProviderGoogle, "evt-1"),
		UserID:          userID,
		Provider:        domain.ProviderGoogle,
		ProviderEventID: "evt-1",
		CalendarID:      "primary",
		Title:           "Standup",
		Start:           start,
		End:             start.Add(30 * time.Minute),
		Availability:    domain.AvailabilityBusy,
		Status:          domain.StatusConfirmed,
		LastSyncedAt:    start,
	}
}

func TestEventID_Deterministic(t *testing.T) {
	userID := uuid.New()

	a := domain.EventID(userID, domain.ProviderGoogle, "abc")
	b := domain.EventID(userID, domain.ProviderGoogle, "abc")
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, domain.EventID(userID, domain.ProviderMicrosoft, "abc"))
	assert.NotEqual(t, a, domain.EventID(uuid.New(), domain.ProviderGoogle, "abc"))
}

func TestEvent_SameContent(t *testing.T) {
	e := sampleEvent(uuid.New())

	other := e
	other.LastSyncedAt = e.LastSyncedAt.Add(time.Hour)
	assert.True(t, e.SameContent(other), "lastSyncedAt is ignored")

	other.Start = e.Start.In(time.FixedZone("CET", 3600))
	assert.True(t, e.SameContent(other), "same instant in another zone")

	other.Title = "Retro"
	assert.False(t, e.SameContent(other))

	other = e
	other.Availability = domain.AvailabilityFree
	assert.False(t, e.SameContent(other))
}

func TestEvent_BlocksTimeAndIsBusy(t *testing.T) {
	e := sampleEvent(uuid.New())

	tests := []struct {
		name         string
		availability domain.Availability
		status       domain.EventStatus
		blocks       bool
		busy         bool
	}{
		{"busy confirmed", domain.AvailabilityBusy, domain.StatusConfirmed, true, true},
		{"tentative", domain.AvailabilityTentative, domain.StatusConfirmed, true, false},
		{"free", domain.AvailabilityFree, domain.StatusConfirmed, false, false},
		{"busy cancelled", domain.AvailabilityBusy, domain.StatusCancelled, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.Availability = tt.availability
			e.Status = tt.status
			assert.Equal(t, tt.blocks, e.BlocksTime())
			assert.Equal(t, tt.busy, e.IsBusy())
		})
	}
}

func TestBusyPeriods(t *testing.T) {
	userID := uuid.New()
	busy := sampleEvent(userID)
	free := sampleEvent(userID)
	free.ProviderEventID = "evt-2"
	free.ID = domain.EventID(userID, domain.ProviderGoogle, "evt-2")
	free.Availability = domain.AvailabilityFree

	periods := domain.BusyPeriods([]domain.Event{busy, free})

	assert.Len(t, periods, 1)
	assert.Equal(t, busy.ID, periods[0].SourceEventID)
	assert.Equal(t, busy.Start, periods[0].Start)
	assert.Equal(t, busy.End, periods[0].End)
}

func TestParseAvailabilityAndStatus(t *testing.T) {
	assert.Equal(t, domain.AvailabilityFree, domain.ParseAvailability("FREE"))
	assert.Equal(t, domain.AvailabilityBusy, domain.ParseAvailability("oof"))
	assert.Equal(t, domain.StatusCancelled, domain.ParseEventStatus("canceled"))
	assert.Equal(t, domain.StatusConfirmed, domain.ParseEventStatus("whatever"))
}

func TestTimeWindow(t *testing.T) {
	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	w, err := domain.NewTimeWindow(start, start.Add(24*time.Hour))
	assert.NoError(t, err)

	assert.True(t, w.Contains(start))
	assert.False(t, w.Contains(start.Add(24*time.Hour)), "end is exclusive")

	touching := domain.TimeWindow{Start: w.End, End: w.End.Add(time.Hour)}
	assert.False(t, w.Overlaps(touching))

	_, err = domain.NewTimeWindow(start, start)
	assert.ErrorIs(t, err, domain.ErrInvalidWindow)
}
