package domain_test

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func busyEvent(userID uuid.UUID, provider domain.ProviderType, id string, start, end time.Time) domain.Event {
	return domain.Event{
		ID:              domain.EventID(userID, provider, id),
		UserID:          userID,
		Provider:        provider,
		ProviderEventID: id,
		Start:           start,
		End:             end,
		Availability:    domain.AvailabilityBusy,
		Status:          domain.StatusConfirmed,
	}
}

func at(hour, minute int) time.Time {
	return time.Date(2025, 3, 10, hour, minute, 0, 0, time.UTC)
}

func TestDetectConflicts_CrossProviderOverlap(t *testing.T) {
	userID := uuid.New()
	google := busyEvent(userID, domain.ProviderGoogle, "g1", at(14, 0), at(15, 0))
	outlook := busyEvent(userID, domain.ProviderMicrosoft, "m1", at(14, 30), at(15, 30))

	records := domain.DetectConflicts(userID, []domain.Event{google, outlook}, at(8, 0))

	require.Len(t, records, 1)
	assert.True(t, records[0].Involves(google.ID))
	assert.True(t, records[0].Involves(outlook.ID))
	assert.False(t, records[0].Resolved)
	assert.Equal(t, userID, records[0].UserID)
}

func TestDetectConflicts_FreeEventNeverConflicts(t *testing.T) {
	userID := uuid.New()
	google := busyEvent(userID, domain.ProviderGoogle, "g1", at(14, 0), at(15, 0))
	outlook := busyEvent(userID, domain.ProviderMicrosoft, "m1", at(14, 30), at(15, 30))
	outlook.Availability = domain.AvailabilityFree

	assert.Empty(t, domain.DetectConflicts(userID, []domain.Event{google, outlook}, at(8, 0)))
}

func TestDetectConflicts_IgnoresSameProviderAndTouching(t *testing.T) {
	userID := uuid.New()
	events := []domain.Event{
		busyEvent(userID, domain.ProviderGoogle, "g1", at(9, 0), at(10, 0)),
		busyEvent(userID, domain.ProviderGoogle, "g2", at(9, 30), at(10, 30)),
		busyEvent(userID, domain.ProviderMicrosoft, "m1", at(10, 30), at(11, 0)),
	}

	assert.Empty(t, domain.DetectConflicts(userID, events, at(8, 0)))
}

func TestDetectConflicts_Symmetric(t *testing.T) {
	userID := uuid.New()
	a := busyEvent(userID, domain.ProviderGoogle, "g1", at(14, 0), at(15, 0))
	b := busyEvent(userID, domain.ProviderLocal, "l1", at(14, 30), at(15, 30))

	ab := domain.DetectConflicts(userID, []domain.Event{a, b}, at(8, 0))
	ba := domain.DetectConflicts(userID, []domain.Event{b, a}, at(8, 0))

	require.Len(t, ab, 1)
	require.Len(t, ba, 1)
	assert.Equal(t, ab[0].ID, ba[0].ID)
	assert.Equal(t, ab[0].EventIDA, ba[0].EventIDA)
	assert.Equal(t, domain.ConflictID(userID, a.ID, b.ID), domain.ConflictID(userID, b.ID, a.ID))
}

func TestDetectConflicts_LongEventSpansMany(t *testing.T) {
	userID := uuid.New()
	events := []domain.Event{
		busyEvent(userID, domain.ProviderGoogle, "all-morning", at(8, 0), at(12, 0)),
		busyEvent(userID, domain.ProviderMicrosoft, "m1", at(9, 0), at(9, 30)),
		busyEvent(userID, domain.ProviderMicrosoft, "m2", at(11, 0), at(11, 30)),
		busyEvent(userID, domain.ProviderLocal, "l1", at(13, 0), at(14, 0)),
	}

	assert.Len(t, domain.DetectConflicts(userID, events, at(7, 0)), 2)
}
