package domain_test

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSyncCursor_AdvanceOnlyMovesForward(t *testing.T) {
	c := domain.NewSyncCursor(uuid.New(), domain.ProviderGoogle)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.False(t, c.HasSynced())
	assert.True(t, c.NeedsFullSync(now, 24*time.Hour))

	wide := domain.TimeWindow{Start: now.Add(-24 * time.Hour), End: now.Add(30 * 24 * time.Hour)}
	c.Advance(wide, true, now)

	assert.True(t, c.HasSynced())
	assert.Equal(t, wide.End, c.WindowEnd())
	assert.False(t, c.NeedsFullSync(now.Add(time.Hour), 24*time.Hour))

	narrow := domain.TimeWindow{Start: now, End: now.Add(7 * 24 * time.Hour)}
	c.Advance(narrow, false, now.Add(time.Hour))

	assert.Equal(t, wide.End, c.WindowEnd(), "window end never moves back")
	assert.Equal(t, now, c.LastFullSyncAt())
	assert.True(t, c.NeedsFullSync(now.Add(25*time.Hour), 24*time.Hour))
}

func TestSyncCursor_MarkFailure(t *testing.T) {
	c := domain.NewSyncCursor(uuid.New(), domain.ProviderMicrosoft)
	now := time.Now().UTC()
	window := domain.TimeWindow{Start: now, End: now.Add(time.Hour)}
	c.Advance(window, true, now)

	c.MarkFailure("rate limited")
	c.MarkFailure("rate limited")

	assert.Equal(t, 2, c.SyncErrors())
	assert.Equal(t, "rate limited", c.LastError())
	assert.Equal(t, window.End, c.WindowEnd(), "failure keeps the window")
	assert.False(t, c.Healthy())
	assert.True(t, c.ShouldRetry(3))
	assert.False(t, c.ShouldRetry(2))

	c.Advance(window, false, now.Add(time.Minute))
	assert.True(t, c.Healthy())
}
