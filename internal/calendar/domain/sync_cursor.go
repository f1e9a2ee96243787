package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/rendezvous/internal/shared/domain"
	"github.com/google/uuid"
)

// SyncCursor records how far a (user, provider) pair has been synchronized.
// The window end only ever moves forward.
type SyncCursor struct {
	sharedDomain.BaseEntity
	userID         uuid.UUID
	provider       ProviderType
	windowStart    time.Time
	windowEnd      time.Time
	lastSyncedAt   time.Time
	lastFullSyncAt time.Time
	syncErrors     int
	lastError      string
}

// NewSyncCursor creates an empty cursor for a user's provider.
func NewSyncCursor(userID uuid.UUID, provider ProviderType) *SyncCursor {
	return &SyncCursor{
		BaseEntity: sharedDomain.NewBaseEntity(),
		userID:     userID,
		provider:   provider,
	}
}

func (c *SyncCursor) UserID() uuid.UUID         { return c.userID }
func (c *SyncCursor) Provider() ProviderType    { return c.provider }
func (c *SyncCursor) WindowStart() time.Time    { return c.windowStart }
func (c *SyncCursor) WindowEnd() time.Time      { return c.windowEnd }
func (c *SyncCursor) LastSyncedAt() time.Time   { return c.lastSyncedAt }
func (c *SyncCursor) LastFullSyncAt() time.Time { return c.lastFullSyncAt }
func (c *SyncCursor) SyncErrors() int           { return c.syncErrors }
func (c *SyncCursor) LastError() string         { return c.lastError }

// HasSynced returns true if at least one reconcile succeeded.
func (c *SyncCursor) HasSynced() bool {
	return !c.lastSyncedAt.IsZero()
}

// NeedsFullSync returns true when the cursor never completed a full window
// or the last full window is older than interval.
func (c *SyncCursor) NeedsFullSync(now time.Time, interval time.Duration) bool {
	if c.lastFullSyncAt.IsZero() {
		return true
	}
	return now.Sub(c.lastFullSyncAt) >= interval
}

// Advance records a successful reconcile of window. A window ending before
// the recorded end leaves the end where it is.
func (c *SyncCursor) Advance(window TimeWindow, full bool, now time.Time) {
	if window.End.After(c.windowEnd) {
		c.windowEnd = window.End
	}
	c.windowStart = window.Start
	c.lastSyncedAt = now
	if full {
		c.lastFullSyncAt = now
	}
	c.syncErrors = 0
	c.lastError = ""
	c.Touch()
}

// MarkFailure records a failed fetch or reconcile without moving the window.
func (c *SyncCursor) MarkFailure(err string) {
	c.syncErrors++
	c.lastError = err
	c.Touch()
}

// ShouldRetry returns false once maxErrors consecutive failures accumulated.
func (c *SyncCursor) ShouldRetry(maxErrors int) bool {
	return c.syncErrors < maxErrors
}

// Healthy reports whether the last attempt succeeded.
func (c *SyncCursor) Healthy() bool {
	return c.HasSynced() && c.syncErrors == 0
}

// RehydrateSyncCursor recreates a cursor from persisted data.
func RehydrateSyncCursor(
	id uuid.UUID,
	userID uuid.UUID,
	provider ProviderType,
	windowStart, windowEnd time.Time,
	lastSyncedAt, lastFullSyncAt time.Time,
	syncErrors int,
	lastError string,
	createdAt, updatedAt time.Time,
) *SyncCursor {
	return &SyncCursor{
		BaseEntity:     sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		userID:         userID,
		provider:       provider,
		windowStart:    windowStart,
		windowEnd:      windowEnd,
		lastSyncedAt:   lastSyncedAt,
		lastFullSyncAt: lastFullSyncAt,
		syncErrors:     syncErrors,
		lastError:      lastError,
	}
}
