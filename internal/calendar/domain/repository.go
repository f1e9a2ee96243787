package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventRepository is the persistent store of canonical events.
type EventRepository interface {
	// ListEvents returns the user's events from provider whose start lies in [start, end).
	ListEvents(ctx context.Context, userID uuid.UUID, provider ProviderType, start, end time.Time) ([]Event, error)

	// GetEvent returns the event with the given ID, or nil when none is stored.
	GetEvent(ctx context.Context, eventID uuid.UUID) (*Event, error)

	// ListUserEvents returns events of every provider overlapping [start, end).
	ListUserEvents(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]Event, error)

	// Upsert inserts or replaces the event keyed by (user, provider, provider event ID).
	Upsert(ctx context.Context, event Event) error

	// Delete removes an event. Deleting a missing event is not an error.
	Delete(ctx context.Context, eventID uuid.UUID) error

	// DeleteByProvider removes every event of a user's provider.
	DeleteByProvider(ctx context.Context, userID uuid.UUID, provider ProviderType) (int, error)
}

// SyncCursorRepository persists sync cursors.
type SyncCursorRepository interface {
	// GetCursor returns the cursor or nil when the pair never synced.
	GetCursor(ctx context.Context, userID uuid.UUID, provider ProviderType) (*SyncCursor, error)

	// SetCursor upserts the cursor.
	SetCursor(ctx context.Context, cursor *SyncCursor) error

	// FindByUser returns all cursors of a user.
	FindByUser(ctx context.Context, userID uuid.UUID) ([]*SyncCursor, error)

	// FindStale returns cursors whose last sync is older than olderThan and
	// that have fewer than maxErrors consecutive failures.
	FindStale(ctx context.Context, olderThan time.Duration, maxErrors, limit int) ([]*SyncCursor, error)

	// Delete removes the cursor of a pair.
	Delete(ctx context.Context, userID uuid.UUID, provider ProviderType) error
}

// ConflictRepository persists conflict records.
type ConflictRepository interface {
	// SaveConflict stores the record. Returns false when a record with the
	// same ID already existed, in which case nothing changes.
	SaveConflict(ctx context.Context, record ConflictRecord) (bool, error)

	// ListUnresolvedConflicts returns the user's open records, oldest first.
	ListUnresolvedConflicts(ctx context.Context, userID uuid.UUID) ([]ConflictRecord, error)

	// MarkResolved flips the resolved flag of a record owned by the user.
	MarkResolved(ctx context.Context, userID, conflictID uuid.UUID) error
}
