// Package memory holds map-backed repositories for tests and single-process runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/google/uuid"
)

// EventRepository is an in-memory domain.EventRepository.
type EventRepository struct {
	mu     sync.RWMutex
	events map[uuid.UUID]domain.Event
	// FailUpsertAfter makes Upsert fail once this many upserts succeeded. Zero disables it.
	FailUpsertAfter int
	upserts         int
	Err             error
}

// NewEventRepository creates an empty repository.
func NewEventRepository() *EventRepository {
	return &EventRepository{events: make(map[uuid.UUID]domain.Event)}
}

func (r *EventRepository) ListEvents(_ context.Context, userID uuid.UUID, provider domain.ProviderType, start, end time.Time) ([]domain.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Event
	for _, e := range r.events {
		if e.UserID != userID || e.Provider != provider {
			continue
		}
		if e.Start.Before(start) || !e.Start.Before(end) {
			continue
		}
		out = append(out, e)
	}
	sortEvents(out)
	return out, nil
}

func (r *EventRepository) GetEvent(_ context.Context, eventID uuid.UUID) (*domain.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.events[eventID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (r *EventRepository) ListUserEvents(_ context.Context, userID uuid.UUID, start, end time.Time) ([]domain.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Event
	for _, e := range r.events {
		if e.UserID != userID {
			continue
		}
		if !domain.Overlaps(e.Start, e.End, start, end) {
			continue
		}
		out = append(out, e)
	}
	sortEvents(out)
	return out, nil
}

func (r *EventRepository) Upsert(_ context.Context, event domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailUpsertAfter > 0 && r.upserts >= r.FailUpsertAfter {
		return r.failure()
	}
	r.upserts++
	r.events[event.ID] = event
	return nil
}

func (r *EventRepository) Delete(_ context.Context, eventID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.events, eventID)
	return nil
}

func (r *EventRepository) DeleteByProvider(_ context.Context, userID uuid.UUID, provider domain.ProviderType) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, e := range r.events {
		if e.UserID == userID && e.Provider == provider {
			delete(r.events, id)
			n++
		}
	}
	return n, nil
}

// All returns every stored event sorted by start.
func (r *EventRepository) All() []domain.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Event, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e)
	}
	sortEvents(out)
	return out
}

// Put stores events directly.
func (r *EventRepository) Put(events ...domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range events {
		r.events[e.ID] = e
	}
}

func (r *EventRepository) failure() error {
	if r.Err != nil {
		return r.Err
	}
	return errStoreUnavailable
}

func sortEvents(events []domain.Event) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].Start.Equal(events[j].Start) {
			return events[i].ProviderEventID < events[j].ProviderEventID
		}
		return events[i].Start.Before(events[j].Start)
	})
}

type cursorKey struct {
	userID   uuid.UUID
	provider domain.ProviderType
}

// SyncCursorRepository is an in-memory domain.SyncCursorRepository.
type SyncCursorRepository struct {
	mu      sync.RWMutex
	cursors map[cursorKey]*domain.SyncCursor
}

// NewSyncCursorRepository creates an empty repository.
func NewSyncCursorRepository() *SyncCursorRepository {
	return &SyncCursorRepository{cursors: make(map[cursorKey]*domain.SyncCursor)}
}

func (r *SyncCursorRepository) GetCursor(_ context.Context, userID uuid.UUID, provider domain.ProviderType) (*domain.SyncCursor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.cursors[cursorKey{userID, provider}]
	if !ok {
		return nil, nil
	}
	clone := *c
	return &clone, nil
}

func (r *SyncCursorRepository) SetCursor(_ context.Context, cursor *domain.SyncCursor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *cursor
	r.cursors[cursorKey{cursor.UserID(), cursor.Provider()}] = &clone
	return nil
}

func (r *SyncCursorRepository) FindByUser(_ context.Context, userID uuid.UUID) ([]*domain.SyncCursor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.SyncCursor
	for k, c := range r.cursors {
		if k.userID == userID {
			clone := *c
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider() < out[j].Provider() })
	return out, nil
}

func (r *SyncCursorRepository) FindStale(_ context.Context, olderThan time.Duration, maxErrors, limit int) ([]*domain.SyncCursor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cutoff := time.Now().Add(-olderThan)
	var out []*domain.SyncCursor
	for _, c := range r.cursors {
		if c.SyncErrors() >= maxErrors {
			continue
		}
		if c.HasSynced() && c.LastSyncedAt().After(cutoff) {
			continue
		}
		clone := *c
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSyncedAt().Before(out[j].LastSyncedAt()) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *SyncCursorRepository) Delete(_ context.Context, userID uuid.UUID, provider domain.ProviderType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cursors, cursorKey{userID, provider})
	return nil
}

// ConflictRepository is an in-memory domain.ConflictRepository.
type ConflictRepository struct {
	mu      sync.RWMutex
	records map[uuid.UUID]domain.ConflictRecord
}

// NewConflictRepository creates an empty repository.
func NewConflictRepository() *ConflictRepository {
	return &ConflictRepository{records: make(map[uuid.UUID]domain.ConflictRecord)}
}

func (r *ConflictRepository) SaveConflict(_ context.Context, record domain.ConflictRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[record.ID]; ok {
		return false, nil
	}
	r.records[record.ID] = record
	return true, nil
}

func (r *ConflictRepository) ListUnresolvedConflicts(_ context.Context, userID uuid.UUID) ([]domain.ConflictRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.ConflictRecord
	for _, rec := range r.records {
		if rec.UserID == userID && !rec.Resolved {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DetectedAt.Equal(out[j].DetectedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].DetectedAt.Before(out[j].DetectedAt)
	})
	return out, nil
}

func (r *ConflictRepository) MarkResolved(_ context.Context, userID, conflictID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[conflictID]
	if !ok || rec.UserID != userID {
		return domain.ErrConflictNotFound
	}
	rec.Resolved = true
	r.records[conflictID] = rec
	return nil
}

// Len returns the number of stored records.
func (r *ConflictRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// ConnectionRepository is an in-memory domain.ConnectionRepository.
type ConnectionRepository struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]domain.ProviderConnections
}

// NewConnectionRepository creates an empty repository.
func NewConnectionRepository() *ConnectionRepository {
	return &ConnectionRepository{conns: make(map[uuid.UUID]domain.ProviderConnections)}
}

func (r *ConnectionRepository) Save(_ context.Context, conn domain.ProviderConnection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conns[conn.UserID] == nil {
		r.conns[conn.UserID] = make(domain.ProviderConnections)
	}
	r.conns[conn.UserID][conn.Provider] = conn
	return nil
}

func (r *ConnectionRepository) FindByUser(_ context.Context, userID uuid.UUID) (domain.ProviderConnections, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(domain.ProviderConnections, len(r.conns[userID]))
	for p, c := range r.conns[userID] {
		out[p] = c
	}
	return out, nil
}

func (r *ConnectionRepository) FindUsersWithConnections(_ context.Context) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []uuid.UUID
	for userID, conns := range r.conns {
		if len(conns.Enabled()) > 0 {
			out = append(out, userID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (r *ConnectionRepository) Delete(_ context.Context, userID uuid.UUID, provider domain.ProviderType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns[userID], provider)
	return nil
}
