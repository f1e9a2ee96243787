package domain

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"
)

// conflictNamespace scopes conflict record IDs.
var conflictNamespace = uuid.MustParse("8d7f4a52-2c1e-4b8e-9f53-0e6a1c7b2d41")

// ConflictRecord is an overlap between two busy events from different
// providers, kept for manual review. EventIDA always sorts before EventIDB.
type ConflictRecord struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	EventIDA   uuid.UUID
	EventIDB   uuid.UUID
	DetectedAt time.Time
	Resolved   bool
}

// NewConflictRecord builds an unresolved record for the pair (a, b) in
// canonical order, so (a, b) and (b, a) produce the same record.
func NewConflictRecord(userID, a, b uuid.UUID, detectedAt time.Time) ConflictRecord {
	a, b = orderPair(a, b)
	return ConflictRecord{
		ID:         ConflictID(userID, a, b),
		UserID:     userID,
		EventIDA:   a,
		EventIDB:   b,
		DetectedAt: detectedAt,
	}
}

// ConflictID derives the record identifier of a pair.
func ConflictID(userID, a, b uuid.UUID) uuid.UUID {
	a, b = orderPair(a, b)
	name := make([]byte, 0, 48)
	name = append(name, userID[:]...)
	name = append(name, a[:]...)
	name = append(name, b[:]...)
	return uuid.NewSHA1(conflictNamespace, name)
}

// Involves returns true if the record references the event.
func (r ConflictRecord) Involves(eventID uuid.UUID) bool {
	return r.EventIDA == eventID || r.EventIDB == eventID
}

func orderPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) > 0 {
		return b, a
	}
	return a, b
}

// EventsConflict reports whether two events form a cross-provider conflict.
func EventsConflict(a, b Event) bool {
	if a.Provider == b.Provider {
		return false
	}
	if !a.IsBusy() || !b.IsBusy() {
		return false
	}
	return Overlaps(a.Start, a.End, b.Start, b.End)
}

// DetectConflicts returns one record per conflicting pair. Events are swept
// in start order so the inner scan stops at the first event starting after
// the current one ends.
func DetectConflicts(userID uuid.UUID, events []Event, detectedAt time.Time) []ConflictRecord {
	busy := make([]Event, 0, len(events))
	for _, e := range events {
		if e.IsBusy() {
			busy = append(busy, e)
		}
	}
	sort.SliceStable(busy, func(i, j int) bool {
		if busy[i].Start.Equal(busy[j].Start) {
			return busy[i].End.Before(busy[j].End)
		}
		return busy[i].Start.Before(busy[j].Start)
	})

	var records []ConflictRecord
	seen := make(map[uuid.UUID]struct{})
	for i := range busy {
		for j := i + 1; j < len(busy); j++ {
			if !busy[j].Start.Before(busy[i].End) {
				break
			}
			if !EventsConflict(busy[i], busy[j]) {
				continue
			}
			rec := NewConflictRecord(userID, busy[i].ID, busy[j].ID, detectedAt)
			if _, dup := seen[rec.ID]; dup {
				continue
			}
			seen[rec.ID] = struct{}{}
			records = append(records, rec)
		}
	}
	return records
}
