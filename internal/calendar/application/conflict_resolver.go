package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	sharedDomain "github.com/felixgeelhaar/rendezvous/internal/shared/domain"
	"github.com/google/uuid"
)

// ConflictReport is the outcome of a conflict scan.
type ConflictReport struct {
	// Conflicts holds every conflicting pair currently present.
	Conflicts []domain.ConflictRecord
	// New counts the pairs that were not recorded before this scan.
	New int
}

// ConflictResolver records cross-provider overlaps for manual review.
type ConflictResolver struct {
	conflicts domain.ConflictRepository
	publisher EventPublisher
	logger    *slog.Logger
	clock     func() time.Time
}

// NewConflictResolver creates a ConflictResolver. publisher may be nil.
func NewConflictResolver(conflicts domain.ConflictRepository, publisher EventPublisher, logger *slog.Logger) *ConflictResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConflictResolver{
		conflicts: conflicts,
		publisher: publisher,
		logger:    logger,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source.
func (r *ConflictResolver) WithClock(clock func() time.Time) *ConflictResolver {
	r.clock = clock
	return r
}

// FindConflicts detects conflicts among the merged events of a user and
// persists the ones not seen before. Events are never modified.
func (r *ConflictResolver) FindConflicts(ctx context.Context, userID uuid.UUID, events []domain.Event) (*ConflictReport, error) {
	records := domain.DetectConflicts(userID, events, r.clock())
	report := &ConflictReport{Conflicts: records}

	var detected []sharedDomain.DomainEvent
	for _, rec := range records {
		created, err := r.conflicts.SaveConflict(ctx, rec)
		if err != nil {
			return report, fmt.Errorf("failed to save conflict %s: %w", rec.ID, err)
		}
		if !created {
			continue
		}
		report.New++
		detected = append(detected, domain.NewConflictDetectedEvent(rec))
	}

	if report.New > 0 {
		r.logger.Info("calendar conflicts detected",
			"user_id", userID,
			"new", report.New,
			"total", len(records),
		)
	}

	if r.publisher != nil && len(detected) > 0 {
		if err := r.publisher.PublishEvents(ctx, detected...); err != nil {
			r.logger.Warn("failed to publish conflict events", "user_id", userID, "error", err)
		}
	}
	return report, nil
}

// ListUnresolved returns the user's open conflict records.
func (r *ConflictResolver) ListUnresolved(ctx context.Context, userID uuid.UUID) ([]domain.ConflictRecord, error) {
	return r.conflicts.ListUnresolvedConflicts(ctx, userID)
}

// Resolve marks a conflict as reviewed.
func (r *ConflictResolver) Resolve(ctx context.Context, userID, conflictID uuid.UUID) error {
	if err := r.conflicts.MarkResolved(ctx, userID, conflictID); err != nil {
		return err
	}
	r.logger.Info("calendar conflict resolved", "user_id", userID, "conflict_id", conflictID)
	return nil
}
