package application

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/lock"
	"github.com/felixgeelhaar/rendezvous/pkg/observability"
	"github.com/google/uuid"
)

// ReconcileRequest is one provider's fetch to apply to the store.
type ReconcileRequest struct {
	UserID   uuid.UUID
	Provider domain.ProviderType
	Window   domain.TimeWindow
	Events   []domain.Event
	// FullWindow marks the window as a full refetch for the cursor.
	FullWindow bool
}

// Reconciler brings the stored events of a (user, provider) in line with a fetch.
type Reconciler struct {
	events  domain.EventRepository
	cursors domain.SyncCursorRepository
	locker  lock.Locker
	logger  *slog.Logger
	metrics observability.Metrics
	clock   func() time.Time
}

// NewReconciler creates a Reconciler. A nil locker falls back to an
// in-process keyed mutex.
func NewReconciler(
	events domain.EventRepository,
	cursors domain.SyncCursorRepository,
	locker lock.Locker,
	logger *slog.Logger,
	metrics observability.Metrics,
) *Reconciler {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Reconciler{
		events:  events,
		cursors: cursors,
		locker:  locker,
		logger:  logger,
		metrics: metrics,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source.
func (r *Reconciler) WithClock(clock func() time.Time) *Reconciler {
	r.clock = clock
	return r
}

// Reconcile creates missing events, updates changed ones and deletes stored
// events of the window that the fetch no longer contains. Stored events
// starting outside the window are never deleted.
//
// When a write fails the counts applied so far are returned with a
// *domain.ReconcileError and the cursor keeps its position. Every write is
// keyed by provider event ID, so running the same request again is safe.
func (r *Reconciler) Reconcile(ctx context.Context, req ReconcileRequest) (SyncResult, error) {
	release, err := r.locker.Acquire(ctx, lockKey(req.UserID, req.Provider))
	if err != nil {
		return SyncResult{}, &domain.ReconcileError{Provider: req.Provider, Op: "lock", Err: err}
	}
	defer release()

	if err := ctx.Err(); err != nil {
		return SyncResult{}, &domain.ReconcileError{Provider: req.Provider, Op: "lock", Err: err}
	}

	logger := observability.LogOperation(r.logger, "reconcile",
		"user_id", req.UserID,
		"provider", req.Provider,
	)

	fetched, order := indexFetched(req.Events)

	// Look up over the window and every fetched start so events the provider
	// returns from before the window (still overlapping it) are matched too.
	lookupStart, lookupEnd := req.Window.Start, req.Window.End
	for _, e := range fetched {
		if e.Start.Before(lookupStart) {
			lookupStart = e.Start
		}
		if !e.Start.Before(lookupEnd) {
			lookupEnd = e.Start.Add(time.Second)
		}
	}

	stored, err := r.events.ListEvents(ctx, req.UserID, req.Provider, lookupStart, lookupEnd)
	if err != nil {
		return r.fail(ctx, req, SyncResult{}, "list", err)
	}
	storedByID := make(map[string]domain.Event, len(stored))
	for _, e := range stored {
		storedByID[e.ProviderEventID] = e
	}

	now := r.clock()
	var result SyncResult

	for _, pid := range order {
		event := fetched[pid]
		event.UserID = req.UserID
		event.Provider = req.Provider
		event.ID = domain.EventID(req.UserID, req.Provider, pid)

		existing, ok := storedByID[pid]
		if !ok {
			// The stored copy may start outside the lookup range.
			found, err := r.events.GetEvent(ctx, event.ID)
			if err != nil {
				return r.fail(ctx, req, result, "get", err)
			}
			if found != nil {
				existing, ok = *found, true
			}
		}
		switch {
		case !ok:
			event.LastSyncedAt = now
			if err := r.events.Upsert(ctx, event); err != nil {
				return r.fail(ctx, req, result, "create", err)
			}
			result.Created++
		case !existing.SameContent(event):
			event.LastSyncedAt = now
			if err := r.events.Upsert(ctx, event); err != nil {
				return r.fail(ctx, req, result, "update", err)
			}
			result.Updated++
		default:
			result.Unchanged++
		}
	}

	tombstones := make([]domain.Event, 0)
	for pid, e := range storedByID {
		if _, ok := fetched[pid]; ok {
			continue
		}
		if !req.Window.Contains(e.Start) {
			continue
		}
		tombstones = append(tombstones, e)
	}
	sort.Slice(tombstones, func(i, j int) bool { return tombstones[i].Start.Before(tombstones[j].Start) })
	for _, e := range tombstones {
		if err := r.events.Delete(ctx, e.ID); err != nil {
			return r.fail(ctx, req, result, "delete", err)
		}
		result.Deleted++
	}

	cursor, err := r.cursor(ctx, req.UserID, req.Provider)
	if err != nil {
		return result, &domain.ReconcileError{Provider: req.Provider, Op: "cursor", Err: err}
	}
	cursor.Advance(req.Window, req.FullWindow, now)
	if err := r.cursors.SetCursor(ctx, cursor); err != nil {
		return result, &domain.ReconcileError{Provider: req.Provider, Op: "cursor", Err: err}
	}

	tags := []observability.Tag{observability.T("provider", string(req.Provider))}
	r.metrics.Counter(observability.MetricReconcileCreated, int64(result.Created), tags...)
	r.metrics.Counter(observability.MetricReconcileUpdated, int64(result.Updated), tags...)
	r.metrics.Counter(observability.MetricReconcileDeleted, int64(result.Deleted), tags...)

	logger.Info("reconciled provider events",
		"created", result.Created,
		"updated", result.Updated,
		"deleted", result.Deleted,
		"unchanged", result.Unchanged,
	)
	return result, nil
}

// RecordFailure notes a failed fetch on the pair's cursor without moving it.
func (r *Reconciler) RecordFailure(ctx context.Context, userID uuid.UUID, provider domain.ProviderType, cause error) {
	cursor, err := r.cursor(ctx, userID, provider)
	if err != nil {
		r.logger.Warn("failed to load sync cursor", "user_id", userID, "provider", provider, "error", err)
		return
	}
	cursor.MarkFailure(cause.Error())
	if err := r.cursors.SetCursor(ctx, cursor); err != nil {
		r.logger.Warn("failed to save sync cursor", "user_id", userID, "provider", provider, "error", err)
	}
}

func (r *Reconciler) fail(ctx context.Context, req ReconcileRequest, partial SyncResult, op string, err error) (SyncResult, error) {
	rerr := &domain.ReconcileError{Provider: req.Provider, Op: op, Err: err}
	r.logger.Error("reconcile stopped",
		"user_id", req.UserID,
		"provider", req.Provider,
		"op", op,
		"created", partial.Created,
		"updated", partial.Updated,
		"deleted", partial.Deleted,
		"error", err,
	)
	r.RecordFailure(context.WithoutCancel(ctx), req.UserID, req.Provider, rerr)
	return partial, rerr
}

func (r *Reconciler) cursor(ctx context.Context, userID uuid.UUID, provider domain.ProviderType) (*domain.SyncCursor, error) {
	cursor, err := r.cursors.GetCursor(ctx, userID, provider)
	if err != nil {
		return nil, err
	}
	if cursor == nil {
		cursor = domain.NewSyncCursor(userID, provider)
	}
	return cursor, nil
}

// indexFetched keys events by provider event ID, keeping the last duplicate,
// and returns the IDs in first-seen order.
func indexFetched(events []domain.Event) (map[string]domain.Event, []string) {
	byID := make(map[string]domain.Event, len(events))
	order := make([]string, 0, len(events))
	for _, e := range events {
		if _, seen := byID[e.ProviderEventID]; !seen {
			order = append(order, e.ProviderEventID)
		}
		byID[e.ProviderEventID] = e
	}
	return byID, order
}
