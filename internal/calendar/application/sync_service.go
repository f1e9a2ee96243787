package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	sharedDomain "github.com/felixgeelhaar/rendezvous/internal/shared/domain"
	"github.com/felixgeelhaar/rendezvous/pkg/observability"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// SyncConfig sizes the sync window.
type SyncConfig struct {
	// LookBehind is how far before today a full sync reaches.
	LookBehind time.Duration
	// LookAhead is how far after today every sync reaches.
	LookAhead time.Duration
	// FullResyncInterval forces a full window once the last full sync is older.
	FullResyncInterval time.Duration
}

// DefaultSyncConfig returns one day back, thirty days ahead and a daily full resync.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		LookBehind:         24 * time.Hour,
		LookAhead:          30 * 24 * time.Hour,
		FullResyncInterval: 24 * time.Hour,
	}
}

// ProviderOutcome is the per-provider part of a SyncReport.
type ProviderOutcome struct {
	Provider domain.ProviderType
	Result   SyncResult
	Skipped  int
	Err      error
}

// SyncReport summarizes one SyncUser run.
type SyncReport struct {
	UserID     uuid.UUID
	Window     domain.TimeWindow
	FullWindow bool
	Providers  []ProviderOutcome
	Total      SyncResult
	Conflicts  *ConflictReport
}

// Failed returns the providers that did not sync.
func (r *SyncReport) Failed() []ProviderOutcome {
	var failed []ProviderOutcome
	for _, p := range r.Providers {
		if p.Err != nil {
			failed = append(failed, p)
		}
	}
	return failed
}

// SyncService runs the fetch, reconcile and conflict pipeline for a user.
type SyncService struct {
	connections  domain.ConnectionRepository
	cursors      domain.SyncCursorRepository
	events       domain.EventRepository
	orchestrator *FetchOrchestrator
	reconciler   *Reconciler
	resolver     *ConflictResolver
	publisher    EventPublisher
	config       SyncConfig
	logger       *slog.Logger
	metrics      observability.Metrics
	clock        func() time.Time

	runsMu sync.Mutex
	runs   map[uuid.UUID]map[uint64]context.CancelFunc
	nextID uint64
}

// NewSyncService creates a SyncService. publisher may be nil.
func NewSyncService(
	connections domain.ConnectionRepository,
	cursors domain.SyncCursorRepository,
	events domain.EventRepository,
	orchestrator *FetchOrchestrator,
	reconciler *Reconciler,
	resolver *ConflictResolver,
	publisher EventPublisher,
	config SyncConfig,
	logger *slog.Logger,
	metrics observability.Metrics,
) *SyncService {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	defaults := DefaultSyncConfig()
	if config.LookAhead <= 0 {
		config.LookAhead = defaults.LookAhead
	}
	if config.LookBehind < 0 {
		config.LookBehind = 0
	}
	if config.FullResyncInterval <= 0 {
		config.FullResyncInterval = defaults.FullResyncInterval
	}
	return &SyncService{
		connections:  connections,
		cursors:      cursors,
		events:       events,
		orchestrator: orchestrator,
		reconciler:   reconciler,
		resolver:     resolver,
		publisher:    publisher,
		config:       config,
		logger:       logger,
		metrics:      metrics,
		clock:        func() time.Time { return time.Now().UTC() },
		runs:         make(map[uuid.UUID]map[uint64]context.CancelFunc),
	}
}

// WithClock overrides the time source.
func (s *SyncService) WithClock(clock func() time.Time) *SyncService {
	s.clock = clock
	return s
}

// SyncUser fetches every enabled provider of the user, reconciles the
// providers that answered and records conflicts over the merged result.
//
// Provider failures are reported per provider and never fail the run. The
// returned error is set when the run could not proceed at all or was cancelled.
func (s *SyncService) SyncUser(ctx context.Context, userID uuid.UUID) (*SyncReport, error) {
	ctx, done := s.startRun(observability.WithSyncRun(ctx, userID), userID)
	defer done()

	timer := observability.StartTimer("calendar.sync").WithMetrics(s.metrics)
	report := &SyncReport{UserID: userID}

	conns, err := s.connections.FindByUser(ctx, userID)
	if err != nil {
		timer.StopWithError(err)
		return nil, fmt.Errorf("failed to load provider connections: %w", err)
	}
	providers := conns.Enabled()
	if len(providers) == 0 {
		s.logger.DebugContext(ctx, "no connected providers")
		timer.Stop()
		return report, nil
	}

	window, full, err := s.window(ctx, userID, providers)
	if err != nil {
		timer.StopWithError(err)
		return nil, err
	}
	report.Window = window
	report.FullWindow = full

	fetched, err := s.orchestrator.FetchAll(ctx, userID, providers, window)
	if err != nil {
		timer.StopWithError(err)
		return nil, err
	}

	outcomes := make(map[domain.ProviderType]ProviderOutcome, len(providers))
	var published []sharedDomain.DomainEvent

	for provider, ferr := range fetched.Errors {
		outcomes[provider] = ProviderOutcome{Provider: provider, Err: ferr}
		if errors.Is(ferr, context.Canceled) {
			continue
		}
		s.reconciler.RecordFailure(ctx, userID, provider, ferr)
		published = append(published, domain.NewProviderSyncFailedEvent(userID, provider, ferr))
	}

	var mu sync.Mutex
	var g errgroup.Group
	for _, provider := range fetched.SucceededProviders() {
		g.Go(func() error {
			result, rerr := s.reconciler.Reconcile(ctx, ReconcileRequest{
				UserID:     userID,
				Provider:   provider,
				Window:     window,
				Events:     fetched.Events[provider],
				FullWindow: full,
			})
			mu.Lock()
			defer mu.Unlock()
			outcomes[provider] = ProviderOutcome{
				Provider: provider,
				Result:   result,
				Skipped:  fetched.Skipped[provider],
				Err:      rerr,
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, provider := range providers {
		outcome, ok := outcomes[provider]
		if !ok {
			continue
		}
		report.Providers = append(report.Providers, outcome)
		report.Total.Add(outcome.Result)
		if outcome.Err == nil {
			published = append(published, domain.NewCalendarSyncedEvent(
				userID, provider, outcome.Result.Created, outcome.Result.Updated, outcome.Result.Deleted,
			))
		}
	}

	if err := ctx.Err(); err != nil {
		s.logger.InfoContext(ctx, "calendar sync cancelled")
		timer.StopWithError(err)
		return report, err
	}

	merged, err := s.events.ListUserEvents(ctx, userID, window.Start, window.End)
	if err != nil {
		timer.StopWithError(err)
		return report, fmt.Errorf("failed to load merged events: %w", err)
	}
	conflicts, err := s.resolver.FindConflicts(ctx, userID, merged)
	report.Conflicts = conflicts
	if err != nil {
		timer.StopWithError(err)
		return report, err
	}

	s.publish(ctx, userID, published)
	if conflicts.New > 0 {
		s.metrics.Counter(observability.MetricConflictsDetected, int64(conflicts.New))
	}

	s.logger.InfoContext(ctx, "calendar sync completed",
		"providers", len(providers),
		"failed", len(report.Failed()),
		"created", report.Total.Created,
		"updated", report.Total.Updated,
		"deleted", report.Total.Deleted,
		"new_conflicts", conflicts.New,
	)
	timer.Stop()
	return report, nil
}

// Cancel stops every in-flight run of the user. Returns false when none was running.
func (s *SyncService) Cancel(userID uuid.UUID) bool {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()

	runs := s.runs[userID]
	for _, cancel := range runs {
		cancel()
	}
	return len(runs) > 0
}

// Running reports whether a run for the user is in flight.
func (s *SyncService) Running(userID uuid.UUID) bool {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()
	return len(s.runs[userID]) > 0
}

func (s *SyncService) startRun(ctx context.Context, userID uuid.UUID) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)

	s.runsMu.Lock()
	s.nextID++
	id := s.nextID
	if s.runs[userID] == nil {
		s.runs[userID] = make(map[uint64]context.CancelFunc)
	}
	s.runs[userID][id] = cancel
	s.runsMu.Unlock()

	return ctx, func() {
		s.runsMu.Lock()
		delete(s.runs[userID], id)
		if len(s.runs[userID]) == 0 {
			delete(s.runs, userID)
		}
		s.runsMu.Unlock()
		cancel()
	}
}

// window returns the fetch window. It reaches back LookBehind when any
// provider never synced or is due for a full resync; otherwise it starts at
// the beginning of today.
func (s *SyncService) window(ctx context.Context, userID uuid.UUID, providers []domain.ProviderType) (domain.TimeWindow, bool, error) {
	now := s.clock()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	full := false
	for _, provider := range providers {
		cursor, err := s.cursors.GetCursor(ctx, userID, provider)
		if err != nil {
			return domain.TimeWindow{}, false, fmt.Errorf("failed to load sync cursor: %w", err)
		}
		if cursor == nil || cursor.NeedsFullSync(now, s.config.FullResyncInterval) {
			full = true
			break
		}
	}

	start := today
	if full {
		start = today.Add(-s.config.LookBehind)
	}
	return domain.TimeWindow{Start: start, End: today.Add(s.config.LookAhead)}, full, nil
}

func (s *SyncService) publish(ctx context.Context, userID uuid.UUID, events []sharedDomain.DomainEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.PublishEvents(ctx, events...); err != nil {
		s.logger.Warn("failed to publish sync events", "user_id", userID, "error", err)
	}
}
