package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/application"
	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// DefaultSchedule runs a sync cycle every six hours.
const DefaultSchedule = "@every 6h"

// DefaultMaxSyncErrors is the number of consecutive failures after which a
// provider is left alone until it is reconnected or triggered by hand.
const DefaultMaxSyncErrors = 5

// UserSyncer runs the sync pipeline for one user.
type UserSyncer interface {
	SyncUser(ctx context.Context, userID uuid.UUID) (*application.SyncReport, error)
}

// SyncWorkerConfig configures the sync worker.
type SyncWorkerConfig struct {
	// Schedule is a cron spec; descriptors like "@every 6h" are accepted.
	Schedule      string
	StaleAfter    time.Duration
	MaxSyncErrors int
	BatchSize     int
	Concurrency   int
	RunOnStart    bool
}

// DefaultSyncWorkerConfig returns the default configuration.
func DefaultSyncWorkerConfig() SyncWorkerConfig {
	return SyncWorkerConfig{
		Schedule:      DefaultSchedule,
		StaleAfter:    6 * time.Hour,
		MaxSyncErrors: DefaultMaxSyncErrors,
		BatchSize:     100,
		Concurrency:   4,
		RunOnStart:    true,
	}
}

// SyncWorker syncs users on a cron schedule and on demand.
type SyncWorker struct {
	syncer      UserSyncer
	cursors     domain.SyncCursorRepository
	connections domain.ConnectionRepository
	config      SyncWorkerConfig
	logger      *slog.Logger

	running  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	triggers chan uuid.UUID
}

// NewSyncWorker creates a new sync worker.
func NewSyncWorker(
	syncer UserSyncer,
	cursors domain.SyncCursorRepository,
	connections domain.ConnectionRepository,
	config SyncWorkerConfig,
	logger *slog.Logger,
) *SyncWorker {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultSyncWorkerConfig()
	if config.Schedule == "" {
		config.Schedule = defaults.Schedule
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = defaults.StaleAfter
	}
	if config.MaxSyncErrors <= 0 {
		config.MaxSyncErrors = defaults.MaxSyncErrors
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	return &SyncWorker{
		syncer:      syncer,
		cursors:     cursors,
		connections: connections,
		config:      config,
		logger:      logger,
		stopCh:      make(chan struct{}),
		triggers:    make(chan uuid.UUID, 64),
	}
}

// Run starts the schedule and blocks until ctx is cancelled or Stop is called.
func (w *SyncWorker) Run(ctx context.Context) error {
	clog := cronLogger{w.logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)
	if _, err := c.AddFunc(w.config.Schedule, func() { w.RunCycle(ctx) }); err != nil {
		return fmt.Errorf("invalid sync schedule %q: %w", w.config.Schedule, err)
	}

	w.running.Store(true)
	defer w.running.Store(false)

	w.logger.Info("sync worker started", "schedule", w.config.Schedule)
	if w.config.RunOnStart {
		w.RunCycle(ctx)
	}

	c.Start()
	defer func() {
		<-c.Stop().Done()
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sync worker stopped (context cancelled)")
			return ctx.Err()
		case <-w.stopCh:
			w.logger.Info("sync worker stopped (stop signal)")
			return nil
		case userID := <-w.triggers:
			w.syncUser(ctx, userID)
		}
	}
}

// Stop signals the worker to stop gracefully.
func (w *SyncWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// IsRunning returns true if the worker is currently running.
func (w *SyncWorker) IsRunning() bool {
	return w.running.Load()
}

// Trigger queues an out-of-schedule sync for a user. Returns false when the
// queue is full; the next scheduled cycle picks the user up anyway.
func (w *SyncWorker) Trigger(userID uuid.UUID) bool {
	select {
	case w.triggers <- userID:
		return true
	default:
		w.logger.Warn("sync trigger queue full, dropping", "user_id", userID)
		return false
	}
}

// RunCycle syncs every user that is due.
func (w *SyncWorker) RunCycle(ctx context.Context) {
	users, err := w.dueUsers(ctx)
	if err != nil {
		w.logger.Error("failed to find users due for sync", "error", err)
		return
	}
	if len(users) == 0 {
		w.logger.Debug("no users need syncing")
		return
	}
	w.logger.Debug("found users needing sync", "count", len(users))

	var g errgroup.Group
	g.SetLimit(w.config.Concurrency)
	for _, userID := range users {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			w.syncUser(ctx, userID)
			return nil
		})
	}
	_ = g.Wait()
}

// dueUsers returns users with a stale cursor plus connected users that never synced.
func (w *SyncWorker) dueUsers(ctx context.Context) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{})
	var users []uuid.UUID
	add := func(id uuid.UUID) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		users = append(users, id)
	}

	stale, err := w.cursors.FindStale(ctx, w.config.StaleAfter, w.config.MaxSyncErrors, w.config.BatchSize)
	if err != nil {
		return nil, err
	}
	for _, c := range stale {
		add(c.UserID())
	}

	connected, err := w.connections.FindUsersWithConnections(ctx)
	if err != nil {
		return nil, err
	}
	for _, userID := range connected {
		if _, ok := seen[userID]; ok {
			continue
		}
		cursors, err := w.cursors.FindByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if len(cursors) == 0 {
			add(userID)
		}
	}
	return users, nil
}

func (w *SyncWorker) syncUser(ctx context.Context, userID uuid.UUID) {
	report, err := w.syncer.SyncUser(ctx, userID)
	if err != nil {
		w.logger.Error("sync failed for user", "user_id", userID, "error", err)
		return
	}
	for _, failed := range report.Failed() {
		w.logger.Warn("provider sync failed",
			"user_id", userID,
			"provider", failed.Provider,
			"kind", domain.KindName(failed.Err),
			"error", failed.Err,
		)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
