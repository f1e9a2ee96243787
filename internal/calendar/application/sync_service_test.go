package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/application"
	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/felixgeelhaar/rendezvous/internal/calendar/infrastructure/memory"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/lock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var syncNow = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

type syncFixture struct {
	userID      uuid.UUID
	events      *memory.EventRepository
	cursors     *memory.SyncCursorRepository
	conflicts   *memory.ConflictRepository
	connections *memory.ConnectionRepository
	tokens      *fakeTokens
	publisher   *recordingPublisher
	locker      *lock.KeyedMutex
	adapters    map[domain.ProviderType]*fakeAdapter
	service     *application.SyncService
}

func newSyncFixture(t *testing.T, providers ...domain.ProviderType) *syncFixture {
	t.Helper()
	f := &syncFixture{
		userID:      uuid.New(),
		events:      memory.NewEventRepository(),
		cursors:     memory.NewSyncCursorRepository(),
		conflicts:   memory.NewConflictRepository(),
		connections: memory.NewConnectionRepository(),
		tokens:      newFakeTokens(),
		publisher:   &recordingPublisher{},
		locker:      lock.NewKeyedMutex(),
		adapters:    make(map[domain.ProviderType]*fakeAdapter),
	}
	for _, p := range providers {
		f.adapters[p] = &fakeAdapter{}
	}
	connect(t, f.connections, f.userID, providers...)

	clock := func() time.Time { return syncNow }
	orchestrator := application.NewFetchOrchestrator(registryFor(f.adapters), f.connections, f.tokens, application.DefaultOrchestratorConfig(), nil, nil)
	reconciler := application.NewReconciler(f.events, f.cursors, f.locker, nil, nil).WithClock(clock)
	resolver := application.NewConflictResolver(f.conflicts, f.publisher, nil).WithClock(clock)
	f.service = application.NewSyncService(
		f.connections, f.cursors, f.events,
		orchestrator, reconciler, resolver, f.publisher,
		application.DefaultSyncConfig(), nil, nil,
	).WithClock(clock)
	return f
}

func TestSyncService_FirstSyncIsFullAndFindsConflicts(t *testing.T) {
	f := newSyncFixture(t, domain.ProviderGoogle, domain.ProviderMicrosoft)
	f.adapters[domain.ProviderGoogle].setEvents(
		timed("g1", "2024-03-04T10:00:00Z", "2024-03-04T11:00:00Z"),
		timed("g2", "2024-03-05T09:00:00Z", "2024-03-05T09:30:00Z"),
	)
	f.adapters[domain.ProviderMicrosoft].setEvents(
		timed("m1", "2024-03-04T10:30:00Z", "2024-03-04T11:30:00Z"),
	)

	report, err := f.service.SyncUser(context.Background(), f.userID)
	require.NoError(t, err)

	assert.True(t, report.FullWindow)
	assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), report.Window.Start)
	assert.Equal(t, time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC), report.Window.End)
	assert.Equal(t, 3, report.Total.Created)
	assert.Empty(t, report.Failed())
	require.NotNil(t, report.Conflicts)
	assert.Equal(t, 1, report.Conflicts.New)

	assert.ElementsMatch(t, []string{
		domain.RoutingKeyConflictDetected,
		domain.RoutingKeyCalendarSynced,
		domain.RoutingKeyCalendarSynced,
	}, f.publisher.routingKeys())
}

func TestSyncService_SecondSyncIsIncremental(t *testing.T) {
	f := newSyncFixture(t, domain.ProviderLocal)
	f.adapters[domain.ProviderLocal].setEvents(timed("l1", "2024-03-04T10:00:00Z", "2024-03-04T11:00:00Z"))

	_, err := f.service.SyncUser(context.Background(), f.userID)
	require.NoError(t, err)

	report, err := f.service.SyncUser(context.Background(), f.userID)
	require.NoError(t, err)
	assert.False(t, report.FullWindow)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), report.Window.Start)
	assert.Equal(t, application.SyncResult{Unchanged: 1}, report.Total)
}

func TestSyncService_ProviderFailureIsIsolated(t *testing.T) {
	f := newSyncFixture(t, domain.ProviderGoogle, domain.ProviderMicrosoft)
	f.adapters[domain.ProviderGoogle].setEvents(timed("g1", "2024-03-04T10:00:00Z", "2024-03-04T11:00:00Z"))
	f.adapters[domain.ProviderMicrosoft].err = domain.NewProviderError(domain.ProviderMicrosoft, domain.ErrRateLimited, errors.New("429"))

	report, err := f.service.SyncUser(context.Background(), f.userID)
	require.NoError(t, err)

	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, domain.ProviderMicrosoft, failed[0].Provider)
	assert.ErrorIs(t, failed[0].Err, domain.ErrRateLimited)
	assert.Equal(t, 1, report.Total.Created)

	cursor, err := f.cursors.GetCursor(context.Background(), f.userID, domain.ProviderMicrosoft)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.Equal(t, 1, cursor.SyncErrors())
	assert.False(t, cursor.HasSynced())

	assert.Contains(t, f.publisher.routingKeys(), domain.RoutingKeyProviderSyncFailed)
}

func TestSyncService_NoConnections(t *testing.T) {
	f := newSyncFixture(t)

	report, err := f.service.SyncUser(context.Background(), f.userID)
	require.NoError(t, err)
	assert.Empty(t, report.Providers)
	assert.Nil(t, report.Conflicts)
}

func TestSyncService_Cancel(t *testing.T) {
	f := newSyncFixture(t, domain.ProviderGoogle)
	f.adapters[domain.ProviderGoogle].block = true

	assert.False(t, f.service.Cancel(f.userID))

	done := make(chan error, 1)
	go func() {
		_, err := f.service.SyncUser(context.Background(), f.userID)
		done <- err
	}()

	require.Eventually(t, func() bool { return f.adapters[domain.ProviderGoogle].callCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, f.service.Running(f.userID))
	assert.True(t, f.service.Cancel(f.userID))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("sync did not stop after cancel")
	}
	assert.False(t, f.service.Running(f.userID))
	assert.Empty(t, f.events.All())
}
