package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/application"
	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/felixgeelhaar/rendezvous/internal/calendar/infrastructure/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConflictResolver_RecordsNewConflictsOnce(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	repo := memory.NewConflictRepository()
	publisher := &recordingPublisher{}
	resolver := application.NewConflictResolver(repo, publisher, nil).
		WithClock(func() time.Time { return reconcileNow })

	google := canonical(userID, domain.ProviderGoogle, "g", "2024-03-04T10:00:00Z", "2024-03-04T11:00:00Z")
	outlook := canonical(userID, domain.ProviderMicrosoft, "m", "2024-03-04T10:30:00Z", "2024-03-04T11:30:00Z")
	sameProvider := canonical(userID, domain.ProviderGoogle, "g2", "2024-03-04T10:15:00Z", "2024-03-04T10:45:00Z")

	report, err := resolver.FindConflicts(ctx, userID, []domain.Event{google, outlook, sameProvider})
	require.NoError(t, err)

	// g2 overlaps m as well; g and g2 share a provider and never conflict.
	assert.Len(t, report.Conflicts, 2)
	assert.Equal(t, 2, report.New)
	assert.Equal(t, 2, repo.Len())
	assert.Equal(t, []string{domain.RoutingKeyConflictDetected, domain.RoutingKeyConflictDetected}, publisher.routingKeys())

	report, err = resolver.FindConflicts(ctx, userID, []domain.Event{outlook, google, sameProvider})
	require.NoError(t, err)
	assert.Len(t, report.Conflicts, 2)
	assert.Zero(t, report.New)
	assert.Equal(t, 2, repo.Len())
	assert.Len(t, publisher.routingKeys(), 2)
}

func TestConflictResolver_IgnoresNonBusy(t *testing.T) {
	userID := uuid.New()
	resolver := application.NewConflictResolver(memory.NewConflictRepository(), nil, nil)

	busy := canonical(userID, domain.ProviderGoogle, "busy", "2024-03-04T10:00:00Z", "2024-03-04T11:00:00Z")
	tentative := canonical(userID, domain.ProviderMicrosoft, "tentative", "2024-03-04T10:00:00Z", "2024-03-04T11:00:00Z")
	tentative.Availability = domain.AvailabilityTentative
	free := canonical(userID, domain.ProviderLocal, "free", "2024-03-04T10:00:00Z", "2024-03-04T11:00:00Z")
	free.Availability = domain.AvailabilityFree
	cancelled := canonical(userID, domain.ProviderLocal, "cancelled", "2024-03-04T10:00:00Z", "2024-03-04T11:00:00Z")
	cancelled.Status = domain.StatusCancelled
	touching := canonical(userID, domain.ProviderMicrosoft, "touching", "2024-03-04T11:00:00Z", "2024-03-04T12:00:00Z")

	report, err := resolver.FindConflicts(context.Background(), userID, []domain.Event{busy, tentative, free, cancelled, touching})
	require.NoError(t, err)
	assert.Empty(t, report.Conflicts)
	assert.Zero(t, report.New)
}

func TestConflictResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	repo := memory.NewConflictRepository()
	resolver := application.NewConflictResolver(repo, nil, nil)

	a := canonical(userID, domain.ProviderGoogle, "a", "2024-03-04T10:00:00Z", "2024-03-04T11:00:00Z")
	b := canonical(userID, domain.ProviderLocal, "b", "2024-03-04T10:30:00Z", "2024-03-04T11:30:00Z")
	report, err := resolver.FindConflicts(ctx, userID, []domain.Event{a, b})
	require.NoError(t, err)
	require.Len(t, report.Conflicts, 1)

	open, err := resolver.ListUnresolved(ctx, userID)
	require.NoError(t, err)
	require.Len(t, open, 1)

	require.NoError(t, resolver.Resolve(ctx, userID, open[0].ID))
	open, err = resolver.ListUnresolved(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, open)

	// A resolved pair is not recorded again.
	report, err = resolver.FindConflicts(ctx, userID, []domain.Event{a, b})
	require.NoError(t, err)
	assert.Zero(t, report.New)

	assert.ErrorIs(t, resolver.Resolve(ctx, uuid.New(), report.Conflicts[0].ID), domain.ErrConflictNotFound)
}
