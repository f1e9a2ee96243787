package application

import (
	"context"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	sharedDomain "github.com/felixgeelhaar/rendezvous/internal/shared/domain"
	"github.com/google/uuid"
)

// ProviderAdapter reads events from one provider account.
//
// Errors should wrap one of domain.ErrAuthExpired, ErrPermissionDenied,
// ErrRateLimited or ErrNetworkTimeout; anything else is treated as unknown.
type ProviderAdapter interface {
	FetchEvents(ctx context.Context, credential domain.Credential, windowStart, windowEnd time.Time) ([]domain.RawEvent, error)
}

// TokenService hands out usable credentials per (user, provider).
type TokenService interface {
	// GetValidToken returns a credential, refreshing it first when it is
	// about to expire. A failed refresh surfaces domain.ErrAuthExpired.
	GetValidToken(ctx context.Context, userID uuid.UUID, provider domain.ProviderType) (domain.Credential, error)

	// Disconnect forgets the stored credential.
	Disconnect(ctx context.Context, userID uuid.UUID, provider domain.ProviderType) error
}

// EventPublisher publishes domain events.
type EventPublisher interface {
	PublishEvents(ctx context.Context, events ...sharedDomain.DomainEvent) error
}

// SyncResult counts the writes of one reconcile.
type SyncResult struct {
	Created   int
	Updated   int
	Deleted   int
	Unchanged int
}

// Changed returns the number of writes applied.
func (r SyncResult) Changed() int {
	return r.Created + r.Updated + r.Deleted
}

// Add accumulates other into r.
func (r *SyncResult) Add(other SyncResult) {
	r.Created += other.Created
	r.Updated += other.Updated
	r.Deleted += other.Deleted
	r.Unchanged += other.Unchanged
}

func lockKey(userID uuid.UUID, provider domain.ProviderType) string {
	return "reconcile:" + userID.String() + ":" + string(provider)
}
