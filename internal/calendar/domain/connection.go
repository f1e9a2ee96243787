package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ProviderConnection is a user's link to one provider. A user holds at most
// one connection per provider; ProviderConnections is the canonical map.
type ProviderConnection struct {
	UserID      uuid.UUID
	Provider    ProviderType
	Enabled     bool
	CalendarIDs []string
	// SourceURL points a local connection at an ICS file/URL or a CalDAV server.
	SourceURL string
	// Username is the CalDAV account name; the password lives in the token store.
	Username  string
	UpdatedAt time.Time
}

// Calendars returns the calendar IDs to read, defaulting to "primary".
func (c ProviderConnection) Calendars() []string {
	if len(c.CalendarIDs) == 0 {
		return []string{"primary"}
	}
	return c.CalendarIDs
}

// ProviderConnections maps each connected provider to its settings.
type ProviderConnections map[ProviderType]ProviderConnection

// Enabled returns the enabled providers in stable order.
func (c ProviderConnections) Enabled() []ProviderType {
	providers := make([]ProviderType, 0, len(c))
	for p, conn := range c {
		if conn.Enabled {
			providers = append(providers, p)
		}
	}
	SortProviders(providers)
	return providers
}

// ConnectionRepository persists provider connections.
type ConnectionRepository interface {
	// Save upserts the connection for (user, provider).
	Save(ctx context.Context, conn ProviderConnection) error

	// FindByUser returns all connections of a user keyed by provider.
	FindByUser(ctx context.Context, userID uuid.UUID) (ProviderConnections, error)

	// FindUsersWithConnections lists users that have at least one enabled connection.
	FindUsersWithConnections(ctx context.Context) ([]uuid.UUID, error)

	// Delete removes the connection for (user, provider).
	Delete(ctx context.Context, userID uuid.UUID, provider ProviderType) error
}
