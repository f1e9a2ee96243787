// Package domain holds the stored form of provider credentials.
package domain

import (
	"context"
	"time"

	calendarDomain "github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/google/uuid"
)

// Token types recorded with a stored credential.
const (
	TokenTypeBearer = "Bearer"
	TokenTypeBasic  = "Basic"
)

// StoredToken is a provider credential with its secrets sealed.
type StoredToken struct {
	UserID       uuid.UUID
	Provider     calendarDomain.ProviderType
	AccessToken  []byte
	RefreshToken []byte
	TokenType    string
	// Username is set for basic-auth providers.
	Username  string
	Expiry    time.Time
	Scopes    []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsBasic reports whether the credential is a username/password pair.
func (t StoredToken) IsBasic() bool {
	return t.TokenType == TokenTypeBasic
}

// TokenRepository persists sealed credentials, one per (user, provider).
type TokenRepository interface {
	// Save upserts the token.
	Save(ctx context.Context, token StoredToken) error

	// FindByUserAndProvider returns nil when nothing is stored.
	FindByUserAndProvider(ctx context.Context, userID uuid.UUID, provider calendarDomain.ProviderType) (*StoredToken, error)

	// Delete removes the token. Deleting a missing token is not an error.
	Delete(ctx context.Context, userID uuid.UUID, provider calendarDomain.ProviderType) error
}
