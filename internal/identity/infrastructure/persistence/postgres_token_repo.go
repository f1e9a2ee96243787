package persistence

import (
	"context"
	"time"

	calendarDomain "github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/felixgeelhaar/rendezvous/internal/identity/domain"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// PostgresTokenRepository implements domain.TokenRepository using PostgreSQL.
type PostgresTokenRepository struct {
	conn database.Connection
}

// NewPostgresTokenRepository creates a new PostgreSQL token repository.
func NewPostgresTokenRepository(conn database.Connection) *PostgresTokenRepository {
	return &PostgresTokenRepository{conn: conn}
}

// Save upserts a token for a user/provider.
func (r *PostgresTokenRepository) Save(ctx context.Context, token domain.StoredToken) error {
	var expiry *time.Time
	if !token.Expiry.IsZero() {
		e := token.Expiry.UTC()
		expiry = &e
	}

	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, `
		INSERT INTO oauth_tokens (
			user_id, provider, access_token, refresh_token, token_type, username, expiry, scopes,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (user_id, provider) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_type = EXCLUDED.token_type,
			username = EXCLUDED.username,
			expiry = EXCLUDED.expiry,
			scopes = EXCLUDED.scopes,
			updated_at = NOW()`,
		token.UserID,
		token.Provider.String(),
		encodeSecret(token.AccessToken),
		encodeSecret(token.RefreshToken),
		token.TokenType,
		token.Username,
		expiry,
		joinScopes(token.Scopes),
	)
	return err
}

// FindByUserAndProvider fetches a token for a user/provider.
func (r *PostgresTokenRepository) FindByUserAndProvider(ctx context.Context, userID uuid.UUID, provider calendarDomain.ProviderType) (*domain.StoredToken, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	row := exec.QueryRow(ctx, `
		SELECT access_token, refresh_token, token_type, username, expiry, scopes, created_at, updated_at
		FROM oauth_tokens
		WHERE user_id = $1 AND provider = $2`, userID, provider.String())

	var (
		access, refresh, scopes string
		expiry                  *time.Time
	)
	token := domain.StoredToken{UserID: userID, Provider: provider}
	if err := row.Scan(&access, &refresh, &token.TokenType, &token.Username, &expiry, &scopes, &token.CreatedAt, &token.UpdatedAt); err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}

	var err error
	if token.AccessToken, err = decodeSecret(access); err != nil {
		return nil, err
	}
	if token.RefreshToken, err = decodeSecret(refresh); err != nil {
		return nil, err
	}
	if expiry != nil {
		token.Expiry = expiry.UTC()
	}
	token.Scopes = splitScopes(scopes)
	return &token, nil
}

// Delete removes the token of a user/provider.
func (r *PostgresTokenRepository) Delete(ctx context.Context, userID uuid.UUID, provider calendarDomain.ProviderType) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, `DELETE FROM oauth_tokens WHERE user_id = $1 AND provider = $2`,
		userID, provider.String())
	return err
}
