package persistence

import (
	"context"
	"database/sql"
	"time"

	calendarDomain "github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/felixgeelhaar/rendezvous/internal/identity/domain"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// SQLiteTokenRepository implements domain.TokenRepository using SQLite.
type SQLiteTokenRepository struct {
	conn database.Connection
}

// NewSQLiteTokenRepository creates a new SQLite token repository.
func NewSQLiteTokenRepository(conn database.Connection) *SQLiteTokenRepository {
	return &SQLiteTokenRepository{conn: conn}
}

// Save upserts a token for a user/provider. created_at survives updates.
func (r *SQLiteTokenRepository) Save(ctx context.Context, token domain.StoredToken) error {
	now := token.UpdatedAt
	if now.IsZero() {
		now = time.Now()
	}
	created := token.CreatedAt
	if created.IsZero() {
		created = now
	}

	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, `
		INSERT INTO oauth_tokens (
			user_id, provider, access_token, refresh_token, token_type, username, expiry, scopes,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			username = excluded.username,
			expiry = excluded.expiry,
			scopes = excluded.scopes,
			updated_at = excluded.updated_at`,
		token.UserID.String(),
		token.Provider.String(),
		encodeSecret(token.AccessToken),
		encodeSecret(token.RefreshToken),
		token.TokenType,
		token.Username,
		formatExpiry(token.Expiry),
		joinScopes(token.Scopes),
		created.UTC().Format(timeLayout),
		now.UTC().Format(timeLayout),
	)
	return err
}

// FindByUserAndProvider fetches a token for a user/provider.
func (r *SQLiteTokenRepository) FindByUserAndProvider(ctx context.Context, userID uuid.UUID, provider calendarDomain.ProviderType) (*domain.StoredToken, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	row := exec.QueryRow(ctx, `
		SELECT access_token, refresh_token, token_type, username, expiry, scopes, created_at, updated_at
		FROM oauth_tokens
		WHERE user_id = ? AND provider = ?`, userID.String(), provider.String())

	var (
		access, refresh, scopes, createdAt, updatedAt string
		expiry                                        sql.NullString
	)
	token := domain.StoredToken{UserID: userID, Provider: provider}
	if err := row.Scan(&access, &refresh, &token.TokenType, &token.Username, &expiry, &scopes, &createdAt, &updatedAt); err != nil {
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
	if token.Expiry, err = parseExpiry(expiry); err != nil {
		return nil, err
	}
	if token.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, err
	}
	if token.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, err
	}
	token.Scopes = splitScopes(scopes)
	return &token, nil
}

// Delete removes the token of a user/provider.
func (r *SQLiteTokenRepository) Delete(ctx context.Context, userID uuid.UUID, provider calendarDomain.ProviderType) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, `DELETE FROM oauth_tokens WHERE user_id = ? AND provider = ?`,
		userID.String(), provider.String())
	return err
}
