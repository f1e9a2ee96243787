package persistence

import (
	"context"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// PostgresConnectionRepository implements domain.ConnectionRepository using PostgreSQL.
// Saving a connection fires the calendar_sync_requests notification.
type PostgresConnectionRepository struct {
	conn database.Connection
}

// NewPostgresConnectionRepository creates a new PostgreSQL provider connection repository.
func NewPostgresConnectionRepository(conn database.Connection) *PostgresConnectionRepository {
	return &PostgresConnectionRepository{conn: conn}
}

func (r *PostgresConnectionRepository) Save(ctx context.Context, c domain.ProviderConnection) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, `
		INSERT INTO provider_connections (user_id, provider, enabled, calendar_ids, source_url, username, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			calendar_ids = EXCLUDED.calendar_ids,
			source_url = EXCLUDED.source_url,
			username = EXCLUDED.username,
			updated_at = EXCLUDED.updated_at`,
		c.UserID, c.Provider.String(), c.Enabled, nonNil(c.CalendarIDs), c.SourceURL, c.Username, c.UpdatedAt.UTC(),
	)
	return err
}

func (r *PostgresConnectionRepository) FindByUser(ctx context.Context, userID uuid.UUID) (domain.ProviderConnections, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, `
		SELECT provider, enabled, calendar_ids, source_url, username, updated_at
		FROM provider_connections
		WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conns := make(domain.ProviderConnections)
	for rows.Next() {
		var provider string
		c := domain.ProviderConnection{UserID: userID}
		if err := rows.Scan(&provider, &c.Enabled, &c.CalendarIDs, &c.SourceURL, &c.Username, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Provider = domain.ProviderType(provider)
		c.UpdatedAt = c.UpdatedAt.UTC()
		conns[c.Provider] = c
	}
	return conns, rows.Err()
}

func (r *PostgresConnectionRepository) FindUsersWithConnections(ctx context.Context) ([]uuid.UUID, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, `SELECT DISTINCT user_id FROM provider_connections WHERE enabled ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

func (r *PostgresConnectionRepository) Delete(ctx context.Context, userID uuid.UUID, provider domain.ProviderType) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, `DELETE FROM provider_connections WHERE user_id = $1 AND provider = $2`, userID, provider.String())
	return err
}
