package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// SQLiteConnectionRepository implements domain.ConnectionRepository using SQLite.
type SQLiteConnectionRepository struct {
	conn database.Connection
}

// NewSQLiteConnectionRepository creates a new SQLite provider connection repository.
func NewSQLiteConnectionRepository(conn database.Connection) *SQLiteConnectionRepository {
	return &SQLiteConnectionRepository{conn: conn}
}

func (r *SQLiteConnectionRepository) Save(ctx context.Context, c domain.ProviderConnection) error {
	calendars, err := json.Marshal(nonNil(c.CalendarIDs))
	if err != nil {
		return err
	}

	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err = exec.Exec(ctx, `
		INSERT INTO provider_connections (user_id, provider, enabled, calendar_ids, source_url, username, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			enabled = excluded.enabled,
			calendar_ids = excluded.calendar_ids,
			source_url = excluded.source_url,
			username = excluded.username,
			updated_at = excluded.updated_at`,
		c.UserID.String(),
		c.Provider.String(),
		boolToInt(c.Enabled),
		string(calendars),
		c.SourceURL,
		c.Username,
		formatTime(c.UpdatedAt),
	)
	return err
}

func (r *SQLiteConnectionRepository) FindByUser(ctx context.Context, userID uuid.UUID) (domain.ProviderConnections, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, `
		SELECT provider, enabled, calendar_ids, source_url, username, updated_at
		FROM provider_connections
		WHERE user_id = ?`, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conns := make(domain.ProviderConnections)
	for rows.Next() {
		var (
			provider, calendars, updatedAt string
			enabled                        int
		)
		c := domain.ProviderConnection{UserID: userID}
		if err := rows.Scan(&provider, &enabled, &calendars, &c.SourceURL, &c.Username, &updatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(calendars), &c.CalendarIDs); err != nil {
			return nil, fmt.Errorf("invalid calendar ids for %s: %w", provider, err)
		}
		if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		c.Provider = domain.ProviderType(provider)
		c.Enabled = enabled == 1
		conns[c.Provider] = c
	}
	return conns, rows.Err()
}

func (r *SQLiteConnectionRepository) FindUsersWithConnections(ctx context.Context) ([]uuid.UUID, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, `
		SELECT DISTINCT user_id FROM provider_connections WHERE enabled = 1 ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := parseUUID(raw)
		if err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

func (r *SQLiteConnectionRepository) Delete(ctx context.Context, userID uuid.UUID, provider domain.ProviderType) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, `DELETE FROM provider_connections WHERE user_id = ? AND provider = ?`,
		userID.String(), provider.String())
	return err
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
