package persistence

import (
	"context"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// PostgresSyncCursorRepository implements domain.SyncCursorRepository using PostgreSQL.
type PostgresSyncCursorRepository struct {
	conn database.Connection
}

// NewPostgresSyncCursorRepository creates a new PostgreSQL sync cursor repository.
func NewPostgresSyncCursorRepository(conn database.Connection) *PostgresSyncCursorRepository {
	return &PostgresSyncCursorRepository{conn: conn}
}

func (r *PostgresSyncCursorRepository) GetCursor(ctx context.Context, userID uuid.UUID, provider domain.ProviderType) (*domain.SyncCursor, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	row := exec.QueryRow(ctx, `SELECT `+cursorColumns+` FROM sync_cursors WHERE user_id = $1 AND provider = $2`,
		userID, provider.String())

	cursor, err := scanPostgresCursor(row)
	if database.IsNoRows(err) {
		return nil, nil
	}
	return cursor, err
}

func (r *PostgresSyncCursorRepository) SetCursor(ctx context.Context, c *domain.SyncCursor) error {
	query := `
		INSERT INTO sync_cursors (` + cursorColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			window_start = EXCLUDED.window_start,
			window_end = EXCLUDED.window_end,
			last_synced_at = EXCLUDED.last_synced_at,
			last_full_sync_at = EXCLUDED.last_full_sync_at,
			last_error = EXCLUDED.last_error,
			consecutive_errors = EXCLUDED.consecutive_errors,
			updated_at = EXCLUDED.updated_at`

	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, query,
		c.ID(), c.UserID(), c.Provider().String(),
		nullTime(c.WindowStart()), nullTime(c.WindowEnd()),
		nullTime(c.LastSyncedAt()), nullTime(c.LastFullSyncAt()),
		c.LastError(), c.SyncErrors(),
		c.CreatedAt().UTC(), c.UpdatedAt().UTC(),
	)
	return err
}

func (r *PostgresSyncCursorRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*domain.SyncCursor, error) {
	return r.query(ctx, `SELECT `+cursorColumns+` FROM sync_cursors WHERE user_id = $1 ORDER BY provider`, userID)
}

func (r *PostgresSyncCursorRepository) FindStale(ctx context.Context, olderThan time.Duration, maxErrors, limit int) ([]*domain.SyncCursor, error) {
	query := `SELECT ` + cursorColumns + `
		FROM sync_cursors
		WHERE (last_synced_at IS NULL OR last_synced_at < $1)
		  AND consecutive_errors < $2
		ORDER BY last_synced_at NULLS FIRST, consecutive_errors
		LIMIT $3`
	var rowLimit any
	if limit > 0 {
		rowLimit = limit
	}
	return r.query(ctx, query, time.Now().Add(-olderThan).UTC(), maxErrors, rowLimit)
}

func (r *PostgresSyncCursorRepository) Delete(ctx context.Context, userID uuid.UUID, provider domain.ProviderType) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, `DELETE FROM sync_cursors WHERE user_id = $1 AND provider = $2`, userID, provider.String())
	return err
}

func (r *PostgresSyncCursorRepository) query(ctx context.Context, query string, args ...any) ([]*domain.SyncCursor, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cursors []*domain.SyncCursor
	for rows.Next() {
		c, err := scanPostgresCursor(rows)
		if err != nil {
			return nil, err
		}
		cursors = append(cursors, c)
	}
	return cursors, rows.Err()
}

func scanPostgresCursor(row scanner) (*domain.SyncCursor, error) {
	var (
		id, userID               uuid.UUID
		provider, lastError      string
		windowStart, windowEnd   *time.Time
		lastSynced, lastFullSync *time.Time
		syncErrors               int
		createdAt, updatedAt     time.Time
	)
	err := row.Scan(&id, &userID, &provider, &windowStart, &windowEnd, &lastSynced,
		&lastFullSync, &lastError, &syncErrors, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	return domain.RehydrateSyncCursor(
		id, userID, domain.ProviderType(provider),
		derefTime(windowStart), derefTime(windowEnd),
		derefTime(lastSynced), derefTime(lastFullSync),
		syncErrors, lastError,
		createdAt.UTC(), updatedAt.UTC(),
	), nil
}
