package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

const cursorColumns = `id, user_id, provider, window_start, window_end, last_synced_at,
	last_full_sync_at, last_error, consecutive_errors, created_at, updated_at`

// SQLiteSyncCursorRepository implements domain.SyncCursorRepository using SQLite.
type SQLiteSyncCursorRepository struct {
	conn database.Connection
}

// NewSQLiteSyncCursorRepository creates a new SQLite sync cursor repository.
func NewSQLiteSyncCursorRepository(conn database.Connection) *SQLiteSyncCursorRepository {
	return &SQLiteSyncCursorRepository{conn: conn}
}

func (r *SQLiteSyncCursorRepository) GetCursor(ctx context.Context, userID uuid.UUID, provider domain.ProviderType) (*domain.SyncCursor, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	row := exec.QueryRow(ctx, `SELECT `+cursorColumns+` FROM sync_cursors WHERE user_id = ? AND provider = ?`,
		userID.String(), provider.String())

	cursor, err := scanSQLiteCursor(row)
	if database.IsNoRows(err) {
		return nil, nil
	}
	return cursor, err
}

func (r *SQLiteSyncCursorRepository) SetCursor(ctx context.Context, c *domain.SyncCursor) error {
	query := `
		INSERT INTO sync_cursors (` + cursorColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			window_start = excluded.window_start,
			window_end = excluded.window_end,
			last_synced_at = excluded.last_synced_at,
			last_full_sync_at = excluded.last_full_sync_at,
			last_error = excluded.last_error,
			consecutive_errors = excluded.consecutive_errors,
			updated_at = excluded.updated_at`

	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, query,
		c.ID().String(),
		c.UserID().String(),
		c.Provider().String(),
		formatNullTime(c.WindowStart()),
		formatNullTime(c.WindowEnd()),
		formatNullTime(c.LastSyncedAt()),
		formatNullTime(c.LastFullSyncAt()),
		c.LastError(),
		c.SyncErrors(),
		formatTime(c.CreatedAt()),
		formatTime(c.UpdatedAt()),
	)
	return err
}

func (r *SQLiteSyncCursorRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*domain.SyncCursor, error) {
	return r.query(ctx, `SELECT `+cursorColumns+` FROM sync_cursors WHERE user_id = ? ORDER BY provider`,
		userID.String())
}

func (r *SQLiteSyncCursorRepository) FindStale(ctx context.Context, olderThan time.Duration, maxErrors, limit int) ([]*domain.SyncCursor, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))
	query := `SELECT ` + cursorColumns + `
		FROM sync_cursors
		WHERE (last_synced_at IS NULL OR last_synced_at < ?)
		  AND consecutive_errors < ?
		ORDER BY last_synced_at IS NOT NULL, last_synced_at, consecutive_errors
		LIMIT ?`
	if limit <= 0 {
		limit = -1
	}
	return r.query(ctx, query, cutoff, maxErrors, limit)
}

func (r *SQLiteSyncCursorRepository) Delete(ctx context.Context, userID uuid.UUID, provider domain.ProviderType) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, `DELETE FROM sync_cursors WHERE user_id = ? AND provider = ?`,
		userID.String(), provider.String())
	return err
}

func (r *SQLiteSyncCursorRepository) query(ctx context.Context, query string, args ...any) ([]*domain.SyncCursor, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cursors []*domain.SyncCursor
	for rows.Next() {
		c, err := scanSQLiteCursor(rows)
		if err != nil {
			return nil, err
		}
		cursors = append(cursors, c)
	}
	return cursors, rows.Err()
}

func scanSQLiteCursor(row scanner) (*domain.SyncCursor, error) {
	var (
		id, userID, provider     string
		windowStart, windowEnd   sql.NullString
		lastSynced, lastFullSync sql.NullString
		lastError                string
		syncErrors               int
		createdAt, updatedAt     string
	)
	err := row.Scan(&id, &userID, &provider, &windowStart, &windowEnd, &lastSynced,
		&lastFullSync, &lastError, &syncErrors, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	cursorID, err := parseUUID(id)
	if err != nil {
		return nil, err
	}
	owner, err := parseUUID(userID)
	if err != nil {
		return nil, err
	}
	times := make([]time.Time, 6)
	for i, raw := range []sql.NullString{
		windowStart, windowEnd, lastSynced, lastFullSync,
		{String: createdAt, Valid: true}, {String: updatedAt, Valid: true},
	} {
		if times[i], err = parseNullTime(raw); err != nil {
			return nil, err
		}
	}

	return domain.RehydrateSyncCursor(
		cursorID, owner, domain.ProviderType(provider),
		times[0], times[1], times[2], times[3],
		syncErrors, lastError,
		times[4], times[5],
	), nil
}
