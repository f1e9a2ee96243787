package persistence

import (
	"context"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// PostgresConflictRepository implements domain.ConflictRepository using PostgreSQL.
type PostgresConflictRepository struct {
	conn database.Connection
}

// NewPostgresConflictRepository creates a new PostgreSQL conflict repository.
func NewPostgresConflictRepository(conn database.Connection) *PostgresConflictRepository {
	return &PostgresConflictRepository{conn: conn}
}

func (r *PostgresConflictRepository) SaveConflict(ctx context.Context, rec domain.ConflictRecord) (bool, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	result, err := exec.Exec(ctx, `
		INSERT INTO calendar_conflicts (id, user_id, event_a_id, event_b_id, detected_at, resolved)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING`,
		rec.ID, rec.UserID, rec.EventIDA, rec.EventIDB, rec.DetectedAt.UTC(), rec.Resolved,
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (r *PostgresConflictRepository) ListUnresolvedConflicts(ctx context.Context, userID uuid.UUID) ([]domain.ConflictRecord, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, `
		SELECT id, user_id, event_a_id, event_b_id, detected_at, resolved
		FROM calendar_conflicts
		WHERE user_id = $1 AND NOT resolved
		ORDER BY detected_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.ConflictRecord
	for rows.Next() {
		var rec domain.ConflictRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.EventIDA, &rec.EventIDB, &rec.DetectedAt, &rec.Resolved); err != nil {
			return nil, err
		}
		rec.DetectedAt = rec.DetectedAt.UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *PostgresConflictRepository) MarkResolved(ctx context.Context, userID, conflictID uuid.UUID) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	result, err := exec.Exec(ctx, `UPDATE calendar_conflicts SET resolved = TRUE WHERE id = $1 AND user_id = $2`,
		conflictID, userID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrConflictNotFound
	}
	return nil
}
