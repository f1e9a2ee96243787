package persistence

import (
	"context"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// SQLiteConflictRepository implements domain.ConflictRepository using SQLite.
type SQLiteConflictRepository struct {
	conn database.Connection
}

// NewSQLiteConflictRepository creates a new SQLite conflict repository.
func NewSQLiteConflictRepository(conn database.Connection) *SQLiteConflictRepository {
	return &SQLiteConflictRepository{conn: conn}
}

func (r *SQLiteConflictRepository) SaveConflict(ctx context.Context, rec domain.ConflictRecord) (bool, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	result, err := exec.Exec(ctx, `
		INSERT INTO calendar_conflicts (id, user_id, event_a_id, event_b_id, detected_at, resolved)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		rec.ID.String(),
		rec.UserID.String(),
		rec.EventIDA.String(),
		rec.EventIDB.String(),
		formatTime(rec.DetectedAt),
		boolToInt(rec.Resolved),
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *SQLiteConflictRepository) ListUnresolvedConflicts(ctx context.Context, userID uuid.UUID) ([]domain.ConflictRecord, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, `
		SELECT id, user_id, event_a_id, event_b_id, detected_at, resolved
		FROM calendar_conflicts
		WHERE user_id = ? AND resolved = 0
		ORDER BY detected_at, id`, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.ConflictRecord
	for rows.Next() {
		var (
			id, owner, a, b, detectedAt string
			resolved                    int
		)
		if err := rows.Scan(&id, &owner, &a, &b, &detectedAt, &resolved); err != nil {
			return nil, err
		}
		rec := domain.ConflictRecord{Resolved: resolved == 1}
		for dst, raw := range map[*uuid.UUID]string{&rec.ID: id, &rec.UserID: owner, &rec.EventIDA: a, &rec.EventIDB: b} {
			if *dst, err = parseUUID(raw); err != nil {
				return nil, err
			}
		}
		if rec.DetectedAt, err = parseTime(detectedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *SQLiteConflictRepository) MarkResolved(ctx context.Context, userID, conflictID uuid.UUID) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	result, err := exec.Exec(ctx, `UPDATE calendar_conflicts SET resolved = 1 WHERE id = ? AND user_id = ?`,
		conflictID.String(), userID.String())
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
