package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	conn database.Connection
	now  func() time.Time
}

// NewSQLiteRepository creates a new SQLite outbox repository.
func NewSQLiteRepository(conn database.Connection) *SQLiteRepository {
	return &SQLiteRepository{conn: conn, now: time.Now}
}

func (r *SQLiteRepository) Save(ctx context.Context, msgs ...*Message) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	for _, msg := range msgs {
		_, err := exec.Exec(ctx, `
			INSERT INTO outbox (event_id, aggregate_type, aggregate_id, routing_key, payload, correlation_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (event_id) DO NOTHING`,
			msg.EventID.String(),
			msg.AggregateType,
			msg.AggregateID.String(),
			msg.RoutingKey,
			string(msg.Payload),
			msg.CorrelationID,
			sqliteTime(msg.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("save outbox message %s: %w", msg.EventID, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) GetUnpublished(ctx context.Context, limit int) ([]*Message, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, `
		SELECT id, event_id, aggregate_type, aggregate_id, routing_key, payload, correlation_id,
			created_at, next_retry_at, retry_count, last_error
		FROM outbox
		WHERE published_at IS NULL AND dead_lettered_at IS NULL
		  AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY created_at, id
		LIMIT ?`, sqliteTime(r.now()), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var (
			msg                    Message
			eventID, aggregateID   string
			payload, createdAt     string
			nextRetryAt, lastError sql.NullString
		)
		err := rows.Scan(&msg.ID, &eventID, &msg.AggregateType, &aggregateID, &msg.RoutingKey, &payload,
			&msg.CorrelationID, &createdAt, &nextRetryAt, &msg.RetryCount, &lastError)
		if err != nil {
			return nil, err
		}
		if msg.EventID, err = uuid.Parse(eventID); err != nil {
			return nil, err
		}
		if msg.AggregateID, err = uuid.Parse(aggregateID); err != nil {
			return nil, err
		}
		if msg.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
			return nil, err
		}
		if nextRetryAt.Valid {
			t, err := time.Parse(sqliteTimeLayout, nextRetryAt.String)
			if err != nil {
				return nil, err
			}
			msg.NextRetryAt = &t
		}
		if lastError.Valid {
			msg.LastError = &lastError.String
		}
		msg.Payload = []byte(payload)
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

func (r *SQLiteRepository) MarkPublished(ctx context.Context, id int64) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, `UPDATE outbox SET published_at = ? WHERE id = ?`, sqliteTime(r.now()), id)
	return err
}

func (r *SQLiteRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, `
		UPDATE outbox SET retry_count = retry_count + 1, last_error = ?, next_retry_at = ?
		WHERE id = ?`, errMsg, sqliteTime(nextRetryAt), id)
	return err
}

func (r *SQLiteRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, `
		UPDATE outbox SET retry_count = retry_count + 1, dead_lettered_at = ?, dead_letter_reason = ?
		WHERE id = ?`, sqliteTime(r.now()), reason, id)
	return err
}

func (r *SQLiteRepository) DeleteOld(ctx context.Context, olderThan time.Duration) (int64, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	result, err := exec.Exec(ctx, `DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < ?`,
		sqliteTime(r.now().Add(-olderThan)))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func sqliteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}
