package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/database"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	conn database.Connection
}

// NewPostgresRepository creates a new PostgreSQL outbox repository.
func NewPostgresRepository(conn database.Connection) *PostgresRepository {
	return &PostgresRepository{conn: conn}
}

func (r *PostgresRepository) Save(ctx context.Context, msgs ...*Message) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	for _, msg := range msgs {
		_, err := exec.Exec(ctx, `
			INSERT INTO outbox (event_id, aggregate_type, aggregate_id, routing_key, payload, correlation_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (event_id) DO NOTHING`,
			msg.EventID, msg.AggregateType, msg.AggregateID, msg.RoutingKey,
			[]byte(msg.Payload), msg.CorrelationID, msg.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("save outbox message %s: %w", msg.EventID, err)
		}
	}
	return nil
}

// GetUnpublished locks the returned rows so several workers can drain the
// outbox without publishing a message twice.
func (r *PostgresRepository) GetUnpublished(ctx context.Context, limit int) ([]*Message, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, `
		SELECT id, event_id, aggregate_type, aggregate_id, routing_key, payload, correlation_id,
			created_at, next_retry_at, retry_count, last_error
		FROM outbox
		WHERE published_at IS NULL AND dead_lettered_at IS NULL
		  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		ORDER BY created_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var (
			msg     Message
			payload []byte
		)
		err := rows.Scan(&msg.ID, &msg.EventID, &msg.AggregateType, &msg.AggregateID, &msg.RoutingKey, &payload,
			&msg.CorrelationID, &msg.CreatedAt, &msg.NextRetryAt, &msg.RetryCount, &msg.LastError)
		if err != nil {
			return nil, err
		}
		msg.Payload = payload
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

func (r *PostgresRepository) MarkPublished(ctx context.Context, id int64) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, `UPDATE outbox SET published_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *PostgresRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, `
		UPDATE outbox SET retry_count = retry_count + 1, last_error = $2, next_retry_at = $3
		WHERE id = $1`, id, errMsg, nextRetryAt.UTC())
	return err
}

func (r *PostgresRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, `
		UPDATE outbox SET retry_count = retry_count + 1, dead_lettered_at = NOW(), dead_letter_reason = $2
		WHERE id = $1`, id, reason)
	return err
}

func (r *PostgresRepository) DeleteOld(ctx context.Context, olderThan time.Duration) (int64, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	result, err := exec.Exec(ctx, `DELETE FROM outbox WHERE published_at < $1`, time.Now().Add(-olderThan).UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
