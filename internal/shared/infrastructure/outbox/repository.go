package outbox

import (
	"context"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/database"
)

// Repository persists outbox messages. Implementations join the transaction
// carried by ctx.
type Repository interface {
	// Save stores messages. An event already in the outbox is skipped.
	Save(ctx context.Context, msgs ...*Message) error

	// GetUnpublished returns pending messages that are due, oldest first.
	GetUnpublished(ctx context.Context, limit int) ([]*Message, error)

	// MarkPublished marks a message as successfully published.
	MarkPublished(ctx context.Context, id int64) error

	// MarkFailed records a publish failure and when to try again.
	MarkFailed(ctx context.Context, id int64, err string, nextRetryAt time.Time) error

	// MarkDead stops retrying a message.
	MarkDead(ctx context.Context, id int64, reason string) error

	// DeleteOld removes published messages older than the retention period.
	DeleteOld(ctx context.Context, olderThan time.Duration) (int64, error)
}

// NewRepository returns the repository for the connection's driver.
func NewRepository(conn database.Connection) Repository {
	if conn.Driver() == database.DriverPostgres {
		return NewPostgresRepository(conn)
	}
	return NewSQLiteRepository(conn)
}
