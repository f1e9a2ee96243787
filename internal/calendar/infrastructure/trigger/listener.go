// Package trigger turns Postgres notifications into on-demand syncs.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/database"
)

// DefaultChannel is the NOTIFY channel carrying user IDs to sync.
const DefaultChannel = "calendar_sync_requests"

const (
	minReconnect = 2 * time.Second
	maxReconnect = time.Minute
	pingInterval = 90 * time.Second
)

// Triggerer queues a sync for a user.
type Triggerer interface {
	Trigger(userID uuid.UUID) bool
}

// Listener receives NOTIFY payloads and hands the user IDs to a Triggerer.
type Listener struct {
	dsn     string
	channel string
	target  Triggerer
	logger  *slog.Logger
}

// NewListener creates a listener on channel (DefaultChannel when empty).
func NewListener(dsn, channel string, target Triggerer, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	if channel == "" {
		channel = DefaultChannel
	}
	return &Listener{dsn: dsn, channel: channel, target: target, logger: logger}
}

// Run listens until ctx is done. pq reconnects on its own; after a
// reconnect notifications may have been lost, which the cron cycle covers.
func (l *Listener) Run(ctx context.Context) error {
	listener := pq.NewListener(l.dsn, minReconnect, maxReconnect, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
			l.logger.Warn("sync trigger connection problem", "channel", l.channel, "error", err)
		case pq.ListenerEventReconnected:
			l.logger.Info("sync trigger reconnected", "channel", l.channel)
		}
	})
	defer listener.Close()

	if err := listener.Listen(l.channel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.channel, err)
	}
	l.logger.Info("sync trigger listening", "channel", l.channel)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			if n == nil {
				continue
			}
			l.dispatch(n.Extra)
		case <-ticker.C:
			if err := listener.Ping(); err != nil {
				l.logger.Warn("sync trigger ping failed", "error", err)
			}
		}
	}
}

func (l *Listener) dispatch(payload string) {
	userID, err := ParsePayload(payload)
	if err != nil {
		l.logger.Warn("ignoring sync request", "payload", payload, "error", err)
		return
	}
	if l.target.Trigger(userID) {
		l.logger.Debug("sync requested", "user_id", userID)
	}
}

// ParsePayload reads the user ID carried by a notification.
func ParsePayload(payload string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(payload))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user id: %w", err)
	}
	return id, nil
}

// Notify asks listening workers to sync userID. It is a no-op outside Postgres.
func Notify(ctx context.Context, conn database.Connection, channel string, userID uuid.UUID) error {
	if conn.Driver() != database.DriverPostgres {
		return nil
	}
	if channel == "" {
		channel = DefaultChannel
	}
	exec := database.ExecutorFromContext(ctx, conn)
	if _, err := exec.Exec(ctx, "SELECT pg_notify($1, $2)", channel, userID.String()); err != nil {
		return fmt.Errorf("failed to notify %s: %w", channel, err)
	}
	return nil
}
