package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// PostgresEventRepository implements domain.EventRepository using PostgreSQL.
type PostgresEventRepository struct {
	conn database.Connection
}

// NewPostgresEventRepository creates a new PostgreSQL event repository.
func NewPostgresEventRepository(conn database.Connection) *PostgresEventRepository {
	return &PostgresEventRepository{conn: conn}
}

func (r *PostgresEventRepository) ListEvents(ctx context.Context, userID uuid.UUID, provider domain.ProviderType, start, end time.Time) ([]domain.Event, error) {
	query := `SELECT ` + eventColumns + `
		FROM calendar_events
		WHERE user_id = $1 AND provider = $2 AND start_time >= $3 AND start_time < $4
		ORDER BY start_time, provider_event_id`
	return r.query(ctx, query, userID, provider.String(), start.UTC(), end.UTC())
}

func (r *PostgresEventRepository) GetEvent(ctx context.Context, eventID uuid.UUID) (*domain.Event, error) {
	events, err := r.query(ctx, `SELECT `+eventColumns+` FROM calendar_events WHERE id = $1`, eventID)
	if err != nil || len(events) == 0 {
		return nil, err
	}
	return &events[0], nil
}

func (r *PostgresEventRepository) ListUserEvents(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]domain.Event, error) {
	query := `SELECT ` + eventColumns + `
		FROM calendar_events
		WHERE user_id = $1 AND start_time < $2 AND end_time > $3
		ORDER BY start_time, provider_event_id`
	return r.query(ctx, query, userID, end.UTC(), start.UTC())
}

func (r *PostgresEventRepository) Upsert(ctx context.Context, e domain.Event) error {
	query := `
		INSERT INTO calendar_events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (user_id, provider, provider_event_id) DO UPDATE SET
			calendar_id = EXCLUDED.calendar_id,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			location = EXCLUDED.location,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			is_all_day = EXCLUDED.is_all_day,
			timezone = EXCLUDED.timezone,
			availability = EXCLUDED.availability,
			status = EXCLUDED.status,
			recurring = EXCLUDED.recurring,
			last_synced_at = EXCLUDED.last_synced_at`

	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, query,
		e.ID, e.UserID, e.Provider.String(), e.ProviderEventID, e.CalendarID,
		e.Title, e.Description, e.Location,
		e.Start.UTC(), e.End.UTC(), e.IsAllDay, e.Timezone,
		string(e.Availability), string(e.Status), e.Recurring, e.LastSyncedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert event %s: %w", e.ProviderEventID, err)
	}
	return nil
}

func (r *PostgresEventRepository) Delete(ctx context.Context, eventID uuid.UUID) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, `DELETE FROM calendar_events WHERE id = $1`, eventID)
	return err
}

func (r *PostgresEventRepository) DeleteByProvider(ctx context.Context, userID uuid.UUID, provider domain.ProviderType) (int, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	result, err := exec.Exec(ctx, `DELETE FROM calendar_events WHERE user_id = $1 AND provider = $2`,
		userID, provider.String())
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

func (r *PostgresEventRepository) query(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			e                    domain.Event
			provider             string
			availability, status string
		)
		err := rows.Scan(
			&e.ID, &e.UserID, &provider, &e.ProviderEventID, &e.CalendarID,
			&e.Title, &e.Description, &e.Location,
			&e.Start, &e.End, &e.IsAllDay, &e.Timezone, &availability, &status, &e.Recurring, &e.LastSyncedAt,
		)
		if err != nil {
			return nil, err
		}
		e.Provider = domain.ProviderType(provider)
		e.Availability = domain.ParseAvailability(availability)
		e.Status = domain.ParseEventStatus(status)
		e.Start, e.End, e.LastSyncedAt = e.Start.UTC(), e.End.UTC(), e.LastSyncedAt.UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}
