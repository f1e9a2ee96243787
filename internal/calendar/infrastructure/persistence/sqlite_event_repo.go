package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

const eventColumns = `id, user_id, provider, provider_event_id, calendar_id, title, description, location,
	start_time, end_time, is_all_day, timezone, availability, status, recurring, last_synced_at`

// SQLiteEventRepository implements domain.EventRepository using SQLite.
type SQLiteEventRepository struct {
	conn database.Connection
}

// NewSQLiteEventRepository creates a new SQLite event repository.
func NewSQLiteEventRepository(conn database.Connection) *SQLiteEventRepository {
	return &SQLiteEventRepository{conn: conn}
}

func (r *SQLiteEventRepository) ListEvents(ctx context.Context, userID uuid.UUID, provider domain.ProviderType, start, end time.Time) ([]domain.Event, error) {
	query := `SELECT ` + eventColumns + `
		FROM calendar_events
		WHERE user_id = ? AND provider = ? AND start_time >= ? AND start_time < ?
		ORDER BY start_time, provider_event_id`
	return r.query(ctx, query, userID.String(), provider.String(), formatTime(start), formatTime(end))
}

func (r *SQLiteEventRepository) GetEvent(ctx context.Context, eventID uuid.UUID) (*domain.Event, error) {
	events, err := r.query(ctx, `SELECT `+eventColumns+` FROM calendar_events WHERE id = ?`, eventID.String())
	if err != nil || len(events) == 0 {
		return nil, err
	}
	return &events[0], nil
}

func (r *SQLiteEventRepository) ListUserEvents(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]domain.Event, error) {
	query := `SELECT ` + eventColumns + `
		FROM calendar_events
		WHERE user_id = ? AND start_time < ? AND end_time > ?
		ORDER BY start_time, provider_event_id`
	return r.query(ctx, query, userID.String(), formatTime(end), formatTime(start))
}

func (r *SQLiteEventRepository) Upsert(ctx context.Context, e domain.Event) error {
	query := `
		INSERT INTO calendar_events (` + eventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, provider, provider_event_id) DO UPDATE SET
			calendar_id = excluded.calendar_id,
			title = excluded.title,
			description = excluded.description,
			location = excluded.location,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			is_all_day = excluded.is_all_day,
			timezone = excluded.timezone,
			availability = excluded.availability,
			status = excluded.status,
			recurring = excluded.recurring,
			last_synced_at = excluded.last_synced_at`

	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, query,
		e.ID.String(),
		e.UserID.String(),
		e.Provider.String(),
		e.ProviderEventID,
		e.CalendarID,
		e.Title,
		e.Description,
		e.Location,
		formatTime(e.Start),
		formatTime(e.End),
		boolToInt(e.IsAllDay),
		e.Timezone,
		string(e.Availability),
		string(e.Status),
		boolToInt(e.Recurring),
		formatTime(e.LastSyncedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert event %s: %w", e.ProviderEventID, err)
	}
	return nil
}

func (r *SQLiteEventRepository) Delete(ctx context.Context, eventID uuid.UUID) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, `DELETE FROM calendar_events WHERE id = ?`, eventID.String())
	return err
}

func (r *SQLiteEventRepository) DeleteByProvider(ctx context.Context, userID uuid.UUID, provider domain.ProviderType) (int, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	result, err := exec.Exec(ctx, `DELETE FROM calendar_events WHERE user_id = ? AND provider = ?`,
		userID.String(), provider.String())
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *SQLiteEventRepository) query(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		e, err := scanSQLiteEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func scanSQLiteEvent(row scanner) (domain.Event, error) {
	var (
		id, userID, provider     string
		start, end, lastSyncedAt string
		availability, status     string
		isAllDay, recurring      int
		e                        domain.Event
	)
	err := row.Scan(
		&id, &userID, &provider, &e.ProviderEventID, &e.CalendarID,
		&e.Title, &e.Description, &e.Location,
		&start, &end, &isAllDay, &e.Timezone, &availability, &status, &recurring, &lastSyncedAt,
	)
	if err != nil {
		return domain.Event{}, err
	}

	if e.ID, err = parseUUID(id); err != nil {
		return domain.Event{}, err
	}
	if e.UserID, err = parseUUID(userID); err != nil {
		return domain.Event{}, err
	}
	if e.Start, err = parseTime(start); err != nil {
		return domain.Event{}, err
	}
	if e.End, err = parseTime(end); err != nil {
		return domain.Event{}, err
	}
	if e.LastSyncedAt, err = parseTime(lastSyncedAt); err != nil {
		return domain.Event{}, err
	}
	e.Provider = domain.ProviderType(provider)
	e.Availability = domain.ParseAvailability(availability)
	e.Status = domain.ParseEventStatus(status)
	e.IsAllDay = isAllDay == 1
	e.Recurring = recurring == 1
	return e, nil
}
