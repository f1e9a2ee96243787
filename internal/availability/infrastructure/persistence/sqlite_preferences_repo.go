package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/availability/domain"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLitePreferencesRepository implements domain.PreferencesRepository using SQLite.
type SQLitePreferencesRepository struct {
	conn database.Connection
}

// NewSQLitePreferencesRepository creates a new SQLite preferences repository.
func NewSQLitePreferencesRepository(conn database.Connection) *SQLitePreferencesRepository {
	return &SQLitePreferencesRepository{conn: conn}
}

func (r *SQLitePreferencesRepository) Get(ctx context.Context, userID uuid.UUID) (*domain.AvailabilityPreferences, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	row := exec.QueryRow(ctx, `
		SELECT preferred_days, window_start_minutes, window_end_minutes, granularity_minutes,
		       min_slot_minutes, max_slot_minutes, time_zone, hide_event_details, updated_at
		FROM availability_preferences
		WHERE user_id = ?`, userID.String())

	var (
		days, updatedAt string
		hide            int
	)
	prefs := domain.AvailabilityPreferences{UserID: userID}
	err := row.Scan(
		&days,
		&prefs.DailyWindowStart,
		&prefs.DailyWindowEnd,
		&prefs.SlotGranularityMinutes,
		&prefs.MinSlotMinutes,
		&prefs.MaxSlotMinutes,
		&prefs.TimeZone,
		&hide,
		&updatedAt,
	)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrSettingsNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal([]byte(days), &prefs.PreferredWeekdays); err != nil {
		return nil, fmt.Errorf("invalid preferred days: %w", err)
	}
	if prefs.UpdatedAt, err = time.Parse(sqliteTimeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("invalid stored time %q: %w", updatedAt, err)
	}
	prefs.HideEventDetails = hide == 1
	return &prefs, nil
}

func (r *SQLitePreferencesRepository) Save(ctx context.Context, prefs domain.AvailabilityPreferences) error {
	days, err := json.Marshal(weekdays(prefs.PreferredWeekdays))
	if err != nil {
		return err
	}
	hide := 0
	if prefs.HideEventDetails {
		hide = 1
	}

	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err = exec.Exec(ctx, `
		INSERT INTO availability_preferences (
			user_id, preferred_days, window_start_minutes, window_end_minutes, granularity_minutes,
			min_slot_minutes, max_slot_minutes, time_zone, hide_event_details, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			preferred_days = excluded.preferred_days,
			window_start_minutes = excluded.window_start_minutes,
			window_end_minutes = excluded.window_end_minutes,
			granularity_minutes = excluded.granularity_minutes,
			min_slot_minutes = excluded.min_slot_minutes,
			max_slot_minutes = excluded.max_slot_minutes,
			time_zone = excluded.time_zone,
			hide_event_details = excluded.hide_event_details,
			updated_at = excluded.updated_at`,
		prefs.UserID.String(),
		string(days),
		prefs.DailyWindowStart,
		prefs.DailyWindowEnd,
		prefs.SlotGranularityMinutes,
		prefs.MinSlotMinutes,
		prefs.MaxSlotMinutes,
		timeZone(prefs.TimeZone),
		hide,
		updatedAt(prefs).Format(sqliteTimeLayout),
	)
	return err
}

func weekdays(days []int) []int {
	if days == nil {
		return []int{}
	}
	return days
}

func timeZone(tz string) string {
	if tz == "" {
		return "UTC"
	}
	return tz
}

func updatedAt(prefs domain.AvailabilityPreferences) time.Time {
	if prefs.UpdatedAt.IsZero() {
		return time.Now().UTC()
	}
	return prefs.UpdatedAt.UTC()
}
