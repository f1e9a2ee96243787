package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/rendezvous/internal/availability/domain"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// PostgresPreferencesRepository implements domain.PreferencesRepository using PostgreSQL.
type PostgresPreferencesRepository struct {
	conn database.Connection
}

// NewPostgresPreferencesRepository creates a new PostgreSQL preferences repository.
func NewPostgresPreferencesRepository(conn database.Connection) *PostgresPreferencesRepository {
	return &PostgresPreferencesRepository{conn: conn}
}

func (r *PostgresPreferencesRepository) Get(ctx context.Context, userID uuid.UUID) (*domain.AvailabilityPreferences, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	row := exec.QueryRow(ctx, `
		SELECT preferred_days, window_start_minutes, window_end_minutes, granularity_minutes,
		       min_slot_minutes, max_slot_minutes, time_zone, hide_event_details, updated_at
		FROM availability_preferences
		WHERE user_id = $1`, userID)

	var days []byte
	prefs := domain.AvailabilityPreferences{UserID: userID}
	err := row.Scan(
		&days,
		&prefs.DailyWindowStart,
		&prefs.DailyWindowEnd,
		&prefs.SlotGranularityMinutes,
		&prefs.MinSlotMinutes,
		&prefs.MaxSlotMinutes,
		&prefs.TimeZone,
		&prefs.HideEventDetails,
		&prefs.UpdatedAt,
	)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrSettingsNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(days, &prefs.PreferredWeekdays); err != nil {
		return nil, fmt.Errorf("invalid preferred days: %w", err)
	}
	prefs.UpdatedAt = prefs.UpdatedAt.UTC()
	return &prefs, nil
}

func (r *PostgresPreferencesRepository) Save(ctx context.Context, prefs domain.AvailabilityPreferences) error {
	days, err := json.Marshal(weekdays(prefs.PreferredWeekdays))
	if err != nil {
		return err
	}

	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err = exec.Exec(ctx, `
		INSERT INTO availability_preferences (
			user_id, preferred_days, window_start_minutes, window_end_minutes, granularity_minutes,
			min_slot_minutes, max_slot_minutes, time_zone, hide_event_details, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE SET
			preferred_days = EXCLUDED.preferred_days,
			window_start_minutes = EXCLUDED.window_start_minutes,
			window_end_minutes = EXCLUDED.window_end_minutes,
			granularity_minutes = EXCLUDED.granularity_minutes,
			min_slot_minutes = EXCLUDED.min_slot_minutes,
			max_slot_minutes = EXCLUDED.max_slot_minutes,
			time_zone = EXCLUDED.time_zone,
			hide_event_details = EXCLUDED.hide_event_details,
			updated_at = EXCLUDED.updated_at`,
		prefs.UserID,
		string(days),
		prefs.DailyWindowStart,
		prefs.DailyWindowEnd,
		prefs.SlotGranularityMinutes,
		prefs.MinSlotMinutes,
		prefs.MaxSlotMinutes,
		timeZone(prefs.TimeZone),
		prefs.HideEventDetails,
		updatedAt(prefs),
	)
	return err
}
