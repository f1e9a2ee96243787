// Package queries answers availability questions from stored events and preferences.
package queries

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/availability/domain"
	calendarDomain "github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/google/uuid"
)

// ErrInvalidRange is returned when the requested range is empty.
var ErrInvalidRange = errors.New("range end must be after start")

// TimeSlotDTO is a free slot as returned to callers.
type TimeSlotDTO struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	DurationMin int       `json:"duration_minutes"`
}

func toDTOs(slots []domain.TimeSlot) []TimeSlotDTO {
	dtos := make([]TimeSlotDTO, len(slots))
	for i, s := range slots {
		dtos[i] = TimeSlotDTO{Start: s.Start, End: s.End, DurationMin: s.Minutes()}
	}
	return dtos
}

// ComputeAvailabilityQuery asks for a user's free slots in [Start, End).
type ComputeAvailabilityQuery struct {
	UserID uuid.UUID
	Start  time.Time
	End    time.Time
}

// ComputeAvailabilityHandler handles the ComputeAvailabilityQuery.
type ComputeAvailabilityHandler struct {
	prefsRepo domain.PreferencesRepository
	eventRepo calendarDomain.EventRepository
	logger    *slog.Logger
}

// NewComputeAvailabilityHandler creates a new ComputeAvailabilityHandler.
func NewComputeAvailabilityHandler(prefsRepo domain.PreferencesRepository, eventRepo calendarDomain.EventRepository, logger *slog.Logger) *ComputeAvailabilityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ComputeAvailabilityHandler{prefsRepo: prefsRepo, eventRepo: eventRepo, logger: logger}
}

// Handle executes the ComputeAvailabilityQuery. A user without preferences
// has no availability; that is not an error.
func (h *ComputeAvailabilityHandler) Handle(ctx context.Context, query ComputeAvailabilityQuery) ([]TimeSlotDTO, error) {
	slots, err := h.Slots(ctx, query.UserID, query.Start, query.End)
	if err != nil {
		return nil, err
	}
	return toDTOs(slots), nil
}

// Slots returns the domain slots behind Handle.
func (h *ComputeAvailabilityHandler) Slots(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]domain.TimeSlot, error) {
	if !end.After(start) {
		return nil, ErrInvalidRange
	}
	participant, err := loadParticipant(ctx, h.prefsRepo, h.eventRepo, userID, start, end)
	if err != nil {
		return nil, err
	}
	if participant.Preferences == nil {
		h.logger.Debug("no availability preferences", "user_id", userID)
		return []domain.TimeSlot{}, nil
	}
	return domain.ComputeSlots(*participant.Preferences, participant.Busy, start, end), nil
}

func loadParticipant(ctx context.Context, prefsRepo domain.PreferencesRepository, eventRepo calendarDomain.EventRepository, userID uuid.UUID, start, end time.Time) (domain.Participant, error) {
	prefs, err := prefsRepo.Get(ctx, userID)
	if errors.Is(err, domain.ErrSettingsNotFound) {
		return domain.Participant{}, nil
	}
	if err != nil {
		return domain.Participant{}, fmt.Errorf("load preferences: %w", err)
	}

	events, err := eventRepo.ListUserEvents(ctx, userID, start, end)
	if err != nil {
		return domain.Participant{}, fmt.Errorf("load events: %w", err)
	}
	return domain.Participant{
		Preferences: prefs,
		Busy:        calendarDomain.BusyPeriods(events),
	}, nil
}
