package queries

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/availability/domain"
	calendarDomain "github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/google/uuid"
)

// ErrNoParticipants is returned when a mutual query names no users.
var ErrNoParticipants = errors.New("at least one user is required")

// ComputeMutualAvailabilityQuery asks for slots free for every user.
type ComputeMutualAvailabilityQuery struct {
	UserIDs []uuid.UUID
	Start   time.Time
	End     time.Time
	// Granularity overrides the common grid step in minutes; zero picks the
	// smallest step among the users.
	Granularity int
}

// ComputeMutualAvailabilityHandler handles the ComputeMutualAvailabilityQuery.
type ComputeMutualAvailabilityHandler struct {
	prefsRepo domain.PreferencesRepository
	eventRepo calendarDomain.EventRepository
	logger    *slog.Logger
}

// NewComputeMutualAvailabilityHandler creates a new ComputeMutualAvailabilityHandler.
func NewComputeMutualAvailabilityHandler(prefsRepo domain.PreferencesRepository, eventRepo calendarDomain.EventRepository, logger *slog.Logger) *ComputeMutualAvailabilityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ComputeMutualAvailabilityHandler{prefsRepo: prefsRepo, eventRepo: eventRepo, logger: logger}
}

// Handle executes the ComputeMutualAvailabilityQuery.
func (h *ComputeMutualAvailabilityHandler) Handle(ctx context.Context, query ComputeMutualAvailabilityQuery) ([]TimeSlotDTO, error) {
	if len(query.UserIDs) == 0 {
		return nil, ErrNoParticipants
	}
	if !query.End.After(query.Start) {
		return nil, ErrInvalidRange
	}

	participants := make([]domain.Participant, 0, len(query.UserIDs))
	seen := make(map[uuid.UUID]struct{}, len(query.UserIDs))
	for _, userID := range query.UserIDs {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}

		p, err := loadParticipant(ctx, h.prefsRepo, h.eventRepo, userID, query.Start, query.End)
		if err != nil {
			return nil, err
		}
		if p.Preferences == nil {
			h.logger.Info("user has no availability preferences, mutual availability is empty",
				"user_id", userID)
			return []TimeSlotDTO{}, nil
		}
		participants = append(participants, p)
	}

	granularity := query.Granularity
	if granularity <= 0 {
		common, mismatch := domain.CommonGranularity(participants)
		if mismatch {
			h.logger.Warn("participants use different slot granularities, using the smallest",
				"granularity_minutes", common,
				"participants", len(participants),
			)
		}
		granularity = common
	}

	return toDTOs(domain.ComputeMutualSlots(participants, query.Start, query.End, granularity)), nil
}
