package queries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/availability/domain"
	"github.com/google/uuid"
)

// SuggestWindowsQuery asks for meeting windows built from a user's free slots.
type SuggestWindowsQuery struct {
	UserID uuid.UUID
	Start  time.Time
	End    time.Time
}

// SuggestWindowsHandler handles the SuggestWindowsQuery.
type SuggestWindowsHandler struct {
	prefsRepo    domain.PreferencesRepository
	availability *ComputeAvailabilityHandler
}

// NewSuggestWindowsHandler creates a new SuggestWindowsHandler.
func NewSuggestWindowsHandler(prefsRepo domain.PreferencesRepository, availability *ComputeAvailabilityHandler) *SuggestWindowsHandler {
	return &SuggestWindowsHandler{prefsRepo: prefsRepo, availability: availability}
}

// Handle executes the SuggestWindowsQuery.
func (h *SuggestWindowsHandler) Handle(ctx context.Context, query SuggestWindowsQuery) ([]TimeSlotDTO, error) {
	prefs, err := h.prefsRepo.Get(ctx, query.UserID)
	if errors.Is(err, domain.ErrSettingsNotFound) {
		return []TimeSlotDTO{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}

	slots, err := h.availability.Slots(ctx, query.UserID, query.Start, query.End)
	if err != nil {
		return nil, err
	}
	return toDTOs(domain.SuggestWindows(slots, *prefs)), nil
}
