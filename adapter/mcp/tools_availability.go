package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/mcp-go"
	availabilityQueries "github.com/felixgeelhaar/rendezvous/internal/availability/application/queries"
	"github.com/google/uuid"
)

// SlotDTO is a free slot.
type SlotDTO struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	DurationMin int    `json:"duration_minutes"`
}

type availabilityInput struct {
	UserID    string `json:"user_id,omitempty"`
	StartDate string `json:"start_date,omitempty"` // YYYY-MM-DD
	Days      int    `json:"days,omitempty"`       // default 7
	// Suggest keeps only windows long enough for a meeting.
	Suggest bool `json:"suggest,omitempty"`
}

type mutualAvailabilityInput struct {
	UserIDs     []string `json:"user_ids" jsonschema:"required"`
	StartDate   string   `json:"start_date,omitempty"`
	Days        int      `json:"days,omitempty"`
	Granularity int      `json:"granularity_minutes,omitempty"`
}

func registerAvailabilityTools(srv *mcp.Server, h handlers) {
	srv.Tool("availability.compute").
		Description("Compute the free slots of a user from stored events and availability preferences. Run calendar.sync first to refresh events.").
		Handler(h.availability)

	srv.Tool("availability.mutual").
		Description("Compute the slots in which every given user is free.").
		Handler(h.mutualAvailability)
}

func (h handlers) availability(ctx context.Context, input availabilityInput) (map[string]any, error) {
	if h.app.AvailabilityHandler == nil {
		return nil, errors.New("availability not configured")
	}
	userID, err := h.userOrDefault(input.UserID)
	if err != nil {
		return nil, err
	}
	start, end, err := dateRange(input.StartDate, input.Days)
	if err != nil {
		return nil, err
	}

	var slots []availabilityQueries.TimeSlotDTO
	if input.Suggest && h.app.SuggestWindowsHandler != nil {
		slots, err = h.app.SuggestWindowsHandler.Handle(ctx, availabilityQueries.SuggestWindowsQuery{
			UserID: userID, Start: start, End: end,
		})
	} else {
		slots, err = h.app.AvailabilityHandler.Handle(ctx, availabilityQueries.ComputeAvailabilityQuery{
			UserID: userID, Start: start, End: end,
		})
	}
	if err != nil {
		return nil, err
	}
	return slotsResult(slots, start, end), nil
}

func (h handlers) mutualAvailability(ctx context.Context, input mutualAvailabilityInput) (map[string]any, error) {
	if h.app.MutualAvailabilityHandler == nil {
		return nil, errors.New("availability not configured")
	}
	if len(input.UserIDs) == 0 {
		return nil, errors.New("user_ids is required")
	}
	userIDs := make([]uuid.UUID, 0, len(input.UserIDs))
	for _, raw := range input.UserIDs {
		id, err := parseUUID(raw)
		if err != nil {
			return nil, err
		}
		userIDs = append(userIDs, id)
	}
	start, end, err := dateRange(input.StartDate, input.Days)
	if err != nil {
		return nil, err
	}

	slots, err := h.app.MutualAvailabilityHandler.Handle(ctx, availabilityQueries.ComputeMutualAvailabilityQuery{
		UserIDs:     userIDs,
		Start:       start,
		End:         end,
		Granularity: input.Granularity,
	})
	if err != nil {
		return nil, err
	}
	return slotsResult(slots, start, end), nil
}

func slotsResult(slots []availabilityQueries.TimeSlotDTO, start, end time.Time) map[string]any {
	dtos := make([]SlotDTO, 0, len(slots))
	for _, s := range slots {
		dtos = append(dtos, SlotDTO{
			Start:       s.Start.Format(time.RFC3339),
			End:         s.End.Format(time.RFC3339),
			DurationMin: s.DurationMin,
		})
	}
	return map[string]any{
		"slots":      dtos,
		"count":      len(dtos),
		"start_date": start.Format(dateLayout),
		"end_date":   end.Format(dateLayout),
	}
}
