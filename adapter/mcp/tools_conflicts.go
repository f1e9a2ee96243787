package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/mcp-go"
)

// ConflictDTO is an unresolved overlap between two events.
type ConflictDTO struct {
	ID         string `json:"id"`
	EventA     string `json:"event_a"`
	EventB     string `json:"event_b"`
	DetectedAt string `json:"detected_at"`
}

type conflictsInput struct {
	UserID string `json:"user_id,omitempty"`
}

type resolveConflictInput struct {
	ID     string `json:"id" jsonschema:"required"`
	UserID string `json:"user_id,omitempty"`
}

func registerConflictTools(srv *mcp.Server, h handlers) {
	srv.Tool("conflicts.list").
		Description("List unresolved overlaps between events of different providers. Providers are never modified.").
		Handler(h.conflicts)

	srv.Tool("conflicts.resolve").
		Description("Mark a conflict as resolved.").
		Handler(h.resolveConflict)
}

func (h handlers) conflicts(ctx context.Context, input conflictsInput) ([]ConflictDTO, error) {
	if h.app.ConflictResolver == nil {
		return nil, errors.New("conflict tracking not configured")
	}
	userID, err := h.userOrDefault(input.UserID)
	if err != nil {
		return nil, err
	}
	records, err := h.app.ConflictResolver.ListUnresolved(ctx, userID)
	if err != nil {
		return nil, err
	}
	dtos := make([]ConflictDTO, 0, len(records))
	for _, r := range records {
		dtos = append(dtos, ConflictDTO{
			ID:         r.ID.String(),
			EventA:     r.EventIDA.String(),
			EventB:     r.EventIDB.String(),
			DetectedAt: r.DetectedAt.Format(time.RFC3339),
		})
	}
	return dtos, nil
}

func (h handlers) resolveConflict(ctx context.Context, input resolveConflictInput) (map[string]string, error) {
	if h.app.ConflictResolver == nil {
		return nil, errors.New("conflict tracking not configured")
	}
	id, err := parseUUID(input.ID)
	if err != nil {
		return nil, err
	}
	userID, err := h.userOrDefault(input.UserID)
	if err != nil {
		return nil, err
	}
	if err := h.app.ConflictResolver.Resolve(ctx, userID, id); err != nil {
		return nil, err
	}
	h.app.Flush(ctx)
	return map[string]string{"id": id.String(), "status": "resolved"}, nil
}
