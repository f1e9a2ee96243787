package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/mcp-go"
	calendarApp "github.com/felixgeelhaar/rendezvous/internal/calendar/application"
	calendarDomain "github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
)

// ProviderSyncDTO is the per-provider part of a sync result.
type ProviderSyncDTO struct {
	Provider string `json:"provider"`
	Created  int    `json:"created"`
	Updated  int    `json:"updated"`
	Deleted  int    `json:"deleted"`
	Skipped  int    `json:"skipped,omitempty"`
	Error    string `json:"error,omitempty"`
	Kind     string `json:"error_kind,omitempty"`
}

// SyncResultDTO summarizes a sync run.
type SyncResultDTO struct {
	UserID       string            `json:"user_id"`
	WindowStart  string            `json:"window_start,omitempty"`
	WindowEnd    string            `json:"window_end,omitempty"`
	FullWindow   bool              `json:"full_window"`
	Providers    []ProviderSyncDTO `json:"providers"`
	NewConflicts int               `json:"new_conflicts"`
}

// ConnectionDTO describes one provider connection.
type ConnectionDTO struct {
	Provider  string   `json:"provider"`
	Name      string   `json:"name"`
	Status    string   `json:"status"`
	Calendars []string `json:"calendars,omitempty"`
	Source    string   `json:"source,omitempty"`
}

type syncInput struct {
	UserID string `json:"user_id,omitempty"`
	// Notify hands the sync to running workers instead of syncing inline.
	Notify bool `json:"notify,omitempty"`
}

type providersInput struct {
	UserID string `json:"user_id,omitempty"`
}

func registerCalendarTools(srv *mcp.Server, h handlers) {
	srv.Tool("calendar.sync").
		Description("Fetch every connected calendar, reconcile the local store and detect conflicts. A failing provider does not stop the others.").
		Handler(h.sync)

	srv.Tool("providers.list").
		Description("List the supported calendar providers and their connection status.").
		Handler(h.providers)
}

func (h handlers) sync(ctx context.Context, input syncInput) (SyncResultDTO, error) {
	if h.app.SyncService == nil {
		return SyncResultDTO{}, errors.New("calendar sync not configured")
	}
	userID, err := h.userOrDefault(input.UserID)
	if err != nil {
		return SyncResultDTO{}, err
	}

	if input.Notify {
		if h.app.NotifySync == nil {
			return SyncResultDTO{}, errors.New("sync notifications are not available")
		}
		if err := h.app.NotifySync(ctx, userID); err != nil {
			return SyncResultDTO{}, err
		}
		return SyncResultDTO{UserID: userID.String(), Providers: []ProviderSyncDTO{}}, nil
	}

	report, err := h.app.SyncService.SyncUser(ctx, userID)
	h.app.Flush(ctx)
	if err != nil {
		return SyncResultDTO{}, err
	}
	return toSyncResultDTO(report), nil
}

func toSyncResultDTO(report *calendarApp.SyncReport) SyncResultDTO {
	dto := SyncResultDTO{
		UserID:     report.UserID.String(),
		FullWindow: report.FullWindow,
		Providers:  make([]ProviderSyncDTO, 0, len(report.Providers)),
	}
	if !report.Window.Start.IsZero() {
		dto.WindowStart = report.Window.Start.Format(time.RFC3339)
		dto.WindowEnd = report.Window.End.Format(time.RFC3339)
	}
	for _, p := range report.Providers {
		out := ProviderSyncDTO{
			Provider: string(p.Provider),
			Created:  p.Result.Created,
			Updated:  p.Result.Updated,
			Deleted:  p.Result.Deleted,
			Skipped:  p.Skipped,
		}
		if p.Err != nil {
			out.Error = p.Err.Error()
			out.Kind = calendarDomain.KindName(p.Err)
		}
		dto.Providers = append(dto.Providers, out)
	}
	if report.Conflicts != nil {
		dto.NewConflicts = report.Conflicts.New
	}
	return dto
}

func (h handlers) providers(ctx context.Context, input providersInput) ([]ConnectionDTO, error) {
	if h.app.ConnectionService == nil {
		return nil, errors.New("provider connections not configured")
	}
	userID, err := h.userOrDefault(input.UserID)
	if err != nil {
		return nil, err
	}
	conns, err := h.app.ConnectionService.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	supported := calendarDomain.AllProviderTypes()
	if h.app.Providers != nil {
		supported = h.app.Providers.SupportedProviders()
	}

	dtos := make([]ConnectionDTO, 0, len(supported))
	for _, p := range supported {
		dto := ConnectionDTO{Provider: string(p), Name: p.DisplayName(), Status: "not_connected"}
		if conn, ok := conns[p]; ok {
			dto.Status = "connected"
			if !conn.Enabled {
				dto.Status = "paused"
			}
			dto.Calendars = conn.Calendars()
			dto.Source = conn.SourceURL
		}
		dtos = append(dtos, dto)
	}
	return dtos, nil
}
