package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"
)

// RegisterResources registers read-only views of the current user's data.
func RegisterResources(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}
	if deps.App == nil {
		return fmt.Errorf("app is required")
	}
	h := handlers{app: deps.App}

	srv.Resource("rendezvous://providers").
		Name("Providers").
		Description("Calendar providers and their connection status").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			conns, err := h.providers(ctx, providersInput{})
			if err != nil {
				return nil, err
			}
			return jsonResource(uri, conns)
		})

	srv.Resource("rendezvous://conflicts").
		Name("Conflicts").
		Description("Unresolved overlaps between events of different providers").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			conflicts, err := h.conflicts(ctx, conflictsInput{})
			if err != nil {
				return nil, err
			}
			return jsonResource(uri, conflicts)
		})

	srv.Resource("rendezvous://availability/week").
		Name("This Week's Availability").
		Description("Free slots of the current user for the next 7 days").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			slots, err := h.availability(ctx, availabilityInput{})
			if err != nil {
				return nil, err
			}
			return jsonResource(uri, slots)
		})

	return nil
}

func jsonResource(uri string, v any) (*mcp.ResourceContent, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.ResourceContent{
		URI:      uri,
		MimeType: "application/json",
		Text:     string(data),
	}, nil
}
