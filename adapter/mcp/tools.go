// Package mcp exposes sync, availability and conflict operations as MCP
// tools, resources and prompts.
package mcp

import (
	"errors"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/rendezvous/adapter/cli"
)

// ToolDependencies provides handlers and context for MCP tools.
type ToolDependencies struct {
	App *cli.App
}

// RegisterCLITools registers MCP tools that mirror CLI functionality.
func RegisterCLITools(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return errors.New("server is required")
	}
	if deps.App == nil {
		return errors.New("app is required")
	}

	h := handlers{app: deps.App}
	registerCoreTools(srv, h)
	registerCalendarTools(srv, h)
	registerAvailabilityTools(srv, h)
	registerConflictTools(srv, h)
	return nil
}

// handlers holds the tool implementations so they can be called without a
// transport.
type handlers struct {
	app *cli.App
}

func registerCoreTools(srv *mcp.Server, h handlers) {
	srv.Tool("cli.health").
		Description("Check the store and configured backends").
		Handler(h.health)
}
