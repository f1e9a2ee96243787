// Package mcp adds the "mcp serve" command to the rendezvous CLI.
package mcp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/felixgeelhaar/rendezvous/adapter/cli"
	mcpinternal "github.com/felixgeelhaar/rendezvous/internal/mcp"
	"github.com/felixgeelhaar/rendezvous/pkg/config"
	"github.com/spf13/cobra"
)

var serveAddr string

// Cmd groups the MCP subcommands.
var Cmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose sync, availability and conflicts to MCP clients",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start an HTTP MCP server exposing sync, availability and conflict tools.

Requests must carry MCP_AUTH_TOKEN as a bearer token unless APP_ENV is
development.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.MCPAddr = serveAddr
		}

		err = mcpinternal.Serve(cmd.Context(), cfg, app, slog.Default())
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	Cmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: MCP_ADDR)")
}
