package mcp

import (
	"github.com/felixgeelhaar/rendezvous/adapter/cli"
	"github.com/felixgeelhaar/rendezvous/internal/app"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/migrations"
	"github.com/google/uuid"
)

// NewCLIApp creates a CLI application instance backed by the provided container.
func NewCLIApp(container *app.Container, currentUser uuid.UUID) *cli.App {
	cliApp := &cli.App{
		SyncService:               container.Sync,
		ConnectionService:         container.Connections,
		ConflictResolver:          container.Conflicts,
		Providers:                 container.Providers,
		AvailabilityHandler:       container.Availability,
		MutualAvailabilityHandler: container.MutualAvailability,
		SuggestWindowsHandler:     container.SuggestWindows,
		PreferencesImporter:       container.Importer,
		Health:                    container.Health,
		AfterWrite:                container.FlushEvents,
		NotifySync:                container.NotifySync,
		AppliedMigrations: func() ([]string, error) {
			return migrations.Files(container.DB.Driver())
		},
	}
	cliApp.SetCurrentUserID(currentUser)
	return cliApp
}
