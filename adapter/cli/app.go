package cli

import (
	"context"
	"errors"

	availabilityQueries "github.com/felixgeelhaar/rendezvous/internal/availability/application/queries"
	"github.com/felixgeelhaar/rendezvous/internal/availability/infrastructure/importer"
	calendarApp "github.com/felixgeelhaar/rendezvous/internal/calendar/application"
	"github.com/felixgeelhaar/rendezvous/pkg/observability"
	"github.com/google/uuid"
)

// App holds the CLI application dependencies.
type App struct {
	// Calendar
	SyncService       *calendarApp.SyncService
	ConnectionService *calendarApp.ConnectionService
	ConflictResolver  *calendarApp.ConflictResolver
	Providers         *calendarApp.ProviderRegistry

	// Availability
	AvailabilityHandler       *availabilityQueries.ComputeAvailabilityHandler
	MutualAvailabilityHandler *availabilityQueries.ComputeMutualAvailabilityHandler
	SuggestWindowsHandler     *availabilityQueries.SuggestWindowsHandler
	PreferencesImporter       *importer.Importer

	Health *observability.HealthRegistry

	// AfterWrite runs after commands that publish events, e.g. to flush the outbox.
	AfterWrite func(ctx context.Context)
	// NotifySync asks running workers to sync a user.
	NotifySync func(ctx context.Context, userID uuid.UUID) error
	// AppliedMigrations lists the schema files of the open store.
	AppliedMigrations func() ([]string, error)

	// CurrentUserID is the user commands act for unless --user is given.
	CurrentUserID uuid.UUID
}

var app *App

// SetCurrentUserID sets the default user.
func (a *App) SetCurrentUserID(id uuid.UUID) {
	a.CurrentUserID = id
}

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}

// UserID returns the --user flag when set, else the configured user.
func (a *App) UserID() (uuid.UUID, error) {
	if userFlag == "" {
		return a.CurrentUserID, nil
	}
	return uuid.Parse(userFlag)
}

// Flush runs AfterWrite when set.
func (a *App) Flush(ctx context.Context) {
	if a.AfterWrite != nil {
		a.AfterWrite(ctx)
	}
}

// RequireApp returns the application or an error when the store could not be opened.
func RequireApp() (*App, error) {
	if app == nil {
		return nil, errors.New("application not initialized - database connection required")
	}
	return app, nil
}
