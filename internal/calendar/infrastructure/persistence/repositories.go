package persistence

import (
	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/database"
)

// Repositories bundles the calendar stores of one connection.
type Repositories struct {
	Events      domain.EventRepository
	Cursors     domain.SyncCursorRepository
	Conflicts   domain.ConflictRepository
	Connections domain.ConnectionRepository
}

// NewRepositories returns the implementations matching the connection's driver.
func NewRepositories(conn database.Connection) Repositories {
	if conn.Driver() == database.DriverPostgres {
		return Repositories{
			Events:      NewPostgresEventRepository(conn),
			Cursors:     NewPostgresSyncCursorRepository(conn),
			Conflicts:   NewPostgresConflictRepository(conn),
			Connections: NewPostgresConnectionRepository(conn),
		}
	}
	return Repositories{
		Events:      NewSQLiteEventRepository(conn),
		Cursors:     NewSQLiteSyncCursorRepository(conn),
		Conflicts:   NewSQLiteConflictRepository(conn),
		Connections: NewSQLiteConnectionRepository(conn),
	}
}
