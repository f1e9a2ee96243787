// Package persistence stores availability preferences on SQLite and PostgreSQL.
package persistence

import (
	"github.com/felixgeelhaar/rendezvous/internal/availability/domain"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/database"
)

// NewPreferencesRepository returns the store matching the connection's driver.
func NewPreferencesRepository(conn database.Connection) domain.PreferencesRepository {
	if conn.Driver() == database.DriverPostgres {
		return NewPostgresPreferencesRepository(conn)
	}
	return NewSQLitePreferencesRepository(conn)
}
