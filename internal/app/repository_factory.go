package app

import (
	availabilityDomain "github.com/felixgeelhaar/rendezvous/internal/availability/domain"
	availabilityPersistence "github.com/felixgeelhaar/rendezvous/internal/availability/infrastructure/persistence"
	calendarPersistence "github.com/felixgeelhaar/rendezvous/internal/calendar/infrastructure/persistence"
	identityDomain "github.com/felixgeelhaar/rendezvous/internal/identity/domain"
	identityPersistence "github.com/felixgeelhaar/rendezvous/internal/identity/infrastructure/persistence"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/outbox"
)

// RepositoryFactory creates repositories based on the database driver.
type RepositoryFactory struct {
	conn   database.Connection
	driver database.Driver
}

// NewRepositoryFactory creates a new repository factory.
func NewRepositoryFactory(conn database.Connection) *RepositoryFactory {
	return &RepositoryFactory{
		conn:   conn,
		driver: conn.Driver(),
	}
}

// Driver returns the driver the repositories are built for.
func (f *RepositoryFactory) Driver() database.Driver {
	return f.driver
}

// Calendar returns the event, cursor, conflict and connection stores.
func (f *RepositoryFactory) Calendar() calendarPersistence.Repositories {
	return calendarPersistence.NewRepositories(f.conn)
}

// Preferences returns the availability preferences store.
func (f *RepositoryFactory) Preferences() availabilityDomain.PreferencesRepository {
	return availabilityPersistence.NewPreferencesRepository(f.conn)
}

// Tokens returns the encrypted credential store.
func (f *RepositoryFactory) Tokens() identityDomain.TokenRepository {
	return identityPersistence.NewTokenRepository(f.conn)
}

// Outbox returns the transactional outbox.
func (f *RepositoryFactory) Outbox() outbox.Repository {
	return outbox.NewRepository(f.conn)
}

// UnitOfWork returns a unit of work over the connection.
func (f *RepositoryFactory) UnitOfWork() *database.UnitOfWork {
	return database.NewUnitOfWork(f.conn)
}
