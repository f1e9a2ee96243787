// Package database hides the PostgreSQL and SQLite stores behind one small
// query interface so the calendar and availability repositories are written
// once per driver dialect, not once per transaction mode.
package database

import (
	"context"
	"strings"
)

// Driver names a store backend.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

func (d Driver) String() string { return string(d) }

var sqliteSuffixes = []string{".db", ".sqlite", ".sqlite3"}

// DetectDriver picks the backend for a DATABASE_URL. An empty URL selects the
// local SQLite file; anything that is not recognisably SQLite is PostgreSQL.
func DetectDriver(url string) Driver {
	switch {
	case url == "":
		return DriverSQLite
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DriverPostgres
	case strings.HasPrefix(url, "sqlite://"), strings.HasPrefix(url, "file:"):
		return DriverSQLite
	}
	for _, suffix := range sqliteSuffixes {
		if strings.HasSuffix(url, suffix) {
			return DriverSQLite
		}
	}
	return DriverPostgres
}

// Row is satisfied by *sql.Row and pgx.Row.
type Row interface {
	Scan(dest ...any) error
}

// Rows is satisfied by *sql.Rows; pgx rows are adapted by the postgres package.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// Result reports how many rows a write touched.
type Result interface {
	RowsAffected() (int64, error)
}

// Executor runs statements against a connection or an open transaction.
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) (Result, error)
	QueryRow(ctx context.Context, query string, args ...any) Row
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}

// Transaction is an Executor that must be finished exactly once.
type Transaction interface {
	Executor
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Connection is an open store.
type Connection interface {
	Executor
	BeginTx(ctx context.Context) (Transaction, error)
	Ping(ctx context.Context) error
	Close() error
	Driver() Driver
}
