package database

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsNoRows(t *testing.T) {
	assert.True(t, IsNoRows(sql.ErrNoRows))
	assert.True(t, IsNoRows(pgx.ErrNoRows))
	assert.True(t, IsNoRows(fmt.Errorf("find: %w", ErrNoRows)))
	assert.False(t, IsNoRows(nil))
	assert.False(t, IsNoRows(errors.New("boom")))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: outbox.event_id (2067)")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestConfig_ResolvedDriver(t *testing.T) {
	assert.Equal(t, DriverSQLite, Config{}.ResolvedDriver())
	assert.Equal(t, DriverPostgres, Config{Driver: "auto", URL: "postgres://localhost/rendezvous"}.ResolvedDriver())
	assert.Equal(t, DriverSQLite, Config{Driver: DriverSQLite, URL: "postgres://ignored"}.ResolvedDriver())
}
