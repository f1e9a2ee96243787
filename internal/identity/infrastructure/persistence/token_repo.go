// Package persistence stores sealed provider credentials.
package persistence

import (
	"database/sql"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/identity/domain"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/database"
)

// NewTokenRepository returns the token store matching the connection's driver.
func NewTokenRepository(conn database.Connection) domain.TokenRepository {
	if conn.Driver() == database.DriverPostgres {
		return NewPostgresTokenRepository(conn)
	}
	return NewSQLiteTokenRepository(conn)
}

const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Sealed secrets are binary; both drivers keep them as base64 text.
func encodeSecret(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(b)
}

func decodeSecret(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid stored secret: %w", err)
	}
	return b, nil
}

func joinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}

func splitScopes(s string) []string {
	return strings.Fields(s)
}

func formatExpiry(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func parseExpiry(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s.String)
}
