package trigger_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/infrastructure/trigger"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/database/sqlite"
)

func TestParsePayload(t *testing.T) {
	id := uuid.New()

	got, err := trigger.ParsePayload(" " + id.String() + "\n")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = trigger.ParsePayload("not-a-user")
	assert.Error(t, err)

	_, err = trigger.ParsePayload("")
	assert.Error(t, err)
}

func TestNotify_NoopOnSQLite(t *testing.T) {
	ctx := context.Background()
	conn, err := sqlite.NewConnection(ctx, database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "trigger.db"),
	})
	require.NoError(t, err)
	defer conn.Close()

	assert.NoError(t, trigger.Notify(ctx, conn, "", uuid.New()))
}
