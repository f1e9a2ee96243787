package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/database"
)

func openTestConnection(t *testing.T) database.Connection {
	t.Helper()
	conn, err := NewConnection(context.Background(), database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "nested", "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestNewConnection_CreatesDirectory(t *testing.T) {
	conn := openTestConnection(t)

	require.NoError(t, conn.Ping(context.Background()))
	assert.Equal(t, database.DriverSQLite, conn.Driver())
}

func TestNewConnection_ViaFactory(t *testing.T) {
	conn, err := database.NewConnection(context.Background(), database.Config{
		SQLitePath: filepath.Join(t.TempDir(), "factory.db"),
	})
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, database.DriverSQLite, conn.Driver())
}

func TestConnection_ExecAndQuery(t *testing.T) {
	ctx := context.Background()
	conn := openTestConnection(t)

	_, err := conn.Exec(ctx, `CREATE TABLE slots (id TEXT PRIMARY KEY, label TEXT)`)
	require.NoError(t, err)

	result, err := conn.Exec(ctx, `INSERT INTO slots (id, label) VALUES (?, ?), (?, ?)`, "a", "morning", "b", "evening")
	require.NoError(t, err)
	affected, err := result.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	var label string
	require.NoError(t, conn.QueryRow(ctx, `SELECT label FROM slots WHERE id = ?`, "b").Scan(&label))
	assert.Equal(t, "evening", label)

	rows, err := conn.Query(ctx, `SELECT label FROM slots ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var l string
		require.NoError(t, rows.Scan(&l))
		labels = append(labels, l)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"morning", "evening"}, labels)

	err = conn.QueryRow(ctx, `SELECT label FROM slots WHERE id = ?`, "missing").Scan(&label)
	assert.True(t, database.IsNoRows(err))
}

func TestUnitOfWork_CommitAndRollback(t *testing.T) {
	ctx := context.Background()
	conn := openTestConnection(t)
	uow := database.NewUnitOfWork(conn)

	_, err := conn.Exec(ctx, `CREATE TABLE slots (id TEXT PRIMARY KEY)`)
	require.NoError(t, err)

	txCtx, err := uow.Begin(ctx)
	require.NoError(t, err)
	_, err = database.ExecutorFromContext(txCtx, conn).Exec(txCtx, `INSERT INTO slots (id) VALUES (?)`, "kept")
	require.NoError(t, err)

	// A nested unit joins the outer transaction and leaves the commit to it.
	nested, err := uow.Begin(txCtx)
	require.NoError(t, err)
	require.NoError(t, uow.Commit(nested))
	require.NoError(t, uow.Commit(txCtx))

	txCtx, err = uow.Begin(ctx)
	require.NoError(t, err)
	_, err = database.ExecutorFromContext(txCtx, conn).Exec(txCtx, `INSERT INTO slots (id) VALUES (?)`, "dropped")
	require.NoError(t, err)
	require.NoError(t, uow.Rollback(txCtx))

	var count int
	require.NoError(t, conn.QueryRow(ctx, `SELECT COUNT(*) FROM slots`).Scan(&count))
	assert.Equal(t, 1, count)

	assert.Error(t, uow.Commit(ctx))
}
