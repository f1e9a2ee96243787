// Package migrations embeds the schema for both supported databases.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/database"
)

//go:embed sqlite/*.sql
var sqliteFS embed.FS

//go:embed postgres/*.sql
var postgresFS embed.FS

// Run executes every migration for the connection's driver in order.
// Migrations are idempotent, so Run is safe on every start.
func Run(ctx context.Context, conn database.Connection) error {
	switch conn.Driver() {
	case database.DriverSQLite:
		return apply(ctx, conn, sqliteFS, "sqlite")
	case database.DriverPostgres:
		return apply(ctx, conn, postgresFS, "postgres")
	default:
		return fmt.Errorf("no migrations for driver %q", conn.Driver())
	}
}

// Files lists the migration files for a driver, in execution order.
func Files(driver database.Driver) ([]string, error) {
	fsys, dir := sqliteFS, "sqlite"
	if driver == database.DriverPostgres {
		fsys, dir = postgresFS, "postgres"
	}
	return upFiles(fsys, dir)
}

func apply(ctx context.Context, exec database.Executor, fsys embed.FS, dir string) error {
	files, err := upFiles(fsys, dir)
	if err != nil {
		return err
	}

	for _, file := range files {
		migration, err := fsys.ReadFile(dir + "/" + file)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file, err)
		}
		if _, err := exec.Exec(ctx, string(migration)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", file, err)
		}
	}
	return nil
}

func upFiles(fsys fs.ReadDirFS, dir string) ([]string, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
