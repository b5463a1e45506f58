package db

import (
	"io/fs"

	"github.com/seatsync/seatsync/internal/db/migrations"
)

// SchemaVersion returns the number of SQL migration files for the
// Postgres store, which equals its current schema version.
func SchemaVersion() int {
	return countMigrations(migrations.Postgres())
}

// SQLiteSchemaVersion is SchemaVersion for the SQLite store.
func SQLiteSchemaVersion() int {
	return countMigrations(migrations.SQLite())
}

func countMigrations(fsys fs.FS) int {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return 0
	}

	count := 0
	for _, e := range entries {
		if !e.IsDir() {
			count++
		}
	}

	return count
}
