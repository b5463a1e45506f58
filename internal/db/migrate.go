// Package db migrates the schema of the SQL state backends with goose.
//
// Both dialects carry the same numbered migrations, so a profile moved from
// SQLite to Postgres lands on the same schema version.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/seatsync/seatsync/internal/db/migrations"
)

// ErrSchemaTooNew is returned when the database was migrated by a newer
// seatsync than this one. Writing to it could drop fields the newer
// release relies on.
var ErrSchemaTooNew = errors.New("database schema is newer than this seatsync")

func migrationsFor(dialect goose.Dialect) (fs.FS, error) {
	switch dialect {
	case goose.DialectPostgres:
		return migrations.Postgres(), nil
	case goose.DialectSQLite3:
		return migrations.SQLite(), nil
	default:
		return nil, fmt.Errorf("no migrations for dialect %q", dialect)
	}
}

// Migrate brings sqlDB up to the schema this build knows.
func Migrate(ctx context.Context, dialect goose.Dialect, sqlDB *sql.DB, log *logrus.Logger) error {
	fsys, err := migrationsFor(dialect)
	if err != nil {
		return err
	}

	provider, err := goose.NewProvider(dialect, sqlDB, fsys)
	if err != nil {
		return fmt.Errorf("creating goose provider: %w", err)
	}

	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if known := int64(countMigrations(fsys)); current > known {
		return fmt.Errorf("%w: database at %d, this build knows %d", ErrSchemaTooNew, current, known)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	entry := log.WithField("dialect", dialect)
	for _, r := range results {
		if r.Error != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", r.Source.Version, r.Source.Path, r.Error)
		}
		entry.WithFields(logrus.Fields{
			"version":  r.Source.Version,
			"duration": r.Duration,
		}).Info("state schema migrated")
	}
	if len(results) == 0 {
		entry.WithField("version", current).Debug("state schema up to date")
	}

	return nil
}
