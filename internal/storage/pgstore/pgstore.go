// Package pgstore keeps client state in PostgreSQL, keyed by profile so
// several installations can share one database.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/seatsync/seatsync/internal/db"
	"github.com/seatsync/seatsync/internal/dbpool"
	"github.com/seatsync/seatsync/internal/storage"
)

const defaultQueryTimeout = 10 * time.Second

// withTimeout creates a context with the default query timeout.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// Store implements storage.Store on a pgx pool.
type Store struct {
	pool    *dbpool.Pool
	profile string
}

// Open connects to databaseURL and applies pending migrations.
func Open(ctx context.Context, databaseURL, profile string, log *logrus.Logger) (*Store, error) {
	pool, err := dbpool.NewPool(ctx, dbpool.Options{
		URL:             databaseURL,
		ApplicationName: "seatsync/" + profile,
	})
	if err != nil {
		return nil, err
	}

	sqlDB := pool.SQLDB()
	defer sqlDB.Close()

	if err := db.Migrate(ctx, goose.DialectPostgres, sqlDB, log); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{pool: pool, profile: profile}, nil
}

func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM client_state WHERE profile = $1 AND key = $2`,
		s.profile, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", key, err)
	}

	return value, nil
}

func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO client_state (profile, key, value, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (profile, key) DO UPDATE
		 SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		s.profile, key, data,
	)
	if err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}

	return nil
}

func (s *Store) Clear(ctx context.Context, key string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, err := s.pool.Exec(ctx, `DELETE FROM client_state WHERE profile = $1 AND key = $2`, s.profile, key); err != nil {
		return fmt.Errorf("clearing %s: %w", key, err)
	}

	return nil
}

// HealthCheck verifies database connectivity.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.HealthCheck(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
