// Package dbpool opens the PostgreSQL pool behind the shared-database
// state backend.
package dbpool

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// Options configures NewPool.
type Options struct {
	URL string

	// ApplicationName is reported in pg_stat_activity, so installations
	// sharing one database can be told apart.
	ApplicationName string

	// MaxConns defaults to 2: a client session writes a handful of keys at
	// a time.
	MaxConns int32

	// StatementTimeout defaults to 10s.
	StatementTimeout time.Duration
}

// Pool wraps a pgxpool.Pool. The pool itself is unexported so callers go
// through the store's per-query timeouts.
type Pool struct {
	pool *pgxpool.Pool
}

// NewPool connects and pings before returning.
func NewPool(ctx context.Context, opts Options) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	if opts.MaxConns <= 0 {
		opts.MaxConns = 2
	}
	if opts.StatementTimeout <= 0 {
		opts.StatementTimeout = 10 * time.Second
	}

	cfg.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(opts.StatementTimeout.Milliseconds(), 10)
	if opts.ApplicationName != "" {
		cfg.ConnConfig.RuntimeParams["application_name"] = opts.ApplicationName
	}
	cfg.MaxConns = opts.MaxConns
	cfg.MinConns = 0
	cfg.MaxConnIdleTime = 2 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Pool{pool: pool}, nil
}

// SQLDB exposes the pool as a *sql.DB for goose. Closing it leaves the
// pool open.
func (p *Pool) SQLDB() *sql.DB {
	return stdlib.OpenDBFromPool(p.pool)
}

func (p *Pool) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	return p.pool.Exec(ctx, query, args...)
}

func (p *Pool) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return p.pool.QueryRow(ctx, query, args...)
}

// HealthCheck runs a trivial query.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var one int
	if err := p.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("health check query: %w", err)
	}
	return nil
}

func (p *Pool) Close() {
	p.pool.Close()
}
