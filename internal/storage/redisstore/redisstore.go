// Package redisstore keeps client state in Redis.
package redisstore

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seatsync/seatsync/internal/storage"
)

const pingTimeout = 2 * time.Second

// Options selects the Redis server.
type Options struct {
	Addr     string
	Password string
	DB       int
	TLS      bool

	// Prefix namespaces every key, e.g. "seatsync:default:".
	Prefix string
}

// Store implements storage.Store on a Redis client.
type Store struct {
	rdb    *redis.Client
	prefix string
}

// Open connects and pings the server.
func Open(ctx context.Context, opts Options) (*Store, error) {
	var tlsConf *tls.Config
	if opts.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:      opts.Addr,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: tlsConf,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close() //nolint:errcheck // unusable client.
		return nil, fmt.Errorf("pinging redis at %s: %w", opts.Addr, err)
	}

	return New(rdb, opts.Prefix), nil
}

// New wraps an existing client.
func New(rdb *redis.Client, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	v, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	if err := s.rdb.Set(ctx, s.prefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("clearing %s: %w", key, err)
	}
	return nil
}

// HealthCheck pings the server.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close releases the client.
func (s *Store) Close() error {
	return s.rdb.Close()
}
