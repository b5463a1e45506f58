package session

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/seatsync/seatsync/internal/config"
	"github.com/seatsync/seatsync/internal/crypto"
	"github.com/seatsync/seatsync/internal/storage"
	"github.com/seatsync/seatsync/internal/storage/filestore"
	"github.com/seatsync/seatsync/internal/storage/pgstore"
	"github.com/seatsync/seatsync/internal/storage/redisstore"
	"github.com/seatsync/seatsync/internal/storage/sqlitestore"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenStore opens the backend named by cfg.StorageBackend under profile,
// wrapped in encryption when cfg.EncryptionKey is set. The returned
// closer releases the backend's connections.
func OpenStore(ctx context.Context, cfg *config.Config, profile string, log *logrus.Logger) (storage.Store, io.Closer, error) {
	if profile == "" {
		profile = "default"
	}

	var (
		store  storage.Store
		closer io.Closer = nopCloser{}
	)

	switch cfg.StorageBackend {
	case config.StorageMemory:
		store = storage.NewMemory()

	case config.StorageFile:
		fs, err := filestore.Open(filepath.Join(cfg.StateDir, profile))
		if err != nil {
			return nil, nil, fmt.Errorf("opening file store: %w", err)
		}
		store = fs

	case config.StorageSQLite:
		ss, err := sqlitestore.Open(ctx, filepath.Join(cfg.StateDir, profile+".db"), log)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		store, closer = ss, ss

	case config.StorageRedis:
		rs, err := redisstore.Open(ctx, redisstore.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword.Value(),
			DB:       cfg.RedisDB,
			TLS:      cfg.RedisTLS,
			Prefix:   "seatsync:" + profile + ":",
		})
		if err != nil {
			return nil, nil, fmt.Errorf("opening redis store: %w", err)
		}
		store, closer = rs, rs

	case config.StoragePostgres:
		ps, err := pgstore.Open(ctx, cfg.DatabaseURL.Value(), profile, log)
		if err != nil {
			return nil, nil, fmt.Errorf("opening postgres store: %w", err)
		}
		store, closer = ps, ps

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	if key := cfg.EncryptionKey.Value(); key != "" {
		provider, err := crypto.NewProfileKeys(key, profile)
		if err != nil {
			closer.Close() //nolint:errcheck
			return nil, nil, fmt.Errorf("deriving state keys: %w", err)
		}
		store = storage.NewEncrypted(store, crypto.NewService(provider))
	}

	log.WithFields(logrus.Fields{
		"backend":   cfg.StorageBackend,
		"profile":   profile,
		"encrypted": cfg.EncryptionKey.Value() != "",
	}).Info("state store opened")

	return store, closer, nil
}
