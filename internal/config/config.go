// Package config provides environment-driven configuration for the seatsync client.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Storage backends.
const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StorageSQLite   = "sqlite"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// Config holds all application configuration values.
type Config struct {
	// Booking backend.
	PushURL Secret
	APIURL  string
	Token   Secret
	UserID  string

	// Local state API.
	Port          string
	ListenHost    string
	CORSOrigins   []string
	LocalAPIToken Secret
	LogLevel      string

	// Persistence.
	StorageBackend string
	StateDir       string
	DatabaseURL    Secret
	RedisAddr      string
	RedisPassword  Secret
	RedisDB        int
	RedisTLS       bool
	EncryptionKey  Secret

	// Coordination tuning.
	ReconnectBase        time.Duration
	ReconnectMax         time.Duration
	MaxReconnectAttempts int
	LockTTL              time.Duration
	MaxNotifications     int
}

// Load reads configuration from environment variables with sensible
// defaults. A .env file in the working directory is applied first; it
// never overrides variables that are already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	cfg := &Config{
		PushURL:        Secret(envOrDefault("SEATSYNC_PUSH_URL", "ws://localhost:8080/ws")),
		APIURL:         envOrDefault("SEATSYNC_API_URL", "http://localhost:8080"),
		Token:          Secret(envOrDefault("SEATSYNC_TOKEN", "")),
		UserID:         envOrDefault("SEATSYNC_USER_ID", ""),
		Port:           envOrDefault("PORT", "3031"),
		ListenHost:     envOrDefault("LISTEN_HOST", "127.0.0.1"),
		LocalAPIToken:  Secret(envOrDefault("LOCAL_API_TOKEN", "")),
		LogLevel:       envOrDefault("LOG_LEVEL", "info"),
		StorageBackend: envOrDefault("STORAGE_BACKEND", StorageFile),
		StateDir:       envOrDefault("STATE_DIR", defaultStateDir()),
		DatabaseURL:    Secret(envOrDefault("DATABASE_URL", "")),
		RedisAddr:      envOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  Secret(envOrDefault("REDIS_PASSWORD", "")),
		RedisTLS:       envOrDefault("REDIS_TLS", "false") == "true",
		EncryptionKey:  Secret(envOrDefault("ENCRYPTION_KEY", "")),
	}

	var err error

	if cfg.RedisDB, err = intEnv("REDIS_DB", 0, 0, 15); err != nil {
		return nil, err
	}

	if cfg.MaxReconnectAttempts, err = intEnv("RECONNECT_MAX_ATTEMPTS", 5, 0, 100); err != nil {
		return nil, err
	}

	if cfg.MaxNotifications, err = intEnv("MAX_NOTIFICATIONS", 5, 1, 50); err != nil {
		return nil, err
	}

	if cfg.ReconnectBase, err = durationEnv("RECONNECT_BASE", time.Second); err != nil {
		return nil, err
	}

	if cfg.ReconnectMax, err = durationEnv("RECONNECT_MAX", 30*time.Second); err != nil {
		return nil, err
	}

	if cfg.LockTTL, err = durationEnv("SEAT_LOCK_TTL", 5*time.Minute); err != nil {
		return nil, err
	}

	origins := envOrDefault("CORS_ORIGINS", "http://localhost:5173")
	cfg.CORSOrigins = strings.Split(origins, ",")

	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Addr returns the listen address in host:port format.
func (c *Config) Addr() string {
	return c.ListenHost + ":" + c.Port
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".seatsync"
	}
	return filepath.Join(home, ".seatsync", "state")
}

func intEnv(key string, fallback, lo, hi int) (int, error) {
	v, err := strconv.Atoi(envOrDefault(key, strconv.Itoa(fallback)))
	if err != nil || v < lo || v > hi {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", key, lo, hi)
	}
	return v, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback.String()))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration (e.g. 1s, 5m)", key)
	}
	return d, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
