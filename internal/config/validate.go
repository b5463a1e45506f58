package config

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

func (c *Config) validate() error {
	if err := c.validateEndpoints(); err != nil {
		return err
	}

	if err := c.validateNetwork(); err != nil {
		return err
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	if err := c.validateCORS(); err != nil {
		return err
	}

	if err := c.validateEncryption(); err != nil {
		return err
	}

	if c.ReconnectMax < c.ReconnectBase {
		return fmt.Errorf("RECONNECT_MAX must not be shorter than RECONNECT_BASE")
	}

	return nil
}

func (c *Config) validateEndpoints() error {
	pushURL, err := url.Parse(c.PushURL.Value())
	if err != nil || pushURL.Host == "" {
		return fmt.Errorf("SEATSYNC_PUSH_URL is not a valid URL")
	}

	switch pushURL.Scheme {
	case "wss":
	case "ws":
		if !isLocalhost(c.PushURL.Value()) {
			return fmt.Errorf("SEATSYNC_PUSH_URL must use wss:// for non-localhost connections")
		}
	default:
		return fmt.Errorf("SEATSYNC_PUSH_URL scheme must be ws:// or wss://")
	}

	apiURL, err := url.ParseRequestURI(c.APIURL)
	if err != nil || apiURL.Host == "" {
		return fmt.Errorf("SEATSYNC_API_URL is not a valid URL")
	}

	switch apiURL.Scheme {
	case "https":
	case "http":
		if !isLocalhost(c.APIURL) {
			return fmt.Errorf("SEATSYNC_API_URL must use https:// for non-localhost connections")
		}
	default:
		return fmt.Errorf("SEATSYNC_API_URL scheme must be http:// or https://")
	}

	return nil
}

func (c *Config) validateNetwork() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid integer: %w", err)
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	// The local state API exposes the user's session; keep it on loopback.
	if c.ListenHost != "127.0.0.1" && c.ListenHost != "::1" && c.ListenHost != "localhost" {
		return fmt.Errorf("LISTEN_HOST must be a loopback address (127.0.0.1, ::1, or localhost), got %q", c.ListenHost)
	}

	return nil
}

func (c *Config) validateStorage() error {
	switch c.StorageBackend {
	case StorageMemory:
	case StorageFile, StorageSQLite:
		if c.StateDir == "" {
			return fmt.Errorf("STATE_DIR is required when STORAGE_BACKEND is %s", c.StorageBackend)
		}
	case StorageRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when STORAGE_BACKEND is redis")
		}
	case StoragePostgres:
		return c.validateDatabase()
	default:
		return fmt.Errorf("STORAGE_BACKEND must be one of memory, file, sqlite, redis, postgres, got %q", c.StorageBackend)
	}

	return nil
}

func (c *Config) validateDatabase() error {
	if c.DatabaseURL.Value() == "" {
		return fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND is postgres")
	}

	dbURL, err := url.Parse(c.DatabaseURL.Value())
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}

	if dbURL.Scheme != "postgres" && dbURL.Scheme != "postgresql" {
		return fmt.Errorf("DATABASE_URL scheme must be postgres:// or postgresql://")
	}

	if dbURL.Hostname() == "" {
		return fmt.Errorf("DATABASE_URL must include a host")
	}

	dbHost := dbURL.Hostname()
	if dbHost != "localhost" && dbHost != "127.0.0.1" && dbHost != "::1" {
		sslmode := dbURL.Query().Get("sslmode")
		if sslmode == "disable" {
			return fmt.Errorf("DATABASE_URL sslmode=disable is not allowed for non-local host %q", dbHost)
		}
	}

	return nil
}

func (c *Config) validateCORS() error {
	for _, origin := range c.CORSOrigins {
		if origin == "*" {
			return fmt.Errorf("CORS_ORIGINS must not contain wildcard '*'")
		}
		if strings.ContainsAny(origin, "*?[]") {
			return fmt.Errorf("CORS_ORIGINS must not contain glob characters (*?[]), got %q", origin)
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("CORS_ORIGINS contains invalid origin %q (must have scheme and host)", origin)
		}
	}

	return nil
}

// validateEncryption accepts an empty key, which leaves persisted state
// in plaintext.
func (c *Config) validateEncryption() error {
	if c.EncryptionKey.Value() == "" {
		return nil
	}

	keyBytes, err := hex.DecodeString(c.EncryptionKey.Value())
	if err != nil {
		return fmt.Errorf("ENCRYPTION_KEY must be valid hex: %w", err)
	}

	if len(keyBytes) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be 64 hex characters (32 bytes), got %d chars", len(c.EncryptionKey.Value()))
	}

	return nil
}

// isLocalhost returns true if the given address points to a loopback address.
func isLocalhost(addr string) bool {
	u, err := url.Parse(addr)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
