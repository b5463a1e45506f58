package config_test

import (
	"encoding/hex"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/seatsync/seatsync/internal/config"
)

func validKey() string {
	return hex.EncodeToString(make([]byte, 32))
}

func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SEATSYNC_PUSH_URL", "ws://localhost:8080/ws")
	t.Setenv("SEATSYNC_API_URL", "http://localhost:8080")
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000")
	t.Setenv("ENCRYPTION_KEY", "")
}

func TestLoad_ValidConfig(t *testing.T) {
	setValidEnv(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Port != "3031" {
		t.Errorf("expected default port 3031, got %s", cfg.Port)
	}

	if cfg.Addr() != "127.0.0.1:3031" {
		t.Errorf("expected addr 127.0.0.1:3031, got %s", cfg.Addr())
	}

	if cfg.MaxReconnectAttempts != 5 {
		t.Errorf("expected default reconnect attempts 5, got %d", cfg.MaxReconnectAttempts)
	}

	if cfg.ReconnectBase != time.Second || cfg.ReconnectMax != 30*time.Second {
		t.Errorf("unexpected backoff defaults: %v / %v", cfg.ReconnectBase, cfg.ReconnectMax)
	}

	if cfg.LockTTL != 5*time.Minute {
		t.Errorf("expected default lock TTL 5m, got %v", cfg.LockTTL)
	}

	if cfg.MaxNotifications != 5 {
		t.Errorf("expected default max notifications 5, got %d", cfg.MaxNotifications)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setValidEnv(t)
	t.Setenv("SEATSYNC_PUSH_URL", "wss://push.example.com/ws")
	t.Setenv("SEATSYNC_API_URL", "https://api.example.com")
	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@db.example.com:5432/seatsync?sslmode=require")
	t.Setenv("ENCRYPTION_KEY", validKey())
	t.Setenv("SEAT_LOCK_TTL", "90s")
	t.Setenv("RECONNECT_MAX_ATTEMPTS", "0")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.StorageBackend != config.StoragePostgres {
		t.Errorf("expected postgres backend, got %s", cfg.StorageBackend)
	}

	if cfg.LockTTL != 90*time.Second {
		t.Errorf("expected lock TTL 90s, got %v", cfg.LockTTL)
	}

	if cfg.MaxReconnectAttempts != 0 {
		t.Errorf("expected unlimited reconnect attempts, got %d", cfg.MaxReconnectAttempts)
	}
}

func TestLoad_ErrorCases(t *testing.T) {
	tests := []struct {
		name         string
		envOverrides map[string]string
		wantErr      string
	}{
		{
			name:         "push URL bad scheme",
			envOverrides: map[string]string{"SEATSYNC_PUSH_URL": "http://localhost:8080/ws"},
			wantErr:      "SEATSYNC_PUSH_URL scheme must be ws:// or wss://",
		},
		{
			name:         "plain ws to remote host",
			envOverrides: map[string]string{"SEATSYNC_PUSH_URL": "ws://push.example.com/ws"},
			wantErr:      "must use wss://",
		},
		{
			name:         "plain http to remote API",
			envOverrides: map[string]string{"SEATSYNC_API_URL": "http://api.example.com"},
			wantErr:      "must use https://",
		},
		{
			name:         "invalid PORT zero",
			envOverrides: map[string]string{"PORT": "0"},
			wantErr:      "PORT must be between 1 and 65535",
		},
		{
			name:         "invalid PORT non-numeric",
			envOverrides: map[string]string{"PORT": "abc"},
			wantErr:      "PORT must be a valid integer",
		},
		{
			name:         "invalid LISTEN_HOST",
			envOverrides: map[string]string{"LISTEN_HOST": "0.0.0.0"},
			wantErr:      "LISTEN_HOST must be a loopback address",
		},
		{
			name:         "CORS wildcard",
			envOverrides: map[string]string{"CORS_ORIGINS": "*"},
			wantErr:      "CORS_ORIGINS must not contain wildcard",
		},
		{
			name:         "CORS invalid origin",
			envOverrides: map[string]string{"CORS_ORIGINS": "not-a-url"},
			wantErr:      "CORS_ORIGINS contains invalid origin",
		},
		{
			name:         "unknown storage backend",
			envOverrides: map[string]string{"STORAGE_BACKEND": "etcd"},
			wantErr:      "STORAGE_BACKEND must be one of",
		},
		{
			name:         "postgres without DATABASE_URL",
			envOverrides: map[string]string{"STORAGE_BACKEND": "postgres", "DATABASE_URL": ""},
			wantErr:      "DATABASE_URL is required",
		},
		{
			name: "postgres sslmode disable remote",
			envOverrides: map[string]string{
				"STORAGE_BACKEND": "postgres",
				"DATABASE_URL":    "postgres://u:p@db.example.com/x?sslmode=disable",
			},
			wantErr: "sslmode=disable is not allowed",
		},
		{
			name:         "encryption key wrong length",
			envOverrides: map[string]string{"ENCRYPTION_KEY": "aabbccdd"},
			wantErr:      "ENCRYPTION_KEY must be 64 hex characters",
		},
		{
			name:         "encryption key not hex",
			envOverrides: map[string]string{"ENCRYPTION_KEY": strings.Repeat("z", 64)},
			wantErr:      "ENCRYPTION_KEY must be valid hex",
		},
		{
			name:         "reconnect attempts too high",
			envOverrides: map[string]string{"RECONNECT_MAX_ATTEMPTS": "101"},
			wantErr:      "RECONNECT_MAX_ATTEMPTS must be an integer between 0 and 100",
		},
		{
			name:         "lock TTL not a duration",
			envOverrides: map[string]string{"SEAT_LOCK_TTL": "five minutes"},
			wantErr:      "SEAT_LOCK_TTL must be a positive duration",
		},
		{
			name:         "backoff max below base",
			envOverrides: map[string]string{"RECONNECT_BASE": "10s", "RECONNECT_MAX": "5s"},
			wantErr:      "RECONNECT_MAX must not be shorter than RECONNECT_BASE",
		},
		{
			name:         "max notifications zero",
			envOverrides: map[string]string{"MAX_NOTIFICATIONS": "0"},
			wantErr:      "MAX_NOTIFICATIONS must be an integer between 1 and 50",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setValidEnv(t)
			for k, v := range tc.envOverrides {
				t.Setenv(k, v)
			}

			_, err := config.Load()
			if err == nil {
				t.Fatal("expected error, got nil")
			}

			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %q", tc.wantErr, err.Error())
			}
		})
	}
}

func TestSecretRedaction(t *testing.T) {
	s := config.Secret("hunter2")

	if got := fmt.Sprintf("%v %s %#v", s, s, s); strings.Contains(got, "hunter2") {
		t.Errorf("secret leaked through formatting: %q", got)
	}

	if s.Value() != "hunter2" {
		t.Errorf("Value() = %q", s.Value())
	}
}
