// Package storage defines the key/value persistence used for client state
// that must survive a restart: the offline queue and notification
// preferences.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/seatsync/seatsync/internal/crypto"
)

// Well-known keys.
const (
	KeyOfflineQueue            = "offline_queue"
	KeyNotificationPreferences = "notification_preferences"
)

// ErrNotFound is returned by Load for a key that was never saved or has
// been cleared.
var ErrNotFound = errors.New("storage: key not found")

// Store persists opaque blobs by key.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Clear(ctx context.Context, key string) error
}

// Memory is an in-process Store.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	m.data[key] = append([]byte(nil), data...)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

// Encrypted seals every blob with AES-256-GCM before it reaches the
// wrapped Store. The key name is bound into each ciphertext.
type Encrypted struct {
	inner Store
	svc   *crypto.Service
}

// NewEncrypted wraps inner.
func NewEncrypted(inner Store, svc *crypto.Service) *Encrypted {
	return &Encrypted{inner: inner, svc: svc}
}

func (e *Encrypted) Load(ctx context.Context, key string) ([]byte, error) {
	sealed, err := e.inner.Load(ctx, key)
	if err != nil {
		return nil, err
	}

	plain, err := e.svc.Decrypt(ctx, key, string(sealed))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return plain, nil
}

func (e *Encrypted) Save(ctx context.Context, key string, data []byte) error {
	sealed, err := e.svc.Encrypt(ctx, key, data)
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return e.inner.Save(ctx, key, []byte(sealed))
}

func (e *Encrypted) Clear(ctx context.Context, key string) error {
	return e.inner.Clear(ctx, key)
}
