// Package crypto provides AES-256-GCM encryption of locally persisted
// client state.
package crypto

import "context"

// KeyProvider returns AES-256 encryption keys for storage scopes.
type KeyProvider interface {
	// GetKey returns the 32-byte AES-256 key for the given scope.
	GetKey(ctx context.Context, scope string) ([]byte, error)
}
