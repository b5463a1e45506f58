package crypto

import (
	"context"
	"crypto/hkdf"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const keySize = 32

// ProfileKeys derives one AES-256 key per (profile, scope) from a master
// key with HKDF-SHA256. Profiles sharing a database or state directory
// cannot read each other's state even under the same master key.
type ProfileKeys struct {
	master  []byte
	profile string
}

// NewProfileKeys parses a hex-encoded 32-byte master key.
func NewProfileKeys(hexKey, profile string) (*ProfileKeys, error) {
	master, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid hex key: %w", err)
	}
	if len(master) != keySize {
		return nil, fmt.Errorf("crypto: key must be %d bytes, got %d", keySize, len(master))
	}
	if profile == "" {
		profile = "default"
	}
	return &ProfileKeys{master: master, profile: profile}, nil
}

// GetKey derives the key for scope, a storage key such as "offline_queue".
func (p *ProfileKeys) GetKey(_ context.Context, scope string) ([]byte, error) {
	key, err := hkdf.Key(sha256.New, p.master, []byte(p.profile), "seatsync/"+scope, keySize)
	if err != nil {
		return nil, fmt.Errorf("crypto: derive key: %w", err)
	}
	return key, nil
}
