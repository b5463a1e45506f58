// Package storetest holds behavior tests shared by every storage.Store
// backend.
package storetest

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/seatsync/seatsync/internal/storage"
)

// Run exercises the Store contract against s. Keys are prefixed so
// backends backed by shared servers do not collide between runs.
func Run(t *testing.T, s storage.Store, prefix string) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		if _, err := s.Load(ctx, prefix+"missing"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("Load missing: err = %v, want ErrNotFound", err)
		}
	})

	t.Run("save and load", func(t *testing.T) {
		key := prefix + storage.KeyOfflineQueue
		want := []byte(`[{"id":"a1","url":"/api/v1/bookings","method":"POST"}]`)

		if err := s.Save(ctx, key, want); err != nil {
			t.Fatalf("Save: %v", err)
		}
		got, err := s.Load(ctx, key)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Load = %s, want %s", got, want)
		}
	})

	t.Run("overwrite", func(t *testing.T) {
		key := prefix + "overwrite"
		_ = s.Save(ctx, key, []byte("first"))
		if err := s.Save(ctx, key, []byte("second")); err != nil {
			t.Fatalf("Save: %v", err)
		}
		got, err := s.Load(ctx, key)
		if err != nil || string(got) != "second" {
			t.Fatalf("Load = %q, %v; want second", got, err)
		}
	})

	t.Run("clear", func(t *testing.T) {
		key := prefix + "clear"
		_ = s.Save(ctx, key, []byte("x"))
		if err := s.Clear(ctx, key); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		if _, err := s.Load(ctx, key); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("Load after Clear: err = %v, want ErrNotFound", err)
		}
		if err := s.Clear(ctx, key); err != nil {
			t.Fatalf("Clear twice: %v", err)
		}
	})
}
