package filestore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/seatsync/seatsync/internal/models"
	"github.com/seatsync/seatsync/internal/storage/filestore"
	"github.com/seatsync/seatsync/internal/storage/storetest"
)

func TestFileStore(t *testing.T) {
	s, err := filestore.Open(filepath.Join(t.TempDir(), "state"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	storetest.Run(t, s, "")
}

func TestFileStoreRejectsPathKeys(t *testing.T) {
	s, _ := filestore.Open(t.TempDir())

	for _, key := range []string{"../escape", "a/b", "", ".."} {
		if err := s.Save(context.Background(), key, []byte("x")); !errors.Is(err, models.ErrValidation) {
			t.Errorf("Save(%q) err = %v, want validation error", key, err)
		}
	}
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, _ := filestore.Open(dir)

	if err := s.Save(context.Background(), "offline_queue", []byte("[]")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "offline_queue.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("dir entries = %v, want [offline_queue.json]", names)
	}
}
