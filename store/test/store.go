// Package teststore spins up a real SQLite-backed store for store-layer tests.
package teststore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/qcheck/taskbot/internal/profile"
	"github.com/qcheck/taskbot/store"
	"github.com/qcheck/taskbot/store/db/sqlite"
)

// NewTestingStore creates a migrated store on a throwaway SQLite file.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()

	p := &profile.Profile{
		Mode:   "prod",
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "taskbot_test.db"),
	}
	driver, err := sqlite.NewDB(p)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	s := store.New(driver, p)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// SeedDirectory inserts the given names as NORMAL directory entries.
func SeedDirectory(ctx context.Context, t *testing.T, s *store.Store, groups []string, people []string) {
	t.Helper()
	for _, name := range groups {
		if _, err := s.UpsertDirectoryEntry(ctx, &store.DirectoryEntry{Name: name, Kind: store.EntryKindGroup}); err != nil {
			t.Fatalf("failed to seed group %q: %v", name, err)
		}
	}
	for _, name := range people {
		if _, err := s.UpsertDirectoryEntry(ctx, &store.DirectoryEntry{Name: name, Kind: store.EntryKindPerson}); err != nil {
			t.Fatalf("failed to seed person %q: %v", name, err)
		}
	}
}
