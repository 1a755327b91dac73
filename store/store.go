package store

import (
	"context"
	"time"

	"github.com/qcheck/taskbot/internal/profile"
	"github.com/qcheck/taskbot/store/cache"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// directoryCache fronts directory lookups; entries change rarely and are
	// read on nearly every conversation turn.
	directoryCache *cache.Cache
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	cacheConfig := cache.Config{
		DefaultTTL:      10 * time.Minute,
		CleanupInterval: 5 * time.Minute,
		MaxItems:        1000,
	}

	return &Store{
		driver:         driver,
		profile:        profile,
		directoryCache: cache.New(cacheConfig),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	s.directoryCache.Close()
	return s.driver.Close()
}

func (s *Store) UpsertDirectoryEntry(ctx context.Context, upsert *DirectoryEntry) (*DirectoryEntry, error) {
	upsert.NormalizedName = NormalizeName(upsert.Name)
	entry, err := s.driver.UpsertDirectoryEntry(ctx, upsert)
	if err != nil {
		return nil, err
	}
	s.directoryCache.Set(entry.NormalizedName, entry)
	return entry, nil
}

// GetDirectoryEntryByName looks up a directory entry by its normalized name.
// Returns (nil, nil) when no entry matches.
func (s *Store) GetDirectoryEntryByName(ctx context.Context, normalized string) (*DirectoryEntry, error) {
	if cached, ok := s.directoryCache.Get(normalized); ok {
		return cached.(*DirectoryEntry), nil
	}

	entries, err := s.driver.ListDirectoryEntries(ctx, &FindDirectoryEntry{NormalizedName: &normalized})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	s.directoryCache.Set(normalized, entries[0])
	return entries[0], nil
}

func (s *Store) ListDirectoryEntries(ctx context.Context, find *FindDirectoryEntry) ([]*DirectoryEntry, error) {
	return s.driver.ListDirectoryEntries(ctx, find)
}

func (s *Store) FindSimilarDirectoryNames(ctx context.Context, normalized string, limit int) ([]string, error) {
	return s.driver.FindSimilarDirectoryNames(ctx, normalized, limit)
}

func (s *Store) CreateTask(ctx context.Context, create *CreateTaskRequest) (int64, error) {
	return s.driver.CreateTask(ctx, create)
}

func (s *Store) ListTasks(ctx context.Context, find *FindTask) ([]*Task, error) {
	return s.driver.ListTasks(ctx, find)
}

// TaskNameExists reports whether the owner group already has a task with
// this name. Used for the pre-commit duplicate check; the unique constraint
// remains the authority at commit time.
func (s *Store) TaskNameExists(ctx context.Context, mainController, taskName string) (bool, error) {
	tasks, err := s.driver.ListTasks(ctx, &FindTask{
		TaskName:       &taskName,
		MainController: &mainController,
	})
	if err != nil {
		return false, err
	}
	return len(tasks) > 0, nil
}

func (s *Store) UpsertPendingSession(ctx context.Context, upsert *PendingSession) (*PendingSession, error) {
	return s.driver.UpsertPendingSession(ctx, upsert)
}

func (s *Store) GetPendingSession(ctx context.Context, find *FindPendingSession) (*PendingSession, error) {
	return s.driver.GetPendingSession(ctx, find)
}

func (s *Store) DeletePendingSession(ctx context.Context, delete *DeletePendingSession) error {
	return s.driver.DeletePendingSession(ctx, delete)
}

func (s *Store) DeletePendingSessionsBefore(ctx context.Context, beforeTs int64) (int64, error) {
	return s.driver.DeletePendingSessionsBefore(ctx, beforeTs)
}
