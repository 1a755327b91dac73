package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// DirectoryEntry model related methods.
	UpsertDirectoryEntry(ctx context.Context, upsert *DirectoryEntry) (*DirectoryEntry, error)
	ListDirectoryEntries(ctx context.Context, find *FindDirectoryEntry) ([]*DirectoryEntry, error)
	// FindSimilarDirectoryNames returns canonical names whose normalized form
	// shares a prefix or token with the query, for "did you mean" suggestions.
	FindSimilarDirectoryNames(ctx context.Context, normalized string, limit int) ([]string, error)

	// Task model related methods.
	CreateTask(ctx context.Context, create *CreateTaskRequest) (int64, error)
	ListTasks(ctx context.Context, find *FindTask) ([]*Task, error)

	// PendingSession model related methods.
	UpsertPendingSession(ctx context.Context, upsert *PendingSession) (*PendingSession, error)
	GetPendingSession(ctx context.Context, find *FindPendingSession) (*PendingSession, error)
	DeletePendingSession(ctx context.Context, delete *DeletePendingSession) error
	DeletePendingSessionsBefore(ctx context.Context, beforeTs int64) (int64, error)
}
