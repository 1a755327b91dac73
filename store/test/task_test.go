package teststore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qcheck/taskbot/store"
)

func validCreate() *store.CreateTaskRequest {
	return &store.CreateTaskRequest{
		TaskName:       "Quarterly report",
		MainController: "Finance Team",
		Assignees:      "John Smith,Jane Doe",
		DueDate:        1750000000,
		LocalDueDate:   "2025-06-13",
		Location:       "America/New_York",
		DueTime:        840,
		Activate:       true,
		CreatorID:      "u-test",
	}
}

func TestCreateTask(t *testing.T) {
	ctx := context.Background()
	s := NewTestingStore(ctx, t)
	SeedDirectory(ctx, t, s, []string{"Finance Team"}, []string{"John Smith", "Jane Doe"})

	id, err := s.CreateTask(ctx, validCreate())
	require.NoError(t, err)
	require.Greater(t, id, int64(0))

	tasks, err := s.ListTasks(ctx, &store.FindTask{ID: &id})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, "Quarterly report", tasks[0].TaskName)
	require.Equal(t, "Finance Team", tasks[0].MainController)
	require.NotEmpty(t, tasks[0].UID)
}

func TestCreateTaskDuplicateName(t *testing.T) {
	ctx := context.Background()
	s := NewTestingStore(ctx, t)
	SeedDirectory(ctx, t, s, []string{"Finance Team"}, nil)

	_, err := s.CreateTask(ctx, validCreate())
	require.NoError(t, err)

	_, err = s.CreateTask(ctx, validCreate())
	require.ErrorIs(t, err, store.ErrDuplicateTaskName)
}

func TestCreateTaskOwnerGroupNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewTestingStore(ctx, t)

	create := validCreate()
	create.MainController = "Nonexistent Group"
	_, err := s.CreateTask(ctx, create)
	require.ErrorIs(t, err, store.ErrOwnerGroupNotFound)
}

func TestTaskNameExists(t *testing.T) {
	ctx := context.Background()
	s := NewTestingStore(ctx, t)
	SeedDirectory(ctx, t, s, []string{"Finance Team"}, nil)

	exists, err := s.TaskNameExists(ctx, "Finance Team", "Quarterly report")
	require.NoError(t, err)
	require.False(t, exists)

	_, err = s.CreateTask(ctx, validCreate())
	require.NoError(t, err)

	exists, err = s.TaskNameExists(ctx, "Finance Team", "Quarterly report")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestDirectoryLookupIsNormalized(t *testing.T) {
	ctx := context.Background()
	s := NewTestingStore(ctx, t)
	SeedDirectory(ctx, t, s, []string{"Finance Team"}, nil)

	entry, err := s.GetDirectoryEntryByName(ctx, store.NormalizeName("  FINANCE   team "))
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, "Finance Team", entry.Name)

	entry, err = s.GetDirectoryEntryByName(ctx, store.NormalizeName("Marketing"))
	require.NoError(t, err)
	require.Nil(t, entry)
}

func TestFindSimilarDirectoryNames(t *testing.T) {
	ctx := context.Background()
	s := NewTestingStore(ctx, t)
	SeedDirectory(ctx, t, s, []string{"Finance Team", "Finance Ops"}, []string{"Fiona Park"})

	names, err := s.FindSimilarDirectoryNames(ctx, "finance", 3)
	require.NoError(t, err)
	require.Contains(t, names, "Finance Team")
	require.Contains(t, names, "Finance Ops")
	require.LessOrEqual(t, len(names), 3)
}

func TestPendingSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewTestingStore(ctx, t)

	session := &store.PendingSession{
		UID:       "sess-1",
		OwnerUser: "u-test",
		State:     "COLLECTING",
		Payload:   `{"task_name":"Quarterly report"}`,
	}
	_, err := s.UpsertPendingSession(ctx, session)
	require.NoError(t, err)

	uid := "sess-1"
	got, err := s.GetPendingSession(ctx, &store.FindPendingSession{UID: &uid})
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "COLLECTING", got.State)

	session.State = "AWAITING_CONFIRMATION"
	_, err = s.UpsertPendingSession(ctx, session)
	require.NoError(t, err)

	got, err = s.GetPendingSession(ctx, &store.FindPendingSession{UID: &uid})
	require.NoError(t, err)
	require.Equal(t, "AWAITING_CONFIRMATION", got.State)

	require.NoError(t, s.DeletePendingSession(ctx, &store.DeletePendingSession{UID: uid}))
	got, err = s.GetPendingSession(ctx, &store.FindPendingSession{UID: &uid})
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestDeletePendingSessionsBefore(t *testing.T) {
	ctx := context.Background()
	s := NewTestingStore(ctx, t)

	_, err := s.UpsertPendingSession(ctx, &store.PendingSession{UID: "sess-old", OwnerUser: "u", State: "COLLECTING", Payload: "{}"})
	require.NoError(t, err)

	// Upsert stamps updated_ts with the current time; a far-future cutoff
	// removes everything.
	deleted, err := s.DeletePendingSessionsBefore(ctx, 1<<40)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)
}
