package taskcreate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qcheck/taskbot/plugin/ai/recurrence"
	"github.com/qcheck/taskbot/plugin/ai/timeparse"
	"github.com/qcheck/taskbot/server/service/directory"
	"github.com/qcheck/taskbot/server/service/taskspec"
	"github.com/qcheck/taskbot/store"
)

type captureStore struct {
	last *store.CreateTaskRequest
	id   int64
	err  error
}

func (c *captureStore) CreateTask(_ context.Context, create *store.CreateTaskRequest) (int64, error) {
	c.last = create
	return c.id, c.err
}

func completeSpec() *taskspec.TaskSpec {
	spec := taskspec.NewTaskSpec()
	spec.TaskName = "Quarterly report"
	spec.MainController = &directory.ResolvedIdentity{ID: 1, CanonicalName: "Finance Team", Kind: store.EntryKindGroup}
	spec.Controllers = []*directory.ResolvedIdentity{
		{ID: 2, CanonicalName: "Compliance", Kind: store.EntryKindGroup},
	}
	spec.Assignees = []*directory.ResolvedIdentity{
		{ID: 3, CanonicalName: "John Smith", Kind: store.EntryKindPerson},
		{ID: 4, CanonicalName: "Jane Doe", Kind: store.EntryKindPerson},
	}
	spec.DueDate = &timeparse.CalendarDate{Year: 2025, Month: 6, Day: 13}
	spec.DueTime = 840
	spec.Items = []string{"collect numbers", "draft slides"}
	return spec
}

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func TestCommitMapsAllFields(t *testing.T) {
	cs := &captureStore{id: 42}
	svc, err := NewService(cs, "UTC")
	require.NoError(t, err)

	id, err := svc.Commit(context.Background(), completeSpec(), newYork(t), "dana")
	require.NoError(t, err)
	require.Equal(t, int64(42), id)

	req := cs.last
	require.Equal(t, "Quarterly report", req.TaskName)
	require.Equal(t, "Finance Team", req.MainController)
	require.Equal(t, "Compliance", req.Controllers)
	require.Equal(t, "John Smith,Jane Doe", req.Assignees)
	require.Equal(t, "2025-06-13", req.LocalDueDate)
	require.Equal(t, "America/New_York", req.Location)
	require.Equal(t, int32(840), req.DueTime)
	require.Equal(t, "collect numbers,draft slides", req.Items)
	require.False(t, req.IsRecurring)
	require.True(t, req.Activate)
	require.Equal(t, "dana", req.CreatorID)

	// 14:00 New York on June 13 is 18:00 UTC.
	due := time.Unix(req.DueDate, 0).UTC()
	require.Equal(t, "2025-06-13 18:00", due.Format("2006-01-02 15:04"))
}

func TestCommitDefaultsSoftAndFinalDates(t *testing.T) {
	cs := &captureStore{id: 1}
	svc, err := NewService(cs, "UTC")
	require.NoError(t, err)

	_, err = svc.Commit(context.Background(), completeSpec(), newYork(t), "dana")
	require.NoError(t, err)
	require.Equal(t, "2025-06-13", cs.last.SoftDueDate)
	require.Equal(t, "2025-06-13", cs.last.FinalDueDate)
}

func TestCommitRecurringAppliesBusinessDayShift(t *testing.T) {
	spec := completeSpec()
	// 2025-06-14 is a Saturday.
	spec.DueDate = &timeparse.CalendarDate{Year: 2025, Month: 6, Day: 14}
	spec.FinalDueDate = &timeparse.CalendarDate{Year: 2025, Month: 12, Day: 31}
	spec.Recurrence = recurrence.Spec{
		FreqType:            recurrence.FreqWeekly,
		FreqRecurrence:      recurrence.WeekdayBit(time.Saturday),
		BusinessDayBehavior: recurrence.BusinessDayShiftForward,
	}

	cs := &captureStore{id: 1}
	svc, err := NewService(cs, "UTC")
	require.NoError(t, err)

	_, err = svc.Commit(context.Background(), spec, newYork(t), "dana")
	require.NoError(t, err)
	require.True(t, cs.last.IsRecurring)
	require.Equal(t, "2025-06-16", cs.last.LocalDueDate)
	require.Equal(t, int32(1), cs.last.FreqInterval)
	require.Equal(t, int32(recurrence.FreqWeekly), cs.last.FreqType)
}

func TestCommitReminderDefaultsToDayBefore(t *testing.T) {
	spec := completeSpec()
	spec.IsReminder = true

	cs := &captureStore{id: 1}
	svc, err := NewService(cs, "UTC")
	require.NoError(t, err)

	_, err = svc.Commit(context.Background(), spec, newYork(t), "dana")
	require.NoError(t, err)
	require.True(t, cs.last.IsReminder)
	require.Equal(t, "2025-06-12", cs.last.ReminderDate)
}

func TestCommitReminderOffsetCountsBackFromDueInstant(t *testing.T) {
	spec := completeSpec()
	spec.IsReminder = true
	spec.ReminderOffsetHours = 2

	cs := &captureStore{id: 1}
	svc, err := NewService(cs, "UTC")
	require.NoError(t, err)

	// 2 hours before 14:00 stays on the due date.
	_, err = svc.Commit(context.Background(), spec, newYork(t), "dana")
	require.NoError(t, err)
	require.Equal(t, "2025-06-13", cs.last.ReminderDate)

	// With no time-of-day the task falls due at midnight, so the offset
	// crosses into the previous day.
	spec.DueTime = timeparse.DueTimeUnspecified
	_, err = svc.Commit(context.Background(), spec, newYork(t), "dana")
	require.NoError(t, err)
	require.Equal(t, "2025-06-12", cs.last.ReminderDate)
}

func TestCommitExplicitReminderDateBeatsOffset(t *testing.T) {
	spec := completeSpec()
	spec.IsReminder = true
	spec.ReminderOffsetHours = 2
	spec.ReminderDate = &timeparse.CalendarDate{Year: 2025, Month: 6, Day: 10}

	cs := &captureStore{id: 1}
	svc, err := NewService(cs, "UTC")
	require.NoError(t, err)

	_, err = svc.Commit(context.Background(), spec, newYork(t), "dana")
	require.NoError(t, err)
	require.Equal(t, "2025-06-10", cs.last.ReminderDate)
}

func TestCommitConfidentialPrefixesName(t *testing.T) {
	spec := completeSpec()
	spec.Confidential = true

	cs := &captureStore{id: 1}
	svc, err := NewService(cs, "UTC")
	require.NoError(t, err)

	_, err = svc.Commit(context.Background(), spec, newYork(t), "dana")
	require.NoError(t, err)
	require.Equal(t, "[CONFIDENTIAL] Quarterly report", cs.last.TaskName)
	require.True(t, cs.last.Confidential)
}

func TestCommitUnspecifiedDueTimeFallsDueAtMidnight(t *testing.T) {
	spec := completeSpec()
	spec.DueTime = timeparse.DueTimeUnspecified

	cs := &captureStore{id: 1}
	svc, err := NewService(cs, "UTC")
	require.NoError(t, err)

	_, err = svc.Commit(context.Background(), spec, newYork(t), "dana")
	require.NoError(t, err)
	require.Equal(t, int32(timeparse.DueTimeUnspecified), cs.last.DueTime)

	// Midnight New York on June 13 is 04:00 UTC.
	due := time.Unix(cs.last.DueDate, 0).UTC()
	require.Equal(t, "2025-06-13 04:00", due.Format("2006-01-02 15:04"))
}

func TestCommitRejectsIncompleteSpec(t *testing.T) {
	cs := &captureStore{id: 1}
	svc, err := NewService(cs, "UTC")
	require.NoError(t, err)

	_, err = svc.Commit(context.Background(), taskspec.NewTaskSpec(), newYork(t), "dana")
	require.Error(t, err)
	require.Nil(t, cs.last)
}

func TestCommitPassesDistinguishedErrorsThrough(t *testing.T) {
	cs := &captureStore{err: store.ErrDuplicateTaskName}
	svc, err := NewService(cs, "UTC")
	require.NoError(t, err)

	_, err = svc.Commit(context.Background(), completeSpec(), newYork(t), "dana")
	require.ErrorIs(t, err, store.ErrDuplicateTaskName)
}
