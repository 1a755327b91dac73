package taskspec

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qcheck/taskbot/plugin/ai"
	"github.com/qcheck/taskbot/plugin/ai/extract"
	"github.com/qcheck/taskbot/plugin/ai/recurrence"
	engineerrors "github.com/qcheck/taskbot/server/internal/errors"
	"github.com/qcheck/taskbot/server/service/directory"
	"github.com/qcheck/taskbot/store"
)

// scriptedExtractor returns queued drafts or errors, bypassing any LLM.
type scriptedExtractor struct {
	results []any // *extract.Draft or error
	calls   int
}

func (s *scriptedExtractor) Extract(_ context.Context, _ []ai.Message, _ string, _ *time.Location) (*extract.Draft, error) {
	if s.calls >= len(s.results) {
		return nil, &extract.Error{Kind: extract.NoSignal}
	}
	result := s.results[s.calls]
	s.calls++
	if err, ok := result.(error); ok {
		return nil, err
	}
	return result.(*extract.Draft), nil
}

// fakeResolver resolves from a fixed table.
type fakeResolver struct {
	entries map[string]*directory.ResolvedIdentity
}

func (f *fakeResolver) Resolve(_ context.Context, name string) (*directory.ResolvedIdentity, error) {
	if identity, ok := f.entries[store.NormalizeName(name)]; ok {
		return identity, nil
	}
	return nil, &directory.NotFoundError{Name: name}
}

func (f *fakeResolver) ResolveAll(ctx context.Context, names []string) ([]*directory.ResolvedIdentity, error) {
	resolved := make([]*directory.ResolvedIdentity, 0, len(names))
	for _, name := range names {
		identity, err := f.Resolve(ctx, name)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, identity)
	}
	return resolved, nil
}

func (f *fakeResolver) ResolveGroup(ctx context.Context, name string) (*directory.ResolvedIdentity, error) {
	identity, err := f.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	if identity.Kind != store.EntryKindGroup {
		return nil, &directory.NotFoundError{Name: name}
	}
	return identity, nil
}

// fakeCommitter records commits and returns scripted results.
type fakeCommitter struct {
	id        int64
	err       error
	committed []*TaskSpec
}

func (f *fakeCommitter) Commit(_ context.Context, spec *TaskSpec, _ *time.Location, _ string) (int64, error) {
	f.committed = append(f.committed, spec)
	if f.err != nil {
		err := f.err
		f.err = nil
		return 0, err
	}
	return f.id, nil
}

func testResolver() *fakeResolver {
	return &fakeResolver{entries: map[string]*directory.ResolvedIdentity{
		"finance team": {ID: 1, CanonicalName: "Finance Team", Kind: store.EntryKindGroup},
		"operations":   {ID: 2, CanonicalName: "Operations", Kind: store.EntryKindGroup},
		"john":         {ID: 3, CanonicalName: "John Smith", Kind: store.EntryKindPerson},
		"jane":         {ID: 4, CanonicalName: "Jane Doe", Kind: store.EntryKindPerson},
		"dana wu":      {ID: 5, CanonicalName: "Dana Wu", Kind: store.EntryKindGroup},
	}}
}

// mondayMorning is Monday 2025-06-09 09:00 in New York.
func mondayMorning(t *testing.T) func() time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	ref := time.Date(2025, 6, 9, 9, 0, 0, 0, loc)
	return func() time.Time { return ref }
}

func newTestEngine(t *testing.T, extractor Extractor, committer Committer) *Engine {
	t.Helper()
	registry := NewRegistry(nil, 30*time.Minute)
	t.Cleanup(registry.Close)
	return NewEngine(extractor, testResolver(), committer, nil, registry, nil).WithClock(mondayMorning(t))
}

func boolPtr(b bool) *bool { return &b }

func TestEndToEndScheduleMeeting(t *testing.T) {
	extractor := &scriptedExtractor{results: []any{
		&extract.Draft{
			TaskName:  "Team meeting",
			DueDate:   "next friday",
			DueTime:   "2pm",
			Assignees: []string{"John", "Jane"},
		},
	}}
	committer := &fakeCommitter{id: 42}
	engine := newTestEngine(t, extractor, committer)

	reply, err := engine.PostMessage(context.Background(),
		"", "Dana Wu", "Schedule a team meeting for next Friday at 2pm with John and Jane", "America/New_York")
	require.NoError(t, err)
	require.Equal(t, StateAwaitingConfirmation, reply.State)
	require.Contains(t, reply.Text, "Team meeting")
	require.Contains(t, reply.Text, "2025-06-13")
	require.Contains(t, reply.Text, "14:00")
	require.Contains(t, reply.Text, "John Smith and Jane Doe")
	require.NotEmpty(t, reply.SessionID)

	reply, err = engine.PostMessage(context.Background(), reply.SessionID, "Dana Wu", "yes", "America/New_York")
	require.NoError(t, err)
	require.Equal(t, StateComplete, reply.State)
	require.Equal(t, int64(42), reply.CreatedTaskID)

	require.Len(t, committer.committed, 1)
	spec := committer.committed[0]
	require.Equal(t, "Team meeting", spec.TaskName)
	require.Equal(t, "2025-06-13", spec.DueDate.String())
	require.Equal(t, 840, spec.DueTime)
	require.Equal(t, recurrence.FreqNone, spec.Recurrence.FreqType)
	// Owner defaulted from the requesting user.
	require.Equal(t, "Dana Wu", spec.MainController.CanonicalName)
}

func TestReminderWithoutAssigneeAsksForAssignees(t *testing.T) {
	extractor := &scriptedExtractor{results: []any{
		&extract.Draft{
			TaskName:   "Review documents",
			DueDate:    "tomorrow",
			DueTime:    "5pm",
			IsReminder: boolPtr(true),
		},
	}}
	engine := newTestEngine(t, extractor, &fakeCommitter{id: 1})

	reply, err := engine.PostMessage(context.Background(),
		"", "Dana Wu", "Remind me to review documents tomorrow at 5pm", "America/New_York")
	require.NoError(t, err)
	require.Equal(t, StateCollecting, reply.State)
	require.Equal(t, ClarificationFor(FieldAssignees), reply.Text)
}

func TestUnknownAssigneeYieldsClarification(t *testing.T) {
	extractor := &scriptedExtractor{results: []any{
		&extract.Draft{Assignees: []string{"Nobody Here"}},
	}}
	engine := newTestEngine(t, extractor, &fakeCommitter{id: 1})

	reply, err := engine.PostMessage(context.Background(), "", "Dana Wu", "assign it to Nobody Here", "America/New_York")
	require.NoError(t, err)
	require.Equal(t, StateCollecting, reply.State)
	require.Contains(t, reply.Text, "Nobody Here")
	require.Contains(t, reply.Text, "directory")
}

func TestAmbiguousDateYieldsClarification(t *testing.T) {
	extractor := &scriptedExtractor{results: []any{
		&extract.Draft{DueDate: "friday"},
	}}
	engine := newTestEngine(t, extractor, &fakeCommitter{id: 1})

	reply, err := engine.PostMessage(context.Background(), "", "Dana Wu", "due friday", "America/New_York")
	require.NoError(t, err)
	require.Equal(t, StateCollecting, reply.State)
	require.Contains(t, reply.Text, "could mean")
	require.Contains(t, reply.Text, "which one")
}

func TestUnsupportedRecurrenceYieldsClarification(t *testing.T) {
	extractor := &scriptedExtractor{results: []any{
		&extract.Draft{Recurrence: "every leap year"},
	}}
	engine := newTestEngine(t, extractor, &fakeCommitter{id: 1})

	reply, err := engine.PostMessage(context.Background(), "", "Dana Wu", "repeat it every leap year", "America/New_York")
	require.NoError(t, err)
	require.Equal(t, StateCollecting, reply.State)
	require.Contains(t, reply.Text, "every leap year")
}

func TestDuplicateNameAfterConfirmationReopensCollection(t *testing.T) {
	extractor := &scriptedExtractor{results: []any{
		&extract.Draft{
			TaskName:       "Quarterly report",
			MainController: "Finance Team",
			Assignees:      []string{"John"},
			DueDate:        "tomorrow",
		},
	}}
	committer := &fakeCommitter{id: 7, err: store.ErrDuplicateTaskName}
	engine := newTestEngine(t, extractor, committer)

	reply, err := engine.PostMessage(context.Background(), "", "Dana Wu", "create quarterly report", "America/New_York")
	require.NoError(t, err)
	require.Equal(t, StateAwaitingConfirmation, reply.State)

	reply, err = engine.PostMessage(context.Background(), reply.SessionID, "Dana Wu", "yes", "America/New_York")
	require.NoError(t, err)
	require.Equal(t, StateCollecting, reply.State)
	require.Contains(t, reply.Text, "Quarterly report")
	require.Contains(t, reply.Text, "called instead")
	require.Zero(t, reply.CreatedTaskID)
}

func TestDeclinedConfirmationReopensCollection(t *testing.T) {
	extractor := &scriptedExtractor{results: []any{
		&extract.Draft{
			TaskName:       "Quarterly report",
			MainController: "Finance Team",
			Assignees:      []string{"John"},
			DueDate:        "tomorrow",
		},
	}}
	committer := &fakeCommitter{id: 7}
	engine := newTestEngine(t, extractor, committer)

	reply, err := engine.PostMessage(context.Background(), "", "Dana Wu", "create quarterly report", "America/New_York")
	require.NoError(t, err)
	require.Equal(t, StateAwaitingConfirmation, reply.State)

	reply, err = engine.PostMessage(context.Background(), reply.SessionID, "Dana Wu", "no", "America/New_York")
	require.NoError(t, err)
	require.Equal(t, StateCollecting, reply.State)
	require.Empty(t, committer.committed)
}

func TestExtractionUnavailableFailsSession(t *testing.T) {
	extractor := &scriptedExtractor{results: []any{
		&extract.Error{Kind: extract.Unavailable},
	}}
	engine := newTestEngine(t, extractor, &fakeCommitter{id: 1})

	reply, err := engine.PostMessage(context.Background(), "", "Dana Wu", "create a task", "America/New_York")
	require.NoError(t, err)
	require.Equal(t, StateFailed, reply.State)
	require.Contains(t, reply.Text, "NOT created")
}

func TestTerminalSessionRejectsFurtherInput(t *testing.T) {
	extractor := &scriptedExtractor{results: []any{
		&extract.Error{Kind: extract.Unavailable},
	}}
	engine := newTestEngine(t, extractor, &fakeCommitter{id: 1})

	reply, err := engine.PostMessage(context.Background(), "", "Dana Wu", "create a task", "America/New_York")
	require.NoError(t, err)
	require.Equal(t, StateFailed, reply.State)

	// Terminal sessions are evicted; a reused ID starts fresh, so pin one
	// open session to FAILED manually to exercise the terminal guard.
	session, release, err := engine.registry.Acquire(context.Background(), "pinned", "Dana Wu", "UTC")
	require.NoError(t, err)
	session.State = StateComplete
	session.CreatedTaskID = 9
	release()

	reply, err = engine.PostMessage(context.Background(), "pinned", "Dana Wu", "one more thing", "UTC")
	require.NoError(t, err)
	require.Equal(t, StateComplete, reply.State)
	require.Equal(t, int64(9), reply.CreatedTaskID)
	require.Contains(t, reply.Text, "already finished")
}

func TestConcurrentMessageRejected(t *testing.T) {
	registry := NewRegistry(nil, 30*time.Minute)
	defer registry.Close()

	_, release, err := registry.Acquire(context.Background(), "sess", "Dana Wu", "UTC")
	require.NoError(t, err)

	_, _, err = registry.Acquire(context.Background(), "sess", "Dana Wu", "UTC")
	require.Error(t, err)
	require.True(t, engineerrors.IsCode(err, engineerrors.ErrCodeSessionBusy))

	release()
	_, release, err = registry.Acquire(context.Background(), "sess", "Dana Wu", "UTC")
	require.NoError(t, err)
	release()
}

func TestIdleSessionExpires(t *testing.T) {
	registry := NewRegistry(nil, 10*time.Minute)
	defer registry.Close()

	current := time.Date(2025, 6, 9, 9, 0, 0, 0, time.UTC)
	registry.now = func() time.Time { return current }

	_, release, err := registry.Acquire(context.Background(), "sess", "Dana Wu", "UTC")
	require.NoError(t, err)
	release()
	require.Equal(t, 1, registry.Len())

	current = current.Add(11 * time.Minute)
	registry.expireIdle()
	require.Equal(t, 0, registry.Len())
}

func TestMergeIsOrderIndependent(t *testing.T) {
	drafts := []*extract.Draft{
		{TaskName: "Quarterly report"},
		{MainController: "Finance Team"},
		{Assignees: []string{"John", "Jane"}},
		{DueDate: "tomorrow", DueTime: "end of day"},
	}
	engine := newTestEngine(t, &scriptedExtractor{}, &fakeCommitter{id: 1})
	now := mondayMorning(t)()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	build := func(order []int) *TaskSpec {
		spec := NewTaskSpec()
		for _, i := range order {
			require.NoError(t, engine.applyDraft(context.Background(), spec, drafts[i], now, loc))
		}
		return spec
	}

	reference := build([]int{0, 1, 2, 3})
	for _, order := range [][]int{
		{3, 2, 1, 0},
		{1, 3, 0, 2},
		{2, 0, 3, 1},
		{0, 1, 2, 3, 0, 1, 2, 3}, // applying twice changes nothing
	} {
		require.Equal(t, reference, build(order), "order %v", order)
	}
}

func TestAffirmativeOutsideLexiconFinalizes(t *testing.T) {
	extractor := &scriptedExtractor{results: []any{
		&extract.Draft{
			TaskName:       "Quarterly report",
			MainController: "Finance Team",
			Assignees:      []string{"John"},
			DueDate:        "tomorrow",
		},
		&extract.Draft{Confirmed: boolPtr(true)},
	}}
	committer := &fakeCommitter{id: 7}
	engine := newTestEngine(t, extractor, committer)

	reply, err := engine.PostMessage(context.Background(), "", "Dana Wu", "create quarterly report", "America/New_York")
	require.NoError(t, err)
	require.Equal(t, StateAwaitingConfirmation, reply.State)

	reply, err = engine.PostMessage(context.Background(), reply.SessionID, "Dana Wu", "yes please, create it now", "America/New_York")
	require.NoError(t, err)
	require.Equal(t, StateComplete, reply.State)
	require.Equal(t, int64(7), reply.CreatedTaskID)
	require.Len(t, committer.committed, 1)
}

func TestNegativeOutsideLexiconReopensCollection(t *testing.T) {
	extractor := &scriptedExtractor{results: []any{
		&extract.Draft{
			TaskName:       "Quarterly report",
			MainController: "Finance Team",
			Assignees:      []string{"John"},
			DueDate:        "tomorrow",
		},
		&extract.Draft{Confirmed: boolPtr(false)},
	}}
	committer := &fakeCommitter{id: 7}
	engine := newTestEngine(t, extractor, committer)

	reply, err := engine.PostMessage(context.Background(), "", "Dana Wu", "create quarterly report", "America/New_York")
	require.NoError(t, err)
	require.Equal(t, StateAwaitingConfirmation, reply.State)

	reply, err = engine.PostMessage(context.Background(), reply.SessionID, "Dana Wu", "hmm, rather not", "America/New_York")
	require.NoError(t, err)
	require.Equal(t, StateCollecting, reply.State)
	require.Empty(t, committer.committed)
}

func TestPersonRequesterIsNotDefaultedAsOwner(t *testing.T) {
	extractor := &scriptedExtractor{results: []any{
		&extract.Draft{
			TaskName:  "Quarterly report",
			Assignees: []string{"Jane"},
			DueDate:   "tomorrow",
		},
	}}
	engine := newTestEngine(t, extractor, &fakeCommitter{id: 1})

	reply, err := engine.PostMessage(context.Background(), "", "John", "create quarterly report", "America/New_York")
	require.NoError(t, err)
	require.Equal(t, StateCollecting, reply.State)
	require.Equal(t, ClarificationFor(FieldMainController), reply.Text)
}

func TestOverlongMessageNamesTheLimit(t *testing.T) {
	extractor := &scriptedExtractor{results: []any{
		&extract.Error{Kind: extract.TooLong},
	}}
	engine := newTestEngine(t, extractor, &fakeCommitter{id: 1})

	reply, err := engine.PostMessage(context.Background(), "", "Dana Wu", "pretend this is very long", "America/New_York")
	require.NoError(t, err)
	require.Equal(t, StateCollecting, reply.State)
	require.Contains(t, reply.Text, "5000")
}

func TestApplyDraftValidatesTaskName(t *testing.T) {
	engine := newTestEngine(t, &scriptedExtractor{}, &fakeCommitter{id: 1})
	now := mondayMorning(t)()

	tests := []struct {
		name     string
		taskName string
		wantIn   string
	}{
		{"too short", "ab", "too short"},
		{"too short after quote strip", `"ab"`, "too short"},
		{"too long", strings.Repeat("a", MaxTaskNameLength+1), "too long"},
		{"angle bracket", "Report <draft>", "cannot contain"},
		{"pipe", "Report | final", "cannot contain"},
		{"interior quote", "John's report", "cannot contain"},
		{"backslash", `Report \ final`, "cannot contain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := NewTaskSpec()
			err := engine.applyDraft(context.Background(), spec, &extract.Draft{TaskName: tt.taskName}, now, time.UTC)
			require.Error(t, err)
			require.True(t, engineerrors.IsCode(err, engineerrors.ErrCodeInvalidArgument))
			var engineErr *engineerrors.EngineError
			require.ErrorAs(t, err, &engineErr)
			require.Contains(t, engineErr.Message, tt.wantIn)
			require.Empty(t, spec.TaskName)
		})
	}
}

func TestApplyDraftRejectsTooManyAssignees(t *testing.T) {
	engine := newTestEngine(t, &scriptedExtractor{}, &fakeCommitter{id: 1})
	now := mondayMorning(t)()

	names := make([]string, MaxAssignees+1)
	for i := range names {
		names[i] = "john"
	}
	spec := NewTaskSpec()
	err := engine.applyDraft(context.Background(), spec, &extract.Draft{Assignees: names}, now, time.UTC)
	require.Error(t, err)
	require.True(t, engineerrors.IsCode(err, engineerrors.ErrCodeInvalidArgument))
	require.Empty(t, spec.Assignees)
}
