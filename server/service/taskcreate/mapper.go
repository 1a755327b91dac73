// Package taskcreate maps a finalized task specification onto the task
// store's creation contract. The mapping is the single place where resolved
// conversation fields become persisted column values; it is called exactly
// once per confirmed spec and never retries.
package taskcreate

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/qcheck/taskbot/plugin/ai/recurrence"
	"github.com/qcheck/taskbot/plugin/ai/timeparse"
	"github.com/qcheck/taskbot/server/service/directory"
	"github.com/qcheck/taskbot/server/service/taskspec"
	"github.com/qcheck/taskbot/server/timezone"
	"github.com/qcheck/taskbot/store"
)

// listDelimiter joins controller, assignee, and checklist lists for the
// store contract.
const listDelimiter = ","

// confidentialPrefix marks confidential tasks in systems that only see the
// task name.
const confidentialPrefix = "[CONFIDENTIAL] "

// Store is the interface for store operations needed by the mapper.
type Store interface {
	CreateTask(ctx context.Context, create *store.CreateTaskRequest) (int64, error)
}

// Service creates tasks from finalized specs.
type Service struct {
	store        Store
	canonicalLoc *time.Location
}

// NewService creates the mapper. canonicalTimezone is the zone task
// timestamps are stored in, typically the organization's home zone.
func NewService(st Store, canonicalTimezone string) (*Service, error) {
	loc, err := timezone.ParseTimezone(canonicalTimezone)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid canonical timezone %q", canonicalTimezone)
	}
	return &Service{store: st, canonicalLoc: loc}, nil
}

// Commit persists the spec and returns the created task ID. Distinguished
// store errors (store.ErrDuplicateTaskName, store.ErrOwnerGroupNotFound)
// pass through unchanged for the state machine to interpret.
func (s *Service) Commit(ctx context.Context, spec *taskspec.TaskSpec, tz *time.Location, creator string) (int64, error) {
	if !spec.Complete() {
		return 0, errors.New("cannot commit an incomplete task spec")
	}
	return s.store.CreateTask(ctx, s.buildRequest(spec, tz, creator))
}

// buildRequest translates the spec 1:1 into the creation contract.
func (s *Service) buildRequest(spec *taskspec.TaskSpec, tz *time.Location, creator string) *store.CreateTaskRequest {
	dueDate := *spec.DueDate
	if spec.Recurrence.IsRecurring() {
		dueDate = recurrence.ApplyBusinessDayShift(dueDate, spec.Recurrence.BusinessDayBehavior)
	}

	// The stored due instant is the local wall-clock due time expressed in
	// the canonical zone. An unspecified time-of-day falls due at local
	// midnight.
	minutes := spec.DueTime
	if minutes == timeparse.DueTimeUnspecified {
		minutes = 0
	}
	localDue := timezone.CombineDateTime(dueDate.Year, dueDate.Month, dueDate.Day, minutes, tz)
	canonicalDue := timezone.Convert(localDue, s.canonicalLoc)

	// Non-recurring tasks have a single deadline: the soft and final dates
	// collapse onto the due date unless the user set them explicitly.
	softDue := spec.SoftDueDate
	if softDue == nil {
		softDue = &dueDate
	}
	finalDue := spec.FinalDueDate
	if finalDue == nil {
		finalDue = &dueDate
	}

	// An explicit reminder date wins; otherwise an offset ("notification 2
	// hours before") counts back from the due instant, and reminders with
	// neither default to the day before they are due.
	reminderDate := ""
	if spec.IsReminder {
		switch {
		case spec.ReminderDate != nil:
			reminderDate = spec.ReminderDate.String()
		case spec.ReminderOffsetHours > 0:
			at := localDue.Add(-time.Duration(spec.ReminderOffsetHours) * time.Hour)
			reminderDate = timezone.FormatLocalDate(at, tz)
		default:
			reminderDate = dueDate.AddDays(-1).String()
		}
	}

	taskName := spec.TaskName
	if spec.Confidential && !strings.HasPrefix(taskName, confidentialPrefix) {
		taskName = confidentialPrefix + taskName
	}

	freqInterval := spec.Recurrence.FreqInterval
	if spec.Recurrence.IsRecurring() && freqInterval < 1 {
		freqInterval = 1
	}

	return &store.CreateTaskRequest{
		TaskName:       taskName,
		MainController: spec.MainController.CanonicalName,
		Controllers:    joinIdentities(spec.Controllers),
		Assignees:      joinIdentities(spec.Assignees),

		DueDate:      canonicalDue.Unix(),
		LocalDueDate: dueDate.String(),
		Location:     tz.String(),
		DueTime:      int32(spec.DueTime),

		SoftDueDate:  softDue.String(),
		FinalDueDate: finalDue.String(),

		Items: strings.Join(spec.Items, listDelimiter),

		IsRecurring:         spec.Recurrence.IsRecurring(),
		FreqType:            int32(spec.Recurrence.FreqType),
		FreqRecurrence:      int64(spec.Recurrence.FreqRecurrence),
		FreqInterval:        int32(freqInterval),
		BusinessDayBehavior: int32(spec.Recurrence.BusinessDayBehavior),

		Activate:          true,
		IsReminder:        spec.IsReminder,
		ReminderDate:      reminderDate,
		AddToPriorityList: spec.AddToPriorityList,

		Confidential: spec.Confidential,
		CreatorID:    creator,
	}
}

func joinIdentities(identities []*directory.ResolvedIdentity) string {
	names := make([]string, 0, len(identities))
	for _, identity := range identities {
		names = append(names, identity.CanonicalName)
	}
	return strings.Join(names, listDelimiter)
}
