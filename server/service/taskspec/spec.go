// Package taskspec turns a multi-turn conversation into a validated,
// fully-resolved task specification.
//
// Key features:
//   - Incremental field collection across turns with deterministic merging
//   - Completion state machine (collecting, confirmation, finalizing)
//   - Per-session serialization of in-flight requests
//
// The package owns no I/O of its own: language understanding, identity
// resolution, and persistence are injected.
package taskspec

import (
	"github.com/qcheck/taskbot/plugin/ai/recurrence"
	"github.com/qcheck/taskbot/plugin/ai/timeparse"
	"github.com/qcheck/taskbot/server/service/directory"
)

// SessionState is the lifecycle state of a conversation session.
type SessionState string

const (
	StateCollecting           SessionState = "COLLECTING"
	StateAwaitingConfirmation SessionState = "AWAITING_CONFIRMATION"
	StateFinalizing           SessionState = "FINALIZING"
	StateComplete             SessionState = "COMPLETE"
	StateFailed               SessionState = "FAILED"
)

// Terminal reports whether the session accepts no further input.
func (s SessionState) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// Field names a TaskSpec field, used for missing-field prompts and for
// clearing a field after a validation failure.
type Field string

const (
	FieldTaskName       Field = "task_name"
	FieldMainController Field = "main_controller"
	FieldAssignees      Field = "assignees"
	FieldDueDate        Field = "due_date"
	FieldFinalDueDate   Field = "final_due_date"
)

// Validation limits for collected fields.
const (
	MinTaskNameLength = 3
	MaxTaskNameLength = 200
	MaxAssignees      = 10
	MaxControllers    = 10
	MaxItems          = 30
)

// taskNameInvalidChars are rejected in task names; they break downstream
// consumers of the persisted name.
const taskNameInvalidChars = `<>"'\|`

// TaskSpec is the resolved, validated representation of the task being
// assembled. Raw extracted values never land here; every field has passed
// normalization or identity resolution.
type TaskSpec struct {
	TaskName       string                        `json:"task_name,omitempty"`
	MainController *directory.ResolvedIdentity   `json:"main_controller,omitempty"`
	Controllers    []*directory.ResolvedIdentity `json:"controllers,omitempty"`
	Assignees      []*directory.ResolvedIdentity `json:"assignees,omitempty"`

	DueDate *timeparse.CalendarDate `json:"due_date,omitempty"`
	// DueTime is minutes since local midnight, -1 when unspecified.
	DueTime      int                     `json:"due_time"`
	SoftDueDate  *timeparse.CalendarDate `json:"soft_due_date,omitempty"`
	FinalDueDate *timeparse.CalendarDate `json:"final_due_date,omitempty"`

	Items []string `json:"items,omitempty"`

	Recurrence recurrence.Spec `json:"recurrence"`

	Confidential      bool `json:"confidential,omitempty"`
	AddToPriorityList bool `json:"add_to_priority_list,omitempty"`

	IsReminder          bool                    `json:"is_reminder,omitempty"`
	ReminderDate        *timeparse.CalendarDate `json:"reminder_date,omitempty"`
	ReminderOffsetHours int                     `json:"reminder_offset_hours,omitempty"`
}

// NewTaskSpec returns an empty spec with sentinel defaults in place.
func NewTaskSpec() *TaskSpec {
	return &TaskSpec{DueTime: timeparse.DueTimeUnspecified}
}

// MissingFields returns the unfilled required fields in prompt priority
// order. The order is fixed: users are asked for the task name before its
// owner, owner before assignees, and dates last. FinalDueDate is required
// only for recurring tasks.
func (s *TaskSpec) MissingFields() []Field {
	missing := []Field{}
	if s.TaskName == "" {
		missing = append(missing, FieldTaskName)
	}
	if s.MainController == nil {
		missing = append(missing, FieldMainController)
	}
	if len(s.Assignees) == 0 {
		missing = append(missing, FieldAssignees)
	}
	if s.DueDate == nil {
		missing = append(missing, FieldDueDate)
	}
	if s.Recurrence.IsRecurring() && s.FinalDueDate == nil {
		missing = append(missing, FieldFinalDueDate)
	}
	return missing
}

// Complete reports whether every required field is filled.
func (s *TaskSpec) Complete() bool {
	return len(s.MissingFields()) == 0
}

// Clear resets a single field, used when persistence rejects a value and
// the user must supply a new one.
func (s *TaskSpec) Clear(field Field) {
	switch field {
	case FieldTaskName:
		s.TaskName = ""
	case FieldMainController:
		s.MainController = nil
	case FieldAssignees:
		s.Assignees = nil
	case FieldDueDate:
		s.DueDate = nil
	case FieldFinalDueDate:
		s.FinalDueDate = nil
	}
}
