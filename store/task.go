package store

import "errors"

// Distinguished persistence errors. Drivers translate constraint violations
// into these so callers can map them to user-facing clarifications.
var (
	ErrOwnerGroupNotFound = errors.New("owner group not found")
	ErrDuplicateTaskName  = errors.New("duplicate task name for owner group")
)

// CreateTaskRequest carries the full parameter set of the task-creation
// procedure. Name lists (Controllers, Assignees, Items) are comma-delimited
// strings; the caller encodes them.
type CreateTaskRequest struct {
	TaskName       string
	MainController string
	Controllers    string
	Assignees      string

	// DueDate is the due instant in the canonical zone, unix seconds.
	// LocalDueDate is the wall-clock date in the session zone, "2006-01-02".
	// Location is the IANA timezone the local date was computed in.
	DueDate      int64
	LocalDueDate string
	Location     string
	// DueTime is minutes since local midnight, -1 when unspecified.
	DueTime int32

	SoftDueDate  string
	FinalDueDate string

	Items string

	IsRecurring         bool
	FreqType            int32
	FreqRecurrence      int64
	FreqInterval        int32
	BusinessDayBehavior int32

	Activate          bool
	IsReminder        bool
	ReminderDate      string
	AddToPriorityList bool

	Confidential bool
	CreatorID    string
}

// Task is a persisted task row.
type Task struct {
	ID             int64
	UID            string
	TaskName       string
	MainController string
	Assignees      string
	LocalDueDate   string
	IsRecurring    bool
	CreatedTs      int64
}

// FindTask is the filter for task lookups.
type FindTask struct {
	ID             *int64
	UID            *string
	TaskName       *string
	MainController *string
}
