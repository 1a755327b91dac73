package extract

// Draft carries the raw, unresolved fields the language-understanding
// service inferred from one message. Absent fields are omitted, never
// defaulted; date, time and recurrence values stay as the user phrased them
// until the normalizer resolves them.
type Draft struct {
	TaskName       string   `json:"task_name,omitempty"`
	MainController string   `json:"main_controller,omitempty"`
	Controllers    []string `json:"controllers,omitempty"`
	Assignees      []string `json:"assignees,omitempty"`

	DueDate      string `json:"due_date,omitempty"`
	DueTime      string `json:"due_time,omitempty"`
	SoftDueDate  string `json:"soft_due_date,omitempty"`
	FinalDueDate string `json:"final_due_date,omitempty"`

	Items      []string `json:"items,omitempty"`
	Recurrence string   `json:"recurrence,omitempty"`
	// BusinessDays is one of "as_is", "shift_forward", "shift_backward".
	BusinessDays string `json:"business_days,omitempty"`

	Confidential      *bool  `json:"confidential,omitempty"`
	AddToPriorityList *bool  `json:"add_to_priority_list,omitempty"`
	IsReminder        *bool  `json:"is_reminder,omitempty"`
	ReminderDate      string `json:"reminder_date,omitempty"`
	// ReminderOffsetHours is set for phrases like "notification 2 hours before".
	ReminderOffsetHours int `json:"reminder_offset_hours,omitempty"`

	// Confirmed is set when the latest message is an affirmative answer to a
	// pending confirmation summary rather than new field content.
	Confirmed *bool `json:"confirmed,omitempty"`
}

// IsEmpty reports whether the draft carries no inferred fields at all.
func (d *Draft) IsEmpty() bool {
	if d == nil {
		return true
	}
	return d.TaskName == "" &&
		d.MainController == "" &&
		len(d.Controllers) == 0 &&
		len(d.Assignees) == 0 &&
		d.DueDate == "" &&
		d.DueTime == "" &&
		d.SoftDueDate == "" &&
		d.FinalDueDate == "" &&
		len(d.Items) == 0 &&
		d.Recurrence == "" &&
		d.BusinessDays == "" &&
		d.Confidential == nil &&
		d.AddToPriorityList == nil &&
		d.IsReminder == nil &&
		d.ReminderDate == "" &&
		d.ReminderOffsetHours == 0 &&
		d.Confirmed == nil
}

// OnlyConfirmation reports whether the draft carries a confirmation answer
// and nothing else, the shape the extraction prompt mandates for plain
// yes/no replies.
func (d *Draft) OnlyConfirmation() bool {
	if d == nil || d.Confirmed == nil {
		return false
	}
	rest := *d
	rest.Confirmed = nil
	return rest.IsEmpty()
}
