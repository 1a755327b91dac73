package taskspec

import (
	"fmt"
	"strings"

	"github.com/qcheck/taskbot/plugin/ai/recurrence"
	"github.com/qcheck/taskbot/plugin/ai/timeparse"
	"github.com/qcheck/taskbot/server/service/directory"
)

// clarificationPrompts maps each required field to the question asked when
// it is the highest-priority missing field.
var clarificationPrompts = map[Field]string{
	FieldTaskName:       "What should the task be called?",
	FieldMainController: "Which group owns this task?",
	FieldAssignees:      "Who should this task be assigned to?",
	FieldDueDate:        "When is this task due?",
	FieldFinalDueDate:   "This task repeats, until what date should it keep recurring?",
}

// ClarificationFor returns the prompt for a missing field.
func ClarificationFor(field Field) string {
	if prompt, ok := clarificationPrompts[field]; ok {
		return prompt
	}
	return fmt.Sprintf("Could you provide the %s?", strings.ReplaceAll(string(field), "_", " "))
}

// affirmations and negations recognized without a language-model round trip
// while awaiting confirmation.
var (
	affirmations = map[string]bool{
		"yes": true, "y": true, "yep": true, "yeah": true, "yup": true,
		"confirm": true, "confirmed": true, "correct": true, "sure": true,
		"ok": true, "okay": true, "go ahead": true, "do it": true,
		"sounds good": true, "looks good": true, "create it": true,
	}
	negations = map[string]bool{
		"no": true, "n": true, "nope": true, "nah": true,
		"cancel": true, "stop": true, "wait": true, "don't": true, "dont": true,
		"not yet": true, "hold on": true,
	}
)

// parseConfirmation classifies a reply to the confirmation summary.
// Returns (answer, recognized); unrecognized replies go through extraction
// since they may carry corrections ("actually make it Friday").
func parseConfirmation(text string) (bool, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.TrimRight(s, ".!")
	if affirmations[s] {
		return true, true
	}
	if negations[s] {
		return false, true
	}
	return false, false
}

// Summarize renders the spec for user confirmation.
func Summarize(spec *TaskSpec) string {
	var b strings.Builder
	b.WriteString("Here's the task I'll create:\n")
	fmt.Fprintf(&b, "- Task: %s\n", spec.TaskName)
	if spec.Confidential {
		b.WriteString("- Confidential: yes\n")
	}
	fmt.Fprintf(&b, "- Owner: %s\n", spec.MainController.CanonicalName)
	if len(spec.Controllers) > 0 {
		fmt.Fprintf(&b, "- Also controlled by: %s\n", joinNames(identityNames(spec.Controllers)))
	}
	fmt.Fprintf(&b, "- Assigned to: %s\n", joinNames(identityNames(spec.Assignees)))
	fmt.Fprintf(&b, "- Due: %s", spec.DueDate)
	if spec.DueTime != timeparse.DueTimeUnspecified {
		fmt.Fprintf(&b, " at %s", timeparse.FromDueTimeEncoding(spec.DueTime))
	}
	b.WriteString("\n")
	if spec.SoftDueDate != nil {
		fmt.Fprintf(&b, "- Earliest acceptable: %s\n", spec.SoftDueDate)
	}
	if spec.Recurrence.IsRecurring() {
		fmt.Fprintf(&b, "- Repeats: %s\n", describeRecurrence(&spec.Recurrence))
		if spec.FinalDueDate != nil {
			fmt.Fprintf(&b, "- Until: %s\n", spec.FinalDueDate)
		}
	}
	if len(spec.Items) > 0 {
		fmt.Fprintf(&b, "- Checklist: %s\n", strings.Join(spec.Items, ", "))
	}
	if spec.IsReminder {
		b.WriteString("- This is a reminder")
		if spec.ReminderDate != nil {
			fmt.Fprintf(&b, " on %s", spec.ReminderDate)
		}
		b.WriteString("\n")
	}
	if spec.AddToPriorityList {
		b.WriteString("- Added to the priority list\n")
	}
	b.WriteString("Shall I create it?")
	return b.String()
}

func identityNames(identities []*directory.ResolvedIdentity) []string {
	names := make([]string, 0, len(identities))
	for _, identity := range identities {
		names = append(names, identity.CanonicalName)
	}
	return names
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1]
	}
}

func describeRecurrence(spec *recurrence.Spec) string {
	unit := ""
	switch spec.FreqType {
	case recurrence.FreqDaily:
		unit = "day"
	case recurrence.FreqWeekly:
		unit = "week"
	case recurrence.FreqMonthly:
		unit = "month"
	default:
		unit = "interval"
	}
	if spec.FreqInterval <= 1 {
		return "every " + unit
	}
	return fmt.Sprintf("every %d %ss", spec.FreqInterval, unit)
}
