package taskspec

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/qcheck/taskbot/plugin/ai/extract"
	"github.com/qcheck/taskbot/plugin/ai/recurrence"
	"github.com/qcheck/taskbot/plugin/ai/timeparse"
	engineerrors "github.com/qcheck/taskbot/server/internal/errors"
	"github.com/qcheck/taskbot/server/service/directory"
)

// applyDraft normalizes one turn's extracted fields into the spec. A field
// present in the draft overwrites the spec's value; absent fields are left
// alone, which makes applying the same fields in any order converge on the
// same spec.
//
// Returns a user-recoverable EngineError for the first field that fails
// normalization, leaving that spec field untouched so the user's next answer
// can fill it.
func (e *Engine) applyDraft(ctx context.Context, spec *TaskSpec, draft *extract.Draft, now time.Time, tz *time.Location) error {
	if name := strings.TrimSpace(draft.TaskName); name != "" {
		name = strings.TrimSpace(strings.Trim(name, `"'`))
		if len(name) < MinTaskNameLength {
			return engineerrors.Newf(engineerrors.ErrCodeInvalidArgument,
				"that task name is too short, it needs at least %d characters", MinTaskNameLength)
		}
		if len(name) > MaxTaskNameLength {
			return engineerrors.Newf(engineerrors.ErrCodeInvalidArgument,
				"that task name is too long (%d characters, limit %d), please shorten it", len(name), MaxTaskNameLength)
		}
		if idx := strings.IndexAny(name, taskNameInvalidChars); idx >= 0 {
			return engineerrors.Newf(engineerrors.ErrCodeInvalidArgument,
				"task names cannot contain %q, what should it be called instead?", name[idx])
		}
		spec.TaskName = name
	}

	if name := strings.TrimSpace(draft.MainController); name != "" {
		identity, err := e.resolver.ResolveGroup(ctx, name)
		if err != nil {
			return asIdentityError(err)
		}
		spec.MainController = identity
	}

	if len(draft.Controllers) > 0 {
		if len(draft.Controllers) > MaxControllers {
			return engineerrors.Newf(engineerrors.ErrCodeInvalidArgument,
				"too many controlling groups (%d, limit %d)", len(draft.Controllers), MaxControllers)
		}
		identities, err := e.resolver.ResolveAll(ctx, draft.Controllers)
		if err != nil {
			return asIdentityError(err)
		}
		spec.Controllers = identities
	}

	if len(draft.Assignees) > 0 {
		if len(draft.Assignees) > MaxAssignees {
			return engineerrors.Newf(engineerrors.ErrCodeInvalidArgument,
				"too many assignees (%d, limit %d)", len(draft.Assignees), MaxAssignees)
		}
		identities, err := e.resolver.ResolveAll(ctx, draft.Assignees)
		if err != nil {
			return asIdentityError(err)
		}
		spec.Assignees = identities
	}

	if phrase := strings.TrimSpace(draft.DueDate); phrase != "" {
		date, err := resolveDate(phrase, now, tz)
		if err != nil {
			return err
		}
		if date.String() < dateOf(now, tz).String() {
			return engineerrors.Newf(engineerrors.ErrCodeInvalidArgument,
				"%s is in the past, when should the task actually be due?", date)
		}
		spec.DueDate = &date
	}

	if phrase := strings.TrimSpace(draft.DueTime); phrase != "" {
		tod, err := timeparse.ResolveTimePhrase(phrase)
		if err != nil {
			var unknown *timeparse.UnknownTimePhraseError
			if errors.As(err, &unknown) {
				return engineerrors.Wrap(err, engineerrors.ErrCodeUnknownTimePhrase,
					"I don't recognize the time \""+unknown.Phrase+"\", try something like \"2pm\" or \"end of day\"")
			}
			return err
		}
		spec.DueTime = timeparse.ToDueTimeEncoding(tod)
	}

	if phrase := strings.TrimSpace(draft.SoftDueDate); phrase != "" {
		date, err := resolveDate(phrase, now, tz)
		if err != nil {
			return err
		}
		spec.SoftDueDate = &date
	}

	if phrase := strings.TrimSpace(draft.FinalDueDate); phrase != "" {
		date, err := resolveDate(phrase, now, tz)
		if err != nil {
			return err
		}
		spec.FinalDueDate = &date
	}

	if len(draft.Items) > 0 {
		if len(draft.Items) > MaxItems {
			return engineerrors.Newf(engineerrors.ErrCodeInvalidArgument,
				"too many checklist items (%d, limit %d)", len(draft.Items), MaxItems)
		}
		items := make([]string, 0, len(draft.Items))
		for _, item := range draft.Items {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		spec.Items = items
	}

	if phrase := strings.TrimSpace(draft.Recurrence); phrase != "" {
		rec, err := recurrence.Encode(phrase)
		if err != nil {
			var unsupported *recurrence.UnsupportedRecurrenceError
			if errors.As(err, &unsupported) {
				return engineerrors.Wrap(err, engineerrors.ErrCodeUnsupportedRecurrence,
					"I can't schedule \""+unsupported.Phrase+"\", supported patterns are daily, weekly, monthly, or \"every N days/weeks/months\"")
			}
			return err
		}
		behavior := spec.Recurrence.BusinessDayBehavior
		spec.Recurrence = *rec
		if spec.Recurrence.BusinessDayBehavior == recurrence.BusinessDayAsIs {
			spec.Recurrence.BusinessDayBehavior = behavior
		}
	}

	if behavior := strings.TrimSpace(draft.BusinessDays); behavior != "" {
		switch behavior {
		case "as_is":
			spec.Recurrence.BusinessDayBehavior = recurrence.BusinessDayAsIs
		case "shift_forward":
			spec.Recurrence.BusinessDayBehavior = recurrence.BusinessDayShiftForward
		case "shift_backward":
			spec.Recurrence.BusinessDayBehavior = recurrence.BusinessDayShiftBackward
		}
	}

	if draft.Confidential != nil {
		spec.Confidential = *draft.Confidential
	}
	if draft.AddToPriorityList != nil {
		spec.AddToPriorityList = *draft.AddToPriorityList
	}
	if draft.IsReminder != nil {
		spec.IsReminder = *draft.IsReminder
	}
	if phrase := strings.TrimSpace(draft.ReminderDate); phrase != "" {
		date, err := resolveDate(phrase, now, tz)
		if err != nil {
			return err
		}
		spec.ReminderDate = &date
	}
	if draft.ReminderOffsetHours > 0 {
		spec.ReminderOffsetHours = draft.ReminderOffsetHours
	}

	// Weekly recurrence without an explicit weekday pattern repeats on the
	// due date's weekday.
	if spec.Recurrence.FreqType == recurrence.FreqWeekly && spec.Recurrence.FreqRecurrence == 0 && spec.DueDate != nil {
		spec.Recurrence.FreqRecurrence = recurrence.WeekdayBit(spec.DueDate.Weekday())
	}

	return nil
}

func resolveDate(phrase string, now time.Time, tz *time.Location) (timeparse.CalendarDate, error) {
	date, err := timeparse.ResolveDatePhrase(phrase, now, tz)
	if err == nil {
		return date, nil
	}
	var ambiguous *timeparse.AmbiguousPhraseError
	if errors.As(err, &ambiguous) {
		candidates := make([]string, 0, len(ambiguous.Candidates))
		for _, c := range ambiguous.Candidates {
			candidates = append(candidates, c.String())
		}
		return date, engineerrors.Wrap(err, engineerrors.ErrCodeAmbiguousPhrase,
			"\""+ambiguous.Phrase+"\" could mean "+strings.Join(candidates, " or ")+", which one do you mean?")
	}
	return date, engineerrors.Wrap(err, engineerrors.ErrCodeUnknownTimePhrase,
		"I don't recognize the date \""+phrase+"\", try \"tomorrow\", \"next friday\", or 2025-06-30")
}

func asIdentityError(err error) error {
	var nf *directory.NotFoundError
	if errors.As(err, &nf) {
		msg := "I can't find \"" + nf.Name + "\" in the directory"
		if len(nf.Suggestions) > 0 {
			msg += ", did you mean " + strings.Join(nf.Suggestions, ", ") + "?"
		} else {
			msg += ", could you check the spelling?"
		}
		return engineerrors.Wrap(err, engineerrors.ErrCodeIdentityNotFound, msg)
	}
	return err
}

func dateOf(t time.Time, tz *time.Location) timeparse.CalendarDate {
	local := t.In(tz)
	return timeparse.CalendarDate{Year: local.Year(), Month: local.Month(), Day: local.Day()}
}
