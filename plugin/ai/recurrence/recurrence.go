// Package recurrence encodes natural-language recurrence descriptions into
// the frequency triplet used by the task persistence contract. Unsupported
// patterns fail explicitly; the engine never silently downgrades a recurring
// request to a one-off task.
package recurrence

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/qcheck/taskbot/plugin/ai/timeparse"
)

// FreqType is the recurrence kind.
type FreqType int

const (
	FreqNone FreqType = iota
	FreqDaily
	FreqWeekly
	FreqMonthly
	FreqCustom
)

// String returns the canonical name of the frequency type.
func (f FreqType) String() string {
	switch f {
	case FreqNone:
		return "NONE"
	case FreqDaily:
		return "DAILY"
	case FreqWeekly:
		return "WEEKLY"
	case FreqMonthly:
		return "MONTHLY"
	case FreqCustom:
		return "CUSTOM"
	}
	return fmt.Sprintf("FreqType(%d)", int(f))
}

// BusinessDayBehavior is the policy for due dates landing on non-business days.
type BusinessDayBehavior int

const (
	BusinessDayAsIs BusinessDayBehavior = iota
	BusinessDayShiftForward
	BusinessDayShiftBackward
)

// Spec is the encoded recurrence triplet.
//
// FreqRecurrence is the sub-pattern: a weekday bitmask for weekly recurrence
// (Sunday = bit 0 through Saturday = bit 6) or a day-of-month for monthly.
// Zero means "derive from the resolved due date".
type Spec struct {
	FreqType            FreqType
	FreqRecurrence      int
	FreqInterval        int
	BusinessDayBehavior BusinessDayBehavior
}

// IsRecurring reports whether the spec describes an actual repetition.
func (s *Spec) IsRecurring() bool {
	return s != nil && s.FreqType != FreqNone
}

// UnsupportedRecurrenceError reports a pattern the encoder refuses to guess at.
type UnsupportedRecurrenceError struct {
	Phrase string
}

func (e *UnsupportedRecurrenceError) Error() string {
	return fmt.Sprintf("unsupported recurrence pattern %q", e.Phrase)
}

// WeekdayBit returns the bitmask bit for a weekday (Sunday = 1).
func WeekdayBit(d time.Weekday) int {
	return 1 << int(d)
}

var (
	everyNDaysPattern   = regexp.MustCompile(`^every\s+(\d+)\s+days?$`)
	everyNWeeksPattern  = regexp.MustCompile(`^every\s+(\d+)\s+weeks?$`)
	everyNMonthsPattern = regexp.MustCompile(`^every\s+(\d+)\s+months?$`)
	everyWeekdayName    = regexp.MustCompile(`^every\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday)$`)
	monthlyOnDay        = regexp.MustCompile(`^(?:every\s+month|monthly)\s+on(?:\s+the)?\s+(\d{1,2})(?:st|nd|rd|th)?$`)
)

var weekdayByName = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Encode maps a human recurrence description to a Spec. The interval
// defaults to 1 when the phrase names no explicit count.
func Encode(phrase string) (*Spec, error) {
	s := strings.ToLower(strings.TrimSpace(phrase))
	if s == "" || s == "none" || s == "once" || s == "one-time" || s == "one time" {
		return &Spec{FreqType: FreqNone}, nil
	}

	switch s {
	case "daily", "every day", "each day", "everyday":
		return &Spec{FreqType: FreqDaily, FreqInterval: 1}, nil
	case "weekly", "every week", "each week":
		return &Spec{FreqType: FreqWeekly, FreqInterval: 1}, nil
	case "biweekly", "every other week", "every two weeks":
		return &Spec{FreqType: FreqWeekly, FreqInterval: 2}, nil
	case "monthly", "every month", "each month":
		return &Spec{FreqType: FreqMonthly, FreqInterval: 1}, nil
	case "quarterly", "every quarter":
		return &Spec{FreqType: FreqMonthly, FreqInterval: 3}, nil
	case "every weekday", "weekdays", "every business day":
		mask := 0
		for d := time.Monday; d <= time.Friday; d++ {
			mask |= WeekdayBit(d)
		}
		return &Spec{FreqType: FreqWeekly, FreqRecurrence: mask, FreqInterval: 1}, nil
	}

	if m := everyNDaysPattern.FindStringSubmatch(s); m != nil {
		return &Spec{FreqType: FreqDaily, FreqInterval: atoiOr(m[1], 1)}, nil
	}
	if m := everyNWeeksPattern.FindStringSubmatch(s); m != nil {
		return &Spec{FreqType: FreqWeekly, FreqInterval: atoiOr(m[1], 1)}, nil
	}
	if m := everyNMonthsPattern.FindStringSubmatch(s); m != nil {
		return &Spec{FreqType: FreqMonthly, FreqInterval: atoiOr(m[1], 1)}, nil
	}
	if m := everyWeekdayName.FindStringSubmatch(s); m != nil {
		return &Spec{
			FreqType:       FreqWeekly,
			FreqRecurrence: WeekdayBit(weekdayByName[m[1]]),
			FreqInterval:   1,
		}, nil
	}
	if m := monthlyOnDay.FindStringSubmatch(s); m != nil {
		day := atoiOr(m[1], 0)
		if day >= 1 && day <= 31 {
			return &Spec{FreqType: FreqMonthly, FreqRecurrence: day, FreqInterval: 1}, nil
		}
	}

	return nil, &UnsupportedRecurrenceError{Phrase: phrase}
}

// ApplyBusinessDayShift shifts a date off a weekend according to the policy.
// AS_IS and weekday dates pass through untouched.
func ApplyBusinessDayShift(date timeparse.CalendarDate, behavior BusinessDayBehavior) timeparse.CalendarDate {
	if behavior == BusinessDayAsIs {
		return date
	}
	for {
		wd := date.Weekday()
		if wd != time.Saturday && wd != time.Sunday {
			return date
		}
		if behavior == BusinessDayShiftForward {
			date = date.AddDays(1)
		} else {
			date = date.AddDays(-1)
		}
	}
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
