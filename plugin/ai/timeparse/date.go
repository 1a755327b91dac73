// Package timeparse resolves natural-language date and time phrases into
// calendar values. Everything here is pure and deterministic: the caller
// supplies the reference instant and timezone, so the completion state
// machine can be tested without touching the clock or the network.
package timeparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// CalendarDate is a resolved calendar date with no time-of-day component.
type CalendarDate struct {
	Year  int
	Month time.Month
	Day   int
}

// String returns the ISO form of the date.
func (d CalendarDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Weekday returns the weekday of the date.
func (d CalendarDate) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Weekday()
}

// AddDays returns the date shifted by n calendar days.
func (d CalendarDate) AddDays(n int) CalendarDate {
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	return CalendarDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// dateOf extracts the calendar date of an instant in the given zone.
func dateOf(t time.Time, loc *time.Location) CalendarDate {
	local := t.In(loc)
	return CalendarDate{Year: local.Year(), Month: local.Month(), Day: local.Day()}
}

// AmbiguousPhraseError reports a phrase that matches more than one calendar
// date equally well ("Friday" with no disambiguating week).
type AmbiguousPhraseError struct {
	Phrase     string
	Candidates []CalendarDate
}

func (e *AmbiguousPhraseError) Error() string {
	return fmt.Sprintf("ambiguous date phrase %q", e.Phrase)
}

var weekdayNames = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

var (
	nextWeekdayPattern = regexp.MustCompile(`^next\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday)$`)
	thisWeekdayPattern = regexp.MustCompile(`^this\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday)$`)
	bareWeekdayPattern = regexp.MustCompile(`^(?:on\s+)?(monday|tuesday|wednesday|thursday|friday|saturday|sunday)$`)
	inDaysPattern      = regexp.MustCompile(`^in\s+(\d+)\s+days?$`)
)

// ResolveDatePhrase resolves a relative or absolute date phrase against the
// reference instant in the given timezone. Bare weekdays fail with
// AmbiguousPhraseError because "Friday" names both this week's and next
// week's Friday; the state machine asks rather than guesses.
func ResolveDatePhrase(phrase string, reference time.Time, loc *time.Location) (CalendarDate, error) {
	if loc == nil {
		loc = time.UTC
	}
	today := dateOf(reference, loc)

	s := strings.ToLower(strings.TrimSpace(phrase))
	if s == "" {
		return CalendarDate{}, fmt.Errorf("empty date phrase")
	}

	switch s {
	case "today":
		return today, nil
	case "tomorrow", "tmrw":
		return today.AddDays(1), nil
	case "day after tomorrow", "day after tmrw":
		return today.AddDays(2), nil
	case "yesterday":
		return today.AddDays(-1), nil
	}

	if m := nextWeekdayPattern.FindStringSubmatch(s); m != nil {
		target := weekdayNames[m[1]]
		ahead := int(target-today.Weekday()+7) % 7
		if ahead == 0 {
			ahead = 7 // today already is the target day; "next" means next week
		}
		return today.AddDays(ahead), nil
	}

	if m := thisWeekdayPattern.FindStringSubmatch(s); m != nil {
		target := weekdayNames[m[1]]
		ahead := int(target-today.Weekday()+7) % 7
		return today.AddDays(ahead), nil
	}

	if m := bareWeekdayPattern.FindStringSubmatch(s); m != nil {
		target := weekdayNames[m[1]]
		ahead := int(target-today.Weekday()+7) % 7
		if ahead == 0 {
			ahead = 7
		}
		return CalendarDate{}, &AmbiguousPhraseError{
			Phrase:     phrase,
			Candidates: []CalendarDate{today.AddDays(ahead), today.AddDays(ahead + 7)},
		}
	}

	if s == "end of week" || s == "end of the week" {
		ahead := int(time.Friday-today.Weekday()+7) % 7
		if ahead == 0 {
			ahead = 7
		}
		return today.AddDays(ahead), nil
	}

	switch {
	case strings.HasPrefix(s, "next week"):
		return today.AddDays(7), nil
	case strings.HasPrefix(s, "this week"):
		return today.AddDays(-int(today.Weekday()-time.Monday+7) % 7), nil
	case strings.HasPrefix(s, "next month"):
		t := time.Date(today.Year, today.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
		return CalendarDate{Year: t.Year(), Month: t.Month(), Day: 1}, nil
	case strings.HasPrefix(s, "this month"):
		return CalendarDate{Year: today.Year, Month: today.Month, Day: 1}, nil
	}

	if m := inDaysPattern.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return today.AddDays(n), nil
		}
	}

	if t, err := time.Parse("2006-01-02", s); err == nil {
		return CalendarDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
	}

	return CalendarDate{}, fmt.Errorf("unrecognized date phrase %q", phrase)
}
