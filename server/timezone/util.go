// Package timezone provides timezone utilities for the task specification engine.
//
// All schedule math is performed through zoned-date arithmetic so conversions
// stay correct across DST transitions.
package timezone

import (
	"fmt"
	"time"
)

// UTC is the canonical timezone for absolute due dates.
var UTC = time.UTC

// ParseTimezone parses an IANA timezone identifier (e.g., "America/New_York").
// If the timezone is invalid, returns UTC and an error.
func ParseTimezone(tz string) (*time.Location, error) {
	if tz == "" || tz == "UTC" {
		return UTC, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return UTC, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}

	return loc, nil
}

// MustParseTimezone parses a timezone or panics if invalid.
// Use this for constants that are known to be valid at compile time.
func MustParseTimezone(tz string) *time.Location {
	loc, err := ParseTimezone(tz)
	if err != nil {
		panic(err)
	}
	return loc
}

// IsValidTimezone checks if a timezone identifier is valid.
func IsValidTimezone(tz string) bool {
	_, err := ParseTimezone(tz)
	return err == nil
}

// CombineDateTime builds the instant for a calendar date plus minutes since
// midnight in the given zone. time.Date resolves wall-clock values through the
// zone's DST rules, so 9:00 stays 9:00 local on both sides of a transition.
func CombineDateTime(year int, month time.Month, day, minutes int, loc *time.Location) time.Time {
	if loc == nil {
		loc = UTC
	}
	if minutes < 0 {
		minutes = 0
	}
	return time.Date(year, month, day, minutes/60, minutes%60, 0, 0, loc)
}

// Convert re-expresses an instant in another zone. The instant itself is
// unchanged; only the wall-clock representation moves.
func Convert(t time.Time, to *time.Location) time.Time {
	if to == nil {
		to = UTC
	}
	return t.In(to)
}

// NowInTimezone returns the current time in the given timezone.
func NowInTimezone(loc *time.Location) time.Time {
	if loc == nil {
		loc = UTC
	}
	return time.Now().In(loc)
}

// StartOfDay returns the start of the day (00:00:00) in the given timezone.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// FormatLocalDate formats an instant as a calendar date in the given zone.
func FormatLocalDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = UTC
	}
	return t.In(loc).Format("2006-01-02")
}

// FormatLocalDateTime formats an instant for user-facing summaries.
func FormatLocalDateTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = UTC
	}
	return t.In(loc).Format("Monday, Jan 2 at 15:04")
}
