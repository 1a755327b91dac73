package timeparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// TimeOfDay is a resolved wall-clock time.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// Unspecified marks an absent time-of-day.
var Unspecified = TimeOfDay{Hour: -1}

// IsSpecified reports whether the value carries a real wall-clock time.
func (t TimeOfDay) IsSpecified() bool {
	return t.Hour >= 0
}

// String returns the HH:MM form of the time.
func (t TimeOfDay) String() string {
	if !t.IsSpecified() {
		return "unspecified"
	}
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// DueTimeUnspecified is the encoding sentinel for an absent time-of-day.
const DueTimeUnspecified = -1

// UnknownTimePhraseError reports a time phrase outside the phrase table that
// is not an exact clock value either.
type UnknownTimePhraseError struct {
	Phrase string
}

func (e *UnknownTimePhraseError) Error() string {
	return fmt.Sprintf("unknown time phrase %q", e.Phrase)
}

// timePhraseTable is the static mapping from canonical ambiguous phrases to
// time-of-day values. Never mutated at runtime.
var timePhraseTable = map[string]TimeOfDay{
	"morning":        {Hour: 10},
	"early morning":  {Hour: 9},
	"late morning":   {Hour: 11},
	"noon":           {Hour: 12},
	"midday":         {Hour: 12},
	"afternoon":      {Hour: 14},
	"late afternoon": {Hour: 16},
	"end of day":     {Hour: 17},
	"eod":            {Hour: 17},
	"evening":        {Hour: 19},
	"night":          {Hour: 22},
	"late night":     {Hour: 22},
	"midnight":       {Hour: 0},
}

var (
	clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	amPmPattern  = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*(am|pm)$`)
)

// ResolveTimePhrase resolves a time-of-day phrase. Exact HH:MM values and
// AM/PM forms pass through; canonical phrases come from the phrase table.
func ResolveTimePhrase(phrase string) (TimeOfDay, error) {
	s := strings.ToLower(strings.TrimSpace(phrase))
	if s == "" {
		return Unspecified, &UnknownTimePhraseError{Phrase: phrase}
	}

	if t, ok := timePhraseTable[s]; ok {
		return t, nil
	}

	if m := clockPattern.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour <= 23 && minute <= 59 {
			return TimeOfDay{Hour: hour, Minute: minute}, nil
		}
	}

	if m := amPmPattern.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour >= 1 && hour <= 12 && minute <= 59 {
			if m[3] == "pm" && hour != 12 {
				hour += 12
			}
			if m[3] == "am" && hour == 12 {
				hour = 0
			}
			return TimeOfDay{Hour: hour, Minute: minute}, nil
		}
	}

	return Unspecified, &UnknownTimePhraseError{Phrase: phrase}
}

// ToDueTimeEncoding encodes a time-of-day as minutes since midnight.
// Unspecified values encode to the DueTimeUnspecified sentinel.
func ToDueTimeEncoding(t TimeOfDay) int {
	if !t.IsSpecified() {
		return DueTimeUnspecified
	}
	return t.Minutes()
}

// FromDueTimeEncoding is the inverse of ToDueTimeEncoding.
func FromDueTimeEncoding(encoded int) TimeOfDay {
	if encoded < 0 || encoded >= 24*60 {
		return Unspecified
	}
	return TimeOfDay{Hour: encoded / 60, Minute: encoded % 60}
}
