package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qcheck/taskbot/plugin/ai/timeparse"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		input    string
		expected *Spec
	}{
		{"daily", &Spec{FreqType: FreqDaily, FreqInterval: 1}},
		{"every day", &Spec{FreqType: FreqDaily, FreqInterval: 1}},
		{"every 3 days", &Spec{FreqType: FreqDaily, FreqInterval: 3}},
		{"weekly", &Spec{FreqType: FreqWeekly, FreqInterval: 1}},
		{"every 2 weeks", &Spec{FreqType: FreqWeekly, FreqInterval: 2}},
		{"biweekly", &Spec{FreqType: FreqWeekly, FreqInterval: 2}},
		{"every other week", &Spec{FreqType: FreqWeekly, FreqInterval: 2}},
		{"every monday", &Spec{FreqType: FreqWeekly, FreqRecurrence: WeekdayBit(time.Monday), FreqInterval: 1}},
		{"Every Friday", &Spec{FreqType: FreqWeekly, FreqRecurrence: WeekdayBit(time.Friday), FreqInterval: 1}},
		{"monthly", &Spec{FreqType: FreqMonthly, FreqInterval: 1}},
		{"every month on the 15th", &Spec{FreqType: FreqMonthly, FreqRecurrence: 15, FreqInterval: 1}},
		{"monthly on the 1st", &Spec{FreqType: FreqMonthly, FreqRecurrence: 1, FreqInterval: 1}},
		{"quarterly", &Spec{FreqType: FreqMonthly, FreqInterval: 3}},
		{"every weekday", &Spec{FreqType: FreqWeekly, FreqRecurrence: 0b0111110, FreqInterval: 1}},
		{"none", &Spec{FreqType: FreqNone}},
		{"", &Spec{FreqType: FreqNone}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Encode(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestEncodeUnsupported(t *testing.T) {
	for _, input := range []string{
		"every leap year",
		"yearly",
		"every full moon",
		"every month on the 42nd",
		"twice a day",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := Encode(input)
			require.Error(t, err)

			var unsupported *UnsupportedRecurrenceError
			assert.ErrorAs(t, err, &unsupported)
		})
	}
}

func TestApplyBusinessDayShift(t *testing.T) {
	saturday := timeparse.CalendarDate{Year: 2025, Month: time.March, Day: 15}
	require.Equal(t, time.Saturday, saturday.Weekday())

	tests := []struct {
		name     string
		behavior BusinessDayBehavior
		expected string
	}{
		{"as-is keeps the weekend date", BusinessDayAsIs, "2025-03-15"},
		{"forward lands on Monday", BusinessDayShiftForward, "2025-03-17"},
		{"backward lands on Friday", BusinessDayShiftBackward, "2025-03-14"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyBusinessDayShift(saturday, tt.behavior)
			assert.Equal(t, tt.expected, got.String())
		})
	}
}

func TestApplyBusinessDayShiftWeekdayUntouched(t *testing.T) {
	wednesday := timeparse.CalendarDate{Year: 2025, Month: time.March, Day: 12}
	got := ApplyBusinessDayShift(wednesday, BusinessDayShiftForward)
	assert.Equal(t, wednesday, got)
}
