package extract

import "fmt"

// FailureKind classifies extraction failures.
type FailureKind int

const (
	// Unavailable means the call failed at the transport level after the
	// retry budget was spent. Safe to surface; the call has no side effect.
	Unavailable FailureKind = iota
	// Malformed means the service answered but the answer could not be
	// parsed, even after one stricter re-prompt.
	Malformed
	// NoSignal means the service answered with no inferable fields. Not a
	// hard error: the state machine re-asks its last clarification.
	NoSignal
	// TooLong means the input exceeded MaxInputLength and was never sent.
	TooLong
)

// Error is a classified extraction failure.
type Error struct {
	Kind  FailureKind
	Cause error
}

func (e *Error) Error() string {
	switch e.Kind {
	case Unavailable:
		return fmt.Sprintf("extraction service unavailable: %v", e.Cause)
	case Malformed:
		return fmt.Sprintf("extraction response malformed: %v", e.Cause)
	case NoSignal:
		return "extraction produced no fields"
	case TooLong:
		return fmt.Sprintf("input too long: %v", e.Cause)
	}
	return fmt.Sprintf("extraction failed: %v", e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf returns the failure kind of an extraction error, or -1 for other
// errors.
func KindOf(err error) FailureKind {
	if extractErr, ok := err.(*Error); ok {
		return extractErr.Kind
	}
	return -1
}
