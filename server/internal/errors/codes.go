package errors

import (
	"fmt"
)

// ErrorCode classifies engine failures for the completion state machine.
type ErrorCode string

const (
	// ErrCodeExtractionUnavailable indicates the language-understanding call
	// failed at the transport level after the retry budget was spent.
	ErrCodeExtractionUnavailable ErrorCode = "EXTRACTION_UNAVAILABLE"
	// ErrCodeExtractionMalformed indicates the extraction service returned a
	// response that could not be parsed even after a stricter re-prompt.
	ErrCodeExtractionMalformed ErrorCode = "EXTRACTION_MALFORMED"
	// ErrCodeAmbiguousPhrase indicates a date phrase matched more than one
	// calendar date.
	ErrCodeAmbiguousPhrase ErrorCode = "AMBIGUOUS_PHRASE"
	// ErrCodeUnknownTimePhrase indicates a time-of-day phrase is not in the
	// phrase table and is not an exact HH:MM value.
	ErrCodeUnknownTimePhrase ErrorCode = "UNKNOWN_TIME_PHRASE"
	// ErrCodeUnsupportedRecurrence indicates a recurrence pattern the encoder
	// refuses to guess at.
	ErrCodeUnsupportedRecurrence ErrorCode = "UNSUPPORTED_RECURRENCE"
	// ErrCodeIdentityNotFound indicates a name that does not resolve against
	// the directory.
	ErrCodeIdentityNotFound ErrorCode = "IDENTITY_NOT_FOUND"
	// ErrCodeDuplicateTaskName indicates the owner already has a task with
	// this name.
	ErrCodeDuplicateTaskName ErrorCode = "DUPLICATE_TASK_NAME"
	// ErrCodeInvalidArgument indicates invalid caller input.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeSessionBusy indicates a second in-flight message for a session.
	ErrCodeSessionBusy ErrorCode = "SESSION_BUSY"
	// ErrCodeRateLimitExceeded indicates the per-user extraction budget is spent.
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	// ErrCodePersistenceFailed indicates an unrecoverable persistence fault.
	ErrCodePersistenceFailed ErrorCode = "PERSISTENCE_FAILED"
	// ErrCodeSessionExpired indicates the session hit its inactivity timeout.
	ErrCodeSessionExpired ErrorCode = "SESSION_EXPIRED"
)

// EngineError is a structured error carrying a classification code.
type EngineError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// UserRecoverable reports whether the state machine should turn this error
// into a clarification prompt instead of failing the session.
func (e *EngineError) UserRecoverable() bool {
	switch e.Code {
	case ErrCodeAmbiguousPhrase,
		ErrCodeUnknownTimePhrase,
		ErrCodeUnsupportedRecurrence,
		ErrCodeIdentityNotFound,
		ErrCodeDuplicateTaskName,
		ErrCodeInvalidArgument:
		return true
	}
	return false
}

// New creates an EngineError with the given code.
func New(code ErrorCode, msg string) *EngineError {
	return &EngineError{Code: code, Message: msg}
}

// Newf creates an EngineError with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *EngineError {
	return &EngineError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with a classification code.
func Wrap(cause error, code ErrorCode, msg string) *EngineError {
	return &EngineError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error carries a specific code.
func IsCode(err error, code ErrorCode) bool {
	if engineErr, ok := err.(*EngineError); ok {
		return engineErr.Code == code
	}
	return false
}

// CodeOf extracts the code from any error, falling back to the given default.
func CodeOf(err error, defaultCode ErrorCode) ErrorCode {
	if engineErr, ok := err.(*EngineError); ok {
		return engineErr.Code
	}
	return defaultCode
}
