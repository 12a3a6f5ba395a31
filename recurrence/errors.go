package recurrence

import (
	"errors"
	"fmt"
)

// ErrorType identifies the kind of a recurrence failure.
type ErrorType string

const (
	ErrMalformedInstant     ErrorType = "malformed_instant"
	ErrInvalidTimeSlot      ErrorType = "invalid_time_slot"
	ErrConflictingBounds    ErrorType = "conflicting_bounds"
	ErrDateOnlyOnTimedEvent ErrorType = "date_only_on_timed_event"
	ErrMissingRule          ErrorType = "missing_rule"
	ErrMalformedRule        ErrorType = "malformed_rule"
)

// Violation names the grid constraint an instant failed.
type Violation string

const (
	ViolationNotMidnight    Violation = "not-midnight"
	ViolationMinuteOffGrid  Violation = "minute-off-grid"
	ViolationSecondsNotZero Violation = "seconds-not-zero"
)

// Error represents a recurrence parsing or validation failure.
type Error struct {
	Type    ErrorType
	Message string
	// Violation is only set for ErrInvalidTimeSlot.
	Violation Violation
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Violation != "" {
		msg += " (" + string(e.Violation) + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsType reports whether err is, or wraps, a recurrence Error of type t.
func IsType(err error, t ErrorType) bool {
	var rerr *Error
	if !errors.As(err, &rerr) {
		return false
	}
	return rerr.Type == t
}
