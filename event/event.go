// Package event holds the event value consumed by the recurrence and
// attendance packages.
package event

import (
	"fmt"
	"time"

	"github.com/samber/mo"

	"github.com/cyp0633/librecur/recurrence"
	"github.com/cyp0633/librecur/timezone"
)

// Error types
type ErrorType string

const (
	ErrInvalidTimezone ErrorType = "invalid_timezone"
	ErrInvalidRange    ErrorType = "invalid_range"
	ErrInvalidTime     ErrorType = "invalid_time"
)

// Error represents an event validation failure
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Event is a (possibly recurring) event template. Start and End describe the
// first occurrence; every other occurrence keeps the same duration.
type Event struct {
	ID       string
	Summary  string
	Start    time.Time
	End      time.Time
	AllDay   bool
	Timezone string

	Recurrence mo.Option[recurrence.Recurrence]
}

// Equal reports whether e and other identify the same event.
func (e Event) Equal(other Event) bool {
	return e.ID == other.ID
}

// Duration is the length of every occurrence.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// IsRecurring reports whether the event has a recurrence.
func (e Event) IsRecurring() bool {
	return e.Recurrence.IsPresent()
}

// WithRecurrence returns a copy of e with rec as its recurrence.
func (e Event) WithRecurrence(rec mo.Option[recurrence.Recurrence]) Event {
	e.Recurrence = rec
	return e
}

// WithRecurrenceLines parses lines against the event's all-day flag and
// returns a copy of e carrying the result.
func (e Event) WithRecurrenceLines(lines []string) (Event, error) {
	rec, err := recurrence.ParseRecurrence(lines, e.AllDay)
	if err != nil {
		return Event{}, err
	}
	return e.WithRecurrence(rec), nil
}

// RecurrenceLines renders the recurrence back to wire lines.
func (e Event) RecurrenceLines() []string {
	return recurrence.SerializeRecurrence(e.Recurrence, e.AllDay)
}

// Location resolves the event timezone.
func (e Event) Location(resolve timezone.Resolver) (*time.Location, error) {
	loc, err := timezone.OrDefault(resolve)(e.Timezone)
	if err != nil {
		return nil, &Error{Type: ErrInvalidTimezone, Message: fmt.Sprintf("event %s", e.ID), Err: err}
	}
	return loc, nil
}

// Validate checks that the event timezone resolves, that Start and End lie on
// the scheduling grid in that timezone with End not before Start, and that
// the recurrence agrees with the all-day flag.
func (e Event) Validate(resolve timezone.Resolver) error {
	loc, err := e.Location(resolve)
	if err != nil {
		return err
	}

	if err := recurrence.ValidateTime(e.AllDay, e.Start, loc); err != nil {
		return &Error{Type: ErrInvalidTime, Message: "start", Err: err}
	}
	if err := recurrence.ValidateTime(e.AllDay, e.End, loc); err != nil {
		return &Error{Type: ErrInvalidTime, Message: "end", Err: err}
	}
	if e.End.Before(e.Start) {
		return &Error{Type: ErrInvalidRange, Message: "end is before start"}
	}

	rec, ok := e.Recurrence.Get()
	if !ok {
		return nil
	}
	if !e.AllDay && (len(rec.RDate) > 0 || len(rec.ExDate) > 0) {
		return &recurrence.Error{
			Type:    recurrence.ErrDateOnlyOnTimedEvent,
			Message: "RDATE/EXDATE must be date-only for all-day events",
		}
	}
	// Re-running the builder checks the rule invariants, UNTIL granularity included.
	if _, err := rec.Rule.Builder(e.AllDay).Build(); err != nil {
		return err
	}
	return nil
}
