package attendance

import (
	"context"
	"fmt"
	"time"
)

// Error types
type ErrorType string

const (
	ErrNotFound         ErrorType = "not_found"
	ErrNoSuchOccurrence ErrorType = "no_such_occurrence"
	ErrOutsideWindow    ErrorType = "outside_window"
	ErrStore            ErrorType = "store"
)

// Error represents an attendance failure
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

// Key identifies one participant's attendance of one occurrence.
type Key struct {
	ParticipantID   string
	EventID         string
	OccurrenceStart time.Time
}

// NewKey builds a key with the occurrence start in UTC so equal instants
// compare equal as map keys.
func NewKey(participantID, eventID string, occurrenceStart time.Time) Key {
	return Key{
		ParticipantID:   participantID,
		EventID:         eventID,
		OccurrenceStart: occurrenceStart.UTC(),
	}
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s@%s", k.ParticipantID, k.EventID, k.OccurrenceStart.Format(time.RFC3339))
}

// Record is the stored state for a key.
type Record struct {
	Key       Key
	State     State
	UpdatedAt time.Time
}

// Store persists attendance records. Put replaces any existing record with the
// same key. Get returns an *Error of type ErrNotFound for unknown keys.
type Store interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, key Key) (*Record, error)
	ListForOccurrence(ctx context.Context, eventID string, occurrenceStart time.Time) ([]Record, error)
}
