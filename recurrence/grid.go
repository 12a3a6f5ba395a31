package recurrence

import (
	"fmt"
	"strings"
	"time"
)

// Layouts accepted for instants given as text. Layouts without an offset are
// read in the caller's location (UTC when none is given).
var (
	offsetLayouts = []string{
		time.RFC3339Nano,
		"20060102T150405Z",
	}
	localLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"20060102T150405",
		"20060102",
	}
)

// ValidateTime checks that t lies on the scheduling grid. With loc set, t is
// first converted to that location. All-day values must be exactly midnight;
// timed values must fall on a quarter hour with zero seconds.
func ValidateTime(allDay bool, t time.Time, loc *time.Location) error {
	if loc != nil {
		t = t.In(loc)
	}

	if allDay {
		if t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 || t.Nanosecond() != 0 {
			return slotError(t, ViolationNotMidnight)
		}
		return nil
	}

	if t.Minute()%15 != 0 {
		return slotError(t, ViolationMinuteOffGrid)
	}
	if t.Second() != 0 || t.Nanosecond() != 0 {
		return slotError(t, ViolationSecondsNotZero)
	}
	return nil
}

// ValidateString parses s as a date or date-time and checks it with ValidateTime.
func ValidateString(allDay bool, s string, loc *time.Location) error {
	t, err := ParseInstant(s, loc)
	if err != nil {
		return err
	}
	return ValidateTime(allDay, t, loc)
}

// ParseInstant reads a date or date-time in ISO 8601 extended form or RFC 5545
// basic form. Values carrying an offset keep it; the rest are read in loc.
func ParseInstant(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, &Error{
		Type:    ErrMalformedInstant,
		Message: fmt.Sprintf("cannot parse %q as a date or date-time", s),
	}
}

func slotError(t time.Time, v Violation) error {
	return &Error{
		Type:      ErrInvalidTimeSlot,
		Message:   fmt.Sprintf("%s is not on the scheduling grid", t.Format(time.RFC3339Nano)),
		Violation: v,
	}
}
