// Package attendance decides when a participant may check in to or out of an
// event occurrence and records the resulting attendance state.
package attendance

import (
	"io"
	"log/slog"
	"time"

	"github.com/cyp0633/librecur/event"
	"github.com/cyp0633/librecur/timezone"
)

// Window is a closed interval of local time.
type Window struct {
	Opens  time.Time
	Closes time.Time
}

// Contains reports whether t lies in the window, both ends included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Opens) && !t.After(w.Closes)
}

// Calculator computes attendance windows. It holds no state besides its
// collaborators and is safe for concurrent use.
type Calculator struct {
	resolve timezone.Resolver
	logger  *slog.Logger
}

// CalculatorOption configures a Calculator.
type CalculatorOption func(*Calculator)

// WithResolver sets the timezone resolver. Nil keeps timezone.Load.
func WithResolver(r timezone.Resolver) CalculatorOption {
	return func(c *Calculator) {
		if r != nil {
			c.resolve = r
		}
	}
}

// WithCalculatorLogger sets the logger used for unresolvable timezones.
func WithCalculatorLogger(logger *slog.Logger) CalculatorOption {
	return func(c *Calculator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCalculator creates a calculator using timezone.Load unless configured otherwise.
func NewCalculator(opts ...CalculatorOption) *Calculator {
	c := &Calculator{
		resolve: timezone.Load,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AttendWindow is the check-in window of the occurrence starting at
// occurrenceStart. All-day occurrences can be attended for their whole span.
// Timed occurrences open one event duration early, but not before local
// midnight of the start day, and close when the occurrence ends.
//
// Durations are applied to local wall-clock time, so an all-day occurrence
// on a DST transition day still ends at the next local midnight.
func (c *Calculator) AttendWindow(ev event.Event, occurrenceStart time.Time) (Window, error) {
	start, end, length, err := c.localSpan(ev, occurrenceStart)
	if err != nil {
		return Window{}, err
	}
	if ev.AllDay {
		return Window{Opens: start, Closes: end}, nil
	}

	opens := addWall(start, -length)
	if midnight := startOfDay(start); opens.Before(midnight) {
		opens = midnight
	}
	return Window{Opens: opens, Closes: end}, nil
}

// LeaveWindow is the check-out window of the occurrence starting at
// occurrenceStart. Timed occurrences open at the start and stay open one
// event duration past the end, but not past 23:59 of the end day.
func (c *Calculator) LeaveWindow(ev event.Event, occurrenceStart time.Time) (Window, error) {
	start, end, length, err := c.localSpan(ev, occurrenceStart)
	if err != nil {
		return Window{}, err
	}
	if ev.AllDay {
		return Window{Opens: start, Closes: end}, nil
	}

	closes := addWall(end, length)
	if lastMinute := lastMinuteOfDay(end); closes.After(lastMinute) {
		closes = lastMinute
	}
	return Window{Opens: start, Closes: closes}, nil
}

// IsAttendable reports whether now falls in the attend window. An event whose
// timezone cannot be resolved is never attendable.
func (c *Calculator) IsAttendable(ev event.Event, occurrenceStart, now time.Time) bool {
	w, err := c.AttendWindow(ev, occurrenceStart)
	if err != nil {
		c.logger.Warn("cannot compute attend window", "event", ev.ID, "timezone", ev.Timezone, "error", err)
		return false
	}
	return w.Contains(now)
}

// IsLeaveable reports whether now falls in the leave window.
func (c *Calculator) IsLeaveable(ev event.Event, occurrenceStart, now time.Time) bool {
	w, err := c.LeaveWindow(ev, occurrenceStart)
	if err != nil {
		c.logger.Warn("cannot compute leave window", "event", ev.ID, "timezone", ev.Timezone, "error", err)
		return false
	}
	return w.Contains(now)
}

// localSpan returns the occurrence start and end in the event timezone along
// with the wall-clock length of the event template.
func (c *Calculator) localSpan(ev event.Event, occurrenceStart time.Time) (time.Time, time.Time, time.Duration, error) {
	loc, err := ev.Location(c.resolve)
	if err != nil {
		return time.Time{}, time.Time{}, 0, err
	}
	length := wallClock(ev.End.In(loc)).Sub(wallClock(ev.Start.In(loc)))
	start := occurrenceStart.In(loc)
	return start, addWall(start, length), length, nil
}

// wallClock reads the local date and time of t as if it were UTC.
func wallClock(t time.Time) time.Time {
	y, m, d := t.Date()
	h, mi, s := t.Clock()
	return time.Date(y, m, d, h, mi, s, t.Nanosecond(), time.UTC)
}

// addWall moves t by d on the local wall clock of t's location.
func addWall(t time.Time, d time.Duration) time.Time {
	w := wallClock(t).Add(d)
	y, m, day := w.Date()
	h, mi, s := w.Clock()
	return time.Date(y, m, day, h, mi, s, w.Nanosecond(), t.Location())
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func lastMinuteOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 0, 0, t.Location())
}

var defaultCalculator = NewCalculator()

// IsAttendable checks the attend window using timezone.Load.
func IsAttendable(ev event.Event, occurrenceStart, now time.Time) bool {
	return defaultCalculator.IsAttendable(ev, occurrenceStart, now)
}

// IsLeaveable checks the leave window using timezone.Load.
func IsLeaveable(ev event.Event, occurrenceStart, now time.Time) bool {
	return defaultCalculator.IsLeaveable(ev, occurrenceStart, now)
}
