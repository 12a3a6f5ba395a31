// Package icalendar converts events to and from iCalendar VEVENT components.
package icalendar

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"github.com/cyp0633/librecur/event"
	"github.com/cyp0633/librecur/recurrence"
	"github.com/cyp0633/librecur/timezone"
)

// ProductID is written as PRODID of every encoded calendar.
const ProductID = "-//librecur//Recurrence Engine//EN"

// PropTimezoneHint carries the event timezone of all-day events, whose DATE
// values cannot hold a TZID.
const PropTimezoneHint = "X-LIBRECUR-TZID"

const (
	dateLayout     = "20060102"
	localLayout    = "20060102T150405"
	utcLayout      = "20060102T150405Z"
	defaultVersion = "2.0"
)

// Codec encodes and decodes events.
type Codec struct {
	resolve   timezone.Resolver
	defaultTZ string
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Codec.
type Option func(*Codec)

// WithResolver sets the timezone resolver.
func WithResolver(r timezone.Resolver) Option {
	return func(c *Codec) {
		if r != nil {
			c.resolve = r
		}
	}
}

// WithDefaultTimezone sets the timezone given to decoded events whose
// DTSTART carries neither TZID nor a UTC marker.
func WithDefaultTimezone(tz string) Option {
	return func(c *Codec) {
		c.defaultTZ = tz
	}
}

// WithClock sets the time source for DTSTAMP.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger for the codec
func WithLogger(logger *slog.Logger) Option {
	return func(c *Codec) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a codec.
func New(opts ...Option) *Codec {
	c := &Codec{
		resolve: timezone.Load,
		now:     time.Now,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EncodeEvent builds a VEVENT for ev. Events without an ID get a random UID.
func (c *Codec) EncodeEvent(ev event.Event) (*ical.Component, error) {
	loc, err := ev.Location(c.resolve)
	if err != nil {
		return nil, err
	}

	comp := ical.NewComponent(ical.CompEvent)
	uid := ev.ID
	if uid == "" {
		uid = uuid.NewString()
	}
	comp.Props.SetText(ical.PropUID, uid)
	comp.Props.SetDateTime(ical.PropDateTimeStamp, c.now().UTC().Truncate(time.Second))
	if ev.Summary != "" {
		comp.Props.SetText(ical.PropSummary, ev.Summary)
	}

	if ev.AllDay && loc != time.UTC {
		comp.Props.SetText(PropTimezoneHint, ev.Timezone)
	}
	comp.Props.Set(timeProp(ical.PropDateTimeStart, ev.Start, ev.AllDay, ev.Timezone, loc))
	comp.Props.Set(timeProp(ical.PropDateTimeEnd, ev.End, ev.AllDay, ev.Timezone, loc))

	for _, line := range ev.RecurrenceLines() {
		prop, err := lineProp(line)
		if err != nil {
			return nil, err
		}
		comp.Props.Add(prop)
	}
	return comp, nil
}

// WriteCalendar encodes events as one VCALENDAR.
func (c *Codec) WriteCalendar(w io.Writer, events ...event.Event) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, defaultVersion)
	cal.Props.SetText(ical.PropProductID, ProductID)

	for _, ev := range events {
		comp, err := c.EncodeEvent(ev)
		if err != nil {
			return fmt.Errorf("failed to encode event %s: %w", ev.ID, err)
		}
		cal.Children = append(cal.Children, comp)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	c.logger.Debug("calendar written", "events", len(events))
	return nil
}

// DecodeEvent reads an event from a VEVENT component. The recurrence is
// parsed with the same rules as wire lines, so RDATE and EXDATE on a timed
// event are rejected.
func (c *Codec) DecodeEvent(comp *ical.Component) (event.Event, error) {
	if comp.Name != ical.CompEvent {
		return event.Event{}, fmt.Errorf("expected %s, got %s", ical.CompEvent, comp.Name)
	}

	startProp := comp.Props.Get(ical.PropDateTimeStart)
	if startProp == nil {
		return event.Event{}, errors.New("missing DTSTART")
	}

	var ev event.Event
	ev.ID, _ = comp.Props.Text(ical.PropUID)
	ev.Summary, _ = comp.Props.Text(ical.PropSummary)
	ev.AllDay = isDate(startProp)
	ev.Timezone = c.timezoneOf(comp, startProp)

	loc, err := ev.Location(c.resolve)
	if err != nil {
		return event.Event{}, err
	}
	if ev.Start, err = propTime(startProp, loc); err != nil {
		return event.Event{}, fmt.Errorf("DTSTART: %w", err)
	}

	switch endProp, durProp := comp.Props.Get(ical.PropDateTimeEnd), comp.Props.Get(ical.PropDuration); {
	case endProp != nil:
		if ev.End, err = propTime(endProp, loc); err != nil {
			return event.Event{}, fmt.Errorf("DTEND: %w", err)
		}
	case durProp != nil:
		d, err := durProp.Duration()
		if err != nil {
			return event.Event{}, fmt.Errorf("DURATION: %w", err)
		}
		ev.End = ev.Start.Add(d)
	case ev.AllDay:
		ev.End = ev.Start.AddDate(0, 0, 1)
	default:
		ev.End = ev.Start
	}

	lines, err := recurrenceLines(comp)
	if err != nil {
		return event.Event{}, err
	}
	if len(lines) > 0 {
		if ev, err = ev.WithRecurrenceLines(lines); err != nil {
			return event.Event{}, err
		}
	}
	return ev, nil
}

// ReadEvents decodes every VEVENT of every calendar in r.
func (c *Codec) ReadEvents(r io.Reader) ([]event.Event, error) {
	dec := ical.NewDecoder(r)

	var events []event.Event
	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode calendar: %w", err)
		}

		for _, child := range cal.Children {
			if child.Name != ical.CompEvent {
				continue
			}
			ev, err := c.DecodeEvent(child)
			if err != nil {
				uid, _ := child.Props.Text(ical.PropUID)
				return nil, fmt.Errorf("event %s: %w", uid, err)
			}
			events = append(events, ev)
		}
	}

	c.logger.Debug("calendar read", "events", len(events))
	return events, nil
}

func (c *Codec) timezoneOf(comp *ical.Component, start *ical.Prop) string {
	if tzid := start.Params.Get(ical.ParamTimezoneID); tzid != "" {
		return tzid
	}
	if strings.HasSuffix(start.Value, "Z") {
		return "UTC"
	}
	if hint, _ := comp.Props.Text(PropTimezoneHint); hint != "" {
		return hint
	}
	return c.defaultTZ
}

func timeProp(name string, t time.Time, allDay bool, tz string, loc *time.Location) *ical.Prop {
	prop := ical.NewProp(name)
	local := t.In(loc)
	switch {
	case allDay:
		prop.Params.Set(ical.ParamValue, string(ical.ValueDate))
		prop.Value = local.Format(dateLayout)
	case loc == time.UTC:
		prop.Value = local.Format(utcLayout)
	default:
		prop.Params.Set(ical.ParamTimezoneID, tz)
		prop.Value = local.Format(localLayout)
	}
	return prop
}

func propTime(prop *ical.Prop, loc *time.Location) (time.Time, error) {
	if isDate(prop) {
		return time.ParseInLocation(dateLayout, prop.Value, loc)
	}
	return recurrence.ParseInstant(prop.Value, loc)
}

func isDate(prop *ical.Prop) bool {
	return strings.EqualFold(prop.Params.Get(ical.ParamValue), string(ical.ValueDate))
}

// lineProp turns one serialized recurrence line into a property.
func lineProp(line string) (*ical.Prop, error) {
	head, value, ok := strings.Cut(line, ":")
	if !ok {
		return nil, fmt.Errorf("malformed recurrence line %q", line)
	}
	fields := strings.Split(head, ";")
	prop := ical.NewProp(fields[0])
	for _, param := range fields[1:] {
		k, v, ok := strings.Cut(param, "=")
		if !ok {
			return nil, fmt.Errorf("malformed parameter %q in %q", param, line)
		}
		prop.Params.Set(k, v)
	}
	prop.Value = value
	return prop, nil
}

// recurrenceLines rebuilds wire lines from RRULE, RDATE and EXDATE properties.
// RDATE and EXDATE must carry VALUE=DATE.
func recurrenceLines(comp *ical.Component) ([]string, error) {
	var lines []string
	for _, p := range comp.Props.Values(ical.PropRecurrenceRule) {
		lines = append(lines, recurrence.RRulePrefix+p.Value)
	}
	for _, list := range []struct {
		name   string
		prefix string
	}{
		{ical.PropRecurrenceDates, recurrence.RDatePrefix},
		{ical.PropExceptionDates, recurrence.ExDatePrefix},
	} {
		for _, p := range comp.Props.Values(list.name) {
			if value := p.Params.Get(ical.ParamValue); !strings.EqualFold(value, string(ical.ValueDate)) {
				if value == "" {
					value = string(ical.ValueDateTime)
				}
				return nil, &recurrence.Error{
					Type:    recurrence.ErrDateOnlyOnTimedEvent,
					Message: fmt.Sprintf("%s has VALUE=%s; RDATE/EXDATE must be date-only", list.name, value),
				}
			}
			lines = append(lines, list.prefix+p.Value)
		}
	}
	return lines, nil
}
