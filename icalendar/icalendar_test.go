package icalendar

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyp0633/librecur/event"
	"github.com/cyp0633/librecur/recurrence"
	"github.com/cyp0633/librecur/timezone"
)

var (
	seoul   = time.FixedZone("KST", 9*60*60)
	resolve = timezone.Fixed(map[string]*time.Location{"Asia/Seoul": seoul, "UTC": time.UTC})
	stamp   = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

func newCodec() *Codec {
	return New(WithResolver(resolve), WithClock(func() time.Time { return stamp }), WithDefaultTimezone("UTC"))
}

func crlf(lines ...string) string {
	return strings.Join(lines, "\r\n") + "\r\n"
}

func TestCodec_EncodeEvent(t *testing.T) {
	c := newCodec()

	tests := []struct {
		name  string
		event event.Event
		lines []string
		want  []string
	}{
		{
			name: "all-day recurring",
			event: event.Event{
				ID: "cleanup", Summary: "Cleanup", AllDay: true, Timezone: "UTC",
				Start: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC),
			},
			lines: []string{"RRULE:FREQ=MONTHLY;COUNT=6;INTERVAL=1;BYDAY=1SA;WKST=MO", "EXDATE;VALUE=DATE:20240406"},
			want: []string{
				"UID:cleanup",
				"DTSTAMP:20240101T000000Z",
				"DTSTART;VALUE=DATE:20240302",
				"DTEND;VALUE=DATE:20240303",
				"RRULE:FREQ=MONTHLY;COUNT=6;INTERVAL=1;BYDAY=1SA;WKST=MO",
				"EXDATE;VALUE=DATE:20240406",
			},
		},
		{
			name: "timed with zone",
			event: event.Event{
				ID: "standup", Timezone: "Asia/Seoul",
				Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2024, 1, 1, 0, 15, 0, 0, time.UTC),
			},
			want: []string{
				"DTSTART;TZID=Asia/Seoul:20240101T090000",
				"DTEND;TZID=Asia/Seoul:20240101T091500",
			},
		},
		{
			name: "timed in UTC",
			event: event.Event{
				ID: "sync", Timezone: "UTC",
				Start: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
				End:   time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
			},
			lines: []string{"RRULE:FREQ=DAILY;UNTIL=20240201T090000Z;INTERVAL=2;WKST=MO"},
			want: []string{
				"DTSTART:20240101T090000Z",
				"RRULE:FREQ=DAILY;UNTIL=20240201T090000Z;INTERVAL=2;WKST=MO",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := tt.event
			if len(tt.lines) > 0 {
				var err error
				ev, err = ev.WithRecurrenceLines(tt.lines)
				require.NoError(t, err)
			}

			var buf bytes.Buffer
			require.NoError(t, c.WriteCalendar(&buf, ev))
			out := buf.String()

			assert.Contains(t, out, "PRODID:"+ProductID)
			for _, w := range tt.want {
				assert.Contains(t, out, w+"\r\n")
			}
		})
	}
}

func TestCodec_EncodeEventGeneratesUID(t *testing.T) {
	c := newCodec()
	comp, err := c.EncodeEvent(event.Event{
		Timezone: "UTC",
		Start:    time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	uid, err := comp.Props.Text(ical.PropUID)
	require.NoError(t, err)
	_, err = uuid.Parse(uid)
	assert.NoError(t, err)
}

func TestCodec_EncodeEventUnknownTimezone(t *testing.T) {
	c := newCodec()
	_, err := c.EncodeEvent(event.Event{ID: "x", Timezone: "Europe/Atlantis"})

	var eerr *event.Error
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, event.ErrInvalidTimezone, eerr.Type)
}

func TestCodec_RoundTrip(t *testing.T) {
	c := newCodec()
	events := []event.Event{
		{
			ID: "holiday", Summary: "Holiday; with, punctuation", AllDay: true, Timezone: "Asia/Seoul",
			Start: time.Date(2024, 5, 5, 0, 0, 0, 0, seoul),
			End:   time.Date(2024, 5, 6, 0, 0, 0, 0, seoul),
		},
		{
			ID: "review", Timezone: "Asia/Seoul",
			Start: time.Date(2024, 5, 6, 14, 0, 0, 0, seoul),
			End:   time.Date(2024, 5, 6, 15, 30, 0, 0, seoul),
		},
	}
	var err error
	events[0], err = events[0].WithRecurrenceLines([]string{
		"RRULE:FREQ=YEARLY;INTERVAL=1;BYMONTH=5;BYMONTHDAY=5;WKST=MO",
		"RDATE;VALUE=DATE:20240606",
		"EXDATE;VALUE=DATE:20250505,20260505",
	})
	require.NoError(t, err)
	events[1], err = events[1].WithRecurrenceLines([]string{"RRULE:FREQ=WEEKLY;COUNT=10;INTERVAL=2;BYDAY=MO,TH;WKST=SU"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, c.WriteCalendar(&buf, events...))
	assert.Contains(t, buf.String(), PropTimezoneHint+":Asia/Seoul\r\n")

	got, err := c.ReadEvents(&buf)
	require.NoError(t, err)
	require.Len(t, got, len(events))

	for i := range events {
		want := events[i]
		assert.Equal(t, want.ID, got[i].ID)
		assert.Equal(t, want.Summary, got[i].Summary)
		assert.Equal(t, want.AllDay, got[i].AllDay)
		assert.Equal(t, want.Timezone, got[i].Timezone)
		assert.True(t, want.Start.Equal(got[i].Start), "start: want %v, got %v", want.Start, got[i].Start)
		assert.True(t, want.End.Equal(got[i].End), "end: want %v, got %v", want.End, got[i].End)
		assert.Equal(t, want.RecurrenceLines(), got[i].RecurrenceLines())
		assert.NoError(t, got[i].Validate(resolve))
	}
}

func TestCodec_ReadEvents(t *testing.T) {
	c := newCodec()
	ics := crlf(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
		"BEGIN:VEVENT",
		"UID:weekly@example.com",
		"DTSTAMP:20240101T000000Z",
		"DTSTART;TZID=Asia/Seoul:20240101T090000",
		"DURATION:PT30M",
		"RRULE:FREQ=WEEKLY;UNTIL=20240301T000000Z;BYDAY=MO,WE",
		"SUMMARY:Standup",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:floating@example.com",
		"DTSTAMP:20240101T000000Z",
		"DTSTART:20240102T100000",
		"END:VEVENT",
		"END:VCALENDAR",
	)

	events, err := c.ReadEvents(strings.NewReader(ics))
	require.NoError(t, err)
	require.Len(t, events, 2)

	standup := events[0]
	assert.Equal(t, "weekly@example.com", standup.ID)
	assert.Equal(t, "Standup", standup.Summary)
	assert.Equal(t, "Asia/Seoul", standup.Timezone)
	assert.False(t, standup.AllDay)
	assert.True(t, standup.Start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 30*time.Minute, standup.Duration())
	assert.Equal(t, []string{"RRULE:FREQ=WEEKLY;UNTIL=20240301T000000Z;INTERVAL=1;BYDAY=MO,WE;WKST=MO"}, standup.RecurrenceLines())

	floating := events[1]
	assert.Equal(t, "UTC", floating.Timezone)
	assert.True(t, floating.Start.Equal(time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Duration(0), floating.Duration())
	assert.False(t, floating.IsRecurring())
}

func TestCodec_DecodeRejectsDatesOnTimedEvent(t *testing.T) {
	c := newCodec()
	comp := ical.NewComponent(ical.CompEvent)
	comp.Props.SetText(ical.PropUID, "x")
	comp.Props.SetDateTime(ical.PropDateTimeStart, time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	rrule := ical.NewProp(ical.PropRecurrenceRule)
	rrule.Value = "FREQ=DAILY"
	comp.Props.Set(rrule)
	exdate := ical.NewProp(ical.PropExceptionDates)
	exdate.Params.Set(ical.ParamValue, "DATE")
	exdate.Value = "20240102"
	comp.Props.Set(exdate)

	_, err := c.DecodeEvent(comp)
	require.Error(t, err)
	assert.True(t, recurrence.IsType(err, recurrence.ErrDateOnlyOnTimedEvent))
}

func TestCodec_DecodeRejectsDateTimeLists(t *testing.T) {
	tests := []struct {
		name   string
		prop   string
		params map[string]string
		value  string
	}{
		{name: "rdate date-time", prop: ical.PropRecurrenceDates, value: "20240105T090000Z"},
		{name: "exdate with tzid", prop: ical.PropExceptionDates, params: map[string]string{ical.ParamTimezoneID: "Asia/Seoul"}, value: "20240105T090000"},
		{name: "rdate period", prop: ical.PropRecurrenceDates, params: map[string]string{ical.ParamValue: "PERIOD"}, value: "20240105T090000Z/PT1H"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comp := ical.NewComponent(ical.CompEvent)
			comp.Props.SetText(ical.PropUID, "holiday")
			comp.Props.SetDate(ical.PropDateTimeStart, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
			rrule := ical.NewProp(ical.PropRecurrenceRule)
			rrule.Value = "FREQ=DAILY;COUNT=10"
			comp.Props.Set(rrule)
			dates := ical.NewProp(tt.prop)
			for k, v := range tt.params {
				dates.Params.Set(k, v)
			}
			dates.Value = tt.value
			comp.Props.Set(dates)

			_, err := newCodec().DecodeEvent(comp)
			require.Error(t, err)
			assert.True(t, recurrence.IsType(err, recurrence.ErrDateOnlyOnTimedEvent), "got %v", err)
			assert.Contains(t, err.Error(), tt.prop)
		})
	}
}

func TestCodec_DecodeErrors(t *testing.T) {
	c := newCodec()

	_, err := c.DecodeEvent(ical.NewComponent(ical.CompToDo))
	assert.Error(t, err)

	_, err = c.DecodeEvent(ical.NewComponent(ical.CompEvent))
	assert.EqualError(t, err, "missing DTSTART")

	comp := ical.NewComponent(ical.CompEvent)
	start := ical.NewProp(ical.PropDateTimeStart)
	start.Params.Set(ical.ParamTimezoneID, "Europe/Atlantis")
	start.Value = "20240101T090000"
	comp.Props.Set(start)
	_, err = c.DecodeEvent(comp)
	var eerr *event.Error
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, event.ErrInvalidTimezone, eerr.Type)
}
