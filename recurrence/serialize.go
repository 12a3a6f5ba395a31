package recurrence

import (
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"
)

const untilDateTimeLayout = "20060102T150405Z"

// SerializeRecurrence renders rec as wire lines: one RRULE line, followed by
// RDATE and EXDATE lines when those lists are non-empty. Date lists are only
// written for all-day events. None yields no lines.
func SerializeRecurrence(rec mo.Option[Recurrence], allDay bool) []string {
	r, ok := rec.Get()
	if !ok {
		return []string{}
	}

	lines := []string{FormatRule(r.Rule, allDay)}
	if !allDay {
		return lines
	}
	if len(r.RDate) > 0 {
		lines = append(lines, RDatePrefix+joinDates(r.RDate))
	}
	if len(r.ExDate) > 0 {
		lines = append(lines, ExDatePrefix+joinDates(r.ExDate))
	}
	return lines
}

// FormatRule renders r as a single "RRULE:" line. Parts are written in a fixed
// order so equal rules always serialize identically.
func FormatRule(r Rule, allDay bool) string {
	var sb strings.Builder
	sb.WriteString(RRulePrefix)
	sb.WriteString("FREQ=")
	sb.WriteString(r.Freq.String())

	if until, ok := r.Until.Get(); ok {
		sb.WriteString(";UNTIL=")
		sb.WriteString(formatUntil(until, allDay))
	}
	if count, ok := r.Count.Get(); ok {
		sb.WriteString(";COUNT=")
		sb.WriteString(strconv.Itoa(count))
	}

	interval := r.Interval
	if interval < 1 {
		interval = 1
	}
	sb.WriteString(";INTERVAL=")
	sb.WriteString(strconv.Itoa(interval))

	writeInts(&sb, "BYSECOND", r.BySecond)
	writeInts(&sb, "BYMINUTE", r.ByMinute)
	writeInts(&sb, "BYHOUR", r.ByHour)
	if len(r.ByDay) > 0 {
		days := make([]string, len(r.ByDay))
		for i, d := range r.ByDay {
			days[i] = d.String()
		}
		sb.WriteString(";BYDAY=")
		sb.WriteString(strings.Join(days, ","))
	}
	writeInts(&sb, "BYMONTHDAY", r.ByMonthDay)
	writeInts(&sb, "BYYEARDAY", r.ByYearDay)
	writeInts(&sb, "BYWEEKNO", r.ByWeekNo)
	writeInts(&sb, "BYMONTH", r.ByMonth)
	writeInts(&sb, "BYSETPOS", r.BySetPos)

	sb.WriteString(";WKST=")
	sb.WriteString(r.Wkst.String())
	return sb.String()
}

func formatUntil(t time.Time, allDay bool) string {
	if allDay {
		return t.Format(dateLayout)
	}
	return t.UTC().Format(untilDateTimeLayout)
}

func writeInts(sb *strings.Builder, key string, values []int) {
	if len(values) == 0 {
		return
	}
	sb.WriteString(";")
	sb.WriteString(key)
	sb.WriteString("=")
	for i, v := range values {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(strconv.Itoa(v))
	}
}

func joinDates(dates []time.Time) string {
	parts := make([]string, len(dates))
	for i, d := range dates {
		parts[i] = d.Format(dateLayout)
	}
	return strings.Join(parts, ",")
}
