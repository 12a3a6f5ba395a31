package recurrence

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"
)

// Line prefixes of the recurrence wire format.
const (
	RRulePrefix  = "RRULE:"
	RDatePrefix  = "RDATE;VALUE=DATE:"
	ExDatePrefix = "EXDATE;VALUE=DATE:"
)

const dateLayout = "20060102"

var byDayPattern = regexp.MustCompile(`^([+-]?\d+)?(MO|TU|WE|TH|FR|SA|SU)$`)

type rulePart struct {
	key   string
	value string
}

// ParseRule parses one RRULE line, with or without the "RRULE:" prefix.
// allDay selects whether UNTIL is read as a date or a date-time.
//
// Only the keys the engine evaluates are accepted; any other key fails with
// ErrMalformedRule, since dropping it would change which dates occur.
// ParseRecurrence skips unknown lines instead, which never affects dates.
func ParseRule(text string, allDay bool) (Rule, error) {
	body := strings.TrimSpace(text)
	if hasPrefixFold(body, RRulePrefix) {
		body = body[len(RRulePrefix):]
	}

	parts, err := splitRule(body)
	if err != nil {
		return Rule{}, err
	}

	// Bounds are checked on the raw keys so the conflict is reported even when
	// the UNTIL value would not parse.
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		seen[p.key] = true
	}
	if seen["COUNT"] && seen["UNTIL"] {
		return Rule{}, &Error{Type: ErrConflictingBounds, Message: "RRULE cannot have both COUNT and UNTIL"}
	}

	b := NewRuleBuilder(allDay)
	for _, p := range parts {
		if err := applyPart(b, p, allDay); err != nil {
			return Rule{}, err
		}
	}
	return b.Build()
}

// ParseRecurrence parses the recurrence lines of one event. No lines means the
// event does not recur and yields None. Lines with unknown prefixes are skipped.
func ParseRecurrence(lines []string, allDay bool) (mo.Option[Recurrence], error) {
	if len(lines) == 0 {
		return mo.None[Recurrence](), nil
	}

	var rec Recurrence
	haveRule := false
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case hasPrefixFold(line, RRulePrefix):
			if haveRule {
				return mo.None[Recurrence](), &Error{Type: ErrMalformedRule, Message: "more than one RRULE in recurrence list"}
			}
			rule, err := ParseRule(line, allDay)
			if err != nil {
				return mo.None[Recurrence](), err
			}
			rec.Rule = rule
			haveRule = true
		case hasPrefixFold(line, RDatePrefix):
			dates, err := parseDateLine(line[len(RDatePrefix):], allDay)
			if err != nil {
				return mo.None[Recurrence](), err
			}
			rec.RDate = append(rec.RDate, dates...)
		case hasPrefixFold(line, ExDatePrefix):
			dates, err := parseDateLine(line[len(ExDatePrefix):], allDay)
			if err != nil {
				return mo.None[Recurrence](), err
			}
			rec.ExDate = append(rec.ExDate, dates...)
		}
	}

	if !haveRule {
		return mo.None[Recurrence](), &Error{Type: ErrMissingRule, Message: "Missing RRULE in recurrence list"}
	}
	return mo.Some(rec), nil
}

func splitRule(body string) ([]rulePart, error) {
	var parts []rulePart
	seen := make(map[string]bool)
	for _, field := range strings.Split(body, ";") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return nil, &Error{Type: ErrMalformedRule, Message: fmt.Sprintf("expected KEY=VALUE, got %q", field)}
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		if seen[key] {
			return nil, &Error{Type: ErrMalformedRule, Message: fmt.Sprintf("duplicate %s", key)}
		}
		seen[key] = true
		parts = append(parts, rulePart{key: key, value: strings.TrimSpace(value)})
	}
	return parts, nil
}

func applyPart(b *RuleBuilder, p rulePart, allDay bool) error {
	switch p.key {
	case "FREQ":
		f, err := ParseFrequency(p.value)
		if err != nil {
			return err
		}
		b.Freq(f)
	case "UNTIL":
		until, err := parseUntil(p.value, allDay)
		if err != nil {
			return err
		}
		b.Until(until)
	case "COUNT":
		n, err := parseInt(p.key, p.value)
		if err != nil {
			return err
		}
		b.Count(n)
	case "INTERVAL":
		n, err := parseInt(p.key, p.value)
		if err != nil {
			return err
		}
		b.Interval(n)
	case "WKST":
		d, err := ParseWeekday(p.value)
		if err != nil {
			return err
		}
		b.Wkst(d)
	case "BYDAY":
		days, err := parseByDay(p.value)
		if err != nil {
			return err
		}
		b.ByDay(days...)
	case "BYSECOND", "BYMINUTE", "BYHOUR", "BYMONTHDAY", "BYYEARDAY", "BYWEEKNO", "BYMONTH", "BYSETPOS":
		values, err := parseIntList(p.key, p.value)
		if err != nil {
			return err
		}
		setIntList(b, p.key, values)
	default:
		return &Error{Type: ErrMalformedRule, Message: fmt.Sprintf("unknown RRULE part %s", p.key)}
	}
	return nil
}

func setIntList(b *RuleBuilder, key string, values []int) {
	switch key {
	case "BYSECOND":
		b.BySecond(values...)
	case "BYMINUTE":
		b.ByMinute(values...)
	case "BYHOUR":
		b.ByHour(values...)
	case "BYMONTHDAY":
		b.ByMonthDay(values...)
	case "BYYEARDAY":
		b.ByYearDay(values...)
	case "BYWEEKNO":
		b.ByWeekNo(values...)
	case "BYMONTH":
		b.ByMonth(values...)
	case "BYSETPOS":
		b.BySetPos(values...)
	}
}

// parseUntil reads UNTIL as a bare date for all-day rules and as a date-time
// otherwise, then checks it against the grid.
func parseUntil(value string, allDay bool) (time.Time, error) {
	var (
		t   time.Time
		err error
	)
	if allDay {
		t, err = parseDate(value)
	} else {
		t, err = parseDateTime(value)
	}
	if err != nil {
		return time.Time{}, err
	}
	if err := ValidateTime(allDay, t, nil); err != nil {
		return time.Time{}, err
	}
	return t, nil
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range []string{dateLayout, "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &Error{Type: ErrMalformedInstant, Message: fmt.Sprintf("cannot parse %q as a date", value)}
}

func parseDateTime(value string) (time.Time, error) {
	// A bare date is not a date-time.
	if _, err := parseDate(value); err == nil {
		return time.Time{}, &Error{Type: ErrMalformedInstant, Message: fmt.Sprintf("expected a date-time, got date %q", value)}
	}
	return ParseInstant(value, time.UTC)
}

func parseDateLine(value string, allDay bool) ([]time.Time, error) {
	if !allDay {
		return nil, &Error{Type: ErrDateOnlyOnTimedEvent, Message: "RDATE/EXDATE must be date-only for all-day events"}
	}
	var dates []time.Time
	for _, field := range strings.Split(value, ",") {
		t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(field), time.UTC)
		if err != nil {
			return nil, &Error{Type: ErrMalformedInstant, Message: fmt.Sprintf("cannot parse %q as YYYYMMDD", field), Err: err}
		}
		dates = append(dates, t)
	}
	return dates, nil
}

func parseByDay(value string) ([]WeekdayNum, error) {
	var days []WeekdayNum
	for _, field := range strings.Split(value, ",") {
		token := strings.ToUpper(strings.TrimSpace(field))
		m := byDayPattern.FindStringSubmatch(token)
		if m == nil {
			return nil, &Error{Type: ErrMalformedRule, Message: fmt.Sprintf("invalid BYDAY value %q", field)}
		}
		n := 0
		if m[1] != "" {
			var err error
			if n, err = strconv.Atoi(m[1]); err != nil {
				return nil, &Error{Type: ErrMalformedRule, Message: fmt.Sprintf("invalid BYDAY ordinal %q", m[1]), Err: err}
			}
		}
		day, err := ParseWeekday(m[2])
		if err != nil {
			return nil, err
		}
		days = append(days, WeekdayNum{N: n, Day: day})
	}
	return days, nil
}

func parseIntList(key, value string) ([]int, error) {
	var values []int
	for _, field := range strings.Split(value, ",") {
		n, err := parseInt(key, field)
		if err != nil {
			return nil, err
		}
		values = append(values, n)
	}
	return values, nil
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, &Error{Type: ErrMalformedRule, Message: fmt.Sprintf("invalid %s value %q", key, value), Err: err}
	}
	return n, nil
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
