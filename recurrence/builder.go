package recurrence

import (
	"fmt"
	"slices"
	"time"

	"github.com/samber/mo"
)

// RuleBuilder accumulates rule parts and checks them together in Build.
// Setters overwrite earlier values; list setters given no values clear the list.
type RuleBuilder struct {
	allDay   bool
	rule     Rule
	freqSet  bool
	interval mo.Option[int]
}

// NewRuleBuilder starts a rule whose UNTIL, if any, follows the all-day grid
// when allDay is set and the timed grid otherwise.
func NewRuleBuilder(allDay bool) *RuleBuilder {
	return &RuleBuilder{allDay: allDay}
}

// Builder returns a builder seeded with r, for deriving a changed copy.
func (r Rule) Builder(allDay bool) *RuleBuilder {
	b := NewRuleBuilder(allDay)
	b.rule = r.clone()
	b.freqSet = r.Freq != 0
	b.interval = mo.Some(r.Interval)
	return b
}

func (b *RuleBuilder) Freq(f Frequency) *RuleBuilder {
	b.rule.Freq = f
	b.freqSet = true
	return b
}

func (b *RuleBuilder) Until(t time.Time) *RuleBuilder {
	b.rule.Until = mo.Some(t)
	return b
}

func (b *RuleBuilder) ClearUntil() *RuleBuilder {
	b.rule.Until = mo.None[time.Time]()
	return b
}

func (b *RuleBuilder) Count(n int) *RuleBuilder {
	b.rule.Count = mo.Some(n)
	return b
}

func (b *RuleBuilder) ClearCount() *RuleBuilder {
	b.rule.Count = mo.None[int]()
	return b
}

func (b *RuleBuilder) Interval(n int) *RuleBuilder {
	b.interval = mo.Some(n)
	return b
}

func (b *RuleBuilder) BySecond(v ...int) *RuleBuilder {
	b.rule.BySecond = listOrNil(v)
	return b
}

func (b *RuleBuilder) ByMinute(v ...int) *RuleBuilder {
	b.rule.ByMinute = listOrNil(v)
	return b
}

func (b *RuleBuilder) ByHour(v ...int) *RuleBuilder {
	b.rule.ByHour = listOrNil(v)
	return b
}

func (b *RuleBuilder) ByDay(v ...WeekdayNum) *RuleBuilder {
	b.rule.ByDay = listOrNil(v)
	return b
}

func (b *RuleBuilder) ByMonthDay(v ...int) *RuleBuilder {
	b.rule.ByMonthDay = listOrNil(v)
	return b
}

func (b *RuleBuilder) ByYearDay(v ...int) *RuleBuilder {
	b.rule.ByYearDay = listOrNil(v)
	return b
}

func (b *RuleBuilder) ByWeekNo(v ...int) *RuleBuilder {
	b.rule.ByWeekNo = listOrNil(v)
	return b
}

func (b *RuleBuilder) ByMonth(v ...int) *RuleBuilder {
	b.rule.ByMonth = listOrNil(v)
	return b
}

func (b *RuleBuilder) BySetPos(v ...int) *RuleBuilder {
	b.rule.BySetPos = listOrNil(v)
	return b
}

func (b *RuleBuilder) Wkst(d Weekday) *RuleBuilder {
	b.rule.Wkst = d
	return b
}

// Build applies defaults and checks the rule invariants: FREQ present, COUNT
// and UNTIL exclusive, INTERVAL at least 1, COUNT non-negative and UNTIL on grid.
func (b *RuleBuilder) Build() (Rule, error) {
	r := b.rule.clone()

	if !b.freqSet || r.Freq < Secondly || r.Freq > Yearly {
		return Rule{}, &Error{Type: ErrMalformedRule, Message: "RRULE requires FREQ"}
	}
	if r.Until.IsPresent() && r.Count.IsPresent() {
		return Rule{}, &Error{Type: ErrConflictingBounds, Message: "RRULE cannot have both COUNT and UNTIL"}
	}

	r.Interval = b.interval.OrElse(1)
	if r.Interval < 1 {
		return Rule{}, &Error{Type: ErrMalformedRule, Message: fmt.Sprintf("INTERVAL must be at least 1, got %d", r.Interval)}
	}
	if n, ok := r.Count.Get(); ok && n < 0 {
		return Rule{}, &Error{Type: ErrMalformedRule, Message: fmt.Sprintf("COUNT must not be negative, got %d", n)}
	}
	if r.Wkst < Monday || r.Wkst > Sunday {
		return Rule{}, &Error{Type: ErrMalformedRule, Message: fmt.Sprintf("invalid WKST %d", int(r.Wkst))}
	}
	for _, wd := range r.ByDay {
		if wd.Day < Monday || wd.Day > Sunday {
			return Rule{}, &Error{Type: ErrMalformedRule, Message: fmt.Sprintf("invalid BYDAY weekday %d", int(wd.Day))}
		}
	}

	if until, ok := r.Until.Get(); ok {
		if err := ValidateTime(b.allDay, until, nil); err != nil {
			return Rule{}, err
		}
		r.Until = mo.Some(normalizeUntil(until, b.allDay))
	}

	return r, nil
}

// normalizeUntil stores all-day UNTIL values as midnight UTC of their calendar
// date and timed ones in UTC.
func normalizeUntil(t time.Time, allDay bool) time.Time {
	if allDay {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return t.UTC()
}

func (r Rule) clone() Rule {
	c := r
	c.BySecond = slices.Clone(r.BySecond)
	c.ByMinute = slices.Clone(r.ByMinute)
	c.ByHour = slices.Clone(r.ByHour)
	c.ByDay = slices.Clone(r.ByDay)
	c.ByMonthDay = slices.Clone(r.ByMonthDay)
	c.ByYearDay = slices.Clone(r.ByYearDay)
	c.ByWeekNo = slices.Clone(r.ByWeekNo)
	c.ByMonth = slices.Clone(r.ByMonth)
	c.BySetPos = slices.Clone(r.BySetPos)
	return c
}

func listOrNil[T any](v []T) []T {
	if len(v) == 0 {
		return nil
	}
	return slices.Clone(v)
}
