package recurrence

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/teambition/rrule-go"
)

// Engine checks whether a given instant is an occurrence of a recurrence.
// It never lists occurrences; it answers one question per call.
type Engine struct {
	cache  *OccurrenceCache
	logger *slog.Logger
}

// NewEngine creates an engine with DefaultEngineConfig.
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultEngineConfig)
}

// HasOccurrence reports whether occurrenceStart is an occurrence of rec for an
// event first starting at dtstart. dtstart must already be in the event's
// location; all-day RDATE and EXDATE values are placed at midnight there.
func (e *Engine) HasOccurrence(dtstart time.Time, allDay bool, rec Recurrence, occurrenceStart time.Time) (bool, error) {
	if e.cache != nil {
		if hit, ok := e.cache.Get(dtstart, allDay, rec, occurrenceStart); ok {
			return hit, nil
		}
	}

	found, err := e.hasOccurrence(dtstart, allDay, rec, occurrenceStart)
	if err != nil {
		return false, err
	}

	if e.cache != nil {
		e.cache.Set(dtstart, allDay, rec, occurrenceStart, found)
	}
	return found, nil
}

func (e *Engine) hasOccurrence(dtstart time.Time, allDay bool, rec Recurrence, occurrenceStart time.Time) (bool, error) {
	loc := dtstart.Location()

	for _, ex := range rec.ExDate {
		if sameDay(occurrenceStart.In(loc), ex) {
			e.logger.Debug("occurrence excluded by EXDATE",
				"occurrence", occurrenceStart,
				"exdate", ex.Format(dateLayout))
			return false, nil
		}
	}
	for _, rd := range rec.RDate {
		if occurrenceStart.Equal(atMidnight(rd, loc)) {
			return true, nil
		}
	}

	if n, ok := rec.Rule.Count.Get(); ok && n == 0 {
		return false, nil
	}

	opt, err := ruleOption(rec.Rule, dtstart, allDay)
	if err != nil {
		return false, err
	}
	rr, err := rrule.NewRRule(opt)
	if err != nil {
		return false, fmt.Errorf("failed to compile RRULE %q: %w", FormatRule(rec.Rule, allDay), err)
	}

	// Between is inclusive on both ends with inc set, so a zero-width range
	// returns the instant itself when it is an occurrence.
	hits := rr.Between(occurrenceStart, occurrenceStart, true)
	e.logger.Debug("checked occurrence",
		"rrule", FormatRule(rec.Rule, allDay),
		"dtstart", dtstart,
		"occurrence", occurrenceStart,
		"found", len(hits) > 0)
	return len(hits) > 0, nil
}

// Close stops the cache cleanup goroutine, if any.
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// CacheStats returns statistics of the engine cache; zero when disabled.
func (e *Engine) CacheStats() CacheStats {
	if e.cache == nil {
		return CacheStats{}
	}
	return e.cache.Stats()
}

func ruleOption(r Rule, dtstart time.Time, allDay bool) (rrule.ROption, error) {
	freq, err := r.Freq.rrule()
	if err != nil {
		return rrule.ROption{}, err
	}

	opt := rrule.ROption{
		Freq:       freq,
		Dtstart:    dtstart,
		Interval:   r.Interval,
		Wkst:       r.Wkst.rrule(),
		Bysecond:   r.BySecond,
		Byminute:   r.ByMinute,
		Byhour:     r.ByHour,
		Bymonthday: r.ByMonthDay,
		Byyearday:  r.ByYearDay,
		Byweekno:   r.ByWeekNo,
		Bymonth:    r.ByMonth,
		Bysetpos:   r.BySetPos,
	}
	if n, ok := r.Count.Get(); ok {
		opt.Count = n
	}
	if until, ok := r.Until.Get(); ok {
		if allDay {
			// The whole UNTIL date counts, in the event's own location.
			opt.Until = atMidnight(until, dtstart.Location()).AddDate(0, 0, 1).Add(-time.Second)
		} else {
			opt.Until = until
		}
	}
	for _, wd := range r.ByDay {
		opt.Byweekday = append(opt.Byweekday, wd.rrule())
	}
	return opt, nil
}

func (f Frequency) rrule() (rrule.Frequency, error) {
	switch f {
	case Secondly:
		return rrule.SECONDLY, nil
	case Minutely:
		return rrule.MINUTELY, nil
	case Hourly:
		return rrule.HOURLY, nil
	case Daily:
		return rrule.DAILY, nil
	case Weekly:
		return rrule.WEEKLY, nil
	case Monthly:
		return rrule.MONTHLY, nil
	case Yearly:
		return rrule.YEARLY, nil
	default:
		return 0, &Error{Type: ErrMalformedRule, Message: fmt.Sprintf("invalid frequency %d", int(f))}
	}
}

func (d Weekday) rrule() rrule.Weekday {
	switch d {
	case Tuesday:
		return rrule.TU
	case Wednesday:
		return rrule.WE
	case Thursday:
		return rrule.TH
	case Friday:
		return rrule.FR
	case Saturday:
		return rrule.SA
	case Sunday:
		return rrule.SU
	default:
		return rrule.MO
	}
}

func (w WeekdayNum) rrule() rrule.Weekday {
	wd := w.Day.rrule()
	if w.N == 0 {
		return wd
	}
	return wd.Nth(w.N)
}

// atMidnight places the calendar date of d at midnight in loc.
func atMidnight(d time.Time, loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}

func sameDay(t, d time.Time) bool {
	ty, tm, td := t.Date()
	dy, dm, dd := d.Date()
	return ty == dy && tm == dm && td == dd
}
