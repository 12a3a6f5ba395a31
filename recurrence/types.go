package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/mo"
)

// Frequency is the FREQ part of a recurrence rule. The zero value is not a
// valid frequency; a rule without FREQ cannot be built.
type Frequency int

const (
	Secondly Frequency = iota + 1
	Minutely
	Hourly
	Daily
	Weekly
	Monthly
	Yearly
)

func (f Frequency) String() string {
	switch f {
	case Secondly:
		return "SECONDLY"
	case Minutely:
		return "MINUTELY"
	case Hourly:
		return "HOURLY"
	case Daily:
		return "DAILY"
	case Weekly:
		return "WEEKLY"
	case Monthly:
		return "MONTHLY"
	case Yearly:
		return "YEARLY"
	default:
		return fmt.Sprintf("Frequency(%d)", int(f))
	}
}

// ParseFrequency maps a FREQ value to its Frequency. Matching is case-insensitive.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SECONDLY":
		return Secondly, nil
	case "MINUTELY":
		return Minutely, nil
	case "HOURLY":
		return Hourly, nil
	case "DAILY":
		return Daily, nil
	case "WEEKLY":
		return Weekly, nil
	case "MONTHLY":
		return Monthly, nil
	case "YEARLY":
		return Yearly, nil
	default:
		return 0, &Error{Type: ErrMalformedRule, Message: fmt.Sprintf("unknown frequency %q", s)}
	}
}

func (f Frequency) MarshalText() ([]byte, error) {
	if f < Secondly || f > Yearly {
		return nil, fmt.Errorf("invalid frequency %d", int(f))
	}
	return []byte(f.String()), nil
}

func (f *Frequency) UnmarshalText(text []byte) error {
	v, err := ParseFrequency(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Weekday is a two-letter RFC 5545 day code. Monday is the zero value so an
// unset WKST reads as MO.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

func (d Weekday) String() string {
	switch d {
	case Monday:
		return "MO"
	case Tuesday:
		return "TU"
	case Wednesday:
		return "WE"
	case Thursday:
		return "TH"
	case Friday:
		return "FR"
	case Saturday:
		return "SA"
	case Sunday:
		return "SU"
	default:
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
}

// ParseWeekday maps a two-letter day code to its Weekday.
func ParseWeekday(s string) (Weekday, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MO":
		return Monday, nil
	case "TU":
		return Tuesday, nil
	case "WE":
		return Wednesday, nil
	case "TH":
		return Thursday, nil
	case "FR":
		return Friday, nil
	case "SA":
		return Saturday, nil
	case "SU":
		return Sunday, nil
	default:
		return 0, &Error{Type: ErrMalformedRule, Message: fmt.Sprintf("unknown weekday %q", s)}
	}
}

// Time converts d to the standard library weekday.
func (d Weekday) Time() time.Weekday {
	switch d {
	case Monday:
		return time.Monday
	case Tuesday:
		return time.Tuesday
	case Wednesday:
		return time.Wednesday
	case Thursday:
		return time.Thursday
	case Friday:
		return time.Friday
	case Saturday:
		return time.Saturday
	default:
		return time.Sunday
	}
}

func (d Weekday) MarshalText() ([]byte, error) {
	if d < Monday || d > Sunday {
		return nil, fmt.Errorf("invalid weekday %d", int(d))
	}
	return []byte(d.String()), nil
}

func (d *Weekday) UnmarshalText(text []byte) error {
	v, err := ParseWeekday(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// WeekdayNum is one BYDAY entry. N == 0 selects every such weekday in the
// period; positive N counts from the start, negative N from the end.
type WeekdayNum struct {
	N   int     `json:"n"`
	Day Weekday `json:"day"`
}

func (w WeekdayNum) String() string {
	if w.N == 0 {
		return w.Day.String()
	}
	return fmt.Sprintf("%d%s", w.N, w.Day)
}

// Rule is a parsed RRULE. Rules are values: build them with RuleBuilder and
// derive changed copies with Rule.Builder rather than editing fields in place.
type Rule struct {
	Freq Frequency `json:"freq"`
	// Until is a date (midnight UTC) for all-day events and a UTC date-time
	// otherwise. Never set together with Count.
	Until    mo.Option[time.Time] `json:"until"`
	Count    mo.Option[int]       `json:"count"`
	Interval int                  `json:"interval"`

	BySecond   []int        `json:"bysecond,omitempty"`
	ByMinute   []int        `json:"byminute,omitempty"`
	ByHour     []int        `json:"byhour,omitempty"`
	ByDay      []WeekdayNum `json:"byday,omitempty"`
	ByMonthDay []int        `json:"bymonthday,omitempty"`
	ByYearDay  []int        `json:"byyearday,omitempty"`
	ByWeekNo   []int        `json:"byweekno,omitempty"`
	ByMonth    []int        `json:"bymonth,omitempty"`
	BySetPos   []int        `json:"bysetpos,omitempty"`

	Wkst Weekday `json:"wkst"`
}

// Recurrence is the full recurrence of one event: the rule plus explicit
// extra (RDate) and excluded (ExDate) dates. RDate and ExDate are only ever
// populated for all-day events and hold midnight UTC dates.
type Recurrence struct {
	Rule   Rule        `json:"rrule"`
	RDate  []time.Time `json:"rdate,omitempty"`
	ExDate []time.Time `json:"exdate,omitempty"`
}
