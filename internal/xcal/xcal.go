// Package xcal encodes recurrences as RFC 6321 xCal elements.
package xcal

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/samber/mo"

	"github.com/cyp0633/librecur/recurrence"
)

// Namespace is the xCal namespace
const Namespace = "urn:ietf:params:xml:ns:icalendar-2.0"

const (
	xmlDate     = "2006-01-02"
	xmlDateTime = "2006-01-02T15:04:05Z"
)

// Element is implemented by every xCal value in this package (use pointer!)
type Element interface {
	Encode() *etree.Element
	Decode(elem *etree.Element) error
}

var (
	_ Element = (*Recur)(nil)
	_ Element = (*DateList)(nil)
)

// Recur is the <recur> value of an RRULE.
type Recur struct {
	Rule   recurrence.Rule
	AllDay bool
}

func (p Recur) Encode() *etree.Element {
	elem := etree.NewElement("recur")
	r := p.Rule

	elem.CreateElement("freq").SetText(r.Freq.String())
	if until, ok := r.Until.Get(); ok {
		if p.AllDay {
			elem.CreateElement("until").SetText(until.UTC().Format(xmlDate))
		} else {
			elem.CreateElement("until").SetText(until.UTC().Format(xmlDateTime))
		}
	}
	if count, ok := r.Count.Get(); ok {
		elem.CreateElement("count").SetText(strconv.Itoa(count))
	}
	interval := r.Interval
	if interval < 1 {
		interval = 1
	}
	elem.CreateElement("interval").SetText(strconv.Itoa(interval))

	addInts(elem, "bysecond", r.BySecond)
	addInts(elem, "byminute", r.ByMinute)
	addInts(elem, "byhour", r.ByHour)
	for _, wd := range r.ByDay {
		elem.CreateElement("byday").SetText(wd.String())
	}
	addInts(elem, "bymonthday", r.ByMonthDay)
	addInts(elem, "byyearday", r.ByYearDay)
	addInts(elem, "byweekno", r.ByWeekNo)
	addInts(elem, "bymonth", r.ByMonth)
	addInts(elem, "bysetpos", r.BySetPos)
	elem.CreateElement("wkst").SetText(r.Wkst.String())

	return elem
}

// Decode reads a <recur> element. The parts are rejoined into RRULE text and
// parsed, so the element is held to the same rules as a wire line.
func (p *Recur) Decode(elem *etree.Element) error {
	if elem.Tag != "recur" {
		return fmt.Errorf("expected recur element, got %s", elem.Tag)
	}

	var keys []string
	values := make(map[string][]string)
	for _, child := range elem.ChildElements() {
		key := strings.ToUpper(child.Tag)
		if _, ok := values[key]; !ok {
			keys = append(keys, key)
		}
		values[key] = append(values[key], strings.TrimSpace(child.Text()))
	}

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+"="+strings.Join(values[key], ","))
	}

	rule, err := recurrence.ParseRule(strings.Join(parts, ";"), p.AllDay)
	if err != nil {
		return err
	}
	p.Rule = rule
	return nil
}

// DateList is an <rdate> or <exdate> property holding <date> values.
type DateList struct {
	Name  string
	Dates []time.Time
}

func (p DateList) Encode() *etree.Element {
	elem := etree.NewElement(p.Name)
	for _, d := range p.Dates {
		elem.CreateElement("date").SetText(d.UTC().Format(xmlDate))
	}
	return elem
}

func (p *DateList) Decode(elem *etree.Element) error {
	p.Name = elem.Tag
	p.Dates = nil
	for _, child := range elem.ChildElements() {
		if child.Tag != "date" {
			return &recurrence.Error{
				Type:    recurrence.ErrDateOnlyOnTimedEvent,
				Message: fmt.Sprintf("%s must hold date values, got %s", p.Name, child.Tag),
			}
		}
		d, err := time.ParseInLocation(xmlDate, strings.TrimSpace(child.Text()), time.UTC)
		if err != nil {
			return &recurrence.Error{Type: recurrence.ErrMalformedInstant, Message: fmt.Sprintf("cannot parse %q as a date", child.Text()), Err: err}
		}
		p.Dates = append(p.Dates, d)
	}
	return nil
}

// Marshal renders a recurrence as an xCal <properties> document.
func Marshal(rec recurrence.Recurrence, allDay bool) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("properties")
	root.CreateAttr("xmlns", Namespace)

	rrule := root.CreateElement("rrule")
	rrule.AddChild(Recur{Rule: rec.Rule, AllDay: allDay}.Encode())
	if allDay {
		if len(rec.RDate) > 0 {
			root.AddChild(DateList{Name: "rdate", Dates: rec.RDate}.Encode())
		}
		if len(rec.ExDate) > 0 {
			root.AddChild(DateList{Name: "exdate", Dates: rec.ExDate}.Encode())
		}
	}

	doc.Indent(2)
	return doc.WriteToBytes()
}

// Unmarshal reads a document produced by Marshal. A document without an
// rrule yields None.
func Unmarshal(data []byte, allDay bool) (mo.Option[recurrence.Recurrence], error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return mo.None[recurrence.Recurrence](), fmt.Errorf("failed to parse xCal: %w", err)
	}

	root := doc.Root()
	if root == nil || root.Tag != "properties" {
		return mo.None[recurrence.Recurrence](), fmt.Errorf("missing properties element")
	}

	rrules := root.SelectElements("rrule")
	dates := append(root.SelectElements("rdate"), root.SelectElements("exdate")...)
	if len(rrules) == 0 && len(dates) == 0 {
		return mo.None[recurrence.Recurrence](), nil
	}
	if len(rrules) == 0 {
		return mo.None[recurrence.Recurrence](), &recurrence.Error{Type: recurrence.ErrMissingRule, Message: "Missing RRULE in recurrence list"}
	}
	if len(rrules) > 1 {
		return mo.None[recurrence.Recurrence](), &recurrence.Error{Type: recurrence.ErrMalformedRule, Message: "more than one RRULE in recurrence list"}
	}

	recurElem := rrules[0].SelectElement("recur")
	if recurElem == nil {
		return mo.None[recurrence.Recurrence](), &recurrence.Error{Type: recurrence.ErrMalformedRule, Message: "rrule without recur value"}
	}
	recur := Recur{AllDay: allDay}
	if err := recur.Decode(recurElem); err != nil {
		return mo.None[recurrence.Recurrence](), err
	}

	rec := recurrence.Recurrence{Rule: recur.Rule}
	for _, elem := range dates {
		if !allDay {
			return mo.None[recurrence.Recurrence](), &recurrence.Error{
				Type:    recurrence.ErrDateOnlyOnTimedEvent,
				Message: "RDATE/EXDATE must be date-only for all-day events",
			}
		}
		var list DateList
		if err := list.Decode(elem); err != nil {
			return mo.None[recurrence.Recurrence](), err
		}
		if list.Name == "rdate" {
			rec.RDate = append(rec.RDate, list.Dates...)
		} else {
			rec.ExDate = append(rec.ExDate, list.Dates...)
		}
	}
	return mo.Some(rec), nil
}

func addInts(elem *etree.Element, tag string, values []int) {
	for _, v := range values {
		elem.CreateElement(tag).SetText(strconv.Itoa(v))
	}
}
