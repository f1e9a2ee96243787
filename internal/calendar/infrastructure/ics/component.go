// Package ics reads iCalendar data from files, URLs and CalDAV objects and
// expands recurring events into single instances.
package ics

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/teambition/rrule-go"
)

const (
	utcLayout   = "20060102T150405Z"
	localLayout = "20060102T150405"
	dateLayout  = "20060102"
)

// Stamp is a DTSTART-like property value with its TZID.
type Stamp struct {
	Value string
	TZID  string
}

// IsZero reports whether no value was present.
func (s Stamp) IsZero() bool { return s.Value == "" }

// DateOnly reports whether the value is a DATE.
func (s Stamp) DateOnly() bool { return len(strings.TrimSpace(s.Value)) == len(dateLayout) }

// Time parses the value. Floating times use TZID, or UTC without one.
func (s Stamp) Time() (time.Time, error) {
	loc := location(s.TZID)
	return s.Prop(ical.PropDateTimeStart, loc).DateTime(loc)
}

// Prop returns the value as an iCalendar property of the given name. An
// unknown TZID is dropped so the value reads as UTC.
func (s Stamp) Prop(name string, loc *time.Location) *ical.Prop {
	prop := ical.NewProp(name)
	prop.Value = strings.TrimSpace(s.Value)
	if s.DateOnly() {
		prop.SetValueType(ical.ValueDate)
	}
	if loc != time.UTC {
		prop.Params.Set(ical.ParamTimezoneID, loc.String())
	}
	return prop
}

func (s Stamp) raw() domain.RawTime {
	if s.DateOnly() {
		return domain.RawTime{Date: strings.TrimSpace(s.Value), TimeZone: s.TZID}
	}
	return domain.RawTime{DateTime: strings.TrimSpace(s.Value), TimeZone: s.TZID}
}

// Component is one VEVENT, independent of the parser that produced it.
type Component struct {
	UID          string
	Summary      string
	Description  string
	Location     string
	Status       string
	Transp       string
	Start        Stamp
	End          Stamp
	Duration     string
	RRule        string
	RDates       []Stamp
	ExDates      []Stamp
	RecurrenceID Stamp
}

// Expand turns components into raw events overlapping [windowStart, windowEnd).
// Recurring components yield one event per instance; instances replaced by a
// RECURRENCE-ID override are taken from the override. Instance IDs are
// "<UID>_<instance start in UTC>" so they stay stable across fetches.
func Expand(calendarID string, comps []Component, windowStart, windowEnd time.Time) ([]domain.RawEvent, error) {
	overrides := make(map[string]Component)
	for _, c := range comps {
		if !c.RecurrenceID.IsZero() {
			if t, err := c.RecurrenceID.Time(); err == nil {
				overrides[instanceID(c.UID, t)] = c
			}
		}
	}

	var events []domain.RawEvent
	for _, c := range comps {
		switch {
		case !c.RecurrenceID.IsZero():
			rid, err := c.RecurrenceID.Time()
			if err != nil {
				continue
			}
			if overlapsWindow(c, windowStart, windowEnd) {
				ev := c.rawEvent(calendarID, instanceID(c.UID, rid))
				ev.Recurring = true
				events = append(events, ev)
			}
		case c.RRule != "" || len(c.RDates) > 0:
			instances, err := c.instances(calendarID, windowStart, windowEnd, overrides)
			if err != nil {
				return nil, fmt.Errorf("expand %s: %w", c.UID, err)
			}
			events = append(events, instances...)
		default:
			// Unparseable events are passed through so they are counted as skipped.
			if _, err := c.Start.Time(); err != nil || overlapsWindow(c, windowStart, windowEnd) {
				events = append(events, c.rawEvent(calendarID, c.UID))
			}
		}
	}
	return events, nil
}

func (c Component) rawEvent(calendarID, id string) domain.RawEvent {
	end := c.End
	if end.IsZero() {
		if _, e, err := c.bounds(); err == nil {
			end = stampLike(c.Start, e)
		}
	}
	return domain.RawEvent{
		ID:           id,
		CalendarID:   calendarID,
		Title:        c.Summary,
		Description:  c.Description,
		Location:     c.Location,
		Start:        c.Start.raw(),
		End:          end.raw(),
		Transparency: c.Transp,
		Status:       c.Status,
	}
}

func (c Component) instances(calendarID string, windowStart, windowEnd time.Time, overrides map[string]Component) ([]domain.RawEvent, error) {
	start, end, err := c.bounds()
	if err != nil {
		return nil, err
	}
	length := end.Sub(start)
	loc := start.Location()

	set := &rrule.Set{}
	set.DTStart(start)
	if c.RRule != "" {
		opt, err := rrule.StrToROptionInLocation(c.RRule, loc)
		if err != nil {
			return nil, err
		}
		opt.Dtstart = start
		r, err := rrule.NewRRule(*opt)
		if err != nil {
			return nil, err
		}
		set.RRule(r)
	} else {
		set.RDate(start)
	}
	for _, rd := range c.RDates {
		for _, t := range stampTimes(rd, loc) {
			set.RDate(t)
		}
	}
	for _, ex := range c.ExDates {
		for _, t := range stampTimes(ex, loc) {
			set.ExDate(t)
		}
	}

	var events []domain.RawEvent
	for _, inst := range set.Between(windowStart.Add(-length), windowEnd, true) {
		instEnd := inst.Add(length)
		if !inst.Before(windowEnd) || !instEnd.After(windowStart) {
			continue
		}
		id := instanceID(c.UID, inst)
		if _, replaced := overrides[id]; replaced {
			continue
		}
		ev := c.rawEvent(calendarID, id)
		ev.Start = stampLike(c.Start, inst).raw()
		ev.End = stampLike(c.Start, instEnd).raw()
		ev.Recurring = true
		events = append(events, ev)
	}
	return events, nil
}

// bounds resolves start and end, falling back to DURATION, then to one day
// for DATE starts.
func (c Component) bounds() (time.Time, time.Time, error) {
	start, err := c.Start.Time()
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("DTSTART: %w", err)
	}
	if !c.End.IsZero() {
		end, err := c.End.Time()
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("DTEND: %w", err)
		}
		return start, end, nil
	}
	if c.Duration != "" {
		prop := ical.NewProp(ical.PropDuration)
		prop.Value = strings.TrimSpace(c.Duration)
		d, err := prop.Duration()
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("DURATION: %w", err)
		}
		return start, start.Add(d), nil
	}
	if c.Start.DateOnly() {
		return start, start.AddDate(0, 0, 1), nil
	}
	return start, start, nil
}

func overlapsWindow(c Component, windowStart, windowEnd time.Time) bool {
	start, end, err := c.bounds()
	if err != nil {
		return false
	}
	if !end.After(start) {
		end = start.Add(time.Nanosecond)
	}
	return start.Before(windowEnd) && end.After(windowStart)
}

// stampLike formats t the way ref is written, so date-only and floating
// values keep their form.
func stampLike(ref Stamp, t time.Time) Stamp {
	switch {
	case ref.DateOnly():
		return Stamp{Value: t.Format(dateLayout), TZID: ref.TZID}
	case strings.HasSuffix(strings.TrimSpace(ref.Value), "Z") || ref.TZID == "":
		return Stamp{Value: t.UTC().Format(utcLayout)}
	default:
		return Stamp{Value: t.In(location(ref.TZID)).Format(localLayout), TZID: ref.TZID}
	}
}

// stampTimes parses a comma separated EXDATE/RDATE list.
func stampTimes(s Stamp, loc *time.Location) []time.Time {
	var out []time.Time
	for _, v := range strings.Split(s.Value, ",") {
		st := Stamp{Value: v, TZID: s.TZID}
		if st.TZID == "" && !strings.HasSuffix(v, "Z") {
			st.TZID = loc.String()
		}
		if t, err := st.Time(); err == nil {
			out = append(out, t)
		}
	}
	return out
}

func instanceID(uid string, t time.Time) string {
	return uid + "_" + t.UTC().Format(utcLayout)
}

func location(tzid string) *time.Location {
	if tzid == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(strings.Trim(tzid, `"`))
	if err != nil {
		return time.UTC
	}
	return loc
}
