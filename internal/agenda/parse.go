package agenda

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "epdpage/internal/log"
)

// ParsedEvent is a VEVENT before recurrence expansion.
type ParsedEvent struct {
	Feed Feed

	UID string
	Seq int

	Summary  string
	Location string

	Start  time.Time
	End    time.Time
	AllDay bool

	RRule   string
	ExDates []time.Time
	// RecurrenceID is set on overrides of a single recurring instance.
	RecurrenceID *time.Time
}

// Parse reads one ICS payload. Floating times and all-day dates are placed
// in loc. Broken events are logged and skipped.
func Parse(feed Feed, body []byte, loc *time.Location) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("agenda: empty ICS body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var events []ParsedEvent
	for _, ve := range cal.Events() {
		ev, err := parseVEvent(feed, ve, loc)
		if err != nil {
			appLog.Warn("agenda: vevent skipped", "id", feed.ID, "err", err)
			continue
		}
		events = append(events, ev)
	}
	appLog.Debug("agenda: feed parsed", "id", feed.ID, "events", len(events))
	return events, nil
}

func parseVEvent(feed Feed, ve *ical.VEvent, loc *time.Location) (ParsedEvent, error) {
	out := ParsedEvent{Feed: feed}

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uid.Value

	if p := ve.GetProperty(ical.ComponentPropertySequence); p != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(p.Value)); err == nil {
			out.Seq = n
		}
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = unescape(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = unescape(p.Value)
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	start, allDay, err := parseTime(dtStart.Value, dtStart.ICalParameters, loc)
	if err != nil {
		return out, err
	}
	out.Start, out.AllDay = start, allDay

	switch {
	case ve.GetProperty(ical.ComponentPropertyDtEnd) != nil:
		p := ve.GetProperty(ical.ComponentPropertyDtEnd)
		end, _, err := parseTime(p.Value, p.ICalParameters, loc)
		if err != nil {
			return out, err
		}
		out.End = end
	case allDay:
		out.End = start.AddDate(0, 0, 1)
	default:
		out.End = start
	}
	if out.End.Before(out.Start) {
		out.End = out.Start
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			if t, _, err := parseTime(part, p.ICalParameters, loc); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")); p != nil {
		if t, _, err := parseTime(p.Value, p.ICalParameters, loc); err == nil {
			out.RecurrenceID = &t
		}
	}
	return out, nil
}

// parseTime handles the three ICS forms: UTC (trailing Z), local with an
// optional TZID parameter and date only. It reports whether the value was
// a date.
func parseTime(v string, params map[string][]string, loc *time.Location) (time.Time, bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false, errors.New("empty time value")
	}

	isDate := !strings.Contains(v, "T")
	if vs := params["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		isDate = true
	}
	if isDate {
		t, err := time.ParseInLocation("20060102", v[:min(len(v), 8)], loc)
		return t, true, err
	}

	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse("20060102T150405Z", v)
		return t, false, err
	}

	tloc := loc
	if tz := params["TZID"]; len(tz) > 0 {
		if l, err := time.LoadLocation(strings.Trim(tz[0], `"`)); err == nil {
			tloc = l
		} else {
			appLog.Debug("agenda: unknown TZID, using display zone", "tzid", tz[0])
		}
	}
	t, err := time.ParseInLocation("20060102T150405", v, tloc)
	return t, false, err
}

var unescaper = strings.NewReplacer(`\,`, ",", `\;`, ";", `\n`, " ", `\N`, " ", `\\`, `\`)

func unescape(s string) string {
	return unescaper.Replace(s)
}
