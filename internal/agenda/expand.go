package agenda

import (
	"cmp"
	"errors"
	"slices"
	"time"

	"github.com/teambition/rrule-go"

	appLog "epdpage/internal/log"
)

const defaultMaxPerEvent = 5000

// Occurrence is a single concrete instance of an event in the display zone.
type Occurrence struct {
	FeedID  string
	UID     string
	Summary string
	Where   string
	AllDay  bool
	Start   time.Time
	End     time.Time
}

// ExpandOptions bounds an expansion.
type ExpandOptions struct {
	// Location is the display zone; nil means time.Local.
	Location *time.Location
	// From and To select occurrences overlapping [From, To).
	From, To time.Time
	// MaxPerEvent caps the instances generated by one RRULE.
	MaxPerEvent int
}

// Expand turns parsed events into occurrences overlapping the range,
// applying RRULE, EXDATE and RECURRENCE-ID overrides. The result is sorted
// by start, all-day entries first on the same start. Truncated lists the
// UIDs whose recurrence hit the cap.
func Expand(events []ParsedEvent, opts ExpandOptions) (occs []Occurrence, truncated []string, err error) {
	if opts.To.Before(opts.From) {
		return nil, nil, errors.New("agenda: expand range ends before it starts")
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.MaxPerEvent <= 0 {
		opts.MaxPerEvent = defaultMaxPerEvent
	}

	bases := make(map[string][]ParsedEvent)
	overrides := make(map[string][]ParsedEvent)
	var uids []string
	for _, ev := range events {
		if ev.RecurrenceID != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		if _, ok := bases[ev.UID]; !ok {
			uids = append(uids, ev.UID)
		}
		bases[ev.UID] = append(bases[ev.UID], ev)
	}

	for _, uid := range uids {
		used := make([]bool, len(overrides[uid]))
		for _, ev := range bases[uid] {
			out, hitCap := expandEvent(ev, overrides[uid], used, opts)
			occs = append(occs, out...)
			if hitCap && !slices.Contains(truncated, uid) {
				truncated = append(truncated, uid)
				appLog.Warn("agenda: recurrence truncated", "uid", uid, "cap", opts.MaxPerEvent)
			}
		}
		// Overrides moved into the range from an instance outside it.
		for i, ov := range overrides[uid] {
			if !used[i] && overlaps(ov.Start, ov.End, opts.From, opts.To) {
				occs = append(occs, makeOccurrence(ov, ov.Start, ov.End, opts.Location))
			}
		}
	}

	slices.SortStableFunc(occs, func(a, b Occurrence) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		if a.AllDay != b.AllDay {
			if a.AllDay {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.Summary, b.Summary)
	})
	return occs, truncated, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, used []bool, opts ExpandOptions) ([]Occurrence, bool) {
	if ev.RRule == "" {
		start, end, src := applyOverride(ev, ev.Start, ev.End, overrides, used)
		if !overlaps(start, end, opts.From, opts.To) {
			return nil, false
		}
		return []Occurrence{makeOccurrence(src, start, end, opts.Location)}, false
	}

	r, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		appLog.Warn("agenda: bad RRULE", "uid", ev.UID, "rrule", ev.RRule, "err", err)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	dur := ev.End.Sub(ev.Start)
	days := int(dur.Round(24*time.Hour) / (24 * time.Hour))

	// Instances that started before From may still be running.
	starts := set.Between(opts.From.Add(-dur).In(ev.Start.Location()), opts.To.In(ev.Start.Location()), true)
	hitCap := len(starts) > opts.MaxPerEvent
	if hitCap {
		starts = starts[:opts.MaxPerEvent]
	}

	var out []Occurrence
	for _, s := range starts {
		e := s.Add(dur)
		if ev.AllDay {
			s = time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, s.Location())
			e = s.AddDate(0, 0, max(days, 1))
		}
		start, end, src := applyOverride(ev, s, e, overrides, used)
		if !overlaps(start, end, opts.From, opts.To) {
			continue
		}
		out = append(out, makeOccurrence(src, start, end, opts.Location))
	}
	return out, hitCap
}

// applyOverride swaps in the override whose RECURRENCE-ID equals start and
// marks it used.
func applyOverride(ev ParsedEvent, start, end time.Time, overrides []ParsedEvent, used []bool) (time.Time, time.Time, ParsedEvent) {
	for i, ov := range overrides {
		if ov.RecurrenceID.Equal(start) {
			used[i] = true
			return ov.Start, ov.End, ov
		}
	}
	return start, end, ev
}

// overlaps reports whether [s, e) meets [from, to). Zero length events
// count when they start inside the range.
func overlaps(s, e, from, to time.Time) bool {
	if !e.After(s) {
		return !s.Before(from) && s.Before(to)
	}
	return s.Before(to) && e.After(from)
}

func makeOccurrence(ev ParsedEvent, start, end time.Time, loc *time.Location) Occurrence {
	return Occurrence{
		FeedID:  ev.Feed.ID,
		UID:     ev.UID,
		Summary: ev.Summary,
		Where:   ev.Location,
		AllDay:  ev.AllDay,
		Start:   start.In(loc),
		End:     end.In(loc),
	}
}
