// Package agenda turns ICS subscriptions into a day-grouped agenda drawn
// with a bitmap font. Feeds are fetched with a disk cache, parsed with
// golang-ical and expanded with rrule-go.
package agenda

import (
	"context"
	"errors"
	"image"
	"image/draw"
	"time"

	"epdpage/internal/battery"
	appLog "epdpage/internal/log"
)

// Source produces the agenda picture for one refresh.
type Source struct {
	Fetcher  *Fetcher
	Feeds    []Feed
	Location *time.Location
	// Days is the horizon, today included.
	Days      int
	Highlight []string
	// Battery, if set, is shown in the header.
	Battery battery.Reader
	// Now defaults to time.Now.
	Now func() time.Time
}

// Prepare fetches, parses and lays out the agenda once. The returned
// function paints it and is meant to be called once per page.
func (s *Source) Prepare(ctx context.Context, size image.Point) (func(draw.Image), error) {
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	t := now().In(loc)
	days := max(s.Days, 1)

	var events []ParsedEvent
	if len(s.Feeds) > 0 {
		if s.Fetcher == nil {
			return nil, errors.New("agenda: no fetcher")
		}
		results, errs := s.Fetcher.FetchAll(ctx, s.Feeds)
		if len(results) == 0 && len(errs) > 0 {
			return nil, errors.Join(errs...)
		}
		for _, res := range results {
			evs, err := Parse(res.Feed, res.Body, loc)
			if err != nil {
				appLog.Error("agenda: parse failed", err, "id", res.Feed.ID)
				continue
			}
			events = append(events, evs...)
		}
	}

	from := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	occs, _, err := Expand(events, ExpandOptions{
		Location: loc,
		From:     from,
		To:       from.AddDate(0, 0, days),
	})
	if err != nil {
		return nil, err
	}

	opts := ViewOptions{Days: days, Highlight: s.Highlight}
	if s.Battery != nil {
		st, err := s.Battery.Read(ctx)
		if err != nil {
			appLog.Warn("agenda: battery read failed", "err", err)
		} else {
			opts.Status = st.String()
		}
	}

	view := NewView(size, t, occs, opts)
	appLog.Info("agenda: prepared", "events", len(events), "occurrences", len(occs), "rows", len(view.rows))
	return view.Draw, nil
}
