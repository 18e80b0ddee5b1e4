package agenda

import (
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func ics(lines ...string) []byte {
	all := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN"}, lines...)
	all = append(all, "END:VCALENDAR", "")
	return []byte(strings.Join(all, "\r\n"))
}

func TestParse(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatal(err)
	}
	feed := Feed{ID: "work"}
	body := ics(
		"BEGIN:VEVENT",
		"UID:utc@test",
		"SEQUENCE:2",
		"SUMMARY:Lunch\\, team",
		"LOCATION:Cafe",
		"DTSTART:20261016T110000Z",
		"DTEND:20261016T120000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:tz@test",
		"SUMMARY:Standup",
		"DTSTART;TZID=Europe/Berlin:20261012T090000",
		"DTEND;TZID=Europe/Berlin:20261012T091500",
		"RRULE:FREQ=DAILY;COUNT=5",
		"EXDATE;TZID=Europe/Berlin:20261013T090000,20261014T090000",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:tz@test",
		"SUMMARY:Standup (moved)",
		"RECURRENCE-ID;TZID=Europe/Berlin:20261015T090000",
		"DTSTART;TZID=Europe/Berlin:20261015T100000",
		"DTEND;TZID=Europe/Berlin:20261015T101500",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:day@test",
		"SUMMARY:Holiday",
		"DTSTART;VALUE=DATE:20261019",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"SUMMARY:no uid",
		"DTSTART:20261016T110000Z",
		"END:VEVENT",
	)

	got, err := Parse(feed, body, time.UTC)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	moved := time.Date(2026, 10, 15, 9, 0, 0, 0, berlin)
	want := []ParsedEvent{
		{
			Feed:     feed,
			UID:      "utc@test",
			Seq:      2,
			Summary:  "Lunch, team",
			Location: "Cafe",
			Start:    time.Date(2026, 10, 16, 11, 0, 0, 0, time.UTC),
			End:      time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC),
		},
		{
			Feed:    feed,
			UID:     "tz@test",
			Summary: "Standup",
			Start:   time.Date(2026, 10, 12, 9, 0, 0, 0, berlin),
			End:     time.Date(2026, 10, 12, 9, 15, 0, 0, berlin),
			RRule:   "FREQ=DAILY;COUNT=5",
			ExDates: []time.Time{
				time.Date(2026, 10, 13, 9, 0, 0, 0, berlin),
				time.Date(2026, 10, 14, 9, 0, 0, 0, berlin),
			},
		},
		{
			Feed:         feed,
			UID:          "tz@test",
			Summary:      "Standup (moved)",
			Start:        time.Date(2026, 10, 15, 10, 0, 0, 0, berlin),
			End:          time.Date(2026, 10, 15, 10, 15, 0, 0, berlin),
			RecurrenceID: &moved,
		},
		{
			Feed:    feed,
			UID:     "day@test",
			Summary: "Holiday",
			Start:   time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
			End:     time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC),
			AllDay:  true,
		},
	}
	if diff := cmp.Diff(got, want, cmpopts.EquateEmpty(), cmpopts.EquateApproxTime(0)); diff != "" {
		t.Errorf("Parse() difference (-got +want):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse(Feed{ID: "x"}, nil, time.UTC); err == nil {
		t.Error("Parse() accepted an empty body")
	}
}

func TestParseTime(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		name       string
		value      string
		params     map[string][]string
		want       time.Time
		wantAllDay bool
	}{
		{"utc", "20261016T081500Z", nil, time.Date(2026, 10, 16, 8, 15, 0, 0, time.UTC), false},
		{"floating", "20261016T081500", nil, time.Date(2026, 10, 16, 8, 15, 0, 0, ny), false},
		{"tzid", "20261016T081500", map[string][]string{"TZID": {"UTC"}}, time.Date(2026, 10, 16, 8, 15, 0, 0, time.UTC), false},
		{"unknown tzid", "20261016T081500", map[string][]string{"TZID": {"Mars/Olympus"}}, time.Date(2026, 10, 16, 8, 15, 0, 0, ny), false},
		{"date", "20261016", nil, time.Date(2026, 10, 16, 0, 0, 0, 0, ny), true},
		{"value date", "20261016", map[string][]string{"VALUE": {"DATE"}}, time.Date(2026, 10, 16, 0, 0, 0, 0, ny), true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, allDay, err := parseTime(tc.value, tc.params, ny)
			if err != nil {
				t.Fatalf("parseTime() failed: %v", err)
			}
			if !got.Equal(tc.want) || allDay != tc.wantAllDay {
				t.Errorf("parseTime() = %v, %t, want %v, %t", got, allDay, tc.want, tc.wantAllDay)
			}
		})
	}
}
