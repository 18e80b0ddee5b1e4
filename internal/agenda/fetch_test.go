package agenda

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const calBody = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nEND:VCALENDAR\r\n"

func TestFetchOneConditional(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	var gotIfNoneMatch atomic.Value
	gotIfNoneMatch.Store("")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIfNoneMatch.Store(r.Header.Get("If-None-Match"))
		switch code := int(status.Load()); code {
		case http.StatusOK:
			if r.Header.Get("If-None-Match") == `"v1"` {
				w.WriteHeader(http.StatusNotModified)
				return
			}
			w.Header().Set("ETag", `"v1"`)
			w.Write([]byte(calBody))
		default:
			w.WriteHeader(code)
		}
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	feed := Feed{ID: "home", URL: srv.URL + "/secret/basic.ics"}
	ctx := context.Background()

	for _, tc := range []struct {
		name       string
		status     int
		wantIfNone string
		want       FetchResult
	}{
		{
			name:   "first fetch",
			status: http.StatusOK,
			want:   FetchResult{Feed: feed, Body: []byte(calBody)},
		},
		{
			name:       "not modified",
			status:     http.StatusOK,
			wantIfNone: `"v1"`,
			want:       FetchResult{Feed: feed, Body: []byte(calBody), FromCache: true},
		},
		{
			name:       "server error falls back to cache",
			status:     http.StatusInternalServerError,
			wantIfNone: `"v1"`,
			want:       FetchResult{Feed: feed, Body: []byte(calBody), FromCache: true, Stale: true},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			status.Store(int32(tc.status))
			got, err := f.FetchOne(ctx, feed)
			if err != nil {
				t.Fatalf("FetchOne() failed: %v", err)
			}
			if diff := cmp.Diff(got, tc.want); diff != "" {
				t.Errorf("FetchOne() difference (-got +want):\n%s", diff)
			}
			if h := gotIfNoneMatch.Load().(string); h != tc.wantIfNone {
				t.Errorf("If-None-Match = %q, want %q", h, tc.wantIfNone)
			}
		})
	}
}

func TestFetchAllReportsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/bad.ics") {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(calBody))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	results, errs := f.FetchAll(context.Background(), []Feed{
		{ID: "good", URL: srv.URL + "/good.ics"},
		{ID: "bad", URL: srv.URL + "/bad.ics"},
		{ID: "empty"},
	})
	if len(results) != 1 || results[0].Feed.ID != "good" {
		t.Errorf("results = %+v, want only the good feed", results)
	}
	if len(errs) != 2 {
		t.Fatalf("errs = %v, want 2 errors", errs)
	}
	if !strings.Contains(errs[0].Error(), "bad") {
		t.Errorf("first error %q does not name the feed", errs[0])
	}
}

func TestRedactURL(t *testing.T) {
	for _, tc := range []struct {
		in, want string
	}{
		{"https://calendar.example.com/private-abc/basic.ics", "https://calendar.example.com/...(redacted)"},
		{"not a url", "ics://...(redacted)"},
	} {
		if got := redactURL(tc.in); got != tc.want {
			t.Errorf("redactURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
