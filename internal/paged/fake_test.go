package paged

import (
	"bytes"
	"errors"
	"testing"
)

type record struct {
	op      string
	x, y    int
	w, h    int
	partial bool
	black   []byte
	color   []byte
}

// fakeController records every call. Planes are copied because the canvas
// reuses its buffer.
type fakeController struct {
	info     Info
	records  []record
	writeErr error
}

func (f *fakeController) Info() Info {
	return f.info
}

func (f *fakeController) WriteImage(black, color []byte, x, y, w, h int) error {
	f.records = append(f.records, record{
		op:    "write",
		x:     x,
		y:     y,
		w:     w,
		h:     h,
		black: bytes.Clone(black),
		color: bytes.Clone(color),
	})
	return f.writeErr
}

func (f *fakeController) Refresh(partial bool) error {
	f.records = append(f.records, record{op: "refresh", partial: partial})
	return nil
}

func (f *fakeController) RefreshWindow(x, y, w, h int) error {
	f.records = append(f.records, record{op: "refreshWindow", x: x, y: y, w: w, h: h})
	return nil
}

func (f *fakeController) PowerOff() error {
	f.records = append(f.records, record{op: "powerOff"})
	return nil
}

// calls strips plane data for comparisons that only care about sequencing.
func (f *fakeController) calls() []record {
	out := make([]record, 0, len(f.records))
	for _, r := range f.records {
		r.black, r.color = nil, nil
		out = append(out, r)
	}
	return out
}

func (f *fakeController) writes() []record {
	var out []record
	for _, r := range f.records {
		if r.op == "write" {
			out = append(out, r)
		}
	}
	return out
}

func newCanvas(t *testing.T, info Info, pageHeight int) (*Canvas, *fakeController) {
	t.Helper()
	ctrl := &fakeController{info: info}
	c, err := New(ctrl, ConfigFor(info, pageHeight))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return c, ctrl
}

// runCycle drives FirstPage/NextPage to completion and returns the number of
// times draw was called.
func runCycle(c *Canvas, draw func(*Canvas)) int {
	calls := 0
	c.FirstPage()
	for {
		calls++
		if draw != nil {
			draw(c)
		}
		if !c.NextPage() {
			return calls
		}
	}
}

var errFake = errors.New("fake failure")
