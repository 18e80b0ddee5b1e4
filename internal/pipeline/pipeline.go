// Package pipeline drives a paged canvas from a content source: prepare the
// picture, select the window, then run the page loop until the panel has
// been refreshed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	appLog "epdpage/internal/log"
	"epdpage/internal/paged"
)

// ErrBusy is returned when a run is requested while another is in progress.
var ErrBusy = errors.New("pipeline: a run is already in progress")

// Options configures the canvas a Pipeline owns.
type Options struct {
	PageHeight int
	Rotation   int
	Mirror     bool

	// FastPartial overrides the controller's fast partial capability.
	FastPartial *bool

	// Window, if not empty, is a logical rectangle every run is limited to.
	// Controllers without partial update fall back to full refreshes.
	Window image.Rectangle
}

// Status describes the latest run.
type Status struct {
	Runs      int           `json:"runs"`
	LastRun   time.Time     `json:"last_run"`
	Duration  time.Duration `json:"duration_ns"`
	Pages     int           `json:"pages"`
	Passes    int           `json:"passes"`
	Writes    int           `json:"writes"`
	Refreshes int           `json:"refreshes"`
	Partial   bool          `json:"partial"`
	Error     string        `json:"error,omitempty"`
}

// Geometry describes the canvas.
type Geometry struct {
	Panel      string `json:"panel"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Rotation   int    `json:"rotation"`
	Pages      int    `json:"pages"`
	PageHeight int    `json:"page_height"`
}

// Pipeline owns one canvas and one source. Runs are serialized; the canvas
// is never touched by two goroutines at once.
type Pipeline struct {
	run    sync.Mutex
	canvas *paged.Canvas
	meter  *meter
	src    Source
	window image.Rectangle
	geo    Geometry

	mu     sync.RWMutex
	status Status
}

// New builds the canvas for ctrl and binds it to src.
func New(ctrl paged.Controller, src Source, opts Options) (*Pipeline, error) {
	if ctrl == nil {
		return nil, paged.ErrNoController
	}
	if src == nil {
		return nil, errors.New("pipeline: source is nil")
	}
	m := newMeter(ctrl, opts.FastPartial)
	c, err := paged.New(m, paged.ConfigFor(m.Info(), opts.PageHeight))
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	c.SetRotation(opts.Rotation)
	c.SetMirror(opts.Mirror)

	return &Pipeline{
		canvas: c,
		meter:  m,
		src:    src,
		window: opts.Window,
		geo: Geometry{
			Panel:      m.Info().Panel,
			Width:      c.Width(),
			Height:     c.Height(),
			Rotation:   c.Rotation(),
			Pages:      c.Pages(),
			PageHeight: c.PageHeight(),
		},
	}, nil
}

// Geometry reports the canvas size and paging.
func (p *Pipeline) Geometry() Geometry {
	return p.geo
}

// Status returns a copy of the latest run status.
func (p *Pipeline) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Run draws the source once and refreshes the panel. Controller errors do
// not stop the page loop; the first one is returned after the cycle.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.run.TryLock() {
		return ErrBusy
	}
	defer p.run.Unlock()

	start := time.Now()
	st := Status{LastRun: start}
	err := p.cycle(ctx, &st)
	st.Duration = time.Since(start)
	st.Writes, st.Refreshes = p.meter.reset()
	if err != nil {
		st.Error = err.Error()
	}

	p.mu.Lock()
	st.Runs = p.status.Runs + 1
	p.status = st
	p.mu.Unlock()

	if err != nil {
		appLog.Error("pipeline: run failed", err, "pages", st.Pages, "duration", st.Duration)
		return err
	}
	appLog.Info("pipeline: run done",
		"pages", st.Pages,
		"passes", st.Passes,
		"writes", st.Writes,
		"refreshes", st.Refreshes,
		"partial", st.Partial,
		"duration", st.Duration,
	)
	return nil
}

func (p *Pipeline) cycle(ctx context.Context, st *Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c := p.canvas
	draw, err := p.src.Prepare(ctx, image.Pt(c.Width(), c.Height()))
	if err != nil {
		return fmt.Errorf("pipeline: prepare: %w", err)
	}
	p.meter.reset()

	c.SetFullWindow()
	if w := p.window; !w.Empty() {
		if c.SetPartialWindow(w.Min.X, w.Min.Y, w.Dx(), w.Dy()) {
			st.Partial = true
		} else {
			appLog.Warn("pipeline: partial window ignored", "panel", p.geo.Panel)
		}
	}

	c.FirstPage()
	for {
		draw(c)
		st.Pages++
		if !c.NextPage() {
			break
		}
	}
	st.Passes = st.Pages / c.Pages()
	return c.Err()
}

// Clear fills the panel white and refreshes it, bypassing the source.
func (p *Pipeline) Clear() error {
	if !p.run.TryLock() {
		return ErrBusy
	}
	defer p.run.Unlock()

	if err := p.canvas.ClearScreen(0xff); err != nil {
		return fmt.Errorf("pipeline: clear: %w", err)
	}
	appLog.Info("pipeline: screen cleared")
	return nil
}
