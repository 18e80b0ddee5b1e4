package paged

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	appLog "epdpage/internal/log"
)

// reversedPanel needs its rows sent bottom-up within each page.
const reversedPanel = "GDE0213B1"

// Config fixes the canvas geometry. Width and Height are the panel's native
// size, PageHeight the number of rows buffered at a time.
type Config struct {
	Width      int
	Height     int
	PageHeight int

	// Reverse flips row addressing inside a page.
	Reverse bool
}

// ConfigFor builds the Config for a controller's panel.
func ConfigFor(info Info, pageHeight int) Config {
	return Config{
		Width:      info.Width,
		Height:     info.Height,
		PageHeight: pageHeight,
		Reverse:    info.Panel == reversedPanel,
	}
}

var (
	ErrNoController = errors.New("paged: controller is nil")
	ErrWidth        = errors.New("paged: width must be a positive multiple of 8")
	ErrHeight       = errors.New("paged: height must be positive")
	ErrPageHeight   = errors.New("paged: page height must be positive")
)

var _ draw.Image = &Canvas{}

// Canvas is a paged tri-color framebuffer bound to one Controller.
// It is not safe for concurrent use.
type Canvas struct {
	ctrl Controller
	info Info

	width, height int
	pageHeight    int
	pages         int
	reverse       bool

	rotation int
	mirror   bool

	// One page of each plane, (width/8)*pageHeight bytes. Never reallocated.
	black []byte
	color []byte

	partial bool
	win     rect

	page        int
	secondPhase bool

	err error
}

// New allocates a canvas for ctrl. A PageHeight larger than the panel is
// reduced to the panel height.
func New(ctrl Controller, cfg Config) (*Canvas, error) {
	if ctrl == nil {
		return nil, ErrNoController
	}
	if cfg.Width <= 0 || cfg.Width%8 != 0 {
		return nil, fmt.Errorf("%w (got %d)", ErrWidth, cfg.Width)
	}
	if cfg.Height <= 0 {
		return nil, fmt.Errorf("%w (got %d)", ErrHeight, cfg.Height)
	}
	if cfg.PageHeight <= 0 {
		return nil, fmt.Errorf("%w (got %d)", ErrPageHeight, cfg.PageHeight)
	}
	if cfg.PageHeight > cfg.Height {
		cfg.PageHeight = cfg.Height
	}

	size := cfg.Width / 8 * cfg.PageHeight
	c := &Canvas{
		ctrl:       ctrl,
		info:       ctrl.Info(),
		width:      cfg.Width,
		height:     cfg.Height,
		pageHeight: cfg.PageHeight,
		pages:      (cfg.Height + cfg.PageHeight - 1) / cfg.PageHeight,
		reverse:    cfg.Reverse,
		black:      make([]byte, size),
		color:      make([]byte, size),
	}
	c.SetFullWindow()
	c.Fill(White)

	appLog.Debug("paged: canvas ready",
		"panel", c.info.Panel,
		"width", c.width,
		"height", c.height,
		"page_height", c.pageHeight,
		"pages", c.pages,
		"buffer_bytes", 2*size,
	)
	return c, nil
}

// Width is the logical width, which follows the rotation.
func (c *Canvas) Width() int {
	if c.rotation&1 == 1 {
		return c.height
	}
	return c.width
}

// Height is the logical height, which follows the rotation.
func (c *Canvas) Height() int {
	if c.rotation&1 == 1 {
		return c.width
	}
	return c.height
}

// SetRotation sets the number of clockwise quarter turns, modulo 4.
func (c *Canvas) SetRotation(r int) {
	c.rotation = r & 3
}

func (c *Canvas) Rotation() int {
	return c.rotation
}

// SetMirror enables horizontal mirroring and returns the previous setting.
// Mirroring flips along the logical x axis and also applies to rectangles
// passed to SetPartialWindow.
func (c *Canvas) SetMirror(m bool) bool {
	m, c.mirror = c.mirror, m
	return m
}

// Info returns the capabilities the canvas was built with.
func (c *Canvas) Info() Info {
	return c.info
}

// Pages is the number of bands a full cycle walks through.
func (c *Canvas) Pages() int {
	return c.pages
}

// Page is the index of the band currently being drawn.
func (c *Canvas) Page() int {
	return c.page
}

func (c *Canvas) PageHeight() int {
	return c.pageHeight
}

// Err returns the first controller error since the last FirstPage or
// DrawPaged. Errors never stop a cycle; they are only reported here and in
// the log.
func (c *Canvas) Err() error {
	return c.err
}

// ColorModel implements image.Image.
func (c *Canvas) ColorModel() color.Model {
	return ColorModel
}

// Bounds implements image.Image. It is the logical area covered by the
// current page (inside the active window), so generic drawing code clips
// itself to what can actually be stored. Use Width and Height for layout.
func (c *Canvas) Bounds() image.Rectangle {
	return c.PageBounds()
}

// At implements image.Image. Pixels outside the current page read as White.
func (c *Canvas) At(x, y int) color.Color {
	return c.PixelAt(x, y)
}

// Set implements draw.Image by classifying col and calling SetPixel.
func (c *Canvas) Set(x, y int, col color.Color) {
	c.SetPixel(x, y, Classify(col))
}

// fail records the first error of a cycle.
func (c *Canvas) fail(op string, err error) {
	if err == nil {
		return
	}
	appLog.Error("paged: controller "+op+" failed", err, "page", c.page, "panel", c.info.Panel)
	if c.err == nil {
		c.err = fmt.Errorf("paged: %s: %w", op, err)
	}
}
