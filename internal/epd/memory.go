package epd

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"time"

	"epdpage/internal/paged"
)

// Op is one call received by a Memory controller.
type Op struct {
	Kind    string // write, refresh, refreshWindow, powerOff, clear, fill
	Rect    image.Rectangle
	Partial bool
}

func (o Op) String() string {
	switch o.Kind {
	case "refresh":
		return fmt.Sprintf("refresh(partial=%t)", o.Partial)
	case "powerOff":
		return o.Kind
	default:
		return fmt.Sprintf("%s%v", o.Kind, o.Rect)
	}
}

// Memory emulates controller RAM for a panel. Writes land in RAM, and a
// refresh copies RAM into the visible frame, which can be read back as an
// image. It is safe for concurrent use.
type Memory struct {
	mu sync.Mutex

	panel Panel
	black []byte
	color []byte
	frame *image.NRGBA
	ops   []Op

	refreshed time.Time
}

// NewMemory returns an emulated controller with white RAM and frame.
func NewMemory(p Panel) *Memory {
	n := p.Width / 8 * p.Height
	m := &Memory{
		panel: p,
		black: make([]byte, n),
		color: make([]byte, n),
		frame: image.NewNRGBA(image.Rect(0, 0, p.Width, p.Height)),
	}
	m.fill(0xff)
	m.copyFrame(m.frame.Rect)
	m.refreshed = time.Time{}
	return m
}

// Info implements paged.Controller.
func (m *Memory) Info() paged.Info {
	return m.panel.Info()
}

// WriteImage implements paged.Controller. Rows and bytes falling outside
// the panel are dropped.
func (m *Memory) WriteImage(black, color []byte, x, y, w, h int) error {
	stride := w / 8
	if n := stride * h; len(black) < n || len(color) < n {
		return fmt.Errorf("epd: write: planes hold %d/%d bytes, need %d", len(black), len(color), n)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.ops = append(m.ops, Op{Kind: "write", Rect: image.Rect(x, y, x+w, y+h)})

	ramStride := m.panel.Width / 8
	for row := 0; row < h; row++ {
		py := y + row
		if py < 0 || py >= m.panel.Height {
			continue
		}
		for col := 0; col < stride; col++ {
			bx := x/8 + col
			if bx < 0 || bx >= ramStride {
				continue
			}
			m.black[py*ramStride+bx] = black[row*stride+col]
			m.color[py*ramStride+bx] = color[row*stride+col]
		}
	}
	return nil
}

// Refresh implements paged.Controller.
func (m *Memory) Refresh(partial bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ops = append(m.ops, Op{Kind: "refresh", Partial: partial})
	m.copyFrame(m.frame.Rect)
	return nil
}

// RefreshWindow implements paged.Controller.
func (m *Memory) RefreshWindow(x, y, w, h int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := image.Rect(x, y, x+w, y+h)
	m.ops = append(m.ops, Op{Kind: "refreshWindow", Rect: r})
	m.copyFrame(r.Intersect(m.frame.Rect))
	return nil
}

// PowerOff implements paged.Controller.
func (m *Memory) PowerOff() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ops = append(m.ops, Op{Kind: "powerOff"})
	return nil
}

// ClearScreen implements paged.ScreenClearer.
func (m *Memory) ClearScreen(value byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ops = append(m.ops, Op{Kind: "clear", Rect: m.frame.Rect})
	m.fill(value)
	m.copyFrame(m.frame.Rect)
	return nil
}

// WriteScreenBuffer implements paged.ScreenClearer.
func (m *Memory) WriteScreenBuffer(value byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ops = append(m.ops, Op{Kind: "fill", Rect: m.frame.Rect})
	m.fill(value)
	return nil
}

// fill writes value to the black plane and clears the accent plane.
func (m *Memory) fill(value byte) {
	for i := range m.black {
		m.black[i] = value
		m.color[i] = 0xff
	}
}

// copyFrame makes the RAM contents inside r visible.
func (m *Memory) copyFrame(r image.Rectangle) {
	stride := m.panel.Width / 8
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			i, mask := y*stride+x/8, byte(0x80>>(x%8))
			var c paged.Color
			switch {
			case m.black[i]&mask == 0:
				c = paged.Black
			case m.color[i]&mask == 0:
				c = paged.Accent
			default:
				c = paged.White
			}
			m.frame.SetNRGBA(x, y, color.NRGBAModel.Convert(c).(color.NRGBA))
		}
	}
	if !r.Empty() {
		m.refreshed = time.Now()
	}
}

// Ops returns the operations received so far.
func (m *Memory) Ops() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Op(nil), m.ops...)
}

// ResetOps forgets the recorded operations.
func (m *Memory) ResetOps() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = nil
}

// Snapshot returns a copy of the visible frame in native orientation.
func (m *Memory) Snapshot() *image.NRGBA {
	m.mu.Lock()
	defer m.mu.Unlock()

	img := image.NewNRGBA(m.frame.Rect)
	copy(img.Pix, m.frame.Pix)
	return img
}

// Refreshed is the time of the last refresh, zero if none happened yet.
func (m *Memory) Refreshed() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshed
}

// WritePNG encodes the visible frame.
func (m *Memory) WritePNG(w io.Writer) error {
	if err := png.Encode(w, m.Snapshot()); err != nil {
		return fmt.Errorf("epd: encode preview: %w", err)
	}
	return nil
}

var _ paged.Controller = (*Memory)(nil)
var _ paged.ScreenClearer = (*Memory)(nil)
