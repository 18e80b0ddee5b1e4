package paged

import (
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var partialPanel = Info{Panel: "test", Width: 200, Height: 200, HasPartialUpdate: true}

func TestSetPartialWindow(t *testing.T) {
	for _, tc := range []struct {
		name     string
		info     Info
		rotation int
		mirror   bool
		in       image.Rectangle // x, y, w, h packed as Min and Max-Min
		want     image.Rectangle
	}{
		{
			// w += 5 -> 25, rounded up to 32; x rounds down to 0.
			name: "unaligned origin",
			info: partialPanel,
			in:   image.Rect(5, 5, 25, 25),
			want: image.Rect(0, 5, 32, 25),
		},
		{
			name: "aligned",
			info: partialPanel,
			in:   image.Rect(16, 40, 48, 90),
			want: image.Rect(16, 40, 48, 90),
		},
		{
			name: "clamped to panel",
			info: partialPanel,
			in:   image.Rect(190, 150, 290, 450),
			want: image.Rect(184, 150, 200, 200),
		},
		{
			name: "origin past panel",
			info: partialPanel,
			in:   image.Rect(300, 300, 310, 310),
			want: image.Rect(200, 200, 200, 200),
		},
		{
			name:     "rotation 1",
			info:     Info{Width: 200, Height: 96, HasPartialUpdate: true},
			rotation: 1,
			// logical (10, 20, 30x40) -> native x = 200-20-40 = 140, y = 10, 40x30
			in:   image.Rect(10, 20, 40, 60),
			want: image.Rect(136, 10, 184, 40),
		},
		{
			name:     "rotation 2",
			info:     Info{Width: 200, Height: 96, HasPartialUpdate: true},
			rotation: 2,
			// native x = 200-10-30 = 160, y = 96-20-40 = 36
			in:   image.Rect(10, 20, 40, 60),
			want: image.Rect(160, 36, 192, 76),
		},
		{
			name:     "rotation 3",
			info:     Info{Width: 200, Height: 96, HasPartialUpdate: true},
			rotation: 3,
			// native x = 20, y = 96-10-30 = 56, 40x30
			in:   image.Rect(10, 20, 40, 60),
			want: image.Rect(16, 56, 64, 86),
		},
		{
			name:     "rotation 1 clipped at native origin",
			info:     Info{Width: 200, Height: 96, HasPartialUpdate: true},
			rotation: 1,
			// native x = 200-150-100 = -50 -> clipped to 0 with width 50
			in:   image.Rect(0, 150, 20, 250),
			want: image.Rect(0, 0, 56, 20),
		},
		{
			name:   "mirrored",
			info:   partialPanel,
			mirror: true,
			// native x = 200-10-20 = 170
			in:   image.Rect(10, 0, 30, 10),
			want: image.Rect(168, 0, 192, 10),
		},
		{
			name:     "mirrored rotation 1",
			info:     Info{Width: 200, Height: 96, HasPartialUpdate: true},
			rotation: 1,
			mirror:   true,
			// mirrored in the 96 wide logical frame: x = 96-10-30 = 56,
			// then native x = 200-20-40 = 140, y = 56
			in:   image.Rect(10, 20, 40, 60),
			want: image.Rect(136, 56, 184, 86),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newCanvas(t, tc.info, 50)
			c.SetRotation(tc.rotation)
			c.SetMirror(tc.mirror)

			if !c.SetPartialWindow(tc.in.Min.X, tc.in.Min.Y, tc.in.Dx(), tc.in.Dy()) {
				t.Fatal("SetPartialWindow() = false")
			}
			if got := c.Window(); got != tc.want {
				t.Errorf("Window() = %v, want %v", got, tc.want)
			}
			if !c.Partial() {
				t.Error("Partial() = false")
			}
		})
	}
}

func TestSetPartialWindowAlignment(t *testing.T) {
	const width, height = 200, 96
	c, _ := newCanvas(t, Info{Width: width, Height: height, HasPartialUpdate: true}, 16)

	for rotation := 0; rotation < 4; rotation++ {
		c.SetRotation(rotation)
		for x := 0; x <= width; x += 3 {
			for w := 0; w <= width; w += 7 {
				for y := 0; y <= height; y += 11 {
					for h := 0; h <= height; h += 13 {
						c.SetPartialWindow(x, y, w, h)
						win := c.Window()
						switch {
						case win.Min.X%8 != 0 || win.Dx()%8 != 0:
							t.Fatalf("rotation %d (%d, %d, %d, %d): window %v not byte aligned", rotation, x, y, w, h, win)
						case !win.In(image.Rect(0, 0, width, height)) && !win.Empty():
							t.Fatalf("rotation %d (%d, %d, %d, %d): window %v outside panel", rotation, x, y, w, h, win)
						case win.Min.X < 0 || win.Min.Y < 0 || win.Max.X > width || win.Max.Y > height:
							t.Fatalf("rotation %d (%d, %d, %d, %d): window %v outside panel", rotation, x, y, w, h, win)
						}
					}
				}
			}
		}
	}
}

func TestSetPartialWindowUnsupported(t *testing.T) {
	c, ctrl := newCanvas(t, Info{Width: 200, Height: 200}, 50)

	if c.SetPartialWindow(5, 5, 20, 20) {
		t.Fatal("SetPartialWindow() = true without partial update support")
	}
	if got, want := c.Window(), image.Rect(0, 0, 200, 200); got != want {
		t.Errorf("Window() = %v, want unchanged %v", got, want)
	}
	if c.Partial() {
		t.Error("Partial() = true")
	}
	if len(ctrl.records) != 0 {
		t.Errorf("controller called: %v", ctrl.calls())
	}
}

func TestSetFullWindowResetsPaging(t *testing.T) {
	c, _ := newCanvas(t, partialPanel, 50)
	c.SetPartialWindow(0, 0, 64, 64)
	c.page = 2

	c.SetFullWindow()

	if c.Partial() || c.Page() != 0 || c.Window() != image.Rect(0, 0, 200, 200) {
		t.Errorf("after SetFullWindow: partial=%t page=%d window=%v", c.Partial(), c.Page(), c.Window())
	}
}

func TestPartialWindowPixelAddressing(t *testing.T) {
	c, ctrl := newCanvas(t, partialPanel, 50)
	c.SetPartialWindow(16, 60, 32, 50)

	runCycle(c, func(c *Canvas) {
		c.SetPixel(20, 65, Black)   // page 1, buffer row 5
		c.SetPixel(47, 105, Accent) // page 2, buffer row 5
		c.SetPixel(10, 70, Black)   // left of the window
		c.SetPixel(20, 120, Black)  // below the window
	})

	writes := ctrl.writes()
	got := make([]image.Rectangle, 0, len(writes))
	for _, w := range writes {
		got = append(got, image.Rect(w.x, w.y, w.x+w.w, w.y+w.h))
	}
	want := []image.Rectangle{image.Rect(16, 60, 48, 100), image.Rect(16, 100, 48, 110)}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Fatalf("written areas difference (-got +want):\n%s", diff)
	}

	// 4 bytes per row; (20-16)/8 = 0 and bit 7-4.
	for i, b := range writes[0].black {
		wantByte := byte(0xff)
		if i == 5*4 {
			wantByte = 0xf7
		}
		if b != wantByte {
			t.Errorf("page 1 black[%d] = %#x, want %#x", i, b, wantByte)
		}
	}
	// (47-16)/8 = 3 and bit 7-7.
	if got := writes[1].color[5*4+3]; got != 0xfe {
		t.Errorf("page 2 color[23] = %#x, want 0xfe", got)
	}
	if len(writes[1].black) != 4*10 {
		t.Errorf("page 2 plane length = %d, want 40", len(writes[1].black))
	}
}

func TestReversedRows(t *testing.T) {
	c, ctrl := newCanvas(t, Info{Panel: "GDE0213B1", Width: 16, Height: 8}, 4)

	runCycle(c, func(c *Canvas) {
		c.SetPixel(0, 0, Black) // page 0, first row
		c.SetPixel(0, 5, Black) // page 1, second row
	})

	writes := ctrl.writes()
	if got, want := writes[0].black, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x7f, 0xff}; !cmp.Equal(got, want) {
		t.Errorf("page 0 black = %#v, want %#v", got, want)
	}
	if got, want := writes[1].black, []byte{0xff, 0xff, 0xff, 0xff, 0x7f, 0xff, 0xff, 0xff}; !cmp.Equal(got, want) {
		t.Errorf("page 1 black = %#v, want %#v", got, want)
	}
}
