package paged

// Fill paints every pixel of the page buffer with col.
func (c *Canvas) Fill(col Color) {
	black, accent := byte(0xFF), byte(0xFF)
	switch col {
	case Black:
		black = 0x00
	case Accent:
		accent = 0x00
	}
	for i := range c.black {
		c.black[i] = black
		c.color[i] = accent
	}
}

// locate finds the byte index and bit mask of a logical point in the page
// buffer. It reports false for points outside the canvas, the window or the
// current page.
func (c *Canvas) locate(x, y int) (int, byte, bool) {
	if x < 0 || x >= c.Width() || y < 0 || y >= c.Height() {
		return 0, 0, false
	}
	x, y = c.transform(x, y)

	b := c.band()
	x -= b.x
	y -= b.y
	if c.reverse {
		y = b.h - y - 1
	}
	if x < 0 || x >= b.w || y < 0 || y >= b.h {
		return 0, 0, false
	}
	return x/8 + y*(b.w/8), 0x80 >> (x % 8), true
}

// SetPixel paints one logical pixel. The pixel is first reset to white so
// the last write inside a page wins. Colors other than Black and Accent
// paint white.
func (c *Canvas) SetPixel(x, y int, col Color) {
	i, mask, ok := c.locate(x, y)
	if !ok {
		return
	}
	c.black[i] |= mask
	c.color[i] |= mask
	switch col {
	case Black:
		c.black[i] &^= mask
	case Accent:
		c.color[i] &^= mask
	}
}

// PixelAt reads back a logical pixel of the current page. Pixels that are
// not in the page read as White.
func (c *Canvas) PixelAt(x, y int) Color {
	i, mask, ok := c.locate(x, y)
	switch {
	case !ok:
		return White
	case c.black[i]&mask == 0:
		return Black
	case c.color[i]&mask == 0:
		return Accent
	default:
		return White
	}
}

// DrawInvertedBitmap draws a 1bpp bitmap of w x h pixels at (x, y). Rows
// are padded to whole bytes, the most significant bit is leftmost, and
// cleared bits are drawn in col while set bits are left alone.
func (c *Canvas) DrawInvertedBitmap(x, y int, bitmap []byte, w, h int, col Color) {
	if w <= 0 || h <= 0 {
		return
	}
	stride := (w + 7) / 8
	h = min(h, len(bitmap)/stride)
	for j := 0; j < h; j++ {
		row := bitmap[j*stride : (j+1)*stride]
		for i := 0; i < w; i++ {
			if row[i/8]&(0x80>>(i%8)) == 0 {
				c.SetPixel(x+i, y+j, col)
			}
		}
	}
}
