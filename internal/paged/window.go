package paged

import (
	"image"

	appLog "epdpage/internal/log"
)

// rect is a rectangle in native panel coordinates.
type rect struct {
	x, y, w, h int
}

func (r rect) empty() bool {
	return r.w <= 0 || r.h <= 0
}

func (r rect) image() image.Rectangle {
	return image.Rect(r.x, r.y, r.x+r.w, r.y+r.h)
}

// SetFullWindow makes the whole panel the update region.
func (c *Canvas) SetFullWindow() {
	c.partial = false
	c.win = rect{0, 0, c.width, c.height}
	c.page = 0
}

// SetPartialWindow limits drawing and refresh to a logical rectangle. The
// rectangle is rotated into native coordinates, clipped to the panel and
// widened so that x and w are multiples of 8.
//
// It reports false, leaving the previous window active, when the controller
// has no partial update.
func (c *Canvas) SetPartialWindow(x, y, w, h int) bool {
	if !c.info.HasPartialUpdate {
		appLog.Warn("paged: partial window ignored, controller has no partial update",
			"panel", c.info.Panel, "x", x, "y", y, "w", w, "h", h)
		return false
	}

	x, y, w, h = c.transformRect(x, y, w, h)

	if x < 0 {
		w += x
		x = 0
	}
	if y < 0 {
		h += y
		y = 0
	}
	x = min(x, c.width)
	y = min(y, c.height)
	w = max(0, min(w, c.width-x))
	h = max(0, min(h, c.height-y))

	w += x % 8
	if w%8 != 0 {
		w += 8 - w%8
	}
	x -= x % 8

	c.partial = true
	c.win = rect{x, y, w, h}
	c.page = 0
	return true
}

// Window returns the active update region in native coordinates.
func (c *Canvas) Window() image.Rectangle {
	return c.win.image()
}

// Partial reports whether a partial window is active.
func (c *Canvas) Partial() bool {
	return c.partial
}

// pageRows returns the native rows [ys, ye) of page p.
func (c *Canvas) pageRows(p int) (int, int) {
	ys := p * c.pageHeight
	return ys, min(ys+c.pageHeight, c.height)
}

// band is the part of the current page that lies inside the window. Its
// height is zero when they only touch or do not meet at all.
func (c *Canvas) band() rect {
	ys, ye := c.pageRows(c.page)
	ys = max(ys, c.win.y)
	ye = min(ye, c.win.y+c.win.h)
	if ye < ys {
		ye = ys
	}
	return rect{c.win.x, ys, c.win.w, ye - ys}
}

// PageBounds is the logical rectangle of the current page within the
// window. It is empty when the page does not intersect the window.
func (c *Canvas) PageBounds() image.Rectangle {
	b := c.band()
	if b.empty() {
		return image.Rectangle{}
	}
	x0, y0 := c.toLogical(b.x, b.y)
	x1, y1 := c.toLogical(b.x+b.w-1, b.y+b.h-1)
	return image.Rect(min(x0, x1), min(y0, y1), max(x0, x1)+1, max(y0, y1)+1)
}
