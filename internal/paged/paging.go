package paged

import (
	"errors"

	appLog "epdpage/internal/log"
)

// FirstPage starts a drawing cycle: the buffer is cleared to white and the
// first page becomes current.
func (c *Canvas) FirstPage() {
	c.Fill(White)
	c.page = 0
	c.secondPhase = false
	c.err = nil
}

// NextPage sends the current page to the controller and moves to the next
// one. It returns true while the caller has to draw again, and false once
// the cycle is complete and the panel has been refreshed.
//
// Controllers with fast partial update get two full passes in full window
// mode: a normal refresh after the first and a fast one after the second.
// In partial window mode the window is refreshed after the first pass only.
func (c *Canvas) NextPage() bool {
	if c.partial {
		return c.nextPartialPage()
	}
	return c.nextFullPage()
}

func (c *Canvas) nextFullPage() bool {
	ys, ye := c.pageRows(c.page)
	c.transmit(rect{0, ys, c.width, ye - ys})

	c.page++
	if c.page < c.pages {
		c.Fill(White)
		return true
	}

	c.page = 0
	if c.info.HasFastPartialUpdate && !c.secondPhase {
		c.fail("refresh", c.ctrl.Refresh(false))
		c.secondPhase = true
		c.Fill(White)
		return true
	}

	c.fail("refresh", c.ctrl.Refresh(c.secondPhase))
	c.fail("power off", c.ctrl.PowerOff())
	c.secondPhase = false
	return false
}

func (c *Canvas) nextPartialPage() bool {
	if b := c.band(); !b.empty() {
		c.transmit(b)
	} else {
		appLog.Debug("paged: page outside window, not sent", "page", c.page)
	}

	c.page++
	if c.page < c.pages {
		c.Fill(White)
		return true
	}

	c.page = 0
	if !c.secondPhase {
		c.refreshWindow()
		if c.info.HasFastPartialUpdate {
			c.secondPhase = true
			c.Fill(White)
			return true
		}
	}
	c.secondPhase = false
	return false
}

// DrawPaged runs a whole cycle, calling draw once for every page that has to
// be sent, and refreshes the panel afterwards. In partial window mode pages
// outside the window are not drawn at all.
func (c *Canvas) DrawPaged(draw func(*Canvas)) {
	c.err = nil
	c.secondPhase = false

	for c.page = 0; c.page < c.pages; c.page++ {
		b := c.band()
		if b.empty() {
			continue
		}
		c.Fill(White)
		draw(c)
		c.transmit(b)
	}
	c.page = 0

	if c.partial {
		c.refreshWindow()
	} else {
		c.fail("refresh", c.ctrl.Refresh(false))
	}
}

// transmit sends the buffered rows of r to controller memory.
func (c *Canvas) transmit(r rect) {
	if r.empty() {
		return
	}
	n := r.w / 8 * r.h
	c.fail("write", c.ctrl.WriteImage(c.black[:n], c.color[:n], r.x, r.y, r.w, r.h))
}

func (c *Canvas) refreshWindow() {
	c.fail("refresh window", c.ctrl.RefreshWindow(c.win.x, c.win.y, c.win.w, c.win.h))
}

// Display sends the current page and refreshes the whole panel. It is meant
// for canvases whose single page covers the panel.
func (c *Canvas) Display(partial bool) error {
	c.err = nil
	c.transmit(c.band())
	c.fail("refresh", c.ctrl.Refresh(partial))
	return c.err
}

// DisplayWindow sends the current page and refreshes the active window only.
func (c *Canvas) DisplayWindow() error {
	c.err = nil
	c.transmit(c.band())
	c.refreshWindow()
	return c.err
}

// Refresh refreshes the panel from controller memory.
func (c *Canvas) Refresh(partial bool) error {
	return c.ctrl.Refresh(partial)
}

// RefreshWindow refreshes a native rectangle from controller memory.
func (c *Canvas) RefreshWindow(x, y, w, h int) error {
	return c.ctrl.RefreshWindow(x, y, w, h)
}

// PowerOff turns the panel's high voltage supply off.
func (c *Canvas) PowerOff() error {
	return c.ctrl.PowerOff()
}

// WriteImage writes both planes straight to controller memory, bypassing
// the page buffer. x and w should be multiples of 8.
func (c *Canvas) WriteImage(black, color []byte, x, y, w, h int) error {
	return c.ctrl.WriteImage(black, color, x, y, w, h)
}

// DrawImage is WriteImage followed by a refresh of the same rectangle.
func (c *Canvas) DrawImage(black, color []byte, x, y, w, h int) error {
	if err := c.ctrl.WriteImage(black, color, x, y, w, h); err != nil {
		return err
	}
	return c.ctrl.RefreshWindow(x, y, w, h)
}

// ClearScreen fills controller memory with value and refreshes the panel.
// It returns errors.ErrUnsupported if the controller cannot do it.
func (c *Canvas) ClearScreen(value byte) error {
	sc, ok := c.ctrl.(ScreenClearer)
	if !ok {
		return errors.ErrUnsupported
	}
	return sc.ClearScreen(value)
}

// WriteScreenBuffer fills controller memory with value without refreshing.
func (c *Canvas) WriteScreenBuffer(value byte) error {
	sc, ok := c.ctrl.(ScreenClearer)
	if !ok {
		return errors.ErrUnsupported
	}
	return sc.WriteScreenBuffer(value)
}
