package paged

// transform maps a logical point to the panel's native orientation. The
// mirror is applied first, along the logical x axis, then the rotation.
func (c *Canvas) transform(x, y int) (int, int) {
	if c.mirror {
		x = c.Width() - x - 1
	}
	switch c.rotation {
	case 1:
		x, y = y, x
		x = c.width - x - 1
	case 2:
		x = c.width - x - 1
		y = c.height - y - 1
	case 3:
		x, y = y, x
		y = c.height - y - 1
	}
	return x, y
}

// toLogical is the inverse of transform.
func (c *Canvas) toLogical(x, y int) (int, int) {
	switch c.rotation {
	case 1:
		x, y = y, c.width-x-1
	case 2:
		x, y = c.width-x-1, c.height-y-1
	case 3:
		x, y = c.height-y-1, x
	}
	if c.mirror {
		x = c.Width() - x - 1
	}
	return x, y
}

// transformRect maps a logical rectangle to native orientation; width and
// height swap on quarter turns.
func (c *Canvas) transformRect(x, y, w, h int) (int, int, int, int) {
	if c.mirror {
		x = c.Width() - x - w
	}
	switch c.rotation {
	case 1:
		x, y = y, x
		w, h = h, w
		x = c.width - x - w
	case 2:
		x = c.width - x - w
		y = c.height - y - h
	case 3:
		x, y = y, x
		w, h = h, w
		y = c.height - y - h
	}
	return x, y, w, h
}
