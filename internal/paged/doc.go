// Package paged is a bounded-memory framebuffer for tri-color (black and
// accent) bistable panels.
//
// A Canvas presents the whole panel as a single drawing surface but only
// ever buffers one horizontal band ("page") of it. A drawing cycle renders
// the same picture once per page:
//
//	c.FirstPage()
//	for {
//		draw(c)
//		if !c.NextPage() {
//			break
//		}
//	}
//	if err := c.Err(); err != nil { ... }
//
// Every NextPage call sends the finished band to the panel controller and
// clears the buffer for the next band, so drawing code must not assume that
// pixels outside the current band survive between calls. DrawPaged wraps the
// loop for callers that render through a single callback.
//
// Coordinates passed to SetPixel, Set and the window functions are logical:
// rotation and mirroring are applied by the canvas. Partial windows are
// clipped to the panel and widened to whole bytes.
package paged
