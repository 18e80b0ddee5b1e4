package paged

// Info describes a panel controller: its identity, native (unrotated)
// geometry and the refresh modes it supports.
type Info struct {
	Panel  string
	Width  int
	Height int

	HasPartialUpdate     bool
	HasFastPartialUpdate bool
}

// Controller is the panel driver a Canvas sends pages to. Implementations
// own the wire protocol; the canvas only decides what goes where.
//
// WriteImage receives h rows of w/8 bytes per plane (row stride w/8) to be
// stored in controller memory at (x, y). x and w are always multiples of 8.
// A cleared bit paints: black in the first plane, accent in the second.
type Controller interface {
	Info() Info
	WriteImage(black, color []byte, x, y, w, h int) error
	Refresh(partial bool) error
	RefreshWindow(x, y, w, h int) error
	PowerOff() error
}

// ScreenClearer is implemented by controllers that can initialize their
// memory without pixel data.
type ScreenClearer interface {
	// ClearScreen fills controller memory with value and refreshes.
	ClearScreen(value byte) error
	// WriteScreenBuffer fills controller memory with value only.
	WriteScreenBuffer(value byte) error
}
