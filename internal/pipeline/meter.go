package pipeline

import (
	"errors"
	"sync"

	"epdpage/internal/paged"
)

// meter sits between the canvas and the driver. It counts traffic for the
// run status and applies the fast partial override.
type meter struct {
	ctrl paged.Controller
	info paged.Info

	mu        sync.Mutex
	writes    int
	refreshes int
}

func newMeter(ctrl paged.Controller, fastPartial *bool) *meter {
	info := ctrl.Info()
	if fastPartial != nil {
		info.HasFastPartialUpdate = *fastPartial && info.HasPartialUpdate
	}
	return &meter{ctrl: ctrl, info: info}
}

func (m *meter) Info() paged.Info {
	return m.info
}

func (m *meter) WriteImage(black, color []byte, x, y, w, h int) error {
	m.mu.Lock()
	m.writes++
	m.mu.Unlock()
	return m.ctrl.WriteImage(black, color, x, y, w, h)
}

func (m *meter) Refresh(partial bool) error {
	m.mu.Lock()
	m.refreshes++
	m.mu.Unlock()
	return m.ctrl.Refresh(partial)
}

func (m *meter) RefreshWindow(x, y, w, h int) error {
	m.mu.Lock()
	m.refreshes++
	m.mu.Unlock()
	return m.ctrl.RefreshWindow(x, y, w, h)
}

func (m *meter) PowerOff() error {
	return m.ctrl.PowerOff()
}

func (m *meter) ClearScreen(value byte) error {
	sc, ok := m.ctrl.(paged.ScreenClearer)
	if !ok {
		return errors.ErrUnsupported
	}
	return sc.ClearScreen(value)
}

func (m *meter) WriteScreenBuffer(value byte) error {
	sc, ok := m.ctrl.(paged.ScreenClearer)
	if !ok {
		return errors.ErrUnsupported
	}
	return sc.WriteScreenBuffer(value)
}

// reset returns the counts since the previous reset.
func (m *meter) reset() (writes, refreshes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	writes, refreshes = m.writes, m.refreshes
	m.writes, m.refreshes = 0, 0
	return writes, refreshes
}
