package epd

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	appLog "epdpage/internal/log"
	"epdpage/internal/paged"
)

// busyTimeout bounds a single wait on the BUSY line. Three color refreshes
// take around 15s.
const busyTimeout = 20 * time.Second

// ErrUnsupportedChip is returned for panels whose controller does not speak
// the IL0373 command set.
var ErrUnsupportedChip = errors.New("epd: controller chip not supported by the SPI driver")

// Pins names the GPIO lines used besides the SPI bus. Chip select is driven
// by spidev.
type Pins struct {
	DC   string
	RST  string
	BUSY string
}

// DefaultPins is the Waveshare HAT wiring on a Raspberry Pi.
var DefaultPins = Pins{DC: "GPIO25", RST: "GPIO17", BUSY: "GPIO24"}

// Dev is an IL0373-class panel on an SPI bus.
type Dev struct {
	mu sync.Mutex

	panel Panel
	c     conn.Conn
	port  spi.PortCloser

	dc   gpio.PinOut
	rst  gpio.PinOut
	busy gpio.PinIn

	initialized bool
	powered     bool
}

// Open initializes periph, opens the SPI port (empty name for the first
// one) and resolves the control pins by name.
func Open(p Panel, port string, speed physic.Frequency, pins Pins) (*Dev, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("epd: periph host init failed: %w", err)
	}

	sp, err := spireg.Open(port)
	if err != nil {
		return nil, fmt.Errorf("epd: failed to open SPI port: %w", err)
	}

	resolve := func(name string) (gpio.PinIO, error) {
		pin := gpioreg.ByName(name)
		if pin == nil {
			return nil, fmt.Errorf("epd: gpio %s not found", name)
		}
		return pin, nil
	}
	dc, err := resolve(pins.DC)
	if err != nil {
		_ = sp.Close()
		return nil, err
	}
	rst, err := resolve(pins.RST)
	if err != nil {
		_ = sp.Close()
		return nil, err
	}
	busy, err := resolve(pins.BUSY)
	if err != nil {
		_ = sp.Close()
		return nil, err
	}
	if err := busy.In(gpio.PullUp, gpio.NoEdge); err != nil {
		_ = sp.Close()
		return nil, fmt.Errorf("epd: gpio %s In failed: %w", pins.BUSY, err)
	}

	d, err := New(sp, speed, dc, rst, busy, p)
	if err != nil {
		_ = sp.Close()
		return nil, err
	}
	d.port = sp
	return d, nil
}

// New connects to an already opened port.
func New(p spi.Port, speed physic.Frequency, dc, rst gpio.PinOut, busy gpio.PinIn, panel Panel) (*Dev, error) {
	if panel.Chip != IL0373 && panel.Chip != IL0398 {
		return nil, fmt.Errorf("%w: %s uses %s", ErrUnsupportedChip, panel.Name, panel.Chip)
	}
	if speed == 0 {
		speed = 4 * physic.MegaHertz
	}
	c, err := p.Connect(speed, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("epd: failed to connect SPI: %w", err)
	}
	if err := dc.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("epd: dc: %w", err)
	}
	if err := rst.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("epd: rst: %w", err)
	}
	return &Dev{panel: panel, c: c, dc: dc, rst: rst, busy: busy}, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("epd.Dev{%s, %s}", d.panel.Name, d.c)
}

// Info implements paged.Controller.
func (d *Dev) Info() paged.Info {
	return d.panel.Info()
}

// run executes a command sequence, resetting and initializing the panel
// first if it is asleep or was never set up.
func (d *Dev) run(op string, seq func(controller)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	eh := &errorHandler{d: d}
	if !d.initialized {
		eh.reset()
		initDisplay(eh, &d.panel)
		d.initialized = eh.err == nil
		d.powered = d.initialized
	} else if !d.powered {
		eh.sendCommand(powerOn)
		eh.waitUntilIdle()
		d.powered = eh.err == nil
	}
	seq(eh)
	if eh.err != nil {
		return fmt.Errorf("epd: %s: %w", op, eh.err)
	}
	return nil
}

// WriteImage implements paged.Controller.
func (d *Dev) WriteImage(black, color []byte, x, y, w, h int) error {
	if n := w / 8 * h; len(black) < n || len(color) < n {
		return fmt.Errorf("epd: write: planes hold %d/%d bytes, need %d", len(black), len(color), n)
	}
	return d.run("write", func(c controller) {
		writeImage(c, &d.panel, black, color, x, y, w, h)
	})
}

// Refresh implements paged.Controller. A partial refresh covers the whole
// panel through the partial window.
func (d *Dev) Refresh(partial bool) error {
	if partial && d.panel.Partial {
		return d.RefreshWindow(0, 0, d.panel.Width, d.panel.Height)
	}
	return d.run("refresh", refreshFull)
}

// RefreshWindow implements paged.Controller.
func (d *Dev) RefreshWindow(x, y, w, h int) error {
	x, y = max(x, 0), max(y, 0)
	w = min(w, d.panel.Width-x)
	h = min(h, d.panel.Height-y)
	if w <= 0 || h <= 0 {
		return nil
	}
	return d.run("refresh window", func(c controller) {
		refreshWindow(c, &d.panel, x, y, w, h)
	})
}

// PowerOff implements paged.Controller.
func (d *Dev) PowerOff() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.powered {
		return nil
	}
	eh := &errorHandler{d: d}
	powerDown(eh)
	d.powered = false
	return eh.err
}

// ClearScreen implements paged.ScreenClearer.
func (d *Dev) ClearScreen(value byte) error {
	return d.run("clear", func(c controller) {
		fillScreen(c, &d.panel, value)
		refreshFull(c)
	})
}

// WriteScreenBuffer implements paged.ScreenClearer.
func (d *Dev) WriteScreenBuffer(value byte) error {
	return d.run("clear", func(c controller) {
		fillScreen(c, &d.panel, value)
	})
}

// Hibernate powers the panel off and puts the controller in deep sleep. The
// next operation resets it.
func (d *Dev) Hibernate() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	eh := &errorHandler{d: d}
	hibernate(eh)
	d.powered = false
	d.initialized = false
	return eh.err
}

// Close hibernates the panel and releases the SPI port when Open created it.
func (d *Dev) Close() error {
	err := d.Hibernate()
	if d.port != nil {
		if cerr := d.port.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

var _ paged.Controller = (*Dev)(nil)
var _ paged.ScreenClearer = (*Dev)(nil)

// errorHandler keeps the first error of a sequence and skips everything
// after it.
type errorHandler struct {
	d   *Dev
	err error
}

func (eh *errorHandler) rstOut(l gpio.Level) {
	if eh.err != nil {
		return
	}
	eh.err = eh.d.rst.Out(l)
}

func (eh *errorHandler) dcOut(l gpio.Level) {
	if eh.err != nil {
		return
	}
	eh.err = eh.d.dc.Out(l)
}

func (eh *errorHandler) cTx(w []byte) {
	if eh.err != nil {
		return
	}
	eh.err = eh.d.c.Tx(w, nil)
}

func (eh *errorHandler) reset() {
	eh.rstOut(gpio.High)
	time.Sleep(20 * time.Millisecond)
	eh.rstOut(gpio.Low)
	time.Sleep(10 * time.Millisecond)
	eh.rstOut(gpio.High)
	time.Sleep(20 * time.Millisecond)
}

func (eh *errorHandler) sendCommand(cmd byte) {
	eh.dcOut(gpio.Low)
	eh.cTx([]byte{cmd})
}

// sendData splits data to stay under the spidev transfer limit.
func (eh *errorHandler) sendData(data []byte) {
	eh.dcOut(gpio.High)
	const chunk = 4096
	for len(data) > 0 {
		n := min(len(data), chunk)
		eh.cTx(data[:n])
		data = data[n:]
	}
}

// waitUntilIdle polls BUSY, which the IL0373 holds low while working.
func (eh *errorHandler) waitUntilIdle() {
	if eh.err != nil {
		return
	}
	deadline := time.Now().Add(busyTimeout)
	for eh.d.busy.Read() == gpio.Low {
		if time.Now().After(deadline) {
			appLog.Warn("epd: busy timeout", "panel", eh.d.panel.Name, "timeout", busyTimeout)
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}
