// Package battery reads the charge of a UPS board so it can be shown on the
// panel and reported by the API.
package battery

import (
	"context"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// DefaultAddr is the PiSugar gauge address.
const DefaultAddr = 0x57

// Gauge registers.
const (
	regVoltageHigh byte = 0x22
	regVoltageLow  byte = 0x23
	regPercent     byte = 0x2a
)

// Status is one battery reading.
type Status struct {
	// Percent is the charge level in 0-100.
	Percent int `json:"percent"`
	// VoltageMv is the battery voltage in millivolts, 0 if unknown.
	VoltageMv int `json:"voltage_mv"`
}

func (s Status) String() string {
	return fmt.Sprintf("%d%%", s.Percent)
}

// Reader abstracts where readings come from.
type Reader interface {
	Read(ctx context.Context) (Status, error)
}

// Static always reports the same status. It stands in on hosts without a
// gauge.
type Static Status

func (s Static) Read(context.Context) (Status, error) {
	return Status(s), nil
}

// Gauge reads a PiSugar-style gauge over I2C.
type Gauge struct {
	mu  sync.Mutex
	dev *i2c.Dev
	bus i2c.BusCloser
}

// NewGauge talks to addr on an already opened bus.
func NewGauge(bus i2c.Bus, addr uint16) *Gauge {
	return &Gauge{dev: &i2c.Dev{Bus: bus, Addr: addr}}
}

// Open initializes periph and opens the named bus ("" for the first one).
func Open(busName string, addr uint16) (*Gauge, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("battery: periph host init failed: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("battery: open i2c bus: %w", err)
	}
	g := NewGauge(bus, addr)
	g.bus = bus
	return g, nil
}

// Read implements Reader.
func (g *Gauge) Read(ctx context.Context) (Status, error) {
	if err := ctx.Err(); err != nil {
		return Status{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	readReg := func(reg byte) (byte, error) {
		buf := []byte{0}
		if err := g.dev.Tx([]byte{reg}, buf); err != nil {
			return 0, fmt.Errorf("battery: read register %#02x: %w", reg, err)
		}
		return buf[0], nil
	}

	high, err := readReg(regVoltageHigh)
	if err != nil {
		return Status{}, err
	}
	low, err := readReg(regVoltageLow)
	if err != nil {
		return Status{}, err
	}
	pct, err := readReg(regPercent)
	if err != nil {
		return Status{}, err
	}

	return Status{
		Percent:   int(min(pct, 100)),
		VoltageMv: int(uint16(high)<<8 | uint16(low)),
	}, nil
}

// Close releases the bus if Open created it.
func (g *Gauge) Close() error {
	if g.bus == nil {
		return nil
	}
	return g.bus.Close()
}
