// Package epd drives three color e-paper panels. It provides a catalog of
// known panels, an SPI driver for IL0373-class controllers built on
// periph.io, and an in-memory controller used for previews and dry runs.
// Both drivers satisfy paged.Controller.
package epd

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"epdpage/internal/paged"
)

// Chip identifies the controller IC behind a panel. Only some chips share
// the command set the SPI driver speaks.
type Chip string

const (
	IL0373  Chip = "IL0373"
	IL0398  Chip = "IL0398"
	IL0371  Chip = "IL0371"
	IL0376F Chip = "IL0376F"
	IL91874 Chip = "IL91874"
	IL3895  Chip = "IL3895"
)

// Panel describes one display module.
type Panel struct {
	Name   string
	Width  int
	Height int
	Chip   Chip

	Partial     bool
	FastPartial bool

	// PanelSetting and VCOMInterval are written by the init sequence.
	PanelSetting byte
	VCOMInterval byte
}

// Info converts the panel into the capability set the canvas needs.
func (p Panel) Info() paged.Info {
	return paged.Info{
		Panel:                p.Name,
		Width:                p.Width,
		Height:               p.Height,
		HasPartialUpdate:     p.Partial,
		HasFastPartialUpdate: p.FastPartial,
	}
}

var panels = map[string]Panel{
	"GDEW0154Z04": {Name: "GDEW0154Z04", Width: 200, Height: 200, Chip: IL0376F},
	"GDEW0213Z16": {Name: "GDEW0213Z16", Width: 104, Height: 212, Chip: IL0373, Partial: true, PanelSetting: 0x0f, VCOMInterval: 0x77},
	"GDEW029Z10":  {Name: "GDEW029Z10", Width: 128, Height: 296, Chip: IL0373, Partial: true, PanelSetting: 0x0f, VCOMInterval: 0x77},
	"GDEW027C44":  {Name: "GDEW027C44", Width: 176, Height: 264, Chip: IL91874},
	"GDEW042Z15":  {Name: "GDEW042Z15", Width: 400, Height: 300, Chip: IL0398, Partial: true, PanelSetting: 0x0f, VCOMInterval: 0x77},
	"GDEW0583Z21": {Name: "GDEW0583Z21", Width: 600, Height: 448, Chip: IL0371},
	"GDEW075Z09":  {Name: "GDEW075Z09", Width: 640, Height: 384, Chip: IL0371},
	"GDE0213B1":   {Name: "GDE0213B1", Width: 128, Height: 250, Chip: IL3895, Partial: true},
}

// ErrUnknownPanel is returned by Lookup for names not in the catalog.
var ErrUnknownPanel = errors.New("epd: unknown panel")

// Lookup finds a panel by name, ignoring case.
func Lookup(name string) (Panel, error) {
	if p, ok := panels[strings.ToUpper(strings.TrimSpace(name))]; ok {
		return p, nil
	}
	return Panel{}, fmt.Errorf("%w %q", ErrUnknownPanel, name)
}

// Names lists the catalog in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(panels))
	for n := range panels {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
