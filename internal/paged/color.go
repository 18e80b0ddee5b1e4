package paged

import "image/color"

// Color is one of the three colors a bi-plane panel can show.
type Color uint8

const (
	White Color = iota
	Black
	Accent
)

func (c Color) String() string {
	switch c {
	case Black:
		return "black"
	case Accent:
		return "accent"
	default:
		return "white"
	}
}

// RGBA implements color.Color. Accent is reported as pure red, the most
// common accent pigment.
func (c Color) RGBA() (r, g, b, a uint32) {
	switch c {
	case Black:
		return 0, 0, 0, 0xffff
	case Accent:
		return 0xffff, 0, 0, 0xffff
	default:
		return 0xffff, 0xffff, 0xffff, 0xffff
	}
}

// Palette lists the panel colors in plane order.
var Palette = color.Palette{White, Black, Accent}

// ColorModel converts arbitrary colors to the nearest panel Color.
var ColorModel color.Model = color.ModelFunc(func(c color.Color) color.Color {
	return Classify(c)
})

// Classify decides which ink a color maps to:
//
//   - alpha < 128: white (transparent pixels are not painted)
//   - luma < 64: black
//   - R > 128 and R - max(G, B) > 32: accent
//   - everything else: white
func Classify(c color.Color) Color {
	if pc, ok := c.(Color); ok {
		if pc > Accent {
			return White
		}
		return pc
	}

	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	if n.A < 128 {
		return White
	}

	r, g, b := float64(n.R), float64(n.G), float64(n.B)
	if 0.299*r+0.587*g+0.114*b < 64 {
		return Black
	}
	if r > 128 && r-max(g, b) > 32 {
		return Accent
	}
	return White
}
