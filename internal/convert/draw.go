package convert

import (
	"fmt"
	"image"
	"strings"

	"golang.org/x/image/draw"
)

// Mode selects how a source is fitted into the target rectangle.
type Mode int

const (
	// Fit scales the whole source to fit and centers it, leaving white bars.
	Fit Mode = iota
	// Fill scales to cover the target and crops the source around its center.
	Fill
	// Stretch ignores the aspect ratio.
	Stretch
)

func (m Mode) String() string {
	switch m {
	case Fill:
		return "fill"
	case Stretch:
		return "stretch"
	default:
		return "fit"
	}
}

// ParseMode accepts fit, fill and stretch. The empty string is Fit.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fit":
		return Fit, nil
	case "fill", "crop":
		return Fill, nil
	case "stretch":
		return Stretch, nil
	}
	return Fit, fmt.Errorf("convert: unknown scale mode %q", s)
}

// ParseScaler maps a kernel name to an x/image scaler. The empty string is
// bilinear.
func ParseScaler(s string) (draw.Scaler, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nearest":
		return draw.NearestNeighbor, nil
	case "", "bilinear":
		return draw.ApproxBiLinear, nil
	case "catmullrom":
		return draw.CatmullRom, nil
	}
	return nil, fmt.Errorf("convert: unknown scaler %q", s)
}

// Rects computes where src lands inside target and which part of src is
// used for mode.
func Rects(target, src image.Rectangle, mode Mode) (dr, sr image.Rectangle) {
	tw, th := target.Dx(), target.Dy()
	sw, sh := src.Dx(), src.Dy()
	if tw <= 0 || th <= 0 || sw <= 0 || sh <= 0 {
		return image.Rectangle{}, image.Rectangle{}
	}

	switch mode {
	case Stretch:
		return target, src

	case Fill:
		// Crop the source to the target aspect ratio, centered.
		cw, ch := sw, sh
		if tw*sh >= th*sw {
			ch = th * sw / tw
		} else {
			cw = tw * sh / th
		}
		cx := src.Min.X + (sw-cw)/2
		cy := src.Min.Y + (sh-ch)/2
		return target, image.Rect(cx, cy, cx+cw, cy+ch)

	default:
		dw, dh := tw, th
		if tw*sh <= th*sw {
			dh = sh * tw / sw
		} else {
			dw = sw * th / sh
		}
		dx := target.Min.X + (tw-dw)/2
		dy := target.Min.Y + (th-dh)/2
		return image.Rect(dx, dy, dx+dw, dy+dh), src
	}
}

// Draw scales src into target on dst. Only the part of target inside
// dst.Bounds() is computed, so drawing onto a paged canvas once per page
// touches only that page's rows.
func Draw(dst draw.Image, target image.Rectangle, src image.Image, mode Mode, s draw.Scaler) {
	if s == nil {
		s = draw.ApproxBiLinear
	}
	dr, sr := Rects(target, src.Bounds(), mode)
	if dr.Empty() || dr.Intersect(dst.Bounds()).Empty() {
		return
	}
	s.Scale(dst, dr, src, sr, draw.Over, nil)
}
