package pipeline

import (
	"context"
	"image"

	"golang.org/x/image/draw"

	"epdpage/internal/capture"
	"epdpage/internal/convert"
)

// Source produces the picture for one run. Prepare does the expensive work
// once; the returned function is called once per page and must paint the
// same picture every time.
type Source interface {
	Prepare(ctx context.Context, size image.Point) (func(dst draw.Image), error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, size image.Point) (func(dst draw.Image), error)

func (f SourceFunc) Prepare(ctx context.Context, size image.Point) (func(dst draw.Image), error) {
	return f(ctx, size)
}

// ImageSource draws an image file, decoded on every run so the file can be
// replaced between refreshes.
type ImageSource struct {
	Path   string
	Mode   convert.Mode
	Scaler draw.Scaler
}

func (s *ImageSource) Prepare(_ context.Context, size image.Point) (func(dst draw.Image), error) {
	img, err := convert.DecodeFile(s.Path)
	if err != nil {
		return nil, err
	}
	return scaled(img, size, s.Mode, s.Scaler), nil
}

// URLSource draws a screenshot of a web page taken at the canvas size.
type URLSource struct {
	Capture capture.Options
	Mode    convert.Mode
	Scaler  draw.Scaler
}

func (s *URLSource) Prepare(ctx context.Context, size image.Point) (func(dst draw.Image), error) {
	opts := s.Capture
	opts.Width, opts.Height = size.X, size.Y
	img, err := capture.Screenshot(ctx, opts)
	if err != nil {
		return nil, err
	}
	return scaled(img, size, s.Mode, s.Scaler), nil
}

func scaled(img image.Image, size image.Point, mode convert.Mode, s draw.Scaler) func(draw.Image) {
	target := image.Rectangle{Max: size}
	return func(dst draw.Image) {
		convert.Draw(dst, target, img, mode, s)
	}
}
