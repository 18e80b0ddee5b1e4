// Package capture renders web pages into images with headless Chromium.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/chromedp/chromedp"

	appLog "epdpage/internal/log"
)

const (
	DefaultTimeout = 30 * time.Second
	// settleDelay lets late paints land after the ready selector shows up.
	settleDelay = 500 * time.Millisecond
)

// Options describes one screenshot.
type Options struct {
	// URL to capture.
	URL string

	// Width and Height are the viewport size, normally the canvas logical
	// size.
	Width  int
	Height int

	// ReadySelector, when set, is waited for before the screenshot, for
	// example `[data-ready="true"]`.
	ReadySelector string

	// Timeout bounds the whole capture. Zero means DefaultTimeout.
	Timeout time.Duration

	// ExecAllocatorOptions are passed to chromedp when a new browser is
	// started, e.g. chromedp.ExecPath for a non-default binary.
	ExecAllocatorOptions []chromedp.ExecAllocatorOption
}

// ErrNoURL is returned when Options.URL is empty.
var ErrNoURL = errors.New("capture: URL is required")

// Screenshot loads opts.URL in a headless browser sized to the viewport and
// returns the visible area as an image.
func Screenshot(parent context.Context, opts Options) (image.Image, error) {
	if opts.URL == "" {
		return nil, ErrNoURL
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("capture: invalid viewport %dx%d", opts.Width, opts.Height)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:], opts.ExecAllocatorOptions...)
	actx, cancelAlloc := chromedp.NewExecAllocator(parent, allocOpts...)
	defer cancelAlloc()

	ctx, cancel := chromedp.NewContext(actx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	start := time.Now()
	var buf []byte
	if err := chromedp.Run(ctx, tasks(opts, &buf)); err != nil {
		return nil, fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	img, err := png.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("capture: decode screenshot: %w", err)
	}
	appLog.Info("capture: screenshot taken", "url", opts.URL, "size", img.Bounds().Size(), "took", time.Since(start))
	return img, nil
}

func tasks(opts Options, buf *[]byte) chromedp.Tasks {
	t := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
	}
	if opts.ReadySelector != "" {
		t = append(t, chromedp.WaitVisible(opts.ReadySelector, chromedp.ByQuery))
	}
	return append(t,
		chromedp.Sleep(settleDelay),
		chromedp.CaptureScreenshot(buf),
	)
}
