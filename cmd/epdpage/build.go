package main

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"periph.io/x/conn/v3/physic"

	"epdpage/internal/agenda"
	"epdpage/internal/battery"
	"epdpage/internal/capture"
	"epdpage/internal/config"
	"epdpage/internal/convert"
	"epdpage/internal/epd"
	appLog "epdpage/internal/log"
	"epdpage/internal/paged"
	"epdpage/internal/pipeline"
	"epdpage/internal/web"
)

// app is everything a run needs, built from the config.
type app struct {
	pipe    *pipeline.Pipeline
	preview web.Previewer
	battery battery.Reader
	closers []func() error
}

func build(conf *config.Config) (*app, error) {
	a := &app{}

	panel, err := epd.Lookup(conf.Panel.Model)
	if err != nil {
		return nil, err
	}

	ctrl, err := a.controller(conf, panel)
	if err != nil {
		a.close()
		return nil, err
	}

	if conf.Battery.Enabled {
		g, err := battery.Open(conf.Battery.Bus, conf.Battery.Addr)
		if err != nil {
			// The display is still useful without a gauge.
			appLog.Warn("battery gauge unavailable", "bus", conf.Battery.Bus, "err", err)
		} else {
			a.battery = g
			a.closers = append(a.closers, g.Close)
		}
	}

	src, err := buildSource(conf, a.battery)
	if err != nil {
		a.close()
		return nil, err
	}

	opts := pipeline.Options{
		PageHeight:  conf.Panel.PageHeight,
		Rotation:    conf.Panel.Rotation,
		Mirror:      conf.Panel.Mirror,
		FastPartial: conf.Panel.FastPartial,
	}
	if w := conf.Panel.Window; w != nil {
		opts.Window = image.Rect(w.X, w.Y, w.X+w.W, w.Y+w.H)
	}
	a.pipe, err = pipeline.New(ctrl, src, opts)
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) controller(conf *config.Config, panel epd.Panel) (paged.Controller, error) {
	switch conf.Driver {
	case config.DriverSPI:
		pins := epd.Pins{DC: conf.SPI.DC, RST: conf.SPI.RST, BUSY: conf.SPI.BUSY}
		dev, err := epd.Open(panel, conf.SPI.Port, physic.Frequency(conf.SPI.SpeedHz)*physic.Hertz, pins)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, dev.Close)
		appLog.Info("SPI display opened", "dev", dev.String())
		return dev, nil
	case config.DriverMemory:
		mem := epd.NewMemory(panel)
		a.preview = mem
		return mem, nil
	default:
		return nil, fmt.Errorf("unknown driver %q", conf.Driver)
	}
}

func buildSource(conf *config.Config, br battery.Reader) (pipeline.Source, error) {
	sc := conf.Source
	mode, err := convert.ParseMode(sc.Scale)
	if err != nil {
		return nil, err
	}
	scaler, err := convert.ParseScaler(sc.Scaler)
	if err != nil {
		return nil, err
	}

	switch sc.Kind {
	case config.SourceImage:
		return &pipeline.ImageSource{Path: sc.Image, Mode: mode, Scaler: scaler}, nil

	case config.SourceURL:
		return &pipeline.URLSource{
			Capture: capture.Options{URL: sc.URL, ReadySelector: sc.ReadySelector},
			Mode:    mode,
			Scaler:  scaler,
		}, nil

	case config.SourceAgenda:
		loc, err := time.LoadLocation(sc.Timezone)
		if err != nil {
			return nil, fmt.Errorf("timezone %q: %w", sc.Timezone, err)
		}
		feeds := make([]agenda.Feed, 0, len(sc.ICS))
		for _, ics := range sc.ICS {
			feeds = append(feeds, agenda.Feed{ID: ics.ID, URL: ics.URL})
		}
		cacheDir := filepath.Join(conf.StateDir, "ics-cache")
		return &agenda.Source{
			Fetcher:   agenda.NewFetcher(cacheDir, nil),
			Feeds:     feeds,
			Location:  loc,
			Days:      sc.HorizonDays,
			Highlight: sc.Highlight,
			Battery:   br,
		}, nil

	default:
		return nil, fmt.Errorf("unknown source kind %q", sc.Kind)
	}
}

// dump writes the preview PNG. Only the memory driver has one.
func (a *app) dump(path string) error {
	if a.preview == nil {
		return errors.New("the configured driver has no preview")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := a.preview.WritePNG(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	appLog.Info("preview written", "path", path)
	return nil
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			appLog.Warn("close failed", "err", err)
		}
	}
	a.closers = nil
}
