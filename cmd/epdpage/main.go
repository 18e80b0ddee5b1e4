package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"epdpage/internal/config"
	appLog "epdpage/internal/log"
	"epdpage/internal/pipeline"
	"epdpage/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	dryRun     bool
	dump       string
}

func main() {
	os.Exit(run())
}

func run() int {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		return 1
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	appLog.Info("epdpage starting", "version", "0.1.0")

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.dryRun {
		conf.Driver = config.DriverMemory
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"panel", conf.Panel.Model,
		"driver", conf.Driver,
		"source", conf.Source.Kind,
		"refresh", conf.RefreshCron,
		"once", flags.once,
		"dump", flags.dump,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	app, err := build(conf)
	if err != nil {
		appLog.Error("failed to set up", err)
		return 1
	}
	defer app.close()

	if flags.once {
		err := app.pipe.Run(ctx)
		if flags.dump != "" {
			if derr := app.dump(flags.dump); derr != nil {
				appLog.Error("dump failed", derr, "path", flags.dump)
			}
		}
		if err != nil {
			return 1
		}
		return 0
	}

	var wg sync.WaitGroup
	if conf.Listen != "" {
		srv := web.NewServer(conf, app.pipe, app.preview, app.battery)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Serve(ctx, conf.Listen); err != nil {
				appLog.Error("HTTP server failed", err)
				cancel()
			}
		}()
	}

	// Draw once at startup instead of waiting for the first tick.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.pipe.Run(ctx); err != nil && !errors.Is(err, pipeline.ErrBusy) {
			appLog.Warn("initial run failed", "err", err)
		}
	}()

	if err := app.pipe.Schedule(ctx, conf.RefreshCron); err != nil {
		appLog.Error("scheduler failed", err)
		cancel()
	}
	wg.Wait()
	appLog.Info("epdpage exiting")
	return 0
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/epdpage/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one draw+refresh cycle and exit")
	flag.BoolVar(&cfg.dryRun, "dry-run", false, "Use the in-memory driver; do not touch display hardware")
	flag.StringVar(&cfg.dump, "dump", "", "With -once, write the preview PNG to this path")

	flag.Parse()

	return cfg
}
