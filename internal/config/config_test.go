package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadFirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if diff := cmp.Diff(cfg, DefaultConfig()); diff != "" {
		t.Errorf("first run config difference (-got +want):\n%s", diff)
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := fi.Mode().Perm(); perm != 0o600 {
		t.Errorf("config file mode = %o, want 600", perm)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("second Load() failed: %v", err)
	}
	if diff := cmp.Diff(again, cfg); diff != "" {
		t.Errorf("reloaded config difference (-got +want):\n%s", diff)
	}
}

func TestLoadNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
log_level: DEBUG
panel:
  model: gdew042z15
  rotation: 5
  window: {x: 0, y: 0, w: 64, h: 32}
driver: SPI
source:
  kind: agenda
  ics:
    - url: https://example.com/a.ics
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	for _, tc := range []struct {
		name      string
		got, want any
	}{
		{"log level", cfg.LogLevel, "debug"},
		{"model", cfg.Panel.Model, "GDEW042Z15"},
		{"rotation", cfg.Panel.Rotation, 1},
		{"page height", cfg.Panel.PageHeight, 64},
		{"driver", cfg.Driver, DriverSPI},
		{"ics id", cfg.Source.ICS[0].ID, "ics1"},
		{"window", *cfg.Panel.Window, WindowConfig{W: 64, H: 32}},
		{"busy pin", cfg.SPI.BUSY, "GPIO24"},
	} {
		if diff := cmp.Diff(tc.got, tc.want); diff != "" {
			t.Errorf("%s difference (-got +want):\n%s", tc.name, diff)
		}
	}
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad cron", mutate: func(c *Config) { c.RefreshCron = "every minute" }, wantErr: "refresh"},
		{name: "unknown panel", mutate: func(c *Config) { c.Panel.Model = "XYZ" }, wantErr: "unknown panel"},
		{name: "unknown driver", mutate: func(c *Config) { c.Driver = "usb" }, wantErr: "driver"},
		{name: "unknown log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: "log_level"},
		{name: "image without path", mutate: func(c *Config) { c.Source.Kind = SourceImage }, wantErr: "image path"},
		{name: "url without url", mutate: func(c *Config) { c.Source.Kind = SourceURL }, wantErr: "url is empty"},
		{name: "ics without url", mutate: func(c *Config) { c.Source.ICS = []ICSConfig{{ID: "x"}} }, wantErr: "ics x"},
		{name: "empty window", mutate: func(c *Config) { c.Panel.Window = &WindowConfig{W: 10} }, wantErr: "window"},
		{name: "unknown kind", mutate: func(c *Config) { c.Source.Kind = "video" }, wantErr: "source kind"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			switch {
			case tc.wantErr == "" && err != nil:
				t.Errorf("Validate() = %v", err)
			case tc.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tc.wantErr)):
				t.Errorf("Validate() = %v, want error containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("refresh: nope\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() accepted an invalid cron spec")
	}

	if err := os.WriteFile(path, []byte("panel: [\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() accepted malformed YAML")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	fast := true
	cfg := DefaultConfig()
	cfg.Panel.FastPartial = &fast
	cfg.BasicAuth = &BasicAuthConfig{Username: "u", Password: "p"}
	cfg.Source.Highlight = []string{"exam"}

	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(got, cfg); diff != "" {
		t.Errorf("round trip difference (-got +want):\n%s", diff)
	}
}
