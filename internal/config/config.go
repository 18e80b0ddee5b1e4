package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"epdpage/internal/epd"
)

// Driver names.
const (
	DriverMemory = "memory"
	DriverSPI    = "spi"
)

// Source kinds.
const (
	SourceImage  = "image"
	SourceURL    = "url"
	SourceAgenda = "agenda"
)

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for the cache file name and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// WindowConfig is a logical rectangle for partial updates.
type WindowConfig struct {
	X int `yaml:"x" json:"x"`
	Y int `yaml:"y" json:"y"`
	W int `yaml:"w" json:"w"`
	H int `yaml:"h" json:"h"`
}

// PanelConfig selects the display and how the canvas is laid over it.
type PanelConfig struct {
	// Model is a catalog name such as "GDEW029Z10".
	Model string `yaml:"model" json:"model"`

	// PageHeight is the number of native rows buffered at once.
	PageHeight int `yaml:"page_height" json:"page_height"`

	// Rotation is the number of quarter turns clockwise (0-3).
	Rotation int  `yaml:"rotation" json:"rotation"`
	Mirror   bool `yaml:"mirror" json:"mirror"`

	// FastPartial overrides the catalog's fast partial update capability.
	FastPartial *bool `yaml:"fast_partial,omitempty" json:"fast_partial,omitempty"`

	// Window, if set, limits every update to a partial window.
	Window *WindowConfig `yaml:"window,omitempty" json:"window,omitempty"`
}

// SPIConfig wires the SPI driver.
type SPIConfig struct {
	// Port is the periph SPI port name; empty selects the first one.
	Port    string `yaml:"port" json:"port"`
	SpeedHz int64  `yaml:"speed_hz" json:"speed_hz"`
	DC      string `yaml:"dc" json:"dc"`
	RST     string `yaml:"rst" json:"rst"`
	BUSY    string `yaml:"busy" json:"busy"`
}

// SourceConfig picks what is drawn.
type SourceConfig struct {
	// Kind is one of image, url or agenda.
	Kind string `yaml:"kind" json:"kind"`

	// Image is a file path for kind image.
	Image string `yaml:"image,omitempty" json:"image,omitempty"`
	// Scale is fit, fill or stretch; Scaler is nearest, bilinear or
	// catmullrom.
	Scale  string `yaml:"scale" json:"scale"`
	Scaler string `yaml:"scaler" json:"scaler"`

	// URL and ReadySelector configure kind url.
	URL           string `yaml:"url,omitempty" json:"url,omitempty"`
	ReadySelector string `yaml:"ready_selector,omitempty" json:"ready_selector,omitempty"`

	// ICS, Timezone, HorizonDays and Highlight configure kind agenda.
	ICS         []ICSConfig `yaml:"ics" json:"ics"`
	Timezone    string      `yaml:"timezone" json:"timezone"`
	HorizonDays int         `yaml:"horizon_days" json:"horizon_days"`
	// Highlight lists keywords that put an event in the accent color.
	Highlight []string `yaml:"highlight" json:"highlight"`
}

// BatteryConfig enables the I2C battery gauge.
type BatteryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Bus     string `yaml:"bus" json:"bus"`
	Addr    uint16 `yaml:"addr" json:"addr"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API. Empty disables it.
	Listen string `yaml:"listen" json:"listen"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// RefreshCron is a standard 5 field cron spec (e.g. "*/15 * * * *").
	RefreshCron string `yaml:"refresh" json:"refresh"`

	Panel PanelConfig `yaml:"panel" json:"panel"`

	// Driver is memory or spi.
	Driver string    `yaml:"driver" json:"driver"`
	SPI    SPIConfig `yaml:"spi" json:"spi"`

	Source  SourceConfig  `yaml:"source" json:"source"`
	Battery BatteryConfig `yaml:"battery" json:"battery"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	// StateDir holds caches such as downloaded ICS feeds.
	StateDir string `yaml:"state_dir" json:"state_dir"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/15 * * * *"
	}

	if c.Panel.Model == "" {
		c.Panel.Model = "GDEW029Z10"
	}
	c.Panel.Model = strings.ToUpper(c.Panel.Model)
	if c.Panel.PageHeight <= 0 {
		c.Panel.PageHeight = 64
	}
	c.Panel.Rotation &= 3

	c.Driver = strings.ToLower(c.Driver)
	if c.Driver == "" {
		c.Driver = DriverMemory
	}
	if c.SPI.SpeedHz <= 0 {
		c.SPI.SpeedHz = 4_000_000
	}
	if c.SPI.DC == "" {
		c.SPI.DC = epd.DefaultPins.DC
	}
	if c.SPI.RST == "" {
		c.SPI.RST = epd.DefaultPins.RST
	}
	if c.SPI.BUSY == "" {
		c.SPI.BUSY = epd.DefaultPins.BUSY
	}

	c.Source.Kind = strings.ToLower(c.Source.Kind)
	if c.Source.Kind == "" {
		c.Source.Kind = SourceAgenda
	}
	if c.Source.Scale == "" {
		c.Source.Scale = "fit"
	}
	if c.Source.Scaler == "" {
		c.Source.Scaler = "bilinear"
	}
	if c.Source.Timezone == "" {
		c.Source.Timezone = "UTC"
	}
	if c.Source.HorizonDays <= 0 {
		c.Source.HorizonDays = 7
	}
	if c.Source.Highlight == nil {
		c.Source.Highlight = []string{"holiday", "important"}
	}
	if c.Source.ICS == nil {
		c.Source.ICS = []ICSConfig{}
	}
	for i := range c.Source.ICS {
		if c.Source.ICS[i].ID == "" {
			c.Source.ICS[i].ID = fmt.Sprintf("ics%d", i+1)
		}
	}

	if c.Battery.Addr == 0 {
		c.Battery.Addr = 0x57
	}
	if c.StateDir == "" {
		c.StateDir = "/var/lib/epdpage"
	}
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		return fmt.Errorf("config: refresh %q: %w", c.RefreshCron, err)
	}
	if _, err := epd.Lookup(c.Panel.Model); err != nil {
		return fmt.Errorf("config: panel: %w", err)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	switch c.Driver {
	case DriverMemory, DriverSPI:
	default:
		return fmt.Errorf("config: unknown driver %q", c.Driver)
	}
	if w := c.Panel.Window; w != nil && (w.W <= 0 || w.H <= 0) {
		return fmt.Errorf("config: panel window %dx%d is empty", w.W, w.H)
	}

	switch c.Source.Kind {
	case SourceImage:
		if c.Source.Image == "" {
			return errors.New("config: source image path is empty")
		}
	case SourceURL:
		if c.Source.URL == "" {
			return errors.New("config: source url is empty")
		}
	case SourceAgenda:
		for _, ics := range c.Source.ICS {
			if ics.URL == "" {
				return fmt.Errorf("config: ics %s has no url", ics.ID)
			}
		}
	default:
		return fmt.Errorf("config: unknown source kind %q", c.Source.Kind)
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is read, normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config: path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg atomically via a temp file and rename, with 0600
// permissions and a 0700 parent directory.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config: path is empty")
	}
	if cfg == nil {
		return errors.New("config: config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".epdpage-config-*.tmp")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
