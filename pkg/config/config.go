// Package config holds the server configuration and the process-wide debug switch.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kamrankamilli/gsdoom/pkg/frame"
)

// Debug enables debug logging across the process.
var Debug bool

// Reference raster dimensions of the rendered scene.
const (
	DefaultWidth  = 320
	DefaultHeight = 200
)

// Provider names accepted by the provider key.
const (
	ProviderGstreamer     = "gstreamer"
	ProviderScreenCapture = "screencap"
	ProviderImage         = "image"
	ProviderRemote        = "remote"
	ProviderNone          = "none"
)

// EnvPrefix prefixes environment overrides, e.g. GSDOOM_LISTEN.
const EnvPrefix = "GSDOOM_"

// Config is the gsdoom configuration file (gsdoom.yaml).
// Every value is optional; command line flags override file values.
type Config struct {
	Listen          string          `yaml:"listen"`
	Debug           bool            `yaml:"debug"`
	Palette         string          `yaml:"palette"`
	Provider        string          `yaml:"provider"`
	Width           int             `yaml:"width"`
	Height          int             `yaml:"height"`
	Scale           int             `yaml:"scale"`
	FPS             int             `yaml:"fps"`
	ShutdownTimeout Duration        `yaml:"shutdown_timeout"`
	Image           ImageConfig     `yaml:"image"`
	Gstreamer       GstreamerConfig `yaml:"gstreamer"`
	Metrics         MetricsConfig   `yaml:"metrics"`
	Screen          ScreenConfig    `yaml:"screen"`
	Series          SeriesConfig    `yaml:"series"`
}

// ImageConfig configures the static image raster source.
type ImageConfig struct {
	Path string `yaml:"path"`
}

// GstreamerConfig configures the gstreamer raster source.
type GstreamerConfig struct {
	// Source is the capture element name. Empty selects the screen capture
	// element of the current OS.
	Source string `yaml:"source"`
}

// MetricsConfig configures the external metric source.
type MetricsConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// ScreenConfig configures screen query encoding.
type ScreenConfig struct {
	OmitEmptyColumns bool   `yaml:"omit_empty_columns"`
	Encoding         string `yaml:"encoding"`
}

// SeriesConfig configures metric query series.
type SeriesConfig struct {
	Capacity int `yaml:"capacity"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{Screen: ScreenConfig{OmitEmptyColumns: true}}
	c.applyDefaults()
	return c
}

// Load reads the YAML file at path (if non-empty), loads a .env file from the
// working directory when present, applies GSDOOM_* environment overrides and
// fills in defaults.
func Load(path string) (*Config, error) {
	c := &Config{Screen: ScreenConfig{OmitEmptyColumns: true}}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, c); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	c.applyDefaults()
	return c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, key, v, err)
		}
		*dst = n
		return nil
	}

	str("LISTEN", &c.Listen)
	str("PALETTE", &c.Palette)
	str("PROVIDER", &c.Provider)
	str("IMAGE_PATH", &c.Image.Path)
	str("GSTREAMER_SOURCE", &c.Gstreamer.Source)
	str("NATS_URL", &c.Metrics.NATSURL)
	str("NATS_SUBJECT", &c.Metrics.Subject)
	str("SCREEN_ENCODING", &c.Screen.Encoding)
	if v, ok := lookup(EnvPrefix + "DEBUG"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sDEBUG %q: %w", EnvPrefix, v, err)
		}
		c.Debug = b
	}
	for key, dst := range map[string]*int{"WIDTH": &c.Width, "HEIGHT": &c.Height, "SCALE": &c.Scale, "FPS": &c.FPS} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":3838"
	}
	if c.Provider == "" {
		c.Provider = ProviderRemote
	}
	if c.Width == 0 {
		c.Width = DefaultWidth
	}
	if c.Height == 0 {
		c.Height = DefaultHeight
	}
	if c.Scale == 0 {
		c.Scale = 1
	}
	if c.ShutdownTimeout.Duration == 0 {
		c.ShutdownTimeout.Duration = 10 * time.Second
	}
	if c.FPS == 0 {
		c.FPS = 35
	}
	if c.Screen.Encoding == "" {
		c.Screen.Encoding = "json"
	}
	if c.Metrics.Subject == "" {
		c.Metrics.Subject = "gsdoom.metrics"
	}
	if c.Series.Capacity == 0 {
		c.Series.Capacity = 1000
	}
}

// ValidateDimensions checks a reference size: even, at least 2 and at most
// frame.MaxDimension on each side.
func ValidateDimensions(width, height int) error {
	if width < 2 || height < 2 || width%2 != 0 || height%2 != 0 {
		return fmt.Errorf("width and height must be even and at least 2, got %dx%d", width, height)
	}
	if width > frame.MaxDimension || height > frame.MaxDimension {
		return fmt.Errorf("width and height must be at most %d, got %dx%d", frame.MaxDimension, width, height)
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGstreamer, ProviderScreenCapture, ProviderRemote, ProviderNone:
	case ProviderImage:
		if c.Image.Path == "" {
			return fmt.Errorf("image.path is required for the %s provider", ProviderImage)
		}
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}

	if err := ValidateDimensions(c.Width, c.Height); err != nil {
		return err
	}
	if c.Scale < 1 {
		return fmt.Errorf("scale must be at least 1, got %d", c.Scale)
	}
	if c.Series.Capacity < 1 {
		return fmt.Errorf("series.capacity must be positive, got %d", c.Series.Capacity)
	}
	if c.FPS < 1 {
		return fmt.Errorf("fps must be positive, got %d", c.FPS)
	}

	switch c.Screen.Encoding {
	case "json", "msgpack", "binary":
	default:
		return fmt.Errorf("unknown screen.encoding %q", c.Screen.Encoding)
	}
	return nil
}
