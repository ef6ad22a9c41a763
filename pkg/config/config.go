// Package config provides configuration structures and loading logic for the
// layersync daemon and its layer manifest.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrConfigInvalid is wrapped by every validation failure.
var ErrConfigInvalid = errors.New("invalid configuration")

// Config holds the global configuration for the daemon.
type Config struct {
	Viewer     ViewerConfig     `yaml:"viewer"`
	Textures   TexturesConfig   `yaml:"textures"`
	Properties PropertiesConfig `yaml:"properties"`
	Server     ServerConfig     `yaml:"server"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ViewerConfig selects the layer manifest and the initial selection.
type ViewerConfig struct {
	Manifest    string `yaml:"manifest"`
	ActiveLayer string `yaml:"active_layer"`
	Watch       bool   `yaml:"watch"`
}

// TexturesConfig configures the slice renderer's texture association.
type TexturesConfig struct {
	Interpolation  string `yaml:"interpolation"`
	DeferredUpload bool   `yaml:"deferred_upload"`
	MaxTextureSize int    `yaml:"max_texture_size"`
}

// PropertiesConfig holds the defaults of newly created display properties.
type PropertiesConfig struct {
	HistogramBins int    `yaml:"histogram_bins"`
	ColorMap      string `yaml:"colormap"`
}

// ServerConfig holds configuration for the admin HTTP server.
type ServerConfig struct {
	AdminAddress string `yaml:"admin_address"`
}

// TelemetryConfig holds configuration for OpenTelemetry.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
	ServiceName  string `yaml:"service_name"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Viewer: ViewerConfig{
			Watch: true,
		},
		Textures: TexturesConfig{
			Interpolation:  "linear",
			MaxTextureSize: 2048,
		},
		Properties: PropertiesConfig{
			HistogramBins: 256,
			ColorMap:      "grayscale",
		},
		Server: ServerConfig{
			AdminAddress: ":19091",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "layersync",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		//nolint:gosec // Config file path is controlled by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if val := os.Getenv("LAYERSYNC_MANIFEST"); val != "" {
		cfg.Viewer.Manifest = val
	}
	if val := os.Getenv("LAYERSYNC_ACTIVE_LAYER"); val != "" {
		cfg.Viewer.ActiveLayer = val
	}
	if val := os.Getenv("LAYERSYNC_WATCH"); val != "" {
		cfg.Viewer.Watch = val == "true"
	}

	if val := os.Getenv("LAYERSYNC_INTERPOLATION"); val != "" {
		cfg.Textures.Interpolation = val
	}
	if val := os.Getenv("LAYERSYNC_DEFERRED_UPLOAD"); val == "true" {
		cfg.Textures.DeferredUpload = true
	}
	if val := os.Getenv("LAYERSYNC_MAX_TEXTURE_SIZE"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%w: LAYERSYNC_MAX_TEXTURE_SIZE: %v", ErrConfigInvalid, err)
		}
		cfg.Textures.MaxTextureSize = n
	}

	if val := os.Getenv("LAYERSYNC_HISTOGRAM_BINS"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%w: LAYERSYNC_HISTOGRAM_BINS: %v", ErrConfigInvalid, err)
		}
		cfg.Properties.HistogramBins = n
	}
	if val := os.Getenv("LAYERSYNC_COLORMAP"); val != "" {
		cfg.Properties.ColorMap = val
	}

	if val := os.Getenv("LAYERSYNC_ADMIN_ADDR"); val != "" {
		cfg.Server.AdminAddress = val
	}

	if val := os.Getenv("LAYERSYNC_OTLP_ENDPOINT"); val != "" {
		cfg.Telemetry.OTLPEndpoint = val
	}
	if val := os.Getenv("LAYERSYNC_OTLP_INSECURE"); val == "true" {
		cfg.Telemetry.Insecure = true
	}

	if val := os.Getenv("LAYERSYNC_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("LAYERSYNC_LOG_PRETTY"); val == "true" {
		cfg.Logging.Pretty = true
	}
	return nil
}

// Validate performs validation of the entire configuration, filling in
// defaults for empty fields.
func (c *Config) Validate() error {
	if err := c.Textures.Validate(); err != nil {
		return fmt.Errorf("textures configuration: %w", err)
	}
	if err := c.Properties.Validate(); err != nil {
		return fmt.Errorf("properties configuration: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server configuration: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry configuration: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging configuration: %w", err)
	}
	return nil
}

// Validate performs validation of texture configuration
func (c *TexturesConfig) Validate() error {
	if strings.TrimSpace(c.Interpolation) == "" {
		c.Interpolation = "linear"
	}
	interp := strings.ToLower(strings.TrimSpace(c.Interpolation))
	switch interp {
	case "nearest", "linear":
		c.Interpolation = interp
	default:
		return fmt.Errorf("%w: interpolation %q, supported: nearest, linear", ErrConfigInvalid, c.Interpolation)
	}
	if c.MaxTextureSize == 0 {
		c.MaxTextureSize = 2048
	}
	if c.MaxTextureSize < 0 {
		return fmt.Errorf("%w: max_texture_size %d must be positive", ErrConfigInvalid, c.MaxTextureSize)
	}
	return nil
}

// ColorMaps lists the colormaps the property model accepts.
var ColorMaps = []string{"grayscale", "hot", "cool", "jet", "labels"}

// Validate performs validation of property defaults
func (c *PropertiesConfig) Validate() error {
	if c.HistogramBins == 0 {
		c.HistogramBins = 256
	}
	if c.HistogramBins < 2 || c.HistogramBins > 4096 {
		return fmt.Errorf("%w: histogram_bins %d outside [2,4096]", ErrConfigInvalid, c.HistogramBins)
	}
	if strings.TrimSpace(c.ColorMap) == "" {
		c.ColorMap = "grayscale"
	}
	if !KnownColorMap(c.ColorMap) {
		return fmt.Errorf("%w: unknown colormap %q", ErrConfigInvalid, c.ColorMap)
	}
	return nil
}

// KnownColorMap reports whether name is one of ColorMaps.
func KnownColorMap(name string) bool {
	return slices.Contains(ColorMaps, name)
}

// Validate performs validation of server configuration
func (c *ServerConfig) Validate() error {
	if strings.TrimSpace(c.AdminAddress) == "" {
		c.AdminAddress = ":19091"
	}
	return nil
}

// Validate performs validation of telemetry configuration
func (c *TelemetryConfig) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		c.ServiceName = "layersync"
	}
	return nil
}

// Validate performs validation of logging configuration
func (c *LoggingConfig) Validate() error {
	if strings.TrimSpace(c.Level) == "" {
		c.Level = "info"
	}

	level := strings.TrimSpace(strings.ToLower(c.Level))
	switch level {
	case "debug", "info", "warn", "error":
		c.Level = level // Normalize to lowercase
		return nil
	default:
		return fmt.Errorf("%w: log level %q, supported levels: debug, info, warn, error", ErrConfigInvalid, c.Level)
	}
}
