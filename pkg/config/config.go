// Package config provides configuration loading and management for tilescanfov.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"tilescanfov/pkg/imageio"
	"tilescanfov/pkg/roi"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Field of view parameters, in the physical unit of the calibration
	Fields struct {
		// Size is the side of a field without overlap
		Size float64 `yaml:"size"`

		// Overlap is how far each field extends into its neighbours
		Overlap float64 `yaml:"overlap"`

		// Rotation overrides the rotation file when non-nil
		Rotation *float64 `yaml:"rotation,omitempty"`

		// Layout is "rotated" or "grid"
		Layout string `yaml:"layout"`
	} `yaml:"fields"`

	// Calibration is used for images that do not carry their own scale
	Calibration roi.Calibration `yaml:"calibration"`

	// Region detection parameters
	Region struct {
		// BlankThreshold is the intensity (0-1) at or below which a pixel is padding
		BlankThreshold float64 `yaml:"blankThreshold"`

		// ContainmentTolerance is the share of a field allowed outside the imaged area
		ContainmentTolerance float64 `yaml:"containmentTolerance"`

		// ForegroundThreshold is the intensity above which a segmentation pixel is set
		ForegroundThreshold float64 `yaml:"foregroundThreshold"`

		// SkipCleanup keeps stray pieces of the imaged area
		SkipCleanup bool `yaml:"skipCleanup"`
	} `yaml:"region"`

	// Output parameters
	Output struct {
		// Normalize stretches the contrast of every saved field
		Normalize bool `yaml:"normalize"`

		// Saturation is the percentage of pixels clipped when normalizing
		Saturation float64 `yaml:"saturation"`

		// SaveOverlay writes a PNG of the fields drawn over the first channel
		SaveOverlay bool `yaml:"saveOverlay"`

		// LogLevel is one of debug, info, warn, error
		LogLevel string `yaml:"logLevel"`

		// JSONLogs switches the log handler to JSON
		JSONLogs bool `yaml:"jsonLogs"`
	} `yaml:"output"`

	// Assignment parameters
	Assignment struct {
		// Researchers are the initials of everyone labeling fields
		Researchers []string `yaml:"researchers"`

		// Seed makes the random assignment reproducible
		Seed uint64 `yaml:"seed"`

		// RelabelPercent is the share of each researcher's fields drawn for
		// relabeling
		RelabelPercent float64 `yaml:"relabelPercent"`
	} `yaml:"assignment"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Fields.Size = 60
	cfg.Fields.Overlap = 15
	cfg.Fields.Layout = "rotated"

	cfg.Calibration = roi.PixelCalibration

	cfg.Region.BlankThreshold = 0
	cfg.Region.ContainmentTolerance = roi.DefaultContainmentTolerance
	cfg.Region.ForegroundThreshold = 0

	cfg.Output.Normalize = true
	cfg.Output.Saturation = imageio.DefaultSaturation
	cfg.Output.SaveOverlay = false
	cfg.Output.LogLevel = "info"

	cfg.Assignment.Researchers = []string{}
	cfg.Assignment.Seed = 1
	cfg.Assignment.RelabelPercent = 10

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "error creating config directory")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "error marshaling config")
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "error writing config file")
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks that the configuration describes a usable tiling
func (c *Config) Validate() error {
	if c.Fields.Size <= 0 {
		return errors.Wrapf(roi.ErrUnsupportedConfiguration, "field size %v must be positive", c.Fields.Size)
	}
	if c.Fields.Overlap < 0 {
		return errors.Wrapf(roi.ErrUnsupportedConfiguration, "field overlap %v must not be negative", c.Fields.Overlap)
	}
	if l := c.Fields.Layout; l != "rotated" && l != "grid" {
		return errors.Wrapf(roi.ErrUnsupportedConfiguration, "unknown field layout %q", l)
	}
	if p := c.Assignment.RelabelPercent; p < 0 || p > 100 {
		return errors.Wrapf(roi.ErrUnsupportedConfiguration, "relabel percent %v outside [0, 100]", p)
	}
	if t := c.Region.ContainmentTolerance; t < 0 || t >= 1 {
		return errors.Wrapf(roi.ErrUnsupportedConfiguration, "containment tolerance %v outside [0, 1)", t)
	}
	if c.Calibration.PixelWidth <= 0 || c.Calibration.PixelHeight <= 0 {
		return errors.Wrapf(roi.ErrDegenerateRegion, "pixel size %vx%v must be positive",
			c.Calibration.PixelWidth, c.Calibration.PixelHeight)
	}
	if _, err := parseLevel(c.Output.LogLevel); err != nil {
		return err
	}
	return nil
}

// LogLevel returns the configured slog level, defaulting to info
func (c *Config) LogLevel() slog.Level {
	level, err := parseLevel(c.Output.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, errors.Wrapf(roi.ErrUnsupportedConfiguration, "unknown log level %q", s)
}
