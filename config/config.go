// Package config defines the capture tool's configuration file.
package config

import (
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/rgbdcapture/logging"
	"go.viam.com/rgbdcapture/recorder"
	"go.viam.com/rgbdcapture/rimage"
)

// Defaults of the optional config fields.
const (
	DefaultOutputDir     = "data"
	DefaultDepthDir      = "depth"
	DefaultColorDir      = "rgb"
	DefaultMaxDistanceMM = 2000
	DefaultFarDepthMM    = rimage.DefaultFarDepth
	DefaultDepthScale    = 1.0
	DefaultStatsInterval = 5 * time.Second
)

// Config describes one capture run. Relative depth and color directories are resolved against OutputDir,
// and absolute ones must still lie inside it.
type Config struct {
	ConfigFilePath string `json:"-"`

	OutputDir   string `json:"output_dir"`
	DepthDir    string `json:"depth_dir"`
	ColorDir    string `json:"color_dir"`
	DepthFormat string `json:"depth_format"`
	ColorFormat string `json:"color_format"`

	MaxDistanceMM int64   `json:"max_distance_mm"`
	FarDepthMM    float32 `json:"far_depth_mm"`
	DepthScale    float32 `json:"depth_scale"`

	// Pointers tell an omitted flag from an explicit false.
	Mirror          *bool `json:"mirror,omitempty"`
	BilateralFilter *bool `json:"bilateral_filter,omitempty"`
	Fake            *bool `json:"fake,omitempty"`
	Headless        bool  `json:"headless"`

	LogFile string `json:"log_file"`
	// LogLevel is the starting log level. Debug wins over it.
	LogLevel      logging.Level `json:"log_level"`
	Debug         bool          `json:"debug"`
	StatsInterval string        `json:"stats_interval"`
}

// Defaults returns a config with every optional field set.
func Defaults() *Config {
	cfg := &Config{}
	cfg.fillDefaults()
	return cfg
}

func (c *Config) fillDefaults() {
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.DepthDir == "" {
		c.DepthDir = DefaultDepthDir
	}
	if c.ColorDir == "" {
		c.ColorDir = DefaultColorDir
	}
	if c.DepthFormat == "" {
		c.DepthFormat = rimage.FormatPNG
	}
	if c.ColorFormat == "" {
		c.ColorFormat = rimage.FormatPNG
	}
	if c.MaxDistanceMM == 0 {
		c.MaxDistanceMM = DefaultMaxDistanceMM
	}
	if c.FarDepthMM == 0 {
		c.FarDepthMM = DefaultFarDepthMM
	}
	if c.DepthScale == 0 {
		c.DepthScale = DefaultDepthScale
	}
	if c.Mirror == nil {
		c.Mirror = boolPtr(true)
	}
	if c.BilateralFilter == nil {
		c.BilateralFilter = boolPtr(true)
	}
	// there is no hardware driver in this build
	if c.Fake == nil {
		c.Fake = boolPtr(true)
	}
	if c.StatsInterval == "" {
		c.StatsInterval = DefaultStatsInterval.String()
	}
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate() error {
	if c.OutputDir == "" || filepath.Clean(c.OutputDir) == string(filepath.Separator) {
		return errors.Errorf("output_dir %q cannot hold a session", c.OutputDir)
	}
	if c.DepthDir == "" || c.ColorDir == "" {
		return errors.New("depth_dir and color_dir are required")
	}
	// both are wiped at startup
	for name, dir := range map[string]string{"depth_dir": c.DepthPath(), "color_dir": c.ColorPath()} {
		if !recorder.Within(c.OutputDir, dir) {
			return errors.Errorf("%s %q must be inside output_dir %q", name, dir, c.OutputDir)
		}
	}
	if c.DepthPath() == c.ColorPath() {
		return errors.Errorf("depth and color directories must differ, both are %q", c.DepthPath())
	}
	if !rimage.SupportsDepth(c.DepthFormat) {
		return errors.Errorf("depth_format %q cannot hold 16-bit depth", c.DepthFormat)
	}
	if !rimage.SupportsColor(c.ColorFormat) {
		return errors.Errorf("unsupported color_format %q", c.ColorFormat)
	}
	if c.MaxDistanceMM <= 0 {
		return errors.Errorf("max_distance_mm must be positive, got %d", c.MaxDistanceMM)
	}
	if c.DepthScale <= 0 {
		return errors.Errorf("depth_scale must be positive, got %v", c.DepthScale)
	}
	if encoded := c.FarDepthMM * c.DepthScale; !(encoded >= 1 && encoded <= float32(rimage.MaxDepth)) {
		return errors.Errorf("far_depth_mm %v does not fit 16-bit depth at scale %v", c.FarDepthMM, c.DepthScale)
	}
	if _, err := c.StatsIntervalDuration(); err != nil {
		return err
	}
	return nil
}

// DepthPath is the directory depth images are written to.
func (c *Config) DepthPath() string {
	return c.resolve(c.DepthDir)
}

// ColorPath is the directory color images are written to.
func (c *Config) ColorPath() string {
	return c.resolve(c.ColorDir)
}

func (c *Config) resolve(dir string) string {
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(c.OutputDir, dir)
}

// StatsIntervalDuration parses stats_interval. Zero disables periodic stats.
func (c *Config) StatsIntervalDuration() (time.Duration, error) {
	if c.StatsInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.StatsInterval)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid stats_interval %q", c.StatsInterval)
	}
	if d < 0 {
		return 0, errors.Errorf("stats_interval must not be negative, got %v", d)
	}
	return d, nil
}

// MirrorEnabled reports whether output images are flipped horizontally.
func (c *Config) MirrorEnabled() bool {
	return c.Mirror == nil || *c.Mirror
}

// FilterEnabled reports whether registration drops occluded color samples.
func (c *Config) FilterEnabled() bool {
	return c.BilateralFilter == nil || *c.BilateralFilter
}

// UseFake reports whether the synthetic device is used.
func (c *Config) UseFake() bool {
	return c.Fake == nil || *c.Fake
}

func boolPtr(b bool) *bool {
	return &b
}
