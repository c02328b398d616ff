package hotspot

import (
	"fmt"
	"math"

	"github.com/banshee-data/forest.report/internal/config"
	"github.com/banshee-data/forest.report/internal/forest"
)

// DefaultSigma is the smoothing width used when callers do not choose one.
const DefaultSigma = 2.0

// DefaultTruncate is the kernel cut-off in standard deviations.
const DefaultTruncate = 4.0

// Config holds hotspot detection parameters.
type Config struct {
	Threshold float64 // smoothed value a cell must exceed (default: 0.1)
	Sigma     float64 // Gaussian width in cells (default: 2.0)
	Truncate  float64 // kernel radius in sigmas (default: 4.0)
}

// DefaultConfig returns a Config built from the canonical analysis defaults
// file. Panics if the file cannot be found.
func DefaultConfig() *Config {
	return ConfigFromAnalysis(config.MustLoadDefaultConfig())
}

// ConfigFromAnalysis builds a Config from loaded analysis settings.
func ConfigFromAnalysis(cfg *config.AnalysisConfig) *Config {
	return &Config{
		Threshold: cfg.GetHotspotThreshold(),
		Sigma:     cfg.GetHotspotSigma(),
		Truncate:  cfg.GetHotspotTruncate(),
	}
}

// Validate checks the parameter ranges.
func (c *Config) Validate() error {
	if math.IsNaN(c.Threshold) || c.Threshold < 0 {
		return fmt.Errorf("threshold must be non-negative, got %v", c.Threshold)
	}
	if !(c.Sigma > 0) {
		return fmt.Errorf("sigma must be positive, got %v", c.Sigma)
	}
	if !(c.Truncate > 0) {
		return fmt.Errorf("truncate must be positive, got %v", c.Truncate)
	}
	return nil
}

// WithThreshold sets the detection threshold.
func (c *Config) WithThreshold(t float64) *Config {
	c.Threshold = t
	return c
}

// WithSigma sets the smoothing width.
func (c *Config) WithSigma(s float64) *Config {
	c.Sigma = s
	return c
}

// WithTruncate sets the kernel cut-off.
func (c *Config) WithTruncate(t float64) *Config {
	c.Truncate = t
	return c
}

// Detect smooths mask and marks cells whose smoothed value exceeds the
// threshold. Raising the threshold can only remove cells from the result.
func (c *Config) Detect(mask *forest.Mask) (*forest.Mask, error) {
	if err := c.Validate(); err != nil {
		return nil, forest.Errorf("hotspot.Detect", forest.ErrInvalidInput, "%v", err)
	}
	smoothed, err := Smooth(mask, c.Sigma, c.Truncate)
	if err != nil {
		return nil, err
	}
	return forest.MaskFromFunc(mask.Geometry, func(i int) bool {
		return smoothed[i] > c.Threshold
	}), nil
}

// Detect is Config{threshold, sigma, DefaultTruncate}.Detect(mask).
func Detect(mask *forest.Mask, threshold, sigma float64) (*forest.Mask, error) {
	c := &Config{Threshold: threshold, Sigma: sigma, Truncate: DefaultTruncate}
	return c.Detect(mask)
}
