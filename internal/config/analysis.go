package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
)

// DefaultConfigPath is the path to the canonical analysis defaults file.
const DefaultConfigPath = "config/analysis.defaults.json"

// AnalysisConfig holds the tunable parameters of one analysis run. Every
// field is optional in the JSON file; the Get* accessors supply defaults.
type AnalysisConfig struct {
	// Hotspot detection
	HotspotThreshold *float64 `json:"hotspot_threshold,omitempty"`
	HotspotSigma     *float64 `json:"hotspot_sigma,omitempty"`
	HotspotTruncate  *float64 `json:"hotspot_truncate,omitempty"`

	// Carbon stock, mass per cell of forest
	CarbonDensity *float64 `json:"carbon_density,omitempty"`

	// Infrastructure impact
	BufferDistance *float64 `json:"buffer_distance,omitempty"` // CRS linear units
	BufferSegments *int     `json:"buffer_segments,omitempty"` // per quarter circle

	// Cover classification and series
	CanopyThresholdPercent *float64 `json:"canopy_threshold_percent,omitempty"`
	MovingAverageWindow    *int     `json:"moving_average_window,omitempty"`
	PixelAreaUnit          *string  `json:"pixel_area_unit,omitempty"` // "px", "m2" or "ha"
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrString(v string) *string    { return &v }

// EmptyAnalysisConfig returns an AnalysisConfig with all fields nil.
func EmptyAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{}
}

// DefaultAnalysisConfig returns a config with every field set to its
// built-in default.
func DefaultAnalysisConfig() *AnalysisConfig {
	return EmptyAnalysisConfig().Resolved()
}

// LoadAnalysisConfig loads an AnalysisConfig from a JSON file.
// The file must have a .json extension and be at most 1MB. Omitted
// fields keep their defaults, so partial configs are safe.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAnalysisConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents up to the repository
// root. Panics if the file cannot be loaded; intended for tests and
// binaries.
func MustLoadDefaultConfig() *AnalysisConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/forest/hotspot/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadAnalysisConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that every set field is in range.
func (c *AnalysisConfig) Validate() error {
	if c.HotspotThreshold != nil && !(*c.HotspotThreshold >= 0) {
		return fmt.Errorf("hotspot_threshold must be non-negative, got %v", *c.HotspotThreshold)
	}
	if c.HotspotSigma != nil && !(*c.HotspotSigma > 0) {
		return fmt.Errorf("hotspot_sigma must be positive, got %v", *c.HotspotSigma)
	}
	if c.HotspotTruncate != nil && !(*c.HotspotTruncate > 0) {
		return fmt.Errorf("hotspot_truncate must be positive, got %v", *c.HotspotTruncate)
	}
	if c.CarbonDensity != nil && !(*c.CarbonDensity >= 0) {
		return fmt.Errorf("carbon_density must be non-negative, got %v", *c.CarbonDensity)
	}
	if c.BufferDistance != nil && (!(*c.BufferDistance >= 0) || math.IsInf(*c.BufferDistance, 0)) {
		return fmt.Errorf("buffer_distance must be a non-negative number, got %v", *c.BufferDistance)
	}
	if c.BufferSegments != nil && *c.BufferSegments < 1 {
		return fmt.Errorf("buffer_segments must be at least 1, got %d", *c.BufferSegments)
	}
	if c.CanopyThresholdPercent != nil {
		if v := *c.CanopyThresholdPercent; !(v >= 0 && v <= 100) {
			return fmt.Errorf("canopy_threshold_percent must be between 0 and 100, got %v", v)
		}
	}
	if c.MovingAverageWindow != nil && *c.MovingAverageWindow < 1 {
		return fmt.Errorf("moving_average_window must be at least 1, got %d", *c.MovingAverageWindow)
	}
	if c.PixelAreaUnit != nil {
		switch strings.ToLower(strings.TrimSpace(*c.PixelAreaUnit)) {
		case "px", "m2", "ha":
		default:
			return fmt.Errorf("pixel_area_unit must be one of px, m2, ha, got %q", *c.PixelAreaUnit)
		}
	}
	return nil
}

// Resolved returns a copy with every field populated from its accessor,
// suitable for recording exactly which parameters a run used.
func (c *AnalysisConfig) Resolved() *AnalysisConfig {
	return &AnalysisConfig{
		HotspotThreshold:       ptrFloat64(c.GetHotspotThreshold()),
		HotspotSigma:           ptrFloat64(c.GetHotspotSigma()),
		HotspotTruncate:        ptrFloat64(c.GetHotspotTruncate()),
		CarbonDensity:          ptrFloat64(c.GetCarbonDensity()),
		BufferDistance:         ptrFloat64(c.GetBufferDistance()),
		BufferSegments:         ptrInt(c.GetBufferSegments()),
		CanopyThresholdPercent: ptrFloat64(c.GetCanopyThresholdPercent()),
		MovingAverageWindow:    ptrInt(c.GetMovingAverageWindow()),
		PixelAreaUnit:          ptrString(c.GetPixelAreaUnit()),
	}
}

// JSON encodes the resolved configuration.
func (c *AnalysisConfig) JSON() ([]byte, error) {
	return json.Marshal(c.Resolved())
}

// GetHotspotThreshold returns the hotspot_threshold value or the default.
func (c *AnalysisConfig) GetHotspotThreshold() float64 {
	if c.HotspotThreshold == nil {
		return 0.1 // default
	}
	return *c.HotspotThreshold
}

// GetHotspotSigma returns the hotspot_sigma value or the default.
func (c *AnalysisConfig) GetHotspotSigma() float64 {
	if c.HotspotSigma == nil {
		return 2.0 // default
	}
	return *c.HotspotSigma
}

// GetHotspotTruncate returns the hotspot_truncate value or the default.
func (c *AnalysisConfig) GetHotspotTruncate() float64 {
	if c.HotspotTruncate == nil {
		return 4.0 // default
	}
	return *c.HotspotTruncate
}

// GetCarbonDensity returns the carbon_density value or the default.
func (c *AnalysisConfig) GetCarbonDensity() float64 {
	if c.CarbonDensity == nil {
		return 100 // default
	}
	return *c.CarbonDensity
}

// GetBufferDistance returns the buffer_distance value or the default.
func (c *AnalysisConfig) GetBufferDistance() float64 {
	if c.BufferDistance == nil {
		return 1000 // default
	}
	return *c.BufferDistance
}

// GetBufferSegments returns the buffer_segments value or the default.
func (c *AnalysisConfig) GetBufferSegments() int {
	if c.BufferSegments == nil {
		return 8 // default
	}
	return *c.BufferSegments
}

// GetCanopyThresholdPercent returns the canopy_threshold_percent value or the default.
func (c *AnalysisConfig) GetCanopyThresholdPercent() float64 {
	if c.CanopyThresholdPercent == nil {
		return 30 // default
	}
	return *c.CanopyThresholdPercent
}

// GetMovingAverageWindow returns the moving_average_window value or the default.
func (c *AnalysisConfig) GetMovingAverageWindow() int {
	if c.MovingAverageWindow == nil {
		return 5 // default
	}
	return *c.MovingAverageWindow
}

// GetPixelAreaUnit returns the normalized pixel_area_unit value or the default.
func (c *AnalysisConfig) GetPixelAreaUnit() string {
	if c.PixelAreaUnit == nil || strings.TrimSpace(*c.PixelAreaUnit) == "" {
		return "ha" // default
	}
	return strings.ToLower(strings.TrimSpace(*c.PixelAreaUnit))
}
