package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestDefaultAnalysisConfig(t *testing.T) {
	cfg := DefaultAnalysisConfig()

	if cfg.HotspotThreshold == nil || *cfg.HotspotThreshold != 0.1 {
		t.Errorf("Expected HotspotThreshold 0.1, got %v", cfg.HotspotThreshold)
	}
	if cfg.BufferSegments == nil || *cfg.BufferSegments != 8 {
		t.Errorf("Expected BufferSegments 8, got %v", cfg.BufferSegments)
	}
	if cfg.PixelAreaUnit == nil || *cfg.PixelAreaUnit != "ha" {
		t.Errorf("Expected PixelAreaUnit 'ha', got %v", cfg.PixelAreaUnit)
	}

	if cfg.GetHotspotSigma() != 2.0 {
		t.Errorf("GetHotspotSigma() = %f, want 2.0", cfg.GetHotspotSigma())
	}
	if cfg.GetHotspotTruncate() != 4.0 {
		t.Errorf("GetHotspotTruncate() = %f, want 4.0", cfg.GetHotspotTruncate())
	}
	if cfg.GetCarbonDensity() != 100 {
		t.Errorf("GetCarbonDensity() = %f, want 100", cfg.GetCarbonDensity())
	}
	if cfg.GetBufferDistance() != 1000 {
		t.Errorf("GetBufferDistance() = %f, want 1000", cfg.GetBufferDistance())
	}
	if cfg.GetCanopyThresholdPercent() != 30 {
		t.Errorf("GetCanopyThresholdPercent() = %f, want 30", cfg.GetCanopyThresholdPercent())
	}
	if cfg.GetMovingAverageWindow() != 5 {
		t.Errorf("GetMovingAverageWindow() = %d, want 5", cfg.GetMovingAverageWindow())
	}
}

func TestDefaultsFileMatchesBuiltins(t *testing.T) {
	fromFile := MustLoadDefaultConfig().Resolved()
	builtin := DefaultAnalysisConfig()

	a, err := json.Marshal(fromFile)
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(builtin)
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Errorf("defaults file drifted from built-in defaults:\nfile:    %s\nbuiltin: %s", a, b)
	}
}

func TestLoadAnalysisConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "hotspot_threshold": 0.25,
  "buffer_distance": 500,
  "pixel_area_unit": " M2 "
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadAnalysisConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetHotspotThreshold() != 0.25 {
		t.Errorf("GetHotspotThreshold() = %v, want 0.25", cfg.GetHotspotThreshold())
	}
	if cfg.GetBufferDistance() != 500 {
		t.Errorf("GetBufferDistance() = %v, want 500", cfg.GetBufferDistance())
	}
	if cfg.GetPixelAreaUnit() != "m2" {
		t.Errorf("GetPixelAreaUnit() = %q, want m2", cfg.GetPixelAreaUnit())
	}
	// Omitted fields fall back to defaults.
	if cfg.HotspotSigma != nil {
		t.Errorf("Expected HotspotSigma nil, got %v", *cfg.HotspotSigma)
	}
	if cfg.GetHotspotSigma() != 2.0 {
		t.Errorf("GetHotspotSigma() = %v, want 2.0", cfg.GetHotspotSigma())
	}
}

func TestLoadAnalysisConfigErrors(t *testing.T) {
	tmpDir := t.TempDir()

	write := func(name, body string) string {
		p := filepath.Join(tmpDir, name)
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
		return p
	}

	tests := []struct {
		name    string
		path    string
		wantSub string
	}{
		{"missing file", "/nonexistent/path/to/config.json", "stat"},
		{"wrong extension", write("config.yaml", "{}"), ".json extension"},
		{"invalid JSON", write("bad.json", `{"hotspot_sigma": "wide"`), "parse"},
		{"out of range", write("range.json", `{"hotspot_sigma": 0}`), "hotspot_sigma"},
		{"too large", write("big.json", `{"x":"`+strings.Repeat("a", 1024*1024)+`"}`), "too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadAnalysisConfig(tt.path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *AnalysisConfig
		wantErr bool
	}{
		{"valid config", DefaultAnalysisConfig(), false},
		{"empty config is valid", &AnalysisConfig{}, false},
		{"negative threshold", &AnalysisConfig{HotspotThreshold: ptrFloat64(-0.1)}, true},
		{"NaN threshold", &AnalysisConfig{HotspotThreshold: ptrFloat64(math.NaN())}, true},
		{"zero sigma", &AnalysisConfig{HotspotSigma: ptrFloat64(0)}, true},
		{"zero truncate", &AnalysisConfig{HotspotTruncate: ptrFloat64(0)}, true},
		{"negative density", &AnalysisConfig{CarbonDensity: ptrFloat64(-1)}, true},
		{"zero distance", &AnalysisConfig{BufferDistance: ptrFloat64(0)}, false},
		{"negative distance", &AnalysisConfig{BufferDistance: ptrFloat64(-5)}, true},
		{"infinite distance", &AnalysisConfig{BufferDistance: ptrFloat64(math.Inf(1))}, true},
		{"zero segments", &AnalysisConfig{BufferSegments: ptrInt(0)}, true},
		{"canopy above 100", &AnalysisConfig{CanopyThresholdPercent: ptrFloat64(101)}, true},
		{"zero window", &AnalysisConfig{MovingAverageWindow: ptrInt(0)}, true},
		{"unknown unit", &AnalysisConfig{PixelAreaUnit: ptrString("acres")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestJSONRecordsResolvedValues(t *testing.T) {
	cfg := &AnalysisConfig{CarbonDensity: ptrFloat64(150)}
	data, err := cfg.JSON()
	if err != nil {
		t.Fatal(err)
	}
	var back AnalysisConfig
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.GetCarbonDensity() != 150 {
		t.Errorf("carbon_density = %v, want 150", back.GetCarbonDensity())
	}
	if back.HotspotSigma == nil || *back.HotspotSigma != 2.0 {
		t.Errorf("hotspot_sigma should be recorded explicitly, got %v", back.HotspotSigma)
	}
}
