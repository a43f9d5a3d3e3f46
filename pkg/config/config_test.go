package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"orientsearch/pkg/hexgrid"
	"orientsearch/pkg/refinement"
	"orientsearch/pkg/symmetry"
)

// TestDefaultConfigIsValid verifies the defaults pass validation
func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config invalid: %v", err)
	}
	if cfg.Processing.NumCores <= 0 {
		t.Errorf("Expected NumCores > 0, got %d", cfg.Processing.NumCores)
	}
	if len(cfg.Steps()) != len(refinement.DefaultSteps) {
		t.Errorf("Expected default subdivision table")
	}
	if cfg.HalfLife() != 0 {
		t.Errorf("Expected decay disabled by default")
	}
}

// TestSaveLoadRoundTrip verifies a saved configuration loads back unchanged
func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "level.yaml")

	cfg := DefaultConfig()
	cfg.Level.ID = "octa-01"
	cfg.Level.Symmetry = "O"
	cfg.Level.HalfLifeSeconds = 12.5
	cfg.CTF.Enabled = true
	cfg.Subdivision = []StepConfig{{SpacingDeg: 15, CutoffNyquist: 0.3}, {SpacingDeg: 5, CutoffNyquist: 1}}

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if loaded.Level.ID != "octa-01" || loaded.Level.Symmetry != "O" || !loaded.CTF.Enabled {
		t.Errorf("Loaded config differs: %+v", loaded.Level)
	}
	if loaded.HalfLife() != 12500*time.Millisecond {
		t.Errorf("Expected 12.5s half-life, got %v", loaded.HalfLife())
	}
	steps := loaded.Steps()
	if len(steps) != 2 || steps[1].SpacingDeg != 5 || steps[0].CutoffNyquist != 0.3 {
		t.Errorf("Unexpected steps %+v", steps)
	}
}

// TestLoadMissingFile verifies defaults are returned when no file exists
func TestLoadMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Level.Symmetry != "C1" {
		t.Errorf("Expected default symmetry, got %s", cfg.Level.Symmetry)
	}
}

// TestLoadPartialFile verifies unspecified fields keep their defaults
func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	data := []byte("level:\n  symmetry: D7\nctf:\n  enabled: true\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Level.Symmetry != "D7" || cfg.Level.ImageSize != 64 || cfg.CTF.Voltage != 300 {
		t.Errorf("Unexpected merge result: %+v %+v", cfg.Level, cfg.CTF)
	}
	g, err := cfg.Group()
	if err != nil || g != (symmetry.Group{Kind: symmetry.Dihedral, N: 7}) {
		t.Errorf("Group() = %v, %v", g, err)
	}
}

// TestLoadMalformedFile verifies YAML errors are reported
func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("level: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Errorf("Expected a parse error")
	}
}

// TestValidate checks each rejected field
func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"symmetry", func(c *Config) { c.Level.Symmetry = "Q5" }, symmetry.ErrUnknownSymmetryGroup},
		{"odd size", func(c *Config) { c.Level.ImageSize = 63 }, ErrInvalidConfig},
		{"pixel size", func(c *Config) { c.Level.PixelSize = 0 }, ErrInvalidConfig},
		{"snr", func(c *Config) { c.Level.SNR = -1 }, ErrInvalidConfig},
		{"policy", func(c *Config) { c.Level.ASUPolicy = "edges" }, ErrInvalidConfig},
		{"amplitude", func(c *Config) { c.CTF.Enabled = true; c.CTF.Amplitude = 1 }, ErrInvalidConfig},
		{"projector", func(c *Config) { c.Phantom.Projector = "fourier" }, ErrInvalidConfig},
		{"subdivision order", func(c *Config) {
			c.Subdivision = []StepConfig{{SpacingDeg: 5, CutoffNyquist: 1}, {SpacingDeg: 10, CutoffNyquist: 1}}
		}, ErrInvalidConfig},
		{"cutoff above nyquist", func(c *Config) {
			c.Subdivision = []StepConfig{{SpacingDeg: 10, CutoffNyquist: 0.5}, {SpacingDeg: 5, CutoffNyquist: 1.2}}
		}, ErrInvalidConfig},
		{"cutoff order", func(c *Config) {
			c.Subdivision = []StepConfig{{SpacingDeg: 10, CutoffNyquist: 0.8}, {SpacingDeg: 5, CutoffNyquist: 0.4}}
		}, ErrInvalidConfig},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(cfg)
		if err := cfg.Validate(); !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	// Amplitude is only checked when the CTF is used
	cfg := DefaultConfig()
	cfg.CTF.Amplitude = 1
	if err := cfg.Validate(); err != nil {
		t.Errorf("Disabled CTF should not be validated: %v", err)
	}
}

// TestPresets verifies the difficulty presets
func TestPresets(t *testing.T) {
	for _, name := range []string{"easy", "Medium", "hard"} {
		cfg, err := Preset(name)
		if err != nil {
			t.Fatalf("Preset(%s): %v", name, err)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Preset %s invalid: %v", name, err)
		}
	}
	hard, _ := Preset("hard")
	if hard.HalfLife() != 30*time.Second {
		t.Errorf("Hard preset should decay, got %v", hard.HalfLife())
	}
	if _, err := Preset("nightmare"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for unknown preset, got %v", err)
	}
}

// TestConversions checks the model and policy conversions
func TestConversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CTF.AstigmatismAngle = 90
	p := cfg.CTFParams()
	if math.Abs(p.AstigmatismAngle-math.Pi/2) > 1e-12 || p.PixelSize != cfg.Level.PixelSize {
		t.Errorf("Unexpected CTF params %+v", p)
	}

	cfg.Level.ASUPolicy = "center"
	if pol, err := cfg.Policy(); err != nil || pol != hexgrid.CenterInASU {
		t.Errorf("Policy() = %v, %v", pol, err)
	}
}

// TestCreateDefaultConfigFile verifies the default file can be read back
func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile failed: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Created config invalid: %v", err)
	}
}
