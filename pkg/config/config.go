// Package config provides configuration loading and management for orientsearch.
// It handles loading level configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"orientsearch/internal/models"
	"orientsearch/pkg/hexgrid"
	"orientsearch/pkg/refinement"
	"orientsearch/pkg/symmetry"
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// StepConfig is one entry of the subdivision table
type StepConfig struct {
	// SpacingDeg is the angular spacing in degrees
	SpacingDeg float64 `yaml:"spacingDeg"`

	// CutoffNyquist is the display low-pass cutoff as a fraction of Nyquist
	CutoffNyquist float64 `yaml:"cutoffNyquist"`
}

// Config represents the level configuration loaded from YAML
type Config struct {
	// Level parameters
	Level struct {
		// ID identifies the level on the leaderboard
		ID string `yaml:"id"`

		// Symmetry is the point group identifier (C1, Cn, Dn, T, O, I)
		Symmetry string `yaml:"symmetry"`

		// ImageSize is the edge length of the square projections in pixels
		ImageSize int `yaml:"imageSize"`

		// PixelSize in Å
		PixelSize float64 `yaml:"pixelSize"`

		// SNR is the signal-to-noise variance ratio of the target image, 0 disables noise
		SNR float64 `yaml:"snr"`

		// HalfLifeSeconds enables decay of exploration freshness when positive
		HalfLifeSeconds float64 `yaml:"halfLifeSeconds"`

		// Seed drives target selection and noise
		Seed int64 `yaml:"seed"`

		// ASUPolicy is "anyVertex" or "center"
		ASUPolicy string `yaml:"asuPolicy"`
	} `yaml:"level"`

	// CTF parameters
	CTF struct {
		// Enabled applies the CTF to the displayed target and candidate images
		Enabled bool `yaml:"enabled"`

		// Defocus in µm, positive is underfocus
		Defocus float64 `yaml:"defocus"`

		// DefocusDelta is the astigmatism magnitude in µm
		DefocusDelta float64 `yaml:"defocusDelta"`

		// AstigmatismAngle in degrees
		AstigmatismAngle float64 `yaml:"astigmatismAngle"`

		// Voltage in kV
		Voltage float64 `yaml:"voltage"`

		// Cs is the spherical aberration in mm
		Cs float64 `yaml:"cs"`

		// Amplitude is the amplitude contrast fraction
		Amplitude float64 `yaml:"amplitude"`
	} `yaml:"ctf"`

	// Phantom density parameters
	Phantom struct {
		// Seeds is the number of blobs before symmetry expansion
		Seeds int `yaml:"seeds"`

		// Radius bounds blob centers, in pixels
		Radius float64 `yaml:"radius"`

		// Sigma is the blob width in pixels
		Sigma float64 `yaml:"sigma"`

		// Projector is "analytic" or "voxel"
		Projector string `yaml:"projector"`

		// PrefilterNyquist low-passes the rasterized volume for the voxel projector
		PrefilterNyquist float64 `yaml:"prefilterNyquist"`
	} `yaml:"phantom"`

	// Subdivision overrides the default coarse-to-fine table when non-empty
	Subdivision []StepConfig `yaml:"subdivision"`

	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel search
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// Dir is where images and plots are written
		Dir string `yaml:"dir"`

		// SaveImages determines whether to write target, candidate and heat-map images
		SaveImages bool `yaml:"saveImages"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Level.ID = "default"
	cfg.Level.Symmetry = "C1"
	cfg.Level.ImageSize = 64
	cfg.Level.PixelSize = 2.0
	cfg.Level.SNR = 1.0
	cfg.Level.Seed = 1
	cfg.Level.ASUPolicy = "anyVertex"

	cfg.CTF.Enabled = false
	cfg.CTF.Defocus = 1.5
	cfg.CTF.Voltage = 300
	cfg.CTF.Cs = 2.7
	cfg.CTF.Amplitude = 0.1

	cfg.Phantom.Seeds = 4
	cfg.Phantom.Radius = 12
	cfg.Phantom.Sigma = 2
	cfg.Phantom.Projector = "analytic"
	cfg.Phantom.PrefilterNyquist = 1.0

	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default

	cfg.Output.Dir = "output"
	cfg.Output.SaveImages = false
	cfg.Output.Verbose = true

	return cfg
}

// Preset returns the default configuration adjusted to a named difficulty:
// "easy", "medium" or "hard"
func Preset(name string) (*Config, error) {
	cfg := DefaultConfig()
	switch strings.ToLower(name) {
	case "easy":
		cfg.Level.SNR = 0
	case "medium":
		cfg.Level.SNR = 0.5
		cfg.CTF.Enabled = true
	case "hard":
		cfg.Level.SNR = 0.1
		cfg.Level.HalfLifeSeconds = 30
		cfg.CTF.Enabled = true
		cfg.CTF.Defocus = 2.5
		cfg.CTF.DefocusDelta = 0.2
		cfg.CTF.AstigmatismAngle = 30
	default:
		return nil, fmt.Errorf("%w: unknown preset %q", ErrInvalidConfig, name)
	}
	cfg.Level.ID = strings.ToLower(name)
	return cfg, nil
}

// Validate checks the configuration for values the search cannot run with
func (c *Config) Validate() error {
	if _, err := symmetry.Parse(c.Level.Symmetry); err != nil {
		return fmt.Errorf("level.symmetry: %w", err)
	}
	if c.Level.ImageSize < 8 || c.Level.ImageSize%2 != 0 {
		return fmt.Errorf("%w: level.imageSize must be an even number >= 8, got %d", ErrInvalidConfig, c.Level.ImageSize)
	}
	if !(c.Level.PixelSize > 0) {
		return fmt.Errorf("%w: level.pixelSize must be positive, got %g", ErrInvalidConfig, c.Level.PixelSize)
	}
	if c.Level.SNR < 0 || math.IsNaN(c.Level.SNR) {
		return fmt.Errorf("%w: level.snr must not be negative, got %g", ErrInvalidConfig, c.Level.SNR)
	}
	if c.Level.HalfLifeSeconds < 0 {
		return fmt.Errorf("%w: level.halfLifeSeconds must not be negative", ErrInvalidConfig)
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	if c.CTF.Enabled {
		if c.CTF.Amplitude < 0 || c.CTF.Amplitude >= 1 {
			return fmt.Errorf("%w: ctf.amplitude must be in [0, 1), got %g", ErrInvalidConfig, c.CTF.Amplitude)
		}
		if c.CTF.Voltage <= 0 {
			return fmt.Errorf("%w: ctf.voltage must be positive", ErrInvalidConfig)
		}
	}
	if c.Phantom.Seeds <= 0 || c.Phantom.Sigma <= 0 || c.Phantom.Radius < 0 {
		return fmt.Errorf("%w: phantom needs positive seeds and sigma", ErrInvalidConfig)
	}
	if c.Phantom.Projector != "analytic" && c.Phantom.Projector != "voxel" {
		return fmt.Errorf("%w: phantom.projector must be analytic or voxel, got %q", ErrInvalidConfig, c.Phantom.Projector)
	}
	for i, s := range c.Subdivision {
		if s.SpacingDeg <= 0 || s.CutoffNyquist <= 0 {
			return fmt.Errorf("%w: subdivision[%d] needs positive spacing and cutoff", ErrInvalidConfig, i)
		}
		if i > 0 && s.SpacingDeg >= c.Subdivision[i-1].SpacingDeg {
			return fmt.Errorf("%w: subdivision spacing must decrease, step %d", ErrInvalidConfig, i)
		}
		if s.CutoffNyquist > 1 {
			return fmt.Errorf("%w: subdivision[%d] cutoff must not exceed Nyquist, got %g", ErrInvalidConfig, i, s.CutoffNyquist)
		}
		if i > 0 && s.CutoffNyquist < c.Subdivision[i-1].CutoffNyquist {
			return fmt.Errorf("%w: subdivision cutoff must not decrease, step %d", ErrInvalidConfig, i)
		}
	}
	if c.Processing.NumCores < 0 {
		return fmt.Errorf("%w: processing.numCores must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Group returns the parsed symmetry group
func (c *Config) Group() (symmetry.Group, error) {
	return symmetry.Parse(c.Level.Symmetry)
}

// Policy returns the cell filtering policy
func (c *Config) Policy() (hexgrid.Policy, error) {
	switch c.Level.ASUPolicy {
	case "", "anyVertex":
		return hexgrid.AnyVertexInASU, nil
	case "center":
		return hexgrid.CenterInASU, nil
	}
	return 0, fmt.Errorf("%w: level.asuPolicy must be anyVertex or center, got %q", ErrInvalidConfig, c.Level.ASUPolicy)
}

// CTFParams converts the ctf section into model parameters
func (c *Config) CTFParams() models.CTFParams {
	return models.CTFParams{
		PixelSize:        c.Level.PixelSize,
		Voltage:          c.CTF.Voltage,
		Cs:               c.CTF.Cs,
		Amplitude:        c.CTF.Amplitude,
		Defocus:          c.CTF.Defocus,
		DefocusDelta:     c.CTF.DefocusDelta,
		AstigmatismAngle: c.CTF.AstigmatismAngle * math.Pi / 180,
	}
}

// Steps returns the subdivision table, falling back to the defaults
func (c *Config) Steps() []refinement.Step {
	if len(c.Subdivision) == 0 {
		return refinement.DefaultSteps
	}
	steps := make([]refinement.Step, len(c.Subdivision))
	for i, s := range c.Subdivision {
		steps[i] = refinement.Step{SpacingDeg: s.SpacingDeg, CutoffNyquist: s.CutoffNyquist}
	}
	return steps
}

// HalfLife returns the freshness half-life, 0 when decay is disabled
func (c *Config) HalfLife() time.Duration {
	return time.Duration(c.Level.HalfLifeSeconds * float64(time.Second))
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
