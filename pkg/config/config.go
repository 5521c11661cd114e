// Package config provides configuration loading and management for meriscorr.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"meriscorr/internal/models"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Correction selects the stages and their auxiliary data
	Correction struct {
		// Calibrate re-applies the radiometric calibration of the 3rd reprocessing
		Calibrate bool `yaml:"calibrate"`

		// SmileCorrect corrects the spectral smile per detector
		SmileCorrect bool `yaml:"smileCorrect"`

		// Equalize removes detector-to-detector radiometric differences
		Equalize bool `yaml:"equalize"`

		// RadianceToReflectance converts the spectral bands to TOA reflectance
		RadianceToReflectance bool `yaml:"radianceToReflectance"`

		// Generation is "auto" or an explicit processing generation
		Generation string `yaml:"generation"`

		// SourceCalibrationFile and TargetCalibrationFile override the
		// built-in gain tables when set
		SourceCalibrationFile string `yaml:"sourceCalibrationFile"`
		TargetCalibrationFile string `yaml:"targetCalibrationFile"`
	} `yaml:"correction"`

	// Processing parameters
	Processing struct {
		// NumWorkers specifies how many tiles are processed concurrently
		NumWorkers int `yaml:"numWorkers"`

		// TileHeight is the number of image rows per tile
		TileHeight int `yaml:"tileHeight"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// MetricsFile receives the pixel counters in prometheus textfile format
		MetricsFile string `yaml:"metricsFile"`

		// ReportFile receives the run report in YAML
		ReportFile string `yaml:"reportFile"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Correction.Calibrate = true
	cfg.Correction.SmileCorrect = true
	cfg.Correction.Equalize = true
	cfg.Correction.RadianceToReflectance = false
	cfg.Correction.Generation = "auto"

	cfg.Processing.NumWorkers = runtime.NumCPU()
	cfg.Processing.TileHeight = 64

	cfg.Output.Verbose = false

	return cfg
}

// Validate checks values that YAML decoding cannot check
func (c *Config) Validate() error {
	if _, err := models.ParseGeneration(c.Correction.Generation); err != nil {
		return fmt.Errorf("correction.generation: %w", err)
	}
	if c.Processing.NumWorkers < 1 {
		return fmt.Errorf("processing.numWorkers must be positive, got %d", c.Processing.NumWorkers)
	}
	if c.Processing.TileHeight < 1 {
		return fmt.Errorf("processing.tileHeight must be positive, got %d", c.Processing.TileHeight)
	}
	return nil
}

// GenerationHint returns the configured generation; models.GenerationUndetermined
// requests auto-detection
func (c *Config) GenerationHint() models.Generation {
	g, _ := models.ParseGeneration(c.Correction.Generation)
	return g
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
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

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

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
