// Package config provides configuration loading and management for fmriscreen.
// It handles loading configuration from YAML files and provides default values.
// A Config is always passed explicitly to the screening pipeline; nothing here
// is held as process-wide state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"fmriscreen/pkg/mask"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Mask parameters used when no explicit mask is supplied
	Mask mask.Config `yaml:"mask"`

	// PCA parameters
	PCA struct {
		// NumComponents is the number of leading components to keep (0 = all)
		NumComponents int `yaml:"numComponents"`
	} `yaml:"pca"`

	// Processing parameters
	Processing struct {
		// NumCores bounds how many time pairs are differenced concurrently
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// ReportFile is where the command line tool writes the YAML report digest
		ReportFile string `yaml:"reportFile"`

		// SaveImages determines whether diagnostic images are written
		SaveImages bool `yaml:"saveImages"`

		// ImageDir is the directory diagnostic images are written to
		ImageDir string `yaml:"imageDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Keep every voxel unless a threshold is configured
	cfg.Mask = mask.DefaultConfig()

	cfg.PCA.NumComponents = 0

	cfg.Processing.NumCores = runtime.NumCPU()

	cfg.Output.ReportFile = "screen_report.yaml"
	cfg.Output.SaveImages = false
	cfg.Output.ImageDir = "screen_images"
	cfg.Output.Verbose = true

	return cfg
}

// Validate checks that the configuration values are usable
func (c *Config) Validate() error {
	if err := c.Mask.Validate(); err != nil {
		return err
	}
	if c.PCA.NumComponents < 0 {
		return fmt.Errorf("pca.numComponents must be non-negative, got %d", c.PCA.NumComponents)
	}
	if c.Processing.NumCores < 0 {
		return fmt.Errorf("processing.numCores must be non-negative, got %d", c.Processing.NumCores)
	}
	return nil
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
