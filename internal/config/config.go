// Package config handles probe configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all settings of a probe run.
type Config struct {
	Log   LogConfig   `yaml:"log"`
	Part  PartConfig  `yaml:"part"`
	Probe ProbeConfig `yaml:"probe"`
	Field FieldConfig `yaml:"field"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// PartConfig picks the solid to mesh and at what resolution.
type PartConfig struct {
	Shape string  `yaml:"shape"`
	Size  float64 `yaml:"size"`
	Cells int     `yaml:"cells"`
}

// ProbeConfig shapes the sample grid around the part. Padding is the
// fraction of each axis size added on both sides, Output an optional
// JSON file for the samples.
type ProbeConfig struct {
	Grid    int     `yaml:"grid"`
	Padding float64 `yaml:"padding"`
	Output  string  `yaml:"output"`
}

// FieldConfig tunes distance evaluation. A zero tolerance keeps the
// field default.
type FieldConfig struct {
	Tolerance float64 `yaml:"tolerance"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
		Part: PartConfig{
			Shape: "plate",
			Size:  40,
			Cells: 120,
		},
		Probe: ProbeConfig{
			Grid:    16,
			Padding: 0.25,
		},
	}
}

// Load reads configuration from path, or from the first standard
// location when path is empty. Values in the file override defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = findConfigFile()
	}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// findConfigFile looks for config in the standard locations.
func findConfigFile() string {
	candidates := []string{
		"xylem.yaml",
		filepath.Join("config", "xylem.yaml"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
