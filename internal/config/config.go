// Package config handles scrollshot configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level scrollshot configuration.
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Capture CaptureConfig `yaml:"capture"`
	Encode  EncodeConfig  `yaml:"encode"`
	Retry   RetryConfig   `yaml:"retry"`
	Server  ServerConfig  `yaml:"server"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote          string        `yaml:"remote"`
	MemoryLimit     int64         `yaml:"memory_limit"`
	RecycleInterval time.Duration `yaml:"recycle_interval"`
	NavTimeout      time.Duration `yaml:"nav_timeout"`
}

// CaptureConfig controls the scroll-and-raster loop.
type CaptureConfig struct {
	SettleDelay    time.Duration `yaml:"settle_delay"`
	StepTimeout    time.Duration `yaml:"step_timeout"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
	DisableBatch   bool          `yaml:"disable_batch"`
}

// EncodeConfig controls the output artifact.
type EncodeConfig struct {
	Format           string  `yaml:"format"`  // png | jpeg | pdf
	Quality          float64 `yaml:"quality"` // 0..1, jpeg only
	FilenameTemplate string  `yaml:"filename_template"`
}

// RetryConfig controls per-step retry behavior.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	Multiplier  float64       `yaml:"multiplier"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills zero values in place.
func (c *Config) ApplyDefaults() {
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Browser.NavTimeout <= 0 {
		c.Browser.NavTimeout = 30 * time.Second
	}
	if c.Capture.SettleDelay <= 0 {
		c.Capture.SettleDelay = 350 * time.Millisecond
	}
	if c.Capture.StepTimeout <= 0 {
		c.Capture.StepTimeout = 10 * time.Second
	}
	if c.Capture.SessionTimeout <= 0 {
		c.Capture.SessionTimeout = 5 * time.Minute
	}
	if c.Encode.Format == "" {
		c.Encode.Format = "png"
	}
	if c.Encode.Quality <= 0 || c.Encode.Quality > 1 {
		c.Encode.Quality = 0.92
	}
	if c.Encode.FilenameTemplate == "" {
		c.Encode.FilenameTemplate = "capture-{timestamp}"
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.BaseDelay <= 0 {
		c.Retry.BaseDelay = 250 * time.Millisecond
	}
	if c.Retry.Multiplier <= 0 {
		c.Retry.Multiplier = 2
	}
	if c.Server.Listen == "" {
		c.Server.Listen = ":7420"
	}
}
