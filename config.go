package scrollshot

import "github.com/hazyhaar/scrollshot/internal/config"

// Config is the top-level scrollshot configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig = config.BrowserConfig

// CaptureConfig controls the scroll-and-raster loop.
type CaptureConfig = config.CaptureConfig

// EncodeConfig controls the output artifact.
type EncodeConfig = config.EncodeConfig

// RetryConfig controls per-step retry behavior.
type RetryConfig = config.RetryConfig

// ServerConfig controls the HTTP API.
type ServerConfig = config.ServerConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return config.Default()
}
