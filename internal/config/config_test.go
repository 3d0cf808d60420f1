package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scrollshot.yaml")
	data := []byte(`
browser:
  memory_limit: 536870912
encode:
  format: jpeg
  quality: 0.8
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := cfg.Browser.MemoryLimit, int64(536870912); got != want {
		t.Errorf("memory_limit = %d, want %d", got, want)
	}
	if got, want := cfg.Browser.RecycleInterval, 4*time.Hour; got != want {
		t.Errorf("recycle_interval default = %v, want %v", got, want)
	}
	if got, want := cfg.Encode.Format, "jpeg"; got != want {
		t.Errorf("format = %q, want %q", got, want)
	}
	if got, want := cfg.Encode.Quality, 0.8; got != want {
		t.Errorf("quality = %v, want %v", got, want)
	}
	if got, want := cfg.Capture.SettleDelay, 350*time.Millisecond; got != want {
		t.Errorf("settle_delay default = %v, want %v", got, want)
	}
	if got, want := cfg.Retry.MaxAttempts, 3; got != want {
		t.Errorf("max_attempts default = %d, want %d", got, want)
	}
}

func TestLoadFileBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("browser: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDefaultQualityClamp(t *testing.T) {
	cfg := &Config{Encode: EncodeConfig{Quality: 1.5}}
	cfg.ApplyDefaults()
	if got, want := cfg.Encode.Quality, 0.92; got != want {
		t.Errorf("quality = %v, want %v", got, want)
	}
}
