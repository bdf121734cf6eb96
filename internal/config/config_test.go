package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"screenshotsvc/internal/model"
)

func TestLoadFromFileEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadFromFile("")
	if err != nil {
		t.Fatalf("LoadFromFile(\"\"): %v", err)
	}
	if *cfg != model.DefaultConfig() {
		t.Errorf("LoadFromFile(\"\") = %+v, want defaults", cfg)
	}
}

func TestLoadFromFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "pool_size: 5\nmax_concurrent_captures: 50\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.PoolSize != 5 {
		t.Errorf("PoolSize = %d, want 5", cfg.PoolSize)
	}
	if cfg.MaxConcurrentCaptures != 50 {
		t.Errorf("MaxConcurrentCaptures = %d, want 50", cfg.MaxConcurrentCaptures)
	}
	// Unset fields should fall back to defaults.
	if cfg.ScreenshotTimeout != model.DefaultConfig().ScreenshotTimeout {
		t.Errorf("ScreenshotTimeout = %v, want default", cfg.ScreenshotTimeout)
	}
}

func TestLoadFromFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{"pool_size": 7, "output_format": 1}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.PoolSize != 7 {
		t.Errorf("PoolSize = %d, want 7", cfg.PoolSize)
	}
	if cfg.OutputFormat != model.FormatJPEG {
		t.Errorf("OutputFormat = %v, want JPEG", cfg.OutputFormat)
	}
}

func TestLoadFromFileMissingFile(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestLoadFromFileRepairsZeroViewport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	// An explicit 0x0 viewport is replaced by the default during loading, so
	// the load succeeds with a valid viewport.
	content := "pool_size: 1\nviewport:\n  width: 0\n  height: 0\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	// applyDefaults should have repaired the zero viewport.
	if !cfg.Viewport.Valid() {
		t.Error("applyDefaults should replace an invalid viewport with the default")
	}
}

func TestValidate(t *testing.T) {
	valid := model.DefaultConfig()
	if err := Validate(valid); err != nil {
		t.Errorf("Validate(default) = %v, want nil", err)
	}

	cases := []struct {
		name   string
		mutate func(*model.Config)
	}{
		{"pool size zero", func(c *model.Config) { c.PoolSize = 0 }},
		{"max concurrent zero", func(c *model.Config) { c.MaxConcurrentCaptures = 0 }},
		{"timeout zero", func(c *model.Config) { c.ScreenshotTimeout = 0 }},
		{"viewport invalid", func(c *model.Config) { c.Viewport.Width = 0 }},
		{"retry attempts zero", func(c *model.Config) { c.Retry.MaxAttempts = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := model.DefaultConfig()
			tc.mutate(&cfg)
			if err := Validate(cfg); err == nil {
				t.Errorf("Validate() with %s should fail", tc.name)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SCREENSHOTSVC_POOL_SIZE", "42")
	t.Setenv("SCREENSHOTSVC_MAX_CONCURRENT", "99")
	t.Setenv("SCREENSHOTSVC_TIMEOUT_SECONDS", "15")
	t.Setenv("SCREENSHOTSVC_CHROME_PATH", "/opt/chrome")
	t.Setenv("SCREENSHOTSVC_USER_AGENT", "shotpool-test/1.0")

	cfg := model.DefaultConfig()
	LoadFromEnv(&cfg)

	if cfg.PoolSize != 42 {
		t.Errorf("PoolSize = %d, want 42", cfg.PoolSize)
	}
	if cfg.MaxConcurrentCaptures != 99 {
		t.Errorf("MaxConcurrentCaptures = %d, want 99", cfg.MaxConcurrentCaptures)
	}
	if cfg.ScreenshotTimeout != 15*time.Second {
		t.Errorf("ScreenshotTimeout = %v, want 15s", cfg.ScreenshotTimeout)
	}
	if cfg.ChromePath != "/opt/chrome" {
		t.Errorf("ChromePath = %q, want /opt/chrome", cfg.ChromePath)
	}
	if cfg.UserAgent != "shotpool-test/1.0" {
		t.Errorf("UserAgent = %q, want shotpool-test/1.0", cfg.UserAgent)
	}
}

func TestLoadFromEnvIgnoresUnsetVars(t *testing.T) {
	cfg := model.DefaultConfig()
	before := cfg
	LoadFromEnv(&cfg)
	if cfg != before {
		t.Error("LoadFromEnv with no env vars set should leave config unchanged")
	}
}
