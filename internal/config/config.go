// Package config loads and validates the screenshot service's Config from a
// YAML or JSON file, with environment-variable overrides read by
// LoadFromEnv. CLI-flag binding through viper lives in internal/cli.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"screenshotsvc/internal/model"
)

// LoadFromFile reads a config document at path, detecting YAML vs JSON by
// extension, applies defaults for any unset fields, and validates the
// result. Unknown fields are ignored; missing fields take defaults.
func LoadFromFile(path string) (*model.Config, error) {
	cfg := model.DefaultConfig()

	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// yaml.Unmarshal also accepts JSON, since JSON is a YAML subset, but we
	// branch explicitly so .json files get proper strict-mode errors.
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := unmarshalJSONConfig(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse json config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse yaml config: %w", err)
		}
	}

	applyDefaults(&cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults fills any zero-valued field left unset by a partial config
// document with the published default.
func applyDefaults(c *model.Config) {
	defaults := model.DefaultConfig()

	if c.PoolSize <= 0 {
		c.PoolSize = defaults.PoolSize
	}
	if c.MaxConcurrentCaptures <= 0 {
		c.MaxConcurrentCaptures = defaults.MaxConcurrentCaptures
	}
	if c.ScreenshotTimeout <= 0 {
		c.ScreenshotTimeout = defaults.ScreenshotTimeout
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry = defaults.Retry
	}
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		c.Viewport = defaults.Viewport
	}
	if c.MemoryLimitBytes <= 0 {
		c.MemoryLimitBytes = defaults.MemoryLimitBytes
	}
}

// Validate enforces the invariants from the Config data model: pool size and
// concurrency must be at least 1, timeout and viewport dimensions must be
// positive.
func Validate(c model.Config) error {
	if c.PoolSize < 1 {
		return fmt.Errorf("pool_size must be >= 1, got %d", c.PoolSize)
	}
	if c.MaxConcurrentCaptures < 1 {
		return fmt.Errorf("max_concurrent_captures must be >= 1, got %d", c.MaxConcurrentCaptures)
	}
	if c.ScreenshotTimeout <= 0 {
		return fmt.Errorf("screenshot_timeout must be > 0")
	}
	if !c.Viewport.Valid() {
		return fmt.Errorf("viewport width and height must be > 0")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be >= 1")
	}
	return nil
}

// LoadFromEnv applies SCREENSHOTSVC_-prefixed environment overrides for the
// handful of settings operators most commonly tune without editing the
// config file.
func LoadFromEnv(c *model.Config) {
	if v := os.Getenv("SCREENSHOTSVC_POOL_SIZE"); v != "" {
		if n, err := parseIntEnv(v); err == nil {
			c.PoolSize = n
		}
	}
	if v := os.Getenv("SCREENSHOTSVC_MAX_CONCURRENT"); v != "" {
		if n, err := parseIntEnv(v); err == nil {
			c.MaxConcurrentCaptures = n
		}
	}
	if v := os.Getenv("SCREENSHOTSVC_TIMEOUT_SECONDS"); v != "" {
		if n, err := parseIntEnv(v); err == nil {
			c.ScreenshotTimeout = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("SCREENSHOTSVC_CHROME_PATH"); v != "" {
		c.ChromePath = v
	}
	if v := os.Getenv("SCREENSHOTSVC_USER_AGENT"); v != "" {
		c.UserAgent = v
	}
}

func parseIntEnv(v string) (int, error) {
	var n int
	_, err := fmt.Sscanf(v, "%d", &n)
	return n, err
}
