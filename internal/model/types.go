package model

import "time"

// Priority orders requests within the dispatcher's stable sort: Critical
// first, Low last, ties broken by arrival order.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "normal"
	}
}

// rank orders priorities for the dispatcher's stable sort: higher rank goes
// first.
func (p Priority) rank() int { return int(p) }

// Less reports whether p should be dispatched after other (i.e. p has lower
// priority and should sort later).
func (p Priority) Less(other Priority) bool { return p.rank() < other.rank() }

// OutputFormat is the encoded image format of a Result.
type OutputFormat int

const (
	FormatPNG OutputFormat = iota
	FormatJPEG
	FormatWebP
)

func (f OutputFormat) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatJPEG:
		return "jpeg"
	case FormatWebP:
		return "webp"
	default:
		return "png"
	}
}

func (f OutputFormat) Extension() string {
	switch f {
	case FormatJPEG:
		return "jpg"
	case FormatWebP:
		return "webp"
	default:
		return "png"
	}
}

// Viewport describes a browser render surface. Width and height must be > 0.
type Viewport struct {
	Width             int64   `json:"width" yaml:"width"`
	Height            int64   `json:"height" yaml:"height"`
	DeviceScaleFactor float64 `json:"device_scale_factor" yaml:"device_scale_factor"`
	Mobile            bool    `json:"mobile" yaml:"mobile"`
}

// DefaultViewport matches the original implementation's 1920x1080 @1.0 DPR
// non-mobile default.
func DefaultViewport() Viewport {
	return Viewport{Width: 1920, Height: 1080, DeviceScaleFactor: 1.0, Mobile: false}
}

// Valid reports whether the viewport satisfies its width/height invariant.
func (v Viewport) Valid() bool { return v.Width > 0 && v.Height > 0 }

// OptimizationSettings are the capture-time page/browser behavior knobs.
type OptimizationSettings struct {
	BlockAds             bool `json:"block_ads" yaml:"block_ads"`
	BlockTrackers        bool `json:"block_trackers" yaml:"block_trackers"`
	BlockImages          bool `json:"block_images" yaml:"block_images"`
	EnableJavaScript     bool `json:"enable_javascript" yaml:"enable_javascript"`
	WaitForNetworkIdle   bool `json:"wait_for_network_idle" yaml:"wait_for_network_idle"`
	DisableCSS           bool `json:"disable_css" yaml:"disable_css"`
	DisablePlugins       bool `json:"disable_plugins" yaml:"disable_plugins"`
}

// DefaultOptimizationSettings matches the original implementation's defaults.
func DefaultOptimizationSettings() OptimizationSettings {
	return OptimizationSettings{
		BlockAds:           true,
		BlockTrackers:      true,
		BlockImages:        false,
		EnableJavaScript:   true,
		WaitForNetworkIdle: false,
		DisableCSS:         false,
		DisablePlugins:     true,
	}
}

// RetryConfig controls the dispatcher's exponential-backoff retry loop.
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts" yaml:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay" yaml:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay" yaml:"max_delay"`
	Multiplier   float64       `json:"multiplier" yaml:"multiplier"`
}

// DefaultRetryConfig matches the original implementation's defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// Delay returns the backoff delay for a 0-indexed attempt, capped at MaxDelay.
func (r RetryConfig) Delay(attempt int) time.Duration {
	d := float64(r.InitialDelay)
	for i := 0; i < attempt; i++ {
		d *= r.Multiplier
	}
	if d > float64(r.MaxDelay) {
		return r.MaxDelay
	}
	return time.Duration(d)
}

// Config is the full set of knobs controlling pool size, concurrency,
// timeouts, retry behavior, output format, and optimization flags.
type Config struct {
	PoolSize             int                  `json:"pool_size" yaml:"pool_size"`
	MaxConcurrentCaptures int                 `json:"max_concurrent_captures" yaml:"max_concurrent_captures"`
	ScreenshotTimeout    time.Duration        `json:"screenshot_timeout" yaml:"screenshot_timeout"`
	Retry                RetryConfig          `json:"retry" yaml:"retry"`
	OutputFormat         OutputFormat         `json:"output_format" yaml:"output_format"`
	Viewport             Viewport             `json:"viewport" yaml:"viewport"`
	Optimization         OptimizationSettings `json:"optimization" yaml:"optimization"`
	ChromePath           string               `json:"chrome_path,omitempty" yaml:"chrome_path,omitempty"`
	UserAgent            string               `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	MemoryLimitBytes     int64                `json:"memory_limit_bytes,omitempty" yaml:"memory_limit_bytes,omitempty"`
}

// DefaultConfig matches the original implementation's published defaults:
// pool_size=10, max_concurrent=200, timeout=30s, retry=3, viewport
// 1920x1080 DPR 1.0 non-mobile, format PNG, memory_limit=1 GiB.
func DefaultConfig() Config {
	return Config{
		PoolSize:              10,
		MaxConcurrentCaptures: 200,
		ScreenshotTimeout:     30 * time.Second,
		Retry:                 DefaultRetryConfig(),
		OutputFormat:          FormatPNG,
		Viewport:              DefaultViewport(),
		Optimization:          DefaultOptimizationSettings(),
		MemoryLimitBytes:      1 << 30,
	}
}

// Request is a single capture request. RetryCount is mutated by the
// dispatcher as attempts are made; every other field is set by the caller and
// left untouched.
type Request struct {
	ID              string        `json:"id"`
	URL             string        `json:"url"`
	Priority        Priority      `json:"priority"`
	CustomViewport  *Viewport     `json:"custom_viewport,omitempty"`
	WaitTime        time.Duration `json:"wait_time,omitempty"`
	ElementSelector string        `json:"element_selector,omitempty"`
	FullPage        bool          `json:"full_page"`
	RetryCount      int           `json:"retry_count"`
}

// Metadata carries best-effort context about how a Result was produced.
type Metadata struct {
	ViewportUsed    Viewport `json:"viewport_used"`
	PageTitle       string   `json:"page_title,omitempty"`
	FinalURL        string   `json:"final_url"`
	FileSizeBytes   int64    `json:"file_size_bytes"`
	BrowserInstance int      `json:"browser_instance"`
}

// Result is the terminal outcome of a Request: created once, never mutated.
type Result struct {
	RequestID    string           `json:"request_id"`
	URL          string           `json:"url"`
	ImageData    []byte           `json:"image_data,omitempty"`
	Format       OutputFormat     `json:"format"`
	Timestamp    time.Time        `json:"timestamp"`
	Elapsed      time.Duration    `json:"elapsed"`
	Success      bool             `json:"success"`
	Error        *ScreenshotError `json:"error,omitempty"`
	Metadata     Metadata         `json:"metadata"`
}
