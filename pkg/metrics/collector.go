// Package metrics provides Prometheus-compatible metrics collection for the
// screenshot service: capture throughput, latency, and browser pool health.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector holds all application metrics with Prometheus compatibility.
type MetricsCollector struct {
	ScreenshotsTotal  prometheus.Counter
	ScreenshotErrors  *prometheus.CounterVec // labeled by error kind
	ScreenshotRate    prometheus.Gauge       // captures per minute
	capturesPerMin    *RateCalculator

	CaptureDuration prometheus.Histogram
	FormatDuration  *prometheus.HistogramVec // labeled by output format

	PoolTotal   prometheus.Gauge
	PoolHealthy prometheus.Gauge
	PoolBusy    prometheus.Gauge
	PoolFailed  prometheus.Gauge
	QueueSize   prometheus.Gauge

	SuccessRate        prometheus.Gauge
	ErrorRate          prometheus.Gauge
	CircuitBreakerOpen prometheus.Gauge

	mu           sync.RWMutex
	startTime    time.Time
	totalCount   int64
	successCount int64
	errorCount   int64
}

// RateCalculator calculates a per-minute rate using a sliding window.
type RateCalculator struct {
	mu      sync.Mutex
	hits    []time.Time
	window  time.Duration
	stopCh  chan struct{}
	current float64
}

// NewRateCalculator creates a new rate calculator with the specified window.
func NewRateCalculator(window time.Duration) *RateCalculator {
	rc := &RateCalculator{
		hits:   make([]time.Time, 0, 256),
		window: window,
		stopCh: make(chan struct{}),
	}
	go rc.cleanupLoop()
	return rc
}

// Record records one event.
func (rc *RateCalculator) Record() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.hits = append(rc.hits, time.Now())
}

// GetRate returns the current rate, scaled to events per minute.
func (rc *RateCalculator) GetRate() float64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.cleanup(time.Now())
	return float64(len(rc.hits)) * (60.0 / rc.window.Seconds())
}

func (rc *RateCalculator) cleanup(now time.Time) {
	cutoff := now.Add(-rc.window)
	idx := len(rc.hits)
	for i, t := range rc.hits {
		if t.After(cutoff) {
			idx = i
			break
		}
	}
	rc.hits = rc.hits[idx:]
}

func (rc *RateCalculator) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rc.mu.Lock()
			rc.cleanup(time.Now())
			rc.current = float64(len(rc.hits)) * (60.0 / rc.window.Seconds())
			rc.mu.Unlock()
		case <-rc.stopCh:
			return
		}
	}
}

// Stop stops the rate calculator's background cleanup.
func (rc *RateCalculator) Stop() {
	close(rc.stopCh)
}

const namespace = "shotpool"

// NewMetricsCollector creates and registers a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	mc := &MetricsCollector{
		startTime:      time.Now(),
		capturesPerMin: NewRateCalculator(time.Minute),
	}

	mc.ScreenshotsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "screenshots_total",
		Help:      "Total number of screenshot captures attempted",
	})

	mc.ScreenshotErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "screenshot_errors_total",
		Help:      "Total number of failed captures by error kind",
	}, []string{"kind"})

	mc.ScreenshotRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "screenshot_rate_per_minute",
		Help:      "Current capture rate per minute",
	})

	mc.CaptureDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "capture_duration_seconds",
		Help:      "Capture latency distribution",
		Buckets:   prometheus.DefBuckets,
	})

	mc.FormatDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "capture_duration_by_format_seconds",
		Help:      "Capture latency distribution by output format",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30},
	}, []string{"format"})

	mc.PoolTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "pool_instances_total", Help: "Total browser instances in the pool",
	})
	mc.PoolHealthy = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "pool_instances_healthy", Help: "Healthy browser instances",
	})
	mc.PoolBusy = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "pool_instances_busy", Help: "Busy browser instances",
	})
	mc.PoolFailed = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "pool_instances_failed", Help: "Failed browser instances pending restart",
	})
	mc.QueueSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "queue_size", Help: "Requests currently admitted to the dispatcher",
	})

	mc.SuccessRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "success_rate", Help: "Fraction of captures that succeeded (0-1)",
	})
	mc.ErrorRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "error_rate", Help: "Fraction of captures that failed (0-1)",
	})
	mc.CircuitBreakerOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "circuit_breaker_open", Help: "1 if the capture circuit breaker is open, else 0",
	})

	mc.register()
	go mc.updateLoop()

	return mc
}

func (mc *MetricsCollector) register() {
	prometheus.MustRegister(
		mc.ScreenshotsTotal,
		mc.ScreenshotErrors,
		mc.ScreenshotRate,
		mc.CaptureDuration,
		mc.FormatDuration,
		mc.PoolTotal,
		mc.PoolHealthy,
		mc.PoolBusy,
		mc.PoolFailed,
		mc.QueueSize,
		mc.SuccessRate,
		mc.ErrorRate,
		mc.CircuitBreakerOpen,
	)
}

func (mc *MetricsCollector) updateLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		mc.updateCalculatedMetrics()
	}
}

func (mc *MetricsCollector) updateCalculatedMetrics() {
	mc.mu.RLock()
	total := mc.totalCount
	success := mc.successCount
	errs := mc.errorCount
	mc.mu.RUnlock()

	if total > 0 {
		mc.SuccessRate.Set(float64(success) / float64(total))
		mc.ErrorRate.Set(float64(errs) / float64(total))
	}
	mc.ScreenshotRate.Set(mc.capturesPerMin.GetRate())
}

// RecordCapture records the outcome and latency of one capture attempt.
func (mc *MetricsCollector) RecordCapture(success bool, format string, errKind string, elapsed time.Duration) {
	mc.ScreenshotsTotal.Inc()
	mc.capturesPerMin.Record()
	mc.CaptureDuration.Observe(elapsed.Seconds())
	mc.FormatDuration.WithLabelValues(format).Observe(elapsed.Seconds())

	mc.mu.Lock()
	mc.totalCount++
	if success {
		mc.successCount++
	} else {
		mc.errorCount++
	}
	mc.mu.Unlock()

	if !success {
		mc.ScreenshotErrors.WithLabelValues(errKind).Inc()
	}
}

// SetPoolStats reflects a browser.Pool.Stats() snapshot into gauges.
func (mc *MetricsCollector) SetPoolStats(total, healthy, busy, failed int) {
	mc.PoolTotal.Set(float64(total))
	mc.PoolHealthy.Set(float64(healthy))
	mc.PoolBusy.Set(float64(busy))
	mc.PoolFailed.Set(float64(failed))
}

// SetQueueSize reflects the dispatcher's current admission count.
func (mc *MetricsCollector) SetQueueSize(size int) {
	mc.QueueSize.Set(float64(size))
}

// SetCircuitBreakerOpen reflects whether the dispatcher's breaker is tripped.
func (mc *MetricsCollector) SetCircuitBreakerOpen(open bool) {
	if open {
		mc.CircuitBreakerOpen.Set(1)
	} else {
		mc.CircuitBreakerOpen.Set(0)
	}
}

// GetSnapshot returns a point-in-time metrics snapshot.
func (mc *MetricsCollector) GetSnapshot() Snapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return Snapshot{
		Timestamp:     time.Now(),
		TotalCaptures: mc.totalCount,
		SuccessCount:  mc.successCount,
		ErrorCount:    mc.errorCount,
		RatePerMinute: mc.capturesPerMin.GetRate(),
		SuccessRate:   calculateRate(mc.successCount, mc.totalCount),
		ErrorRate:     calculateRate(mc.errorCount, mc.totalCount),
		UptimeSeconds: time.Since(mc.startTime).Seconds(),
	}
}

// Snapshot is a point-in-time metrics snapshot, served as JSON over the
// websocket stats stream.
type Snapshot struct {
	Timestamp     time.Time `json:"timestamp"`
	TotalCaptures int64     `json:"total_captures"`
	SuccessCount  int64     `json:"success_count"`
	ErrorCount    int64     `json:"error_count"`
	RatePerMinute float64   `json:"rate_per_minute"`
	SuccessRate   float64   `json:"success_rate"`
	ErrorRate     float64   `json:"error_rate"`
	UptimeSeconds float64   `json:"uptime_seconds"`
}

func calculateRate(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}

// MetricsHandler returns the Prometheus scrape handler.
func (mc *MetricsCollector) MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// JSONHandler serves the current snapshot as JSON.
func (mc *MetricsCollector) JSONHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mc.GetSnapshot())
	}
}

// Close releases background resources.
func (mc *MetricsCollector) Close() {
	if mc.capturesPerMin != nil {
		mc.capturesPerMin.Stop()
	}
}

var (
	globalCollector *MetricsCollector
	globalOnce      sync.Once
)

// GetGlobalCollector returns the process-wide metrics collector, creating it
// on first use.
func GetGlobalCollector() *MetricsCollector {
	globalOnce.Do(func() {
		globalCollector = NewMetricsCollector()
	})
	return globalCollector
}

// SetGlobalCollector overrides the global collector, for tests.
func SetGlobalCollector(mc *MetricsCollector) {
	globalCollector = mc
}
