// Package app wires the browser pool, capture pipeline, dispatcher, worker
// pool, and optional HTTP server together from a single model.Config. Every
// CLI subcommand builds one App and drives it; the wiring itself never
// varies between single/batch/server modes.
package app

import (
	"context"
	"fmt"

	browserpool "screenshotsvc/pkg/browser"

	capture "screenshotsvc/internal/browser"
	"screenshotsvc/internal/dispatcher"
	"screenshotsvc/internal/model"
	"screenshotsvc/internal/worker"
	"screenshotsvc/pkg/logger"
	"screenshotsvc/pkg/metrics"
)

// App bundles the running components backing a model.Config.
type App struct {
	Config     model.Config
	Log        *logger.Logger
	Pool       *browserpool.Pool
	Dispatcher *dispatcher.Dispatcher
	Metrics    *metrics.MetricsCollector
}

// New launches a browser pool sized from cfg and wires a dispatcher on top
// of it. Pass enableMetrics to also start a Prometheus collector (server
// and batch modes pass true; single-shot CLI use does not).
func New(ctx context.Context, cfg model.Config, log *logger.Logger, enableMetrics bool) (*App, error) {
	pool, err := browserpool.New(ctx, toBrowserConfig(cfg), log)
	if err != nil {
		return nil, fmt.Errorf("start browser pool: %w", err)
	}

	pipeline := capture.NewPipeline(cfg, log)
	d := dispatcher.New(cfg, pool, pipeline, log)

	var mc *metrics.MetricsCollector
	if enableMetrics {
		mc = metrics.NewMetricsCollector()
	}

	return &App{Config: cfg, Log: log, Pool: pool, Dispatcher: d, Metrics: mc}, nil
}

// toBrowserConfig maps the public Config record onto the browser pool's
// launch-time knobs.
func toBrowserConfig(cfg model.Config) browserpool.Config {
	bc := browserpool.DefaultConfig()
	bc.Size = cfg.PoolSize
	bc.ChromePath = cfg.ChromePath
	bc.UserAgent = cfg.UserAgent
	bc.MemoryLimitBytes = cfg.MemoryLimitBytes
	bc.Viewport = cfg.Viewport
	bc.BlockImages = cfg.Optimization.BlockImages
	bc.EnableJavaScript = cfg.Optimization.EnableJavaScript
	bc.DisableCSS = cfg.Optimization.DisableCSS
	bc.DisablePlugins = cfg.Optimization.DisablePlugins
	return bc
}

// NewBatchProcessor builds a worker pool of cfg.PoolSize workers driving this
// App's dispatcher, for batch-mode fan-out.
func (a *App) NewBatchProcessor(ctx context.Context) *worker.BatchProcessor {
	return worker.NewBatchProcessor(ctx, a.Config.PoolSize, a.Dispatcher, a.Log)
}

// Shutdown drains in-flight captures and closes the browser pool.
func (a *App) Shutdown(ctx context.Context) {
	if err := a.Dispatcher.Shutdown(ctx); err != nil {
		a.Log.Warn("dispatcher shutdown did not fully drain")
	}
	a.Pool.Shutdown(ctx)
	if a.Metrics != nil {
		a.Metrics.Close()
	}
}
