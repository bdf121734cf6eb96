package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"screenshotsvc/internal/model"
	"screenshotsvc/pkg/logger"
)

// ChangeCallback is invoked with the reloaded config after a debounced
// filesystem change.
type ChangeCallback func(newCfg *model.Config)

// Reloader watches a config file and reloads it on change, applying only the
// fields that are safe to change without restarting the browser pool:
// retry policy, timeout, output format, optimization flags, and max
// concurrent captures. Pool size,
// chrome path, and user agent require a process restart and are frozen at
// startup.
type Reloader struct {
	configPath string
	log        *logger.Logger

	mu     sync.RWMutex
	config *model.Config

	cbMu      sync.Mutex
	callbacks []ChangeCallback

	debounceMu    sync.Mutex
	debounceDelay time.Duration
	debounceTimer *time.Timer

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewReloader builds a reloader for configPath. Call Load before Start to
// populate the initial config.
func NewReloader(configPath string, log *logger.Logger) *Reloader {
	return &Reloader{
		configPath:    configPath,
		log:           log,
		debounceDelay: time.Second,
	}
}

// OnChange registers a callback fired after every successful reload.
func (r *Reloader) OnChange(cb ChangeCallback) {
	r.cbMu.Lock()
	defer r.cbMu.Unlock()
	r.callbacks = append(r.callbacks, cb)
}

// GetConfig returns the current effective config.
func (r *Reloader) GetConfig() *model.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config
}

// Load performs the initial config load.
func (r *Reloader) Load() error {
	cfg, err := LoadFromFile(r.configPath)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.config = cfg
	r.mu.Unlock()
	return nil
}

// Start begins watching configPath's directory (to catch atomic
// rewrite-then-rename editor saves) for changes.
func (r *Reloader) Start() error {
	if r.ctx != nil {
		return fmt.Errorf("reloader already started")
	}
	if r.config == nil {
		if err := r.Load(); err != nil {
			return err
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	r.watcher = watcher

	dir := filepath.Dir(r.configPath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory %s: %w", dir, err)
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.wg.Add(1)
	go r.watch()

	r.log.Info("config reloader started", zap.String("path", r.configPath))
	return nil
}

// Stop cancels the watch loop and waits for it to exit.
func (r *Reloader) Stop() error {
	if r.ctx == nil {
		return nil
	}
	r.cancel()
	if r.watcher != nil {
		r.watcher.Close()
	}
	r.debounceMu.Lock()
	if r.debounceTimer != nil {
		r.debounceTimer.Stop()
	}
	r.debounceMu.Unlock()
	r.wg.Wait()
	return nil
}

func (r *Reloader) watch() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(r.configPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				r.triggerReload()
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.log.Error("config watcher error", zap.Error(err))
		}
	}
}

func (r *Reloader) triggerReload() {
	r.debounceMu.Lock()
	defer r.debounceMu.Unlock()
	if r.debounceTimer != nil {
		r.debounceTimer.Stop()
	}
	r.debounceTimer = time.AfterFunc(r.debounceDelay, r.reload)
}

func (r *Reloader) reload() {
	reloaded, err := LoadFromFile(r.configPath)
	if err != nil {
		r.log.Error("config reload failed", zap.Error(err))
		return
	}

	r.mu.Lock()
	current := r.config
	merged := *current
	applySafeReloadFields(&merged, reloaded)
	r.config = &merged
	r.mu.Unlock()

	r.log.Info("config reloaded", zap.String("path", r.configPath))

	r.cbMu.Lock()
	callbacks := make([]ChangeCallback, len(r.callbacks))
	copy(callbacks, r.callbacks)
	r.cbMu.Unlock()

	for _, cb := range callbacks {
		cb(&merged)
	}
}

// applySafeReloadFields copies only the fields that don't require a browser
// pool restart from reloaded into dst.
func applySafeReloadFields(dst *model.Config, reloaded *model.Config) {
	dst.MaxConcurrentCaptures = reloaded.MaxConcurrentCaptures
	dst.ScreenshotTimeout = reloaded.ScreenshotTimeout
	dst.Retry = reloaded.Retry
	dst.OutputFormat = reloaded.OutputFormat
	dst.Optimization = reloaded.Optimization
}
