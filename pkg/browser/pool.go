// Package browser owns the pool of long-lived headless Chrome processes that
// back every capture. An instance is a stable slot (0..P-1) that owns exactly
// one browser process at a time; restarting an instance replaces the process
// but keeps the slot's id, debug port, and scratch directories.
package browser

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"screenshotsvc/internal/model"
	"screenshotsvc/pkg/logger"
)

// Status is the lifecycle state of a single browser instance.
type Status int

const (
	StatusHealthy Status = iota
	StatusBusy
	StatusUnresponsive
	StatusRestarting
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusBusy:
		return "busy"
	case StatusUnresponsive:
		return "unresponsive"
	case StatusRestarting:
		return "restarting"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config controls pool sizing, launch arguments, and health-check cadence.
type Config struct {
	Size               int
	Headless           bool
	ChromePath         string
	UserAgent          string
	MemoryLimitBytes   int64
	Viewport           model.Viewport
	BlockImages        bool
	EnableJavaScript   bool
	DisableCSS         bool
	DisablePlugins     bool
	LaunchStagger      time.Duration
	QuickCheckInterval time.Duration
	DeepCheckInterval  time.Duration
	MaxInstanceAge     time.Duration
	MaxFailureCount    int64
	StuckBusyThreshold time.Duration
	DeepIdleThreshold  time.Duration
	BaseDebugPort      int
}

// DefaultConfig mirrors the values used throughout the original implementation.
func DefaultConfig() Config {
	return Config{
		Size:               10,
		Headless:           true,
		EnableJavaScript:   true,
		DisablePlugins:     true,
		Viewport:           model.DefaultViewport(),
		LaunchStagger:      500 * time.Millisecond,
		QuickCheckInterval: 15 * time.Second,
		DeepCheckInterval:  60 * time.Second,
		MaxInstanceAge:     time.Hour,
		MaxFailureCount:    10,
		StuckBusyThreshold: 5 * time.Minute,
		DeepIdleThreshold:  10 * time.Minute,
		BaseDebugPort:      9222,
	}
}

// Instance is one managed Chrome process and its CDP event loop.
type Instance struct {
	id          int
	debugPort   int
	userDataDir string
	tempDir     string
	runnerDir   string

	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu              sync.Mutex
	status          Status
	createdAt       time.Time
	lastUsed        time.Time
	screenshotCount int64
	failureCount    int64
}

// ID returns the instance's stable slot index.
func (i *Instance) ID() int { return i.id }

// Context returns the browser-level context; pipelines derive page (tab)
// contexts from it with chromedp.NewContext.
func (i *Instance) Context() context.Context { return i.browserCtx }

// NewPage creates a fresh tab against this instance's browser.
func (i *Instance) NewPage() (context.Context, context.CancelFunc) {
	return chromedp.NewContext(i.browserCtx)
}

// IsAlive reports whether the CDP event-loop task backing this instance is
// still running. This is the sole liveness oracle; the OS process is never
// polled directly.
func (i *Instance) IsAlive() bool {
	return i.browserCtx.Err() == nil
}

func (i *Instance) snapshot() (Status, time.Time, time.Time, int64, int64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status, i.createdAt, i.lastUsed, i.screenshotCount, i.failureCount
}

func (i *Instance) markBusy() {
	i.mu.Lock()
	i.status = StatusBusy
	i.lastUsed = time.Now()
	i.mu.Unlock()
}

func (i *Instance) markHealthy() {
	i.mu.Lock()
	i.status = StatusHealthy
	i.lastUsed = time.Now()
	i.mu.Unlock()
}

// RecordCapture increments the instance's cumulative screenshot counter.
func (i *Instance) RecordCapture() {
	i.mu.Lock()
	i.screenshotCount++
	i.mu.Unlock()
}

// RecordFailure increments the instance's cumulative failure counter without
// changing its status (used by the capture pipeline when a failed capture
// finds the instance no longer alive).
func (i *Instance) RecordFailure() {
	i.mu.Lock()
	i.failureCount++
	i.mu.Unlock()
}

// Pool owns P browser instances and grants short-lived exclusive leases.
type Pool struct {
	cfg Config
	log *logger.Logger

	mu        sync.Mutex
	instances []*Instance
	available []int // FIFO queue of instance ids

	sem *semaphore.Weighted

	shuttingDown int32

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates and launches a pool of cfg.Size instances, staggering launches
// by cfg.LaunchStagger, then starts the quick/deep background health checks.
func New(ctx context.Context, cfg Config, log *logger.Logger) (*Pool, error) {
	if cfg.Size < 1 {
		return nil, fmt.Errorf("browser pool size must be >= 1")
	}
	p := &Pool{
		cfg:    cfg,
		log:    log,
		sem:    semaphore.NewWeighted(int64(cfg.Size)),
		stopCh: make(chan struct{}),
	}

	for id := 0; id < cfg.Size; id++ {
		inst, err := p.launch(ctx, id)
		if err != nil {
			p.closeInstances()
			return nil, fmt.Errorf("%w: instance %d: %v", model.ErrBrowserLaunchFailed, id, err)
		}
		p.instances = append(p.instances, inst)
		p.available = append(p.available, id)
		if id < cfg.Size-1 && cfg.LaunchStagger > 0 {
			time.Sleep(cfg.LaunchStagger)
		}
	}

	p.wg.Add(2)
	go p.quickHealthLoop()
	go p.deepHealthLoop()

	return p, nil
}

func scratchDirs(id int) (userData, temp, runner string) {
	base := fmt.Sprintf("chromium-%d-%d", os.Getpid(), id)
	root := os.TempDir()
	return filepath.Join(root, base, "user-data"),
		filepath.Join(root, base, "temp"),
		filepath.Join(root, base, "runner")
}

func (p *Pool) launch(ctx context.Context, id int) (*Instance, error) {
	userDataDir, tempDir, runnerDir := scratchDirs(id)
	for _, d := range []string{userDataDir, tempDir, runnerDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create scratch dir %s: %w", d, err)
		}
	}

	port := p.cfg.BaseDebugPort + id

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.cfg.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("mute-audio", true),
		chromedp.UserDataDir(userDataDir),
		chromedp.Flag("remote-debugging-port", fmt.Sprintf("%d", port)),
		chromedp.WindowSize(int(p.cfg.Viewport.Width), int(p.cfg.Viewport.Height)),
		chromedp.ModifyCmdFunc(func(cmd *exec.Cmd) {
			cmd.Env = append(os.Environ(), "TMPDIR="+tempDir)
		}),
	)

	if p.cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(p.cfg.ChromePath))
	}
	if p.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(p.cfg.UserAgent))
	}
	if p.cfg.MemoryLimitBytes > 0 {
		opts = append(opts, chromedp.Flag("js-flags", fmt.Sprintf("--max-old-space-size=%d", p.cfg.MemoryLimitBytes/1024/1024)))
	}
	if p.cfg.BlockImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}
	if !p.cfg.EnableJavaScript {
		opts = append(opts, chromedp.Flag("disable-javascript", true))
	}
	if p.cfg.DisablePlugins {
		opts = append(opts, chromedp.Flag("disable-plugins", true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Force the browser process to start now rather than lazily on first use,
	// so a launch failure surfaces here instead of on the first real lease.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, err
	}

	now := time.Now()
	return &Instance{
		id:            id,
		debugPort:     port,
		userDataDir:   userDataDir,
		tempDir:       tempDir,
		runnerDir:     runnerDir,
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		status:        StatusHealthy,
		createdAt:     now,
		lastUsed:      now,
	}, nil
}

func (p *Pool) closeInstances() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, inst := range p.instances {
		inst.browserCancel()
		inst.allocCancel()
	}
}

// restart tears down inst's process and launches a replacement with the same
// slot id, debug port, and scratch directories.
func (p *Pool) restart(ctx context.Context, inst *Instance) error {
	inst.mu.Lock()
	inst.status = StatusRestarting
	inst.mu.Unlock()

	inst.browserCancel()
	inst.allocCancel()

	replacement, err := p.launch(ctx, inst.id)
	if err != nil {
		inst.mu.Lock()
		inst.status = StatusFailed
		inst.mu.Unlock()
		return err
	}

	inst.mu.Lock()
	inst.allocCtx = replacement.allocCtx
	inst.allocCancel = replacement.allocCancel
	inst.browserCtx = replacement.browserCtx
	inst.browserCancel = replacement.browserCancel
	inst.status = StatusHealthy
	inst.createdAt = replacement.createdAt
	inst.lastUsed = replacement.lastUsed
	inst.failureCount = 0
	inst.mu.Unlock()

	return nil
}

// Acquire leases one healthy instance, blocking until one is available or ctx
// is canceled. The returned instance must be released with Release on every
// exit path.
func (p *Pool) Acquire(ctx context.Context) (*Instance, error) {
	if p.isShuttingDown() {
		return nil, model.ErrBrowserUnavailable
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrBrowserUnavailable, err)
	}

	const maxAttempts = 3
	for attempt := 0; attempt < maxAttempts; attempt++ {
		id, ok := p.popAvailable()
		if !ok {
			break
		}
		inst := p.instances[id]

		if inst.IsAlive() {
			status, _, _, _, _ := inst.snapshot()
			if status == StatusHealthy {
				inst.markBusy()
				return inst, nil
			}
		}

		if err := p.restart(ctx, inst); err == nil {
			inst.markBusy()
			return inst, nil
		}
		p.pushAvailable(id)
	}

	p.sem.Release(1)
	return nil, model.ErrBrowserUnavailable
}

// Release returns a leased instance to the pool.
func (p *Pool) Release(inst *Instance) {
	if inst == nil {
		return
	}
	inst.markHealthy()
	p.pushAvailable(inst.id)
	p.sem.Release(1)
}

func (p *Pool) popAvailable() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.available) == 0 {
		return 0, false
	}
	id := p.available[0]
	p.available = p.available[1:]
	return id, true
}

func (p *Pool) pushAvailable(id int) {
	p.mu.Lock()
	p.available = append(p.available, id)
	p.mu.Unlock()
}

func (p *Pool) isShuttingDown() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shuttingDown != 0
}

func (p *Pool) quickHealthLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.QuickCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.quickCheck()
		}
	}
}

func (p *Pool) quickCheck() {
	p.mu.Lock()
	instances := append([]*Instance(nil), p.instances...)
	p.mu.Unlock()

	for _, inst := range instances {
		status, _, lastUsed, _, _ := inst.snapshot()
		if !inst.IsAlive() {
			p.log.Warn("quick health check: instance event loop dead", zap.Int("instance_id", inst.id))
			continue
		}
		if status == StatusBusy && time.Since(lastUsed) > p.cfg.StuckBusyThreshold {
			p.log.Warn("quick health check: instance stuck busy", zap.Int("instance_id", inst.id))
		}
	}
}

func (p *Pool) deepHealthLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.DeepCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.deepCheck()
		}
	}
}

func (p *Pool) deepCheck() {
	p.mu.Lock()
	instances := append([]*Instance(nil), p.instances...)
	p.mu.Unlock()

	var needsRestart []*Instance
	for _, inst := range instances {
		status, createdAt, lastUsed, _, failures := inst.snapshot()
		dead := !inst.IsAlive()
		stuckBusy := status == StatusBusy && time.Since(lastUsed) > p.cfg.DeepIdleThreshold
		if time.Since(createdAt) > p.cfg.MaxInstanceAge || failures > p.cfg.MaxFailureCount || dead || stuckBusy {
			needsRestart = append(needsRestart, inst)
		}
	}

	for _, inst := range needsRestart {
		if err := p.restart(context.Background(), inst); err != nil {
			p.log.Error("deep health check: restart failed", zap.Int("instance_id", inst.id), zap.Error(err))
		} else {
			p.log.Info("deep health check: restarted instance", zap.Int("instance_id", inst.id))
		}
	}
}

// Stats summarizes pool health for metrics and the `health` CLI subcommand.
type Stats struct {
	Total              int
	Healthy            int
	Busy               int
	Failed             int
	AvailableInstances int
	TotalScreenshots   int64
}

// Stats returns a point-in-time snapshot of pool health.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	instances := append([]*Instance(nil), p.instances...)
	available := len(p.available)
	p.mu.Unlock()

	s := Stats{Total: len(instances), AvailableInstances: available}
	for _, inst := range instances {
		status, _, _, screenshots, _ := inst.snapshot()
		s.TotalScreenshots += screenshots
		switch status {
		case StatusHealthy:
			s.Healthy++
		case StatusBusy:
			s.Busy++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

// Shutdown idempotently drains and closes every instance. A bounded wait
// gives in-flight captures a chance to return their lease before browsers are
// torn down unconditionally.
func (p *Pool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	alreadyShuttingDown := p.shuttingDown != 0
	p.shuttingDown = 1
	total := len(p.instances)
	p.mu.Unlock()

	if alreadyShuttingDown {
		<-p.stopCh // wait for the first Shutdown's close to complete
		return
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		p.mu.Lock()
		drained := len(p.available) >= total
		p.mu.Unlock()
		if drained {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	p.closeInstances()
	close(p.stopCh)
	p.wg.Wait()
}
