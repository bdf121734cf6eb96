// Package dispatcher admits, orders, retries, and circuit-breaks capture
// requests on top of a browser pool and capture pipeline.
package dispatcher

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"screenshotsvc/internal/model"
	"screenshotsvc/pkg/browser"
	"screenshotsvc/pkg/logger"
)

const (
	breakerFailureThreshold = 5
	breakerCooldown         = 30 * time.Second
)

// Dispatcher is the single admission point for captures: it stably orders
// requests by priority, gates concurrency with one capacity-C semaphore (the
// original implementation used two separate semaphores here; a single gate
// is sufficient and simpler to reason about), retries with exponential
// backoff, and trips a circuit breaker on sustained failure.
type Dispatcher struct {
	pool     *browser.Pool
	pipe     Pipeline
	log      *logger.Logger
	sem      *semaphore.Weighted
	capacity int64
	breaker  *CircuitBreaker

	mu         sync.Mutex
	queueDepth int

	cfgMu sync.RWMutex
	cfg   model.Config
}

// UpdateConfig swaps in a reloaded config. The swapped config drives the
// retry policy and the format/viewport reported on terminal-failure results.
// The capture pipeline keeps the config it was built with, so a reloaded
// timeout, output format or optimization flags do not change captures, and a
// reloaded MaxConcurrentCaptures does not resize the admission semaphore.
// Pool size and chrome path were baked into the browser pool at construction
// and are likewise unaffected.
func (d *Dispatcher) UpdateConfig(cfg model.Config) {
	d.cfgMu.Lock()
	d.cfg = cfg
	d.cfgMu.Unlock()
}

func (d *Dispatcher) config() model.Config {
	d.cfgMu.RLock()
	defer d.cfgMu.RUnlock()
	return d.cfg
}

// Pipeline is the capture-execution contract the dispatcher drives; defined
// here (rather than imported from internal/browser directly) so tests can
// substitute a fake.
type Pipeline interface {
	Capture(ctx context.Context, inst *browser.Instance, req model.Request) model.Result
}

// New builds a Dispatcher gating at most cfg.MaxConcurrentCaptures concurrent
// captures against pool, executing each through pipe.
func New(cfg model.Config, pool *browser.Pool, pipe Pipeline, log *logger.Logger) *Dispatcher {
	capacity := cfg.MaxConcurrentCaptures
	if capacity < 1 {
		capacity = 1
	}
	return &Dispatcher{
		cfg:      cfg,
		pool:     pool,
		pipe:     pipe,
		log:      log,
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
		breaker:  NewCircuitBreaker(breakerFailureThreshold, breakerCooldown),
	}
}

// ScreenshotSingle runs the admission/retry loop for one request.
func (d *Dispatcher) ScreenshotSingle(ctx context.Context, req model.Request) model.Result {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	d.trackQueue(1)
	defer d.trackQueue(-1)

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return d.terminalFailure(req, model.NewError(model.KindBrowserUnavailable, "admission canceled", err))
	}
	defer d.sem.Release(1)

	retry := d.config().Retry
	maxAttempts := retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastResult model.Result
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if !d.breaker.CanExecute() {
			return d.terminalFailure(req, model.NewError(model.KindBrowserUnavailable, "circuit breaker open", nil))
		}

		req.RetryCount = attempt

		result, err := d.attempt(ctx, req)
		if err == nil {
			d.breaker.RecordSuccess()
			return result
		}

		d.breaker.RecordFailure()
		lastResult = result

		retryable := result.Error != nil && result.Error.IsRetryable()
		if !retryable || attempt == maxAttempts-1 {
			break
		}

		select {
		case <-time.After(retry.Delay(attempt)):
		case <-ctx.Done():
			return d.terminalFailure(req, model.NewError(model.KindTimeout, "canceled during backoff", ctx.Err()))
		}
	}

	lastResult.RequestID = req.ID
	lastResult.URL = req.URL
	return lastResult
}

// attempt leases an instance, runs the pipeline, and releases the lease on
// every exit path.
func (d *Dispatcher) attempt(ctx context.Context, req model.Request) (model.Result, error) {
	inst, err := d.pool.Acquire(ctx)
	if err != nil {
		r := d.terminalFailure(req, model.NewError(model.KindBrowserUnavailable, err.Error(), err))
		return r, err
	}
	defer d.pool.Release(inst)

	result := d.pipe.Capture(ctx, inst, req)
	if !result.Success {
		if result.Error == nil {
			result.Error = model.NewError(model.KindCaptureFailed, "unknown capture failure", nil)
		}
		return result, result.Error
	}
	return result, nil
}

// terminalFailure builds the Result emitted once retries are exhausted
// without ever holding a lease: a synthetic result must not fabricate a real
// browser instance id.
func (d *Dispatcher) terminalFailure(req model.Request, err *model.ScreenshotError) model.Result {
	cfg := d.config()
	return model.Result{
		RequestID: req.ID,
		URL:       req.URL,
		Format:    cfg.OutputFormat,
		Timestamp: time.Now(),
		Success:   false,
		Error:     err,
		Metadata: model.Metadata{
			ViewportUsed:    cfg.Viewport,
			BrowserInstance: 0,
		},
	}
}

// ScreenshotURLs builds default-priority requests for each URL and runs them
// through ProcessRequests.
func (d *Dispatcher) ScreenshotURLs(ctx context.Context, urls []string) []model.Result {
	requests := make([]model.Request, len(urls))
	for i, u := range urls {
		requests[i] = model.Request{
			ID:       uuid.NewString(),
			URL:      u,
			Priority: model.PriorityNormal,
			FullPage: true,
		}
	}
	return d.ProcessRequests(ctx, requests)
}

// ProcessRequests stably sorts requests by priority (descending) and fans
// each out to ScreenshotSingle in its own goroutine, preserving submission
// order among ties. The dispatcher's own admission semaphore bounds how many
// run concurrently, so this is free to spawn all of them at once.
func (d *Dispatcher) ProcessRequests(ctx context.Context, requests []model.Request) []model.Result {
	ordered := make([]model.Request, len(requests))
	copy(ordered, requests)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	results := make([]model.Result, len(ordered))
	var wg sync.WaitGroup
	wg.Add(len(ordered))
	for i, req := range ordered {
		go func(i int, req model.Request) {
			defer wg.Done()
			results[i] = d.ScreenshotSingle(ctx, req)
		}(i, req)
	}
	wg.Wait()
	return results
}

// QueueSize returns the number of requests currently admitted to the
// dispatcher (awaiting a semaphore permit or mid-capture).
func (d *Dispatcher) QueueSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queueDepth
}

// ClearQueue is a no-op in the current design: the dispatcher holds no
// externally visible pending queue outside of queued mode, which this
// implementation does not expose. Kept for interface parity with the
// original source's queued-mode contract.
func (d *Dispatcher) ClearQueue() {}

// Shutdown blocks until every in-flight capture has released its admission
// permit, or ctx is canceled first.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	if err := d.sem.Acquire(ctx, d.capacity); err != nil {
		return err
	}
	d.sem.Release(d.capacity)
	return nil
}

func (d *Dispatcher) trackQueue(delta int) {
	d.mu.Lock()
	d.queueDepth += delta
	d.mu.Unlock()
}
