//go:build integration

package dispatcher

import (
	"context"
	"testing"
	"time"

	"screenshotsvc/internal/model"
	"screenshotsvc/pkg/browser"
	"screenshotsvc/pkg/logger"
)

type fakePipeline struct {
	fail    bool
	failKey model.Kind
	delay   time.Duration
}

func (f *fakePipeline) Capture(ctx context.Context, inst *browser.Instance, req model.Request) model.Result {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fail {
		return model.Result{
			RequestID: req.ID,
			URL:       req.URL,
			Timestamp: time.Now(),
			Success:   false,
			Error:     model.NewError(f.failKey, "synthetic failure", nil),
		}
	}
	return model.Result{
		RequestID: req.ID,
		URL:       req.URL,
		Timestamp: time.Now(),
		Success:   true,
		Metadata:  model.Metadata{BrowserInstance: inst.ID()},
	}
}

func newTestDispatcher(t *testing.T, pipe Pipeline) (*Dispatcher, *browser.Pool) {
	t.Helper()
	lg, err := logger.New(logger.DefaultConfig())
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}

	bcfg := browser.DefaultConfig()
	bcfg.Size = 2
	pool, err := browser.New(context.Background(), bcfg, lg)
	if err != nil {
		t.Fatalf("browser.New: %v", err)
	}

	cfg := model.DefaultConfig()
	cfg.MaxConcurrentCaptures = 2
	cfg.Retry.MaxAttempts = 2
	cfg.Retry.InitialDelay = 10 * time.Millisecond

	return New(cfg, pool, pipe, lg), pool
}

func TestDispatcherScreenshotSingleSuccess(t *testing.T) {
	d, pool := newTestDispatcher(t, &fakePipeline{})
	defer pool.Shutdown(context.Background())

	result := d.ScreenshotSingle(context.Background(), model.Request{URL: "https://example.com"})
	if !result.Success {
		t.Fatalf("expected success, got error %v", result.Error)
	}
}

func TestDispatcherRetriesRetryableFailures(t *testing.T) {
	d, pool := newTestDispatcher(t, &fakePipeline{fail: true, failKey: model.KindNetworkError})
	defer pool.Shutdown(context.Background())

	result := d.ScreenshotSingle(context.Background(), model.Request{URL: "https://example.com"})
	if result.Success {
		t.Fatal("expected failure after exhausting retries")
	}
	if result.Metadata.BrowserInstance != 0 {
		t.Errorf("terminal failure should not fabricate a browser instance id, got %d", result.Metadata.BrowserInstance)
	}
}

func TestDispatcherDoesNotRetryTerminalFailures(t *testing.T) {
	d, pool := newTestDispatcher(t, &fakePipeline{fail: true, failKey: model.KindInvalidURL})
	defer pool.Shutdown(context.Background())

	result := d.ScreenshotSingle(context.Background(), model.Request{URL: "not a url"})
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Error.Kind != model.KindInvalidURL {
		t.Errorf("expected original error kind to survive without retry, got %v", result.Error.Kind)
	}
}

// ProcessRequests must fan its requests out concurrently, bounded by the
// dispatcher's own admission semaphore, rather than running them one at a
// time. Four requests at a 150ms simulated capture cost and a pool/capacity
// of 2 should finish in roughly two waves (~300ms), not four (~600ms).
func TestProcessRequestsRunsConcurrentlyUpToCapacity(t *testing.T) {
	const delay = 150 * time.Millisecond
	lg, err := logger.New(logger.DefaultConfig())
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}

	bcfg := browser.DefaultConfig()
	bcfg.Size = 2
	pool, err := browser.New(context.Background(), bcfg, lg)
	if err != nil {
		t.Fatalf("browser.New: %v", err)
	}
	defer pool.Shutdown(context.Background())

	cfg := model.DefaultConfig()
	cfg.MaxConcurrentCaptures = 2
	d := New(cfg, pool, &fakePipeline{delay: delay}, lg)

	requests := []model.Request{
		{URL: "https://example.com/1"},
		{URL: "https://example.com/2"},
		{URL: "https://example.com/3"},
		{URL: "https://example.com/4"},
	}

	start := time.Now()
	results := d.ProcessRequests(context.Background(), requests)
	elapsed := time.Since(start)

	if len(results) != len(requests) {
		t.Fatalf("got %d results, want %d", len(results), len(requests))
	}
	for i, r := range results {
		if !r.Success {
			t.Errorf("result %d: expected success, got error %v", i, r.Error)
		}
	}

	// Sequential execution would take ~600ms; concurrent execution at
	// capacity 2 should take ~300ms. A generous margin guards against
	// scheduling jitter while still catching a regression to a plain loop.
	if elapsed >= 3*delay {
		t.Errorf("ProcessRequests took %v, want well under %v (requests did not run concurrently)", elapsed, 3*delay)
	}
}

func TestDispatcherQueueSizeTracksInFlight(t *testing.T) {
	d, pool := newTestDispatcher(t, &fakePipeline{})
	defer pool.Shutdown(context.Background())

	if d.QueueSize() != 0 {
		t.Fatalf("QueueSize before any request = %d, want 0", d.QueueSize())
	}
	d.ScreenshotSingle(context.Background(), model.Request{URL: "https://example.com"})
	if d.QueueSize() != 0 {
		t.Fatalf("QueueSize after completion = %d, want 0", d.QueueSize())
	}
}
