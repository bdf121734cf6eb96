package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"screenshotsvc/internal/model"
	"screenshotsvc/pkg/logger"
)

type fakeScreenshotter struct {
	calls      atomic.Int64
	failEveryN int64 // 0 = never fail
}

func (f *fakeScreenshotter) ScreenshotSingle(ctx context.Context, req model.Request) model.Result {
	n := f.calls.Add(1)
	success := f.failEveryN == 0 || n%f.failEveryN != 0
	result := model.Result{RequestID: req.ID, URL: req.URL, Success: success}
	if !success {
		result.Error = model.NewError(model.KindCaptureFailed, "synthetic", nil)
	}
	return result
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	lg, err := logger.New(logger.DefaultConfig())
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return lg
}

func TestPoolProcessesSubmittedRequests(t *testing.T) {
	log := testLogger(t)
	svc := &fakeScreenshotter{}
	pool := NewPool(context.Background(), 3, svc, log)
	defer pool.Close()

	const n = 20
	for i := 0; i < n; i++ {
		if err := pool.Submit(context.Background(), model.Request{ID: string(rune('a' + i))}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	seen := 0
	deadline := time.After(5 * time.Second)
	for seen < n {
		select {
		case <-deadline:
			t.Fatalf("timed out after %d/%d results", seen, n)
		default:
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_, ok := pool.Result(ctx)
		cancel()
		if ok {
			seen++
		}
	}

	if got := pool.TotalProcessed(); got != n {
		t.Errorf("TotalProcessed() = %d, want %d", got, n)
	}
	if got := pool.TotalErrors(); got != 0 {
		t.Errorf("TotalErrors() = %d, want 0", got)
	}
}

func TestPoolTracksErrors(t *testing.T) {
	log := testLogger(t)
	svc := &fakeScreenshotter{failEveryN: 2}
	pool := NewPool(context.Background(), 2, svc, log)
	defer pool.Close()

	const n = 10
	for i := 0; i < n; i++ {
		pool.Submit(context.Background(), model.Request{ID: "r"})
	}

	for i := 0; i < n; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		pool.Result(ctx)
		cancel()
	}

	if got := pool.TotalErrors(); got != n/2 {
		t.Errorf("TotalErrors() = %d, want %d", got, n/2)
	}
	if got := pool.TotalProcessed(); got != n/2 {
		t.Errorf("TotalProcessed() = %d, want %d", got, n/2)
	}
}

func TestBatchProcessorProcessBatch(t *testing.T) {
	log := testLogger(t)
	svc := &fakeScreenshotter{}
	bp := NewBatchProcessor(context.Background(), 4, svc, log)
	defer bp.Close()

	requests := make([]model.Request, 15)
	for i := range requests {
		requests[i] = model.Request{ID: "req", URL: "https://example.com"}
	}

	results := bp.ProcessBatch(context.Background(), requests)
	if len(results) != len(requests) {
		t.Fatalf("ProcessBatch returned %d results, want %d", len(results), len(requests))
	}

	stats := bp.Stats()
	if stats.TotalProcessed != int64(len(requests)) {
		t.Errorf("Stats().TotalProcessed = %d, want %d", stats.TotalProcessed, len(requests))
	}
}

func TestBatchProcessorCanceledContextStopsEarly(t *testing.T) {
	log := testLogger(t)
	svc := &fakeScreenshotter{}
	bp := NewBatchProcessor(context.Background(), 1, svc, log)
	defer bp.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	requests := make([]model.Request, 5)
	results := bp.ProcessBatch(ctx, requests)
	if len(results) > len(requests) {
		t.Fatalf("ProcessBatch returned more results than requested")
	}
}

func TestProgressTrackerRateAndETA(t *testing.T) {
	pt := NewProgressTracker(100)

	info := pt.Progress()
	if info.HasETA {
		t.Error("a tracker with zero completions should report no ETA")
	}

	for i := 0; i < 10; i++ {
		pt.RecordCompletion(i%5 != 0) // 2 failures out of 10
	}

	info = pt.Progress()
	if info.Completed != 10 {
		t.Errorf("Completed = %d, want 10", info.Completed)
	}
	if info.Errors != 2 {
		t.Errorf("Errors = %d, want 2", info.Errors)
	}
	if info.Success != 8 {
		t.Errorf("Success = %d, want 8", info.Success)
	}
	if !info.HasETA {
		t.Error("expected an ETA once completions and elapsed time are nonzero")
	}
	if pt.IsComplete() {
		t.Error("tracker with 10/100 completions should not report complete")
	}
}

func TestProgressTrackerIsComplete(t *testing.T) {
	pt := NewProgressTracker(3)
	for i := 0; i < 3; i++ {
		pt.RecordCompletion(true)
	}
	if !pt.IsComplete() {
		t.Error("tracker with completed == total should report complete")
	}
}
