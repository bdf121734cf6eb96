// Package worker provides the batch-mode convenience layer over the
// dispatcher: a bounded fan-out/fan-in pool of screenshot workers plus a
// progress tracker for long-running batches. It changes no semantics versus
// calling the dispatcher directly, request by request.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"screenshotsvc/internal/model"
	"screenshotsvc/pkg/logger"
)

const channelCapacity = 1000

// Screenshotter is the single operation a worker drives; satisfied by
// *dispatcher.Dispatcher.
type Screenshotter interface {
	ScreenshotSingle(ctx context.Context, req model.Request) model.Result
}

// Stats is one worker's cumulative counters.
type Stats struct {
	ID             int
	Running        bool
	ProcessedCount int64
	ErrorCount     int64
}

type screenshotWorker struct {
	id        int
	svc       Screenshotter
	log       *logger.Logger
	running   atomic.Bool
	processed atomic.Int64
	errors    atomic.Int64
}

func (w *screenshotWorker) run(ctx context.Context, requests <-chan model.Request, results chan<- model.Result) {
	w.running.Store(true)
	defer w.running.Store(false)

	for req := range requests {
		result := w.svc.ScreenshotSingle(ctx, req)
		if result.Success {
			w.processed.Add(1)
		} else {
			w.errors.Add(1)
			w.log.Warn("worker failed to process request",
				zap.Int("worker_id", w.id),
				zap.String("request_id", req.ID),
			)
		}

		select {
		case results <- result:
		case <-ctx.Done():
			return
		}
	}
}

func (w *screenshotWorker) stats() Stats {
	return Stats{
		ID:             w.id,
		Running:        w.running.Load(),
		ProcessedCount: w.processed.Load(),
		ErrorCount:     w.errors.Load(),
	}
}

// Pool is a bounded producer/consumer fan-out over N = poolSize workers,
// each calling ScreenshotSingle for one request at a time.
type Pool struct {
	workers []*screenshotWorker
	reqCh   chan model.Request
	resCh   chan model.Result
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPool starts poolSize workers sharing one request channel and one result
// channel, each of channelCapacity buffer.
func NewPool(ctx context.Context, poolSize int, svc Screenshotter, log *logger.Logger) *Pool {
	ctx, cancel := context.WithCancel(ctx)

	p := &Pool{
		reqCh:  make(chan model.Request, channelCapacity),
		resCh:  make(chan model.Result, channelCapacity),
		cancel: cancel,
	}

	for i := 0; i < poolSize; i++ {
		w := &screenshotWorker{id: i, svc: svc, log: log}
		p.workers = append(p.workers, w)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.run(ctx, p.reqCh, p.resCh)
		}()
	}

	return p
}

// Submit enqueues req, blocking if the request channel is full.
func (p *Pool) Submit(ctx context.Context, req model.Request) error {
	select {
	case p.reqCh <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Result blocks for the next available result.
func (p *Pool) Result(ctx context.Context) (model.Result, bool) {
	select {
	case r, ok := <-p.resCh:
		return r, ok
	case <-ctx.Done():
		return model.Result{}, false
	}
}

// WorkerStats returns a per-worker snapshot.
func (p *Pool) WorkerStats() []Stats {
	stats := make([]Stats, len(p.workers))
	for i, w := range p.workers {
		stats[i] = w.stats()
	}
	return stats
}

// TotalProcessed sums successful captures across all workers.
func (p *Pool) TotalProcessed() int64 {
	var total int64
	for _, w := range p.workers {
		total += w.processed.Load()
	}
	return total
}

// TotalErrors sums failed captures across all workers.
func (p *Pool) TotalErrors() int64 {
	var total int64
	for _, w := range p.workers {
		total += w.errors.Load()
	}
	return total
}

// ActiveWorkers counts workers currently inside their run loop.
func (p *Pool) ActiveWorkers() int {
	count := 0
	for _, w := range p.workers {
		if w.running.Load() {
			count++
		}
	}
	return count
}

// Close stops accepting new requests and waits for in-flight workers to
// drain.
func (p *Pool) Close() {
	close(p.reqCh)
	p.cancel()
	p.wg.Wait()
	close(p.resCh)
}

// BatchStats summarizes a batch run across every worker.
type BatchStats struct {
	WorkerStats    []Stats
	TotalProcessed int64
	TotalErrors    int64
	ActiveWorkers  int
}

// BatchProcessor submits a whole batch of requests to a Pool and collects
// exactly that many results before returning.
type BatchProcessor struct {
	pool *Pool
	log  *logger.Logger
}

// NewBatchProcessor builds a processor backed by a freshly started pool of
// poolSize workers.
func NewBatchProcessor(ctx context.Context, poolSize int, svc Screenshotter, log *logger.Logger) *BatchProcessor {
	return &BatchProcessor{pool: NewPool(ctx, poolSize, svc, log), log: log}
}

// ProcessBatch submits every request, then collects exactly that many
// results (order is completion order, not submission order).
func (b *BatchProcessor) ProcessBatch(ctx context.Context, requests []model.Request) []model.Result {
	total := len(requests)
	b.log.Info("processing batch", zap.Int("total_requests", total))

	go func() {
		for _, req := range requests {
			if err := b.pool.Submit(ctx, req); err != nil {
				return
			}
		}
	}()

	results := make([]model.Result, 0, total)
	for i := 0; i < total; i++ {
		result, ok := b.pool.Result(ctx)
		if !ok {
			break
		}
		results = append(results, result)
	}

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	b.log.Info("batch processing completed",
		zap.Int("succeeded", succeeded),
		zap.Int("failed", len(results)-succeeded),
	)

	return results
}

// ProcessURLs builds default-priority, full-page requests for each URL and
// runs them through ProcessBatch.
func (b *BatchProcessor) ProcessURLs(ctx context.Context, urls []string) []model.Result {
	requests := make([]model.Request, len(urls))
	for i, u := range urls {
		requests[i] = model.Request{URL: u, Priority: model.PriorityNormal, FullPage: true}
	}
	return b.ProcessBatch(ctx, requests)
}

// Stats reports the underlying pool's aggregate counters.
func (b *BatchProcessor) Stats() BatchStats {
	return BatchStats{
		WorkerStats:    b.pool.WorkerStats(),
		TotalProcessed: b.pool.TotalProcessed(),
		TotalErrors:    b.pool.TotalErrors(),
		ActiveWorkers:  b.pool.ActiveWorkers(),
	}
}

// Close releases the underlying pool.
func (b *BatchProcessor) Close() { b.pool.Close() }

// ProgressInfo is a point-in-time snapshot of a tracked batch's progress.
type ProgressInfo struct {
	Total     int
	Completed int
	Errors    int
	Success   int
	Elapsed   time.Duration
	Rate      float64 // completions per second
	ETA       time.Duration
	HasETA    bool
}

// ProgressTracker accumulates completion/error counts for a batch of known
// size and derives throughput rate and estimated time remaining.
type ProgressTracker struct {
	total     int
	completed atomic.Int64
	errors    atomic.Int64
	startTime time.Time
}

// NewProgressTracker starts a tracker for a batch of total items.
func NewProgressTracker(total int) *ProgressTracker {
	return &ProgressTracker{total: total, startTime: time.Now()}
}

// RecordCompletion registers one outcome.
func (t *ProgressTracker) RecordCompletion(success bool) {
	t.completed.Add(1)
	if !success {
		t.errors.Add(1)
	}
}

// Progress derives the current rate (completions/second) and, once at least
// one item has completed, an ETA for the remainder.
func (t *ProgressTracker) Progress() ProgressInfo {
	completed := t.completed.Load()
	errs := t.errors.Load()
	elapsed := time.Since(t.startTime)

	info := ProgressInfo{
		Total:     t.total,
		Completed: int(completed),
		Errors:    int(errs),
		Success:   int(completed - errs),
		Elapsed:   elapsed,
	}

	elapsedSeconds := elapsed.Seconds()
	if elapsedSeconds > 0 {
		info.Rate = float64(completed) / elapsedSeconds
	}

	if completed > 0 && info.Rate > 0 {
		remaining := t.total - int(completed)
		info.ETA = time.Duration(float64(remaining)/info.Rate) * time.Second
		info.HasETA = true
	}

	return info
}

// IsComplete reports whether every item in the batch has completed.
func (t *ProgressTracker) IsComplete() bool {
	return t.completed.Load() >= int64(t.total)
}
