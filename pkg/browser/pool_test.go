//go:build integration

package browser

import (
	"context"
	"testing"
	"time"

	"screenshotsvc/pkg/logger"
)

func newTestPool(t *testing.T, size int) *Pool {
	t.Helper()
	lg, err := logger.New(logger.DefaultConfig())
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Size = size
	cfg.LaunchStagger = 0
	pool, err := New(context.Background(), cfg, lg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { pool.Shutdown(context.Background()) })
	return pool
}

func TestPoolAcquireReleaseRoundTrip(t *testing.T) {
	pool := newTestPool(t, 1)

	inst, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if inst == nil {
		t.Fatal("Acquire returned a nil instance")
	}

	stats := pool.Stats()
	if stats.AvailableInstances != 0 {
		t.Errorf("AvailableInstances = %d while leased, want 0", stats.AvailableInstances)
	}

	pool.Release(inst)

	stats = pool.Stats()
	if stats.AvailableInstances != 1 {
		t.Errorf("AvailableInstances = %d after release, want 1", stats.AvailableInstances)
	}
}

func TestPoolAcquireBlocksUntilReleased(t *testing.T) {
	pool := newTestPool(t, 1)

	inst, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		second, err := pool.Acquire(context.Background())
		if err != nil {
			return
		}
		pool.Release(second)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire returned before the first instance was released")
	case <-time.After(200 * time.Millisecond):
	}

	pool.Release(inst)

	select {
	case <-acquired:
	case <-time.After(3 * time.Second):
		t.Fatal("second Acquire did not unblock after Release")
	}
}

func TestPoolAcquireRespectsContextCancellation(t *testing.T) {
	pool := newTestPool(t, 1)

	inst, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer pool.Release(inst)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if _, err := pool.Acquire(ctx); err == nil {
		t.Error("Acquire with an exhausted pool and a short timeout should error")
	}
}

func TestPoolAcquireAfterShutdownFails(t *testing.T) {
	lg, err := logger.New(logger.DefaultConfig())
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Size = 1
	cfg.LaunchStagger = 0
	pool, err := New(context.Background(), cfg, lg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	pool.Shutdown(context.Background())

	if _, err := pool.Acquire(context.Background()); err == nil {
		t.Error("Acquire after Shutdown should error")
	}
}

func TestPoolStatsReflectsSize(t *testing.T) {
	pool := newTestPool(t, 2)
	stats := pool.Stats()
	if stats.Total != 2 {
		t.Errorf("Total = %d, want 2", stats.Total)
	}
	if stats.Healthy != 2 {
		t.Errorf("Healthy = %d, want 2", stats.Healthy)
	}
}

func TestPoolRejectsZeroSize(t *testing.T) {
	lg, err := logger.New(logger.DefaultConfig())
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Size = 0
	if _, err := New(context.Background(), cfg, lg); err == nil {
		t.Error("New with Size 0 should error")
	}
}
