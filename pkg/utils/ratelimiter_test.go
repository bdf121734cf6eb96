package utils

import (
	"testing"
	"time"
)

func TestRateLimiterAcquireRespectsLimit(t *testing.T) {
	rl := NewRateLimiter(5) // burst = 6

	acquired := 0
	for i := 0; i < 20; i++ {
		if rl.Acquire() {
			acquired++
		}
	}

	// Burst is int(5)+1 = 6; nothing refills instantly, so no more than the
	// initial burst should succeed in a tight loop.
	if acquired > 6 {
		t.Errorf("acquired %d permits in a tight loop, want <= 6 (burst)", acquired)
	}
	if acquired == 0 {
		t.Error("expected at least the initial burst to succeed")
	}
}

func TestRateLimiterGetCurrentRate(t *testing.T) {
	rl := NewRateLimiter(100)
	for i := 0; i < 5; i++ {
		rl.Acquire()
	}
	if got := rl.GetCurrentRate(); got != 5 {
		t.Errorf("GetCurrentRate() = %d, want 5", got)
	}
}

func TestRateLimiterWaitForPermitEventuallyReturns(t *testing.T) {
	rl := NewRateLimiter(1000) // fast enough to not hang the test
	done := make(chan struct{})
	go func() {
		rl.WaitForPermit()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForPermit did not return within the expected margin")
	}
}
