package utils

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter gates request throughput at a configured requests-per-second
// ceiling. It wraps golang.org/x/time/rate for the gating decision and keeps
// its own 1-second sliding window of timestamps purely for GetCurrentRate
// introspection, mirroring the original implementation's hand-rolled limiter.
type RateLimiter struct {
	limiter           *rate.Limiter
	requestsPerSecond float64

	mu        sync.Mutex
	timestamps []time.Time
}

// NewRateLimiter creates a limiter allowing requestsPerSecond sustained
// throughput with a burst of int(requestsPerSecond)+1 requests.
func NewRateLimiter(requestsPerSecond float64) *RateLimiter {
	return &RateLimiter{
		limiter:           rate.NewLimiter(rate.Limit(requestsPerSecond), int(requestsPerSecond)+1),
		requestsPerSecond: requestsPerSecond,
	}
}

// Acquire attempts to take one permit without blocking. It returns false
// without reserving anything if the limit is currently exhausted.
func (r *RateLimiter) Acquire() bool {
	if !r.limiter.Allow() {
		return false
	}
	r.recordTimestamp()
	return true
}

// WaitForPermit blocks, polling every 10ms, until a permit is available. It
// takes no context and has no deadline.
func (r *RateLimiter) WaitForPermit() {
	for {
		if r.Acquire() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (r *RateLimiter) recordTimestamp() {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timestamps = append(r.timestamps, now)
	cutoff := now.Add(-time.Second)
	kept := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	r.timestamps = kept
}

// GetCurrentRate returns the number of permits acquired within the trailing
// one-second window.
func (r *RateLimiter) GetCurrentRate() int {
	now := time.Now()
	cutoff := now.Add(-time.Second)
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			count++
		}
	}
	return count
}
