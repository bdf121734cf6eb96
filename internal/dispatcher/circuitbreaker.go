package dispatcher

import (
	"sync"
	"time"
)

// CircuitState is one of Closed, Open, or HalfOpen.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// CircuitBreaker trips Open after threshold consecutive failures. Once
// cooldown has elapsed since the last failure it moves to HalfOpen, which
// admits every call until the next recorded success (Closed) or failure
// (Open).
type CircuitBreaker struct {
	mu              sync.Mutex
	state           CircuitState
	failures        int
	threshold       int
	cooldown        time.Duration
	lastFailureTime time.Time
}

// NewCircuitBreaker builds a breaker that opens after threshold consecutive
// failures and probes again after cooldown.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:     CircuitClosed,
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// CanExecute reports whether a request should be admitted, transitioning
// Open to HalfOpen once the cooldown has elapsed.
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if time.Since(cb.lastFailureTime) > cb.cooldown {
			cb.state = CircuitHalfOpen
			return true
		}
		return false
	default: // CircuitHalfOpen
		return true
	}
}

// RecordSuccess resets the breaker to Closed and clears the failure counter.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.state = CircuitClosed
	cb.lastFailureTime = time.Time{}
}

// RecordFailure increments the failure counter and last-failure timestamp,
// tripping Open once the counter reaches threshold.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	cb.lastFailureTime = time.Now()
	if cb.failures >= cb.threshold {
		cb.state = CircuitOpen
	}
}

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// FailureCount returns the current consecutive-failure count.
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}
