package dispatcher

import (
	"testing"
	"time"
)

func TestCircuitBreakerClosedByDefault(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)
	if cb.State() != CircuitClosed {
		t.Fatalf("new breaker state = %v, want Closed", cb.State())
	}
	if !cb.CanExecute() {
		t.Error("closed breaker should admit requests")
	}
}

func TestCircuitBreakerTripsAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != CircuitClosed {
		t.Fatalf("state after 2/3 failures = %v, want Closed", cb.State())
	}

	cb.RecordFailure()
	if cb.State() != CircuitOpen {
		t.Fatalf("state after 3/3 failures = %v, want Open", cb.State())
	}
	if cb.CanExecute() {
		t.Error("open breaker within cooldown should not admit requests")
	}
	if got := cb.FailureCount(); got != 3 {
		t.Errorf("FailureCount() = %d, want 3", got)
	}
}

func TestCircuitBreakerHalfOpenAfterCooldown(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)
	cb.RecordFailure()
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %v, want Open", cb.State())
	}

	time.Sleep(20 * time.Millisecond)
	if !cb.CanExecute() {
		t.Fatal("breaker should admit a probe request after cooldown elapses")
	}
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("state after cooldown probe = %v, want HalfOpen", cb.State())
	}
}

func TestCircuitBreakerRecordSuccessResets(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute)
	cb.RecordFailure()
	cb.RecordSuccess()

	if got := cb.FailureCount(); got != 0 {
		t.Errorf("FailureCount() after success = %d, want 0", got)
	}
	if cb.State() != CircuitClosed {
		t.Fatalf("state after success = %v, want Closed", cb.State())
	}
}

func TestCircuitStateString(t *testing.T) {
	cases := map[CircuitState]string{
		CircuitClosed:   "closed",
		CircuitOpen:     "open",
		CircuitHalfOpen: "half_open",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("CircuitState(%d).String() = %q, want %q", s, got, want)
		}
	}
}
