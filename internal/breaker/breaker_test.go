package breaker

import (
	"testing"
	"time"
)

func newTestBreaker(settings Settings) (*CircuitBreaker, *time.Time) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cb := New(1, settings)
	cb.now = func() time.Time { return now }
	return cb, &now
}

func TestBreakerOpensOnThreshold(t *testing.T) {
	cb, _ := newTestBreaker(Settings{FailureThreshold: 5, RecoveryTime: time.Minute, HalfOpenMaxCalls: 3})

	for i := 0; i < 4; i++ {
		cb.RecordFailure()
		if cb.State() != StateClosed {
			t.Fatalf("breaker opened after %d failures, threshold is 5", i+1)
		}
		if !cb.Allow() {
			t.Fatalf("closed breaker must allow calls")
		}
	}

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("breaker should be open after 5 consecutive failures, got %s", cb.State())
	}
	if cb.Allow() {
		t.Fatalf("open breaker must reject calls before recovery time")
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(Settings{FailureThreshold: 3, RecoveryTime: time.Minute, HalfOpenMaxCalls: 1})

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != StateClosed {
		t.Fatalf("non-consecutive failures must not open the breaker")
	}
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("breaker should open on the third consecutive failure")
	}
}

func TestBreakerHalfOpenProbeBudget(t *testing.T) {
	cb, now := newTestBreaker(Settings{FailureThreshold: 1, RecoveryTime: time.Minute, HalfOpenMaxCalls: 3})

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("breaker should be open")
	}

	*now = now.Add(59 * time.Second)
	if cb.Allow() {
		t.Fatalf("recovery time has not elapsed, call must be rejected")
	}

	*now = now.Add(time.Second)
	// First allowed call transitions to half-open and consumes the first probe slot
	if !cb.Allow() {
		t.Fatalf("first call after recovery must be allowed")
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("breaker should be half-open, got %s", cb.State())
	}
	if !cb.Allow() || !cb.Allow() {
		t.Fatalf("half-open breaker must allow up to 3 probes")
	}
	if cb.Allow() {
		t.Fatalf("probe budget exhausted, fourth call must be rejected")
	}
}

func TestBreakerReleaseProbeRestoresBudget(t *testing.T) {
	cb, now := newTestBreaker(Settings{FailureThreshold: 1, RecoveryTime: time.Minute, HalfOpenMaxCalls: 2})

	cb.RecordFailure()
	*now = now.Add(time.Minute)
	if !cb.Allow() || !cb.Allow() {
		t.Fatalf("half-open breaker must allow 2 probes")
	}
	if cb.Allow() {
		t.Fatalf("probe budget exhausted, call must be rejected")
	}

	// A granted call that was filtered out locally returns its slot: the
	// budget only counts calls that reached the dependency
	cb.ReleaseProbe()
	if !cb.Available() {
		t.Fatalf("released probe slot must be available again")
	}
	if !cb.Allow() {
		t.Fatalf("released probe slot must be grantable again")
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("releasing a probe must not change state, got %s", cb.State())
	}
}

func TestBreakerReleaseProbeOutsideHalfOpen(t *testing.T) {
	cb, _ := newTestBreaker(Settings{FailureThreshold: 1, RecoveryTime: time.Minute, HalfOpenMaxCalls: 1})

	cb.ReleaseProbe()
	if cb.State() != StateClosed || !cb.Allow() {
		t.Fatalf("release on a closed breaker must be a no-op")
	}

	cb.RecordFailure()
	cb.ReleaseProbe()
	if cb.State() != StateOpen || cb.Allow() {
		t.Fatalf("release on an open breaker must be a no-op")
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb, now := newTestBreaker(Settings{FailureThreshold: 1, RecoveryTime: time.Minute, HalfOpenMaxCalls: 3})

	cb.RecordFailure()
	*now = now.Add(time.Minute)
	if !cb.Allow() {
		t.Fatalf("probe call must be allowed")
	}

	openedAt := *now
	*now = now.Add(10 * time.Second)
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("half-open breaker must re-open on failure")
	}

	retryAt, ok := cb.RetryAt()
	if !ok {
		t.Fatalf("open breaker must expose a retry time")
	}
	if !retryAt.Equal(openedAt.Add(10 * time.Second).Add(time.Minute)) {
		t.Fatalf("re-opening must re-stamp the open timestamp, got retryAt=%s", retryAt)
	}

	// Remaining probe budget is discarded: the breaker is fully open again
	if cb.Allow() {
		t.Fatalf("re-opened breaker must reject calls")
	}
}

func TestBreakerHalfOpenSuccessCloses(t *testing.T) {
	cb, now := newTestBreaker(Settings{FailureThreshold: 2, RecoveryTime: time.Minute, HalfOpenMaxCalls: 3})

	cb.RecordFailure()
	cb.RecordFailure()
	*now = now.Add(time.Minute)
	if !cb.Allow() {
		t.Fatalf("probe call must be allowed")
	}
	cb.RecordSuccess()
	if cb.State() != StateClosed {
		t.Fatalf("half-open breaker must close on success")
	}
	// Failure count is reset: a single failure must not re-open
	cb.RecordFailure()
	if cb.State() != StateClosed {
		t.Fatalf("failure count was not reset on close")
	}
}

func TestManagerStatus(t *testing.T) {
	m := NewManager(Settings{FailureThreshold: 1, RecoveryTime: time.Minute, HalfOpenMaxCalls: 1})

	m.Get(1)
	m.Get(2).RecordFailure()

	statuses := m.Status()
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[1].State != "closed" {
		t.Errorf("rule 1 should be closed, got %s", statuses[1].State)
	}
	if statuses[2].State != "open" {
		t.Errorf("rule 2 should be open, got %s", statuses[2].State)
	}
	if statuses[2].RetryAt == nil {
		t.Errorf("open breaker status must carry a retry time")
	}

	if m.Get(1) != m.Get(1) {
		t.Errorf("manager must return the same breaker instance per rule")
	}
}
