package breaker

import (
	"strconv"
	"sync"
	"time"

	"github.com/pulsemetrics/engage-engine/internal/metrics"
	"go.uber.org/zap"
)

// State represents one of the three circuit breaker states
type State int

const (
	// StateClosed allows every call
	StateClosed State = iota
	// StateOpen rejects every call until the recovery time has elapsed
	StateOpen
	// StateHalfOpen allows a bounded number of probe calls
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Settings holds the thresholds of a circuit breaker
type Settings struct {
	FailureThreshold int
	RecoveryTime     time.Duration
	HalfOpenMaxCalls int
}

// DefaultSettings returns the standard breaker thresholds
func DefaultSettings() Settings {
	return Settings{
		FailureThreshold: 5,
		RecoveryTime:     60 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

// CircuitBreaker is a process-local three-state failure isolator guarding the
// remote evaluation of a single rule. It cycles closed -> open -> half-open
// indefinitely based on observed outcomes and is safe for concurrent use.
type CircuitBreaker struct {
	mu       sync.Mutex
	ruleID   int64
	settings Settings

	state               State
	consecutiveFailures int
	openedAt            time.Time
	probeCalls          int

	now func() time.Time
}

// New returns a new closed CircuitBreaker for the given rule
func New(ruleID int64, settings Settings) *CircuitBreaker {
	return &CircuitBreaker{
		ruleID:   ruleID,
		settings: settings,
		state:    StateClosed,
		now:      time.Now,
	}
}

// Allow reports whether a call may proceed, consuming a probe slot when half-open.
// An open breaker whose recovery time has elapsed transitions to half-open and
// allows the call as the first probe.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.settings.RecoveryTime {
			return false
		}
		cb.setState(StateHalfOpen)
		cb.probeCalls = 1
		return true
	case StateHalfOpen:
		if cb.probeCalls >= cb.settings.HalfOpenMaxCalls {
			return false
		}
		cb.probeCalls++
		return true
	}
	return false
}

// ReleaseProbe returns a half-open probe slot consumed by Allow when the call
// never exercised the guarded dependency. Without it a run of locally filtered
// calls would exhaust the probe budget and leave the breaker stuck half-open.
func (cb *CircuitBreaker) ReleaseProbe() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen && cb.probeCalls > 0 {
		cb.probeCalls--
	}
}

// Available reports whether a call would currently be allowed, without
// consuming a probe slot or triggering a state transition.
func (cb *CircuitBreaker) Available() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		return cb.now().Sub(cb.openedAt) >= cb.settings.RecoveryTime
	case StateHalfOpen:
		return cb.probeCalls < cb.settings.HalfOpenMaxCalls
	}
	return false
}

// RecordSuccess reports a successful call, closing the breaker and resetting failure counts
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures = 0
	cb.probeCalls = 0
	if cb.state != StateClosed {
		cb.setState(StateClosed)
	}
}

// RecordFailure reports a failed call. A half-open breaker re-opens immediately,
// discarding the remaining probe budget. A closed breaker opens once the
// consecutive failure threshold is reached.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures++

	switch cb.state {
	case StateHalfOpen:
		cb.openedAt = cb.now()
		cb.probeCalls = 0
		cb.setState(StateOpen)
	case StateClosed:
		if cb.consecutiveFailures >= cb.settings.FailureThreshold {
			cb.openedAt = cb.now()
			cb.setState(StateOpen)
		}
	}
}

// State returns the current breaker state
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// RetryAt returns the time at which an open breaker will allow a probe call.
// The boolean is false when the breaker is not open.
func (cb *CircuitBreaker) RetryAt() (time.Time, bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return time.Time{}, false
	}
	return cb.openedAt.Add(cb.settings.RecoveryTime), true
}

// setState must be called with cb.mu held
func (cb *CircuitBreaker) setState(state State) {
	previous := cb.state
	cb.state = state

	zap.L().Info("Circuit breaker state transition",
		zap.Int64("ruleID", cb.ruleID),
		zap.String("from", previous.String()),
		zap.String("to", state.String()),
		zap.Int("consecutiveFailures", cb.consecutiveFailures),
	)
	metrics.BreakerState.WithLabelValues(strconv.FormatInt(cb.ruleID, 10)).Set(float64(state))
}
