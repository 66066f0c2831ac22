package breaker

import (
	"sync"
	"time"
)

// Status is the introspection view of a single rule breaker
type Status struct {
	RuleID              int64      `json:"ruleId"`
	State               string     `json:"state"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	RetryAt             *time.Time `json:"retryAt,omitempty"`
}

// Manager holds one circuit breaker per rule for the lifetime of a scheduler instance
type Manager struct {
	mu       sync.Mutex
	settings Settings
	breakers map[int64]*CircuitBreaker
}

// NewManager returns a new Manager applying the given settings to every breaker it creates
func NewManager(settings Settings) *Manager {
	return &Manager{
		settings: settings,
		breakers: make(map[int64]*CircuitBreaker),
	}
}

// Get returns the breaker for the given rule, creating a closed one on first access
func (m *Manager) Get(ruleID int64) *CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	cb, ok := m.breakers[ruleID]
	if !ok {
		cb = New(ruleID, m.settings)
		m.breakers[ruleID] = cb
	}
	return cb
}

// Status returns the current state of every known breaker, keyed by rule id
func (m *Manager) Status() map[int64]Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	statuses := make(map[int64]Status, len(m.breakers))
	for ruleID, cb := range m.breakers {
		cb.mu.Lock()
		status := Status{
			RuleID:              ruleID,
			State:               cb.state.String(),
			ConsecutiveFailures: cb.consecutiveFailures,
		}
		if cb.state == StateOpen {
			retryAt := cb.openedAt.Add(cb.settings.RecoveryTime)
			status.RetryAt = &retryAt
		}
		cb.mu.Unlock()
		statuses[ruleID] = status
	}
	return statuses
}
