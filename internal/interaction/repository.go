package interaction

import (
	"sync"
	"time"
)

// Repository is a storage interface which can be implemented by multiple backend
// (in-memory map, sql database, ...)
// TryCommit is the single-winner commit point: it must be an atomic
// compare-and-set so that two rules racing for the same interaction can never
// both win, whatever the backend.
type Repository interface {
	Create(interaction Interaction) (string, error)
	Get(id string) (Interaction, bool, error)
	GetAll(scope string, processed *bool, limit int) ([]Interaction, error)
	GetAllUnprocessed(scope string, limit int) ([]Interaction, error)
	TryCommit(id string, ruleID int64, ts time.Time) (bool, error)
	UpdateActionStatus(id string, status string, detail string) error
}

var (
	_globalRepositoryMu sync.RWMutex
	_globalRepository   Repository
)

// R is used to access the global repository singleton
func R() Repository {
	_globalRepositoryMu.RLock()
	defer _globalRepositoryMu.RUnlock()

	repository := _globalRepository
	return repository
}

// ReplaceGlobals affect a new repository to the global repository singleton
func ReplaceGlobals(repository Repository) func() {
	_globalRepositoryMu.Lock()
	defer _globalRepositoryMu.Unlock()

	prev := _globalRepository
	_globalRepository = repository
	return func() { ReplaceGlobals(prev) }
}
