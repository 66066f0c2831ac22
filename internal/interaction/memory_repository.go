package interaction

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory, mutex-guarded implementation of the
// repository interface. TryCommit performs the compare-and-set under the lock,
// so the single-winner property holds for a single process without a database.
type MemoryRepository struct {
	mu           sync.RWMutex
	interactions map[string]Interaction
}

// NewMemoryRepository returns a new instance of MemoryRepository
func NewMemoryRepository() Repository {
	r := MemoryRepository{
		interactions: make(map[string]Interaction),
	}
	var ifm Repository = &r
	return ifm
}

// Create creates a new interaction in the repository
func (r *MemoryRepository) Create(interaction Interaction) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if interaction.ID == "" {
		interaction.ID = uuid.New().String()
	}
	if interaction.CreatedAt.IsZero() {
		interaction.CreatedAt = time.Now().UTC()
	}
	if _, ok := r.interactions[interaction.ID]; ok {
		return "", errors.New("interaction already exists with id: " + interaction.ID)
	}
	r.interactions[interaction.ID] = interaction
	return interaction.ID, nil
}

// Get search and returns an interaction from the repository by its id
func (r *MemoryRepository) Get(id string) (Interaction, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	interaction, ok := r.interactions[id]
	return interaction, ok, nil
}

// GetAll returns interactions of a scope, optionally filtered on processed state
func (r *MemoryRepository) GetAll(scope string, processed *bool, limit int) ([]Interaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	interactions := make([]Interaction, 0)
	for _, interaction := range r.interactions {
		if scope != "" && interaction.Scope != scope {
			continue
		}
		if processed != nil && interaction.Processed() != *processed {
			continue
		}
		interactions = append(interactions, interaction)
	}
	sort.Slice(interactions, func(i, j int) bool {
		if !interactions[i].CreatedAt.Equal(interactions[j].CreatedAt) {
			return interactions[i].CreatedAt.Before(interactions[j].CreatedAt)
		}
		return interactions[i].ID < interactions[j].ID
	})
	if limit > 0 && len(interactions) > limit {
		interactions = interactions[:limit]
	}
	return interactions, nil
}

// GetAllUnprocessed returns the oldest unprocessed interactions of a scope
func (r *MemoryRepository) GetAllUnprocessed(scope string, limit int) ([]Interaction, error) {
	unprocessed := false
	return r.GetAll(scope, &unprocessed, limit)
}

// TryCommit atomically commits the interaction to the given rule, returning
// false when it is already committed
func (r *MemoryRepository) TryCommit(id string, ruleID int64, ts time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	interaction, ok := r.interactions[id]
	if !ok {
		return false, errors.New("interaction not found with id: " + id)
	}
	if interaction.Processed() {
		return false, nil
	}
	interaction.ProcessedByRuleID = &ruleID
	interaction.ProcessedAt = &ts
	interaction.ActionStatus = ActionStatusPending
	r.interactions[id] = interaction
	return true, nil
}

// UpdateActionStatus stores the action executor outcome for an interaction
func (r *MemoryRepository) UpdateActionStatus(id string, status string, detail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	interaction, ok := r.interactions[id]
	if !ok {
		return errors.New("interaction not found with id: " + id)
	}
	interaction.ActionStatus = status
	interaction.ActionDetail = detail
	r.interactions[id] = interaction
	return nil
}
