package evaluator

import (
	"sync"

	"github.com/pulsemetrics/engage-engine/internal/metrics"
)

// Cache is a batch-scoped evaluation cache keyed by similarity key. Within one
// batch, all pairs mapping to the same key are served by a single underlying
// evaluator call: the first caller performs the call while concurrent callers
// for the same key wait for its result. Errors are cached too, so a failing
// group costs exactly one remote call per batch; the interactions stay
// unprocessed and are retried in a later batch.
//
// The cache does not survive the batch: a new Cache is allocated per
// scheduling pass.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	ready chan struct{}
	eval  Evaluation
	err   error
}

// NewCache returns an empty batch-scoped cache
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]*cacheEntry),
	}
}

// Do returns the cached evaluation for key, calling fn exactly once per unique
// key. The boolean reports whether the result was served from the cache.
func (c *Cache) Do(key string, fn func() (Evaluation, error)) (Evaluation, bool, error) {
	c.mu.Lock()
	if entry, ok := c.entries[key]; ok {
		c.mu.Unlock()
		<-entry.ready
		metrics.EvaluationCacheHitsTotal.Inc()
		return entry.eval, true, entry.err
	}

	entry := &cacheEntry{ready: make(chan struct{})}
	c.entries[key] = entry
	c.mu.Unlock()

	entry.eval, entry.err = fn()
	close(entry.ready)
	return entry.eval, false, entry.err
}

// Len returns the number of unique keys evaluated so far
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
