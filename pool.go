package dispose

import (
	"sync"
)

// entryPool recycles the registration slices scopes allocate on entry and
// drop on exit. Short-lived scopes are the common case, so reuse pays off.
type entryPool struct {
	entries sync.Pool

	metrics PoolMetrics
}

// PoolMetrics tracks pool usage statistics
type PoolMetrics struct {
	mu     sync.RWMutex
	hits   uint64
	misses uint64
}

// Hits returns how many scope entries slices were served from the pool.
func (m *PoolMetrics) Hits() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hits
}

// Misses returns how many scope entries slices had to be allocated fresh.
func (m *PoolMetrics) Misses() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.misses
}

func newEntryPool() *entryPool {
	return &entryPool{
		entries: sync.Pool{
			New: func() any {
				return make([]AnyDisposable, 0, 8) // Pre-allocate capacity
			},
		},
	}
}

// acquire gets an entries slice from the pool or creates a new one
func (p *entryPool) acquire() []AnyDisposable {
	slice, ok := p.entries.Get().([]AnyDisposable)
	if ok {
		// Reset the slice but keep capacity
		slice = slice[:0]

		p.metrics.mu.Lock()
		p.metrics.hits++
		p.metrics.mu.Unlock()
	} else {
		slice = make([]AnyDisposable, 0, 8)

		p.metrics.mu.Lock()
		p.metrics.misses++
		p.metrics.mu.Unlock()
	}

	return slice
}

// release returns an entries slice to the pool
func (p *entryPool) release(slice []AnyDisposable) {
	if slice == nil {
		return
	}

	// Drop the handle references before pooling so disposed handles
	// become collectable.
	for i := range slice {
		slice[i] = nil
	}
	slice = slice[:0]

	p.entries.Put(slice)
}

// Global pool shared by all scopes.
var globalEntryPool = newEntryPool()

// GetPoolMetrics returns the metrics of the global scope-entry pool.
func GetPoolMetrics() *PoolMetrics {
	return &globalEntryPool.metrics
}
