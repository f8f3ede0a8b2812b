package oracle

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/voyago-dev/voyago/internal/llm/provider"
)

// DefaultWorkerCapacity is how many calls a worker serves before the pool
// rotates to the next one.
const DefaultWorkerCapacity = 4

// UsageStore persists per-worker call counters across process restarts.
type UsageStore interface {
	Load(ctx context.Context) (map[string]int, error)
	Save(ctx context.Context, usage map[string]int) error
}

// MemoryUsageStore is an in-process UsageStore for tests and the REPL.
type MemoryUsageStore struct {
	mu    sync.Mutex
	usage map[string]int
}

// NewMemoryUsageStore creates an empty in-memory store.
func NewMemoryUsageStore() *MemoryUsageStore {
	return &MemoryUsageStore{usage: make(map[string]int)}
}

// Load returns a copy of the stored counters.
func (m *MemoryUsageStore) Load(ctx context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.usage))
	for k, v := range m.usage {
		out[k] = v
	}
	return out, nil
}

// Save replaces the stored counters.
func (m *MemoryUsageStore) Save(ctx context.Context, usage map[string]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = make(map[string]int, len(usage))
	for k, v := range usage {
		m.usage[k] = v
	}
	return nil
}

// Pool rotates oracle calls across several provider instances, giving each a
// fixed call capacity before moving on. Counters are shared process-wide
// mutable state, so every update happens under the pool lock and is persisted
// before the provider is handed out.
type Pool struct {
	mu       sync.Mutex
	workers  []provider.Provider
	usage    map[string]int
	store    UsageStore
	capacity int
	current  int
	limiter  *rate.Limiter
}

// NewPool builds a pool over the given workers, restoring persisted usage
// counters. A nil limiter disables rate limiting.
func NewPool(ctx context.Context, workers []provider.Provider, store UsageStore, capacity int, limiter *rate.Limiter) (*Pool, error) {
	if len(workers) == 0 {
		return nil, fmt.Errorf("pool needs at least one worker")
	}
	if capacity <= 0 {
		capacity = DefaultWorkerCapacity
	}
	if store == nil {
		store = NewMemoryUsageStore()
	}
	usage, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load usage counters: %w", err)
	}
	if usage == nil {
		usage = make(map[string]int)
	}
	return &Pool{
		workers:  workers,
		usage:    usage,
		store:    store,
		capacity: capacity,
		limiter:  limiter,
	}, nil
}

// Next returns the provider that should serve the next oracle call and
// records the call against its counter. When the current worker has reached
// capacity its counter resets and the pool advances round-robin.
func (p *Pool) Next(ctx context.Context) (provider.Provider, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	w := p.workers[p.current]
	if p.usage[w.Name()] >= p.capacity {
		p.usage[w.Name()] = 0
		p.current = (p.current + 1) % len(p.workers)
		w = p.workers[p.current]
	}
	p.usage[w.Name()]++

	if err := p.store.Save(ctx, p.usage); err != nil {
		return nil, fmt.Errorf("persist usage counters: %w", err)
	}
	return w, nil
}

// Usage returns a copy of the current counters, for the periodic report.
func (p *Pool) Usage() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]int, len(p.usage))
	for k, v := range p.usage {
		out[k] = v
	}
	return out
}
