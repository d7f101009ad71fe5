package upstream

import (
	"fmt"
	"sync/atomic"
)

// Pool is an ordered failover group: one primary plus zero or more
// standbys in configured order. Pools are immutable; an operator flipping
// the active color produces a new Pool that is swapped in atomically.
type Pool struct {
	// Primary receives traffic under normal conditions.
	Primary *Backend

	// Standbys are tried in order when the primary is unavailable.
	Standbys []*Backend
}

// Members returns the pool members in failover order, primary first.
func (p *Pool) Members() []*Backend {
	out := make([]*Backend, 0, 1+len(p.Standbys))
	out = append(out, p.Primary)
	out = append(out, p.Standbys...)
	return out
}

// Validate checks the structural invariants of the pool.
func (p *Pool) Validate() error {
	if p.Primary == nil {
		return fmt.Errorf("pool has no primary backend")
	}
	seen := map[string]bool{}
	for _, b := range p.Members() {
		if b.Name == "" {
			return fmt.Errorf("backend with empty name in pool")
		}
		if seen[b.Name] {
			return fmt.Errorf("duplicate backend name %q in pool", b.Name)
		}
		seen[b.Name] = true
		if b.Address == "" {
			return fmt.Errorf("backend %q has no address", b.Name)
		}
		if b.MaxFails < 1 {
			return fmt.Errorf("backend %q: max_fails must be >= 1", b.Name)
		}
		if b.FailTimeout <= 0 {
			return fmt.Errorf("backend %q: fail_timeout must be positive", b.Name)
		}
	}
	return nil
}

// PoolHolder publishes the active pool to concurrent readers. Swaps are
// atomic: a request that has already loaded a pool keeps using it, new
// requests observe the replacement. No torn state is ever visible.
type PoolHolder struct {
	ptr atomic.Pointer[Pool]
}

// NewPoolHolder creates a holder with the given initial pool.
func NewPoolHolder(p *Pool) *PoolHolder {
	h := &PoolHolder{}
	h.ptr.Store(p)
	return h
}

// Load returns the currently active pool.
func (h *PoolHolder) Load() *Pool {
	return h.ptr.Load()
}

// Swap atomically replaces the active pool. In-flight requests that have
// already selected a backend are unaffected.
func (h *PoolHolder) Swap(p *Pool) {
	h.ptr.Store(p)
}
