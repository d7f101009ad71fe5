package upstream

import (
	"log/slog"
	"sync"
	"time"
)

// backendHealth is the mutable health state for a single backend.
// Each backend has its own lock so unrelated requests never serialize
// on a shared tracker-wide mutex.
type backendHealth struct {
	mu                  sync.Mutex
	consecutiveFailures int
	suspendedUntil      time.Time
}

// BackendHealth is a point-in-time copy of one backend's health state,
// as returned by HealthTracker.Snapshot.
type BackendHealth struct {
	// Backend is the stable backend name.
	Backend string

	// ConsecutiveFailures is the current failure streak.
	ConsecutiveFailures int

	// SuspendedUntil is the suspension deadline; zero when not suspended.
	SuspendedUntil time.Time

	// Eligible reports whether the backend may be selected right now.
	Eligible bool
}

// HealthTracker maintains per-backend failure counters and suspension
// windows. It is safe for concurrent use by many in-flight requests.
type HealthTracker struct {
	mu       sync.RWMutex
	backends map[string]*backendHealth

	// now is the clock; overridable in tests.
	now func() time.Time

	logger *slog.Logger
}

// NewHealthTracker creates a tracker with empty health state. Entries are
// created lazily on first contact with a backend, so pool reloads that
// introduce new members need no tracker reconfiguration.
func NewHealthTracker() *HealthTracker {
	return &HealthTracker{
		backends: make(map[string]*backendHealth),
		now:      time.Now,
		logger:   slog.Default().With("component", "upstream.health"),
	}
}

// state returns the health entry for a backend, creating it if needed.
func (t *HealthTracker) state(name string) *backendHealth {
	t.mu.RLock()
	h, ok := t.backends[name]
	t.mu.RUnlock()
	if ok {
		return h
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if h, ok = t.backends[name]; ok {
		return h
	}
	h = &backendHealth{}
	t.backends[name] = h
	return h
}

// Record applies one attempt outcome to the backend's health state.
//
// Failure outcomes (timeout, connection error, invalid response, 5xx)
// increment the consecutive-failure counter; when it reaches the backend's
// MaxFails the backend is suspended for FailTimeout. A success resets the
// counter and clears any suspension immediately. A 4xx outcome is neutral
// and leaves the state untouched.
func (t *HealthTracker) Record(b *Backend, outcome Outcome) {
	h := t.state(b.Name)

	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case outcome == OutcomeSuccess:
		if h.consecutiveFailures > 0 || !h.suspendedUntil.IsZero() {
			t.logger.Info("backend recovered",
				"backend", b.Name,
				"previous_failures", h.consecutiveFailures,
			)
		}
		h.consecutiveFailures = 0
		h.suspendedUntil = time.Time{}

	case outcome.CountsAsFailure():
		h.consecutiveFailures++
		if h.consecutiveFailures >= b.MaxFails {
			h.suspendedUntil = t.now().Add(b.FailTimeout)
			t.logger.Warn("backend suspended",
				"backend", b.Name,
				"consecutive_failures", h.consecutiveFailures,
				"suspended_until", h.suspendedUntil,
				"outcome", outcome,
			)
		}

	default:
		// 4xx: deterministic client error, not a health signal.
	}
}

// IsEligible reports whether the backend may be selected right now:
// true iff it is not inside a suspension window.
func (t *HealthTracker) IsEligible(b *Backend) bool {
	h := t.state(b.Name)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.suspendedUntil.IsZero() {
		return true
	}
	return t.now().After(h.suspendedUntil)
}

// Snapshot returns a copy of the health state for every backend in the
// given pool, in pool order (primary first). Backends the tracker has not
// seen yet report as eligible with zero failures.
func (t *HealthTracker) Snapshot(pool *Pool) []BackendHealth {
	members := pool.Members()
	out := make([]BackendHealth, 0, len(members))
	now := t.now()

	for _, b := range members {
		h := t.state(b.Name)
		h.mu.Lock()
		out = append(out, BackendHealth{
			Backend:             b.Name,
			ConsecutiveFailures: h.consecutiveFailures,
			SuspendedUntil:      h.suspendedUntil,
			Eligible:            h.suspendedUntil.IsZero() || now.After(h.suspendedUntil),
		})
		h.mu.Unlock()
	}

	return out
}
