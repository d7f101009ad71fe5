package upstream

import "log/slog"

// Selector picks the next backend to try for a request, respecting the
// failover order, per-backend eligibility, and the global attempt cap.
//
// This is failover, not balancing: while the primary is eligible it wins
// every time, and standbys are consulted strictly in configured order.
type Selector struct {
	tracker *HealthTracker

	// maxAttempts bounds the retry loop independently of pool size.
	maxAttempts int

	logger *slog.Logger
}

// NewSelector creates a selector backed by the given health tracker.
// maxAttempts values below 1 are treated as 1.
func NewSelector(tracker *HealthTracker, maxAttempts int) *Selector {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Selector{
		tracker:     tracker,
		maxAttempts: maxAttempts,
		logger:      slog.Default().With("component", "upstream.selector"),
	}
}

// MaxAttempts returns the configured attempt cap.
func (s *Selector) MaxAttempts() int {
	return s.maxAttempts
}

// Select returns the backend the request should try next, or nil when the
// retry loop must stop: either every pool member is suspended or already
// attempted, or the attempt cap has been reached.
//
// attempted holds the names of backends already contacted by this request.
func (s *Selector) Select(pool *Pool, attempted map[string]bool) *Backend {
	if len(attempted) >= s.maxAttempts {
		s.logger.Debug("attempt cap reached",
			"attempts", len(attempted),
			"max_attempts", s.maxAttempts,
		)
		return nil
	}

	for _, b := range pool.Members() {
		if attempted[b.Name] {
			continue
		}
		if !s.tracker.IsEligible(b) {
			s.logger.Debug("backend skipped, suspended", "backend", b.Name)
			continue
		}
		return b
	}

	return nil
}
