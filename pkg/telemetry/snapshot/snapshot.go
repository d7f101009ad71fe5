// Package snapshot logs periodic summaries of backend health state.
//
// Operators tailing the diagnostic log get a regular heartbeat of which
// backends are eligible without having to scrape the metrics endpoint.
package snapshot

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/Godwin-T/blue-green-deployment/pkg/telemetry/metrics"
	"github.com/Godwin-T/blue-green-deployment/pkg/upstream"
)

// Reporter periodically logs per-backend health and refreshes the
// suspension gauge. The schedule is a cron expression; "@every 30s" is
// the usual choice.
type Reporter struct {
	tracker *upstream.HealthTracker
	pool    *upstream.PoolHolder
	metrics *metrics.ProxyMetrics
	cron    *cron.Cron
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewReporter creates a snapshot reporter. metrics may be nil when the
// metrics endpoint is disabled.
func NewReporter(tracker *upstream.HealthTracker, pool *upstream.PoolHolder, m *metrics.ProxyMetrics) *Reporter {
	return &Reporter{
		tracker: tracker,
		pool:    pool,
		metrics: m,
		cron:    cron.New(),
		logger:  slog.Default().With("component", "telemetry.snapshot"),
	}
}

// Start schedules the reporter. An empty schedule disables it.
func (r *Reporter) Start(schedule string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if schedule == "" {
		r.logger.Info("health snapshot disabled")
		return nil
	}
	if r.running {
		return fmt.Errorf("snapshot reporter already running")
	}

	if _, err := r.cron.AddFunc(schedule, r.report); err != nil {
		return fmt.Errorf("invalid snapshot schedule %q: %w", schedule, err)
	}

	r.cron.Start()
	r.running = true
	r.logger.Info("health snapshot started", "schedule", schedule)
	return nil
}

// Stop halts the reporter; a running report is allowed to finish.
func (r *Reporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.running = false
}

// report logs one snapshot of the active pool's health state.
func (r *Reporter) report() {
	pool := r.pool.Load()
	for _, h := range r.tracker.Snapshot(pool) {
		r.logger.Info("backend health",
			"backend", h.Backend,
			"eligible", h.Eligible,
			"consecutive_failures", h.ConsecutiveFailures,
			"suspended_until", h.SuspendedUntil,
		)
		if r.metrics != nil {
			r.metrics.SetSuspended(h.Backend, !h.Eligible)
		}
	}
}
