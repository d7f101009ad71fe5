package verify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Params configures a harness run. Zero values receive the documented
// defaults from ApplyDefaults.
type Params struct {
	// TargetURL is the proxy endpoint under test.
	TargetURL string

	// ExpectedPrimary is the pool identity the baseline phase waits for
	// and the recovery phase polls for.
	ExpectedPrimary string

	// ExpectedStandby is the pool identity the assertion phase counts.
	// When empty, any non-empty identity other than ExpectedPrimary
	// counts as standby.
	ExpectedStandby string

	// RequestCount is how many sequential requests the assertion phase
	// issues. Default: 15.
	RequestCount int

	// MinStandbyFraction is the minimum fraction of assertion responses
	// that must carry a standby identity. Default: 0.95.
	MinStandbyFraction float64

	// PollTimeout bounds the baseline polling phase. Default: 30s.
	PollTimeout time.Duration

	// PollInterval is the delay between polls. Default: 250ms.
	PollInterval time.Duration

	// PoolHeader and ReleaseHeader name the identity headers.
	// Defaults: "X-Pool", "X-Release".
	PoolHeader    string
	ReleaseHeader string

	// Mode selects the injected failure. Default: ChaosError.
	Mode ChaosMode

	// RecoveryWindow, when positive, enables the optional recovery
	// check: after restore, the primary identity must reappear within
	// this window (typically the backend's fail_timeout plus slack).
	RecoveryWindow time.Duration
}

// ApplyDefaults fills zero-valued parameters.
func (p *Params) ApplyDefaults() {
	if p.RequestCount == 0 {
		p.RequestCount = 15
	}
	if p.MinStandbyFraction == 0 {
		p.MinStandbyFraction = 0.95
	}
	if p.PollTimeout == 0 {
		p.PollTimeout = 30 * time.Second
	}
	if p.PollInterval == 0 {
		p.PollInterval = 250 * time.Millisecond
	}
	if p.PoolHeader == "" {
		p.PoolHeader = "X-Pool"
	}
	if p.ReleaseHeader == "" {
		p.ReleaseHeader = "X-Release"
	}
	if p.Mode == "" {
		p.Mode = ChaosError
	}
}

// Harness drives one verification run against a live proxy.
type Harness struct {
	params Params
	chaos  ChaosController
	client *http.Client
	logger *slog.Logger
}

// New creates a harness. The chaos controller is an external collaborator
// that can break and restore the primary backend.
func New(params Params, chaos ChaosController) *Harness {
	params.ApplyDefaults()
	return &Harness{
		params: params,
		chaos:  chaos,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: slog.Default().With("component", "verify"),
	}
}

// Run executes the four phases and returns the report. The error return
// is reserved for harness-level problems (unreachable chaos controller,
// cancelled context); contract violations are reported via Report.Passed.
func (h *Harness) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:   uuid.NewString(),
		Started: time.Now(),
	}
	defer func() {
		report.Finished = time.Now()
	}()

	h.logger.Info("verification run starting",
		"run_id", report.RunID,
		"target", h.params.TargetURL,
		"expected_primary", h.params.ExpectedPrimary,
	)

	// Phase 1: baseline. The pool must be serving from the expected
	// primary before chaos means anything.
	phaseStart := time.Now()
	if err := h.pollForIdentity(ctx, h.params.ExpectedPrimary, h.params.PollTimeout); err != nil {
		report.addPhase("baseline", phaseStart, false, err.Error())
		return report, nil
	}
	report.addPhase("baseline", phaseStart, true,
		fmt.Sprintf("primary %q serving", h.params.ExpectedPrimary))

	// Phase 2: inject.
	phaseStart = time.Now()
	if err := h.chaos.Inject(ctx, h.params.Mode); err != nil {
		report.addPhase("inject", phaseStart, false, err.Error())
		return report, err
	}
	report.addPhase("inject", phaseStart, true, fmt.Sprintf("mode %s", h.params.Mode))

	// Phase 3: assert. Every response must be 200; enough of them must
	// come from standby.
	phaseStart = time.Now()
	passed := h.assertFailover(ctx, report)
	detail := fmt.Sprintf("%d requests, standby fraction %.2f (min %.2f)",
		len(report.Evidence), report.StandbyFraction, h.params.MinStandbyFraction)
	report.addPhase("assert", phaseStart, passed, detail)

	// Phase 4: restore. Always executed, even after a failed assertion,
	// so the environment is left healthy.
	phaseStart = time.Now()
	restoreErr := h.chaos.Restore(ctx)
	if restoreErr != nil {
		report.addPhase("restore", phaseStart, false, restoreErr.Error())
	} else if h.params.RecoveryWindow > 0 {
		if err := h.pollForIdentity(ctx, h.params.ExpectedPrimary, h.params.RecoveryWindow); err != nil {
			report.addPhase("restore", phaseStart, false,
				fmt.Sprintf("primary did not recover: %v", err))
		} else {
			report.addPhase("restore", phaseStart, true, "primary recovered")
		}
	} else {
		report.addPhase("restore", phaseStart, true, "chaos cleared")
	}

	report.Passed = true
	for _, p := range report.Phases {
		if !p.Passed {
			report.Passed = false
		}
	}

	h.logger.Info("verification run finished",
		"run_id", report.RunID,
		"passed", report.Passed,
		"standby_fraction", report.StandbyFraction,
	)
	return report, restoreErr
}

// pollForIdentity polls the target until the pool identity header matches
// want, bounded by timeout.
func (h *Harness) pollForIdentity(ctx context.Context, want string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var last string

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}

		status, pool, _, _, err := h.probe(ctx)
		if err == nil && status == http.StatusOK && pool == want {
			return nil
		}
		if err == nil {
			last = fmt.Sprintf("status=%d pool=%q", status, pool)
		} else {
			last = err.Error()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(h.params.PollInterval):
		}
	}

	return fmt.Errorf("identity %q not observed within %s (last: %s)", want, timeout, last)
}

// assertFailover issues the sequential request batch and evaluates the
// failover contract. It fills report.Evidence and report.StandbyFraction.
func (h *Harness) assertFailover(ctx context.Context, report *Report) bool {
	all200 := true
	standby := 0

	for i := 1; i <= h.params.RequestCount; i++ {
		start := time.Now()
		status, pool, release, _, err := h.probe(ctx)
		ev := RequestEvidence{
			Index:      i,
			Status:     status,
			Pool:       pool,
			Release:    release,
			DurationMS: float64(time.Since(start).Microseconds()) / 1000,
		}
		if err != nil {
			ev.Err = err.Error()
			all200 = false
		} else if status != http.StatusOK {
			all200 = false
		}
		if h.isStandby(pool) {
			standby++
		}
		report.Evidence = append(report.Evidence, ev)
	}

	report.StandbyFraction = float64(standby) / float64(h.params.RequestCount)
	return all200 && report.StandbyFraction >= h.params.MinStandbyFraction
}

// isStandby reports whether a pool identity counts as standby.
func (h *Harness) isStandby(pool string) bool {
	if h.params.ExpectedStandby != "" {
		return pool == h.params.ExpectedStandby
	}
	return pool != "" && pool != h.params.ExpectedPrimary
}

// probe issues one GET against the target and extracts the identity headers.
func (h *Harness) probe(ctx context.Context) (status int, pool, release string, latency time.Duration, err error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.params.TargetURL, nil)
	if err != nil {
		return 0, "", "", 0, err
	}

	resp, err := h.client.Do(req)
	latency = time.Since(start)
	if err != nil {
		return 0, "", "", latency, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return resp.StatusCode, resp.Header.Get(h.params.PoolHeader), resp.Header.Get(h.params.ReleaseHeader), latency, nil
}
