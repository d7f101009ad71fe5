package verify

import (
	"fmt"
	"strings"
	"time"
)

// RequestEvidence captures one assertion-phase request for exact failure
// attribution.
type RequestEvidence struct {
	// Index is the 1-based request number within the phase.
	Index int `json:"index"`

	// Status is the HTTP status returned by the proxy, 0 on error.
	Status int `json:"status"`

	// Pool and Release are the identity headers carried by the response.
	Pool    string `json:"pool"`
	Release string `json:"release"`

	// DurationMS is the request round-trip time in milliseconds.
	DurationMS float64 `json:"duration_ms"`

	// Err holds the transport error, if the request failed outright.
	Err string `json:"error,omitempty"`
}

// PhaseResult is the outcome of one harness phase.
type PhaseResult struct {
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	Detail   string        `json:"detail"`
	Duration time.Duration `json:"duration"`
}

// Report is the full result of a harness run.
type Report struct {
	// RunID uniquely identifies this run.
	RunID string `json:"run_id"`

	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`

	// Passed is true only when every phase passed.
	Passed bool `json:"passed"`

	// StandbyFraction is the observed fraction of assertion-phase
	// responses carrying a standby identity.
	StandbyFraction float64 `json:"standby_fraction"`

	Phases   []PhaseResult     `json:"phases"`
	Evidence []RequestEvidence `json:"evidence"`
}

// addPhase records a phase result and returns passed for chaining.
func (r *Report) addPhase(name string, started time.Time, passed bool, detail string) bool {
	r.Phases = append(r.Phases, PhaseResult{
		Name:     name,
		Passed:   passed,
		Detail:   detail,
		Duration: time.Since(started),
	})
	return passed
}

// String renders the report for terminal output.
func (r *Report) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "verification run %s\n", r.RunID)
	for _, p := range r.Phases {
		mark := "PASS"
		if !p.Passed {
			mark = "FAIL"
		}
		fmt.Fprintf(&sb, "  [%s] %-10s %s (%.1fms)\n", mark, p.Name, p.Detail, p.Duration.Seconds()*1000)
	}

	if len(r.Evidence) > 0 {
		fmt.Fprintf(&sb, "  evidence (%d requests, standby fraction %.2f):\n", len(r.Evidence), r.StandbyFraction)
		for _, e := range r.Evidence {
			if e.Err != "" {
				fmt.Fprintf(&sb, "    #%02d error: %s\n", e.Index, e.Err)
				continue
			}
			fmt.Fprintf(&sb, "    #%02d status=%d pool=%s release=%s %.1fms\n",
				e.Index, e.Status, e.Pool, e.Release, e.DurationMS)
		}
	}

	if r.Passed {
		sb.WriteString("result: PASS\n")
	} else {
		sb.WriteString("result: FAIL\n")
	}
	return sb.String()
}
