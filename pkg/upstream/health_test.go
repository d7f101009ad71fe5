package upstream

import (
	"sync"
	"testing"
	"time"
)

func testBackend(name string, role Role, maxFails int, failTimeout time.Duration) *Backend {
	return &Backend{
		Name:        name,
		Address:     "http://127.0.0.1:9999",
		Role:        role,
		MaxFails:    maxFails,
		FailTimeout: failTimeout,
	}
}

func TestHealthTracker_SuspendsAfterMaxFails(t *testing.T) {
	tests := []struct {
		name     string
		maxFails int
		outcomes []Outcome
		eligible bool
	}{
		{
			name:     "below threshold stays eligible",
			maxFails: 3,
			outcomes: []Outcome{OutcomeTimeout, OutcomeConnectionError},
			eligible: true,
		},
		{
			name:     "at threshold suspends",
			maxFails: 3,
			outcomes: []Outcome{OutcomeTimeout, OutcomeConnectionError, OutcomeUpstream5xx},
			eligible: false,
		},
		{
			name:     "single failure with max_fails 1",
			maxFails: 1,
			outcomes: []Outcome{OutcomeUpstream5xx},
			eligible: false,
		},
		{
			name:     "invalid response counts as failure",
			maxFails: 1,
			outcomes: []Outcome{OutcomeInvalidResponse},
			eligible: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewHealthTracker()
			b := testBackend("blue", RolePrimary, tt.maxFails, 5*time.Second)

			for _, o := range tt.outcomes {
				tracker.Record(b, o)
			}

			if got := tracker.IsEligible(b); got != tt.eligible {
				t.Errorf("IsEligible() = %v, want %v", got, tt.eligible)
			}
		})
	}
}

func TestHealthTracker_SuspensionExpires(t *testing.T) {
	tracker := NewHealthTracker()
	now := time.Now()
	tracker.now = func() time.Time { return now }

	b := testBackend("blue", RolePrimary, 1, 5*time.Second)

	tracker.Record(b, OutcomeTimeout)
	if tracker.IsEligible(b) {
		t.Fatal("backend should be suspended after max_fails")
	}

	// Still inside the suspension window.
	now = now.Add(4 * time.Second)
	if tracker.IsEligible(b) {
		t.Fatal("backend should still be suspended before fail_timeout elapses")
	}

	// Past the window: eligibility is restored with no further mutation.
	now = now.Add(2 * time.Second)
	if !tracker.IsEligible(b) {
		t.Fatal("backend should be eligible after fail_timeout elapses")
	}
}

func TestHealthTracker_SuccessResetsImmediately(t *testing.T) {
	tracker := NewHealthTracker()
	b := testBackend("blue", RolePrimary, 2, time.Hour)

	tracker.Record(b, OutcomeUpstream5xx)
	tracker.Record(b, OutcomeUpstream5xx)
	if tracker.IsEligible(b) {
		t.Fatal("backend should be suspended")
	}

	// Recovery is automatic on success, no waiting for the window.
	tracker.Record(b, OutcomeSuccess)
	if !tracker.IsEligible(b) {
		t.Fatal("success should clear suspension immediately")
	}

	snap := tracker.Snapshot(&Pool{Primary: b})
	if snap[0].ConsecutiveFailures != 0 {
		t.Errorf("consecutive failures = %d, want 0", snap[0].ConsecutiveFailures)
	}
}

func TestHealthTracker_ClientErrorsAreNeutral(t *testing.T) {
	tracker := NewHealthTracker()
	b := testBackend("blue", RolePrimary, 1, time.Hour)

	for i := 0; i < 10; i++ {
		tracker.Record(b, OutcomeUpstream4xx)
	}

	if !tracker.IsEligible(b) {
		t.Fatal("4xx outcomes must never suspend a backend")
	}
	snap := tracker.Snapshot(&Pool{Primary: b})
	if snap[0].ConsecutiveFailures != 0 {
		t.Errorf("consecutive failures = %d, want 0", snap[0].ConsecutiveFailures)
	}
}

func TestHealthTracker_ConcurrentAccess(t *testing.T) {
	tracker := NewHealthTracker()
	blue := testBackend("blue", RolePrimary, 100000, time.Second)
	green := testBackend("green", RoleStandby, 100000, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b := blue
			if i%2 == 0 {
				b = green
			}
			for j := 0; j < 1000; j++ {
				tracker.Record(b, OutcomeTimeout)
				tracker.IsEligible(b)
				tracker.Record(b, OutcomeSuccess)
			}
		}(i)
	}
	wg.Wait()

	if !tracker.IsEligible(blue) || !tracker.IsEligible(green) {
		t.Error("backends should be eligible after final successes")
	}
}
