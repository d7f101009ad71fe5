package verify

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestEvidenceStore_SaveReport(t *testing.T) {
	store, err := OpenEvidenceStore(filepath.Join(t.TempDir(), "evidence.db"))
	if err != nil {
		t.Fatalf("OpenEvidenceStore() error = %v", err)
	}
	defer store.Close()

	report := &Report{
		RunID:           "run-1",
		Started:         time.Now().Add(-time.Minute),
		Finished:        time.Now(),
		Passed:          true,
		StandbyFraction: 1.0,
		Phases: []PhaseResult{
			{Name: "baseline", Passed: true, Detail: "primary serving", Duration: 120 * time.Millisecond},
			{Name: "assert", Passed: true, Detail: "5 requests", Duration: 300 * time.Millisecond},
		},
		Evidence: []RequestEvidence{
			{Index: 1, Status: 200, Pool: "green", Release: "v2", DurationMS: 2.1},
			{Index: 2, Status: 200, Pool: "green", Release: "v2", DurationMS: 1.8},
		},
	}

	if err := store.SaveReport(context.Background(), report); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}

	var runs, phases, requests int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM runs WHERE id = ?`, "run-1").Scan(&runs); err != nil {
		t.Fatal(err)
	}
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM run_phases WHERE run_id = ?`, "run-1").Scan(&phases); err != nil {
		t.Fatal(err)
	}
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM run_requests WHERE run_id = ?`, "run-1").Scan(&requests); err != nil {
		t.Fatal(err)
	}

	if runs != 1 || phases != 2 || requests != 2 {
		t.Errorf("persisted rows = %d/%d/%d, want 1/2/2", runs, phases, requests)
	}

	// The same run ID cannot be inserted twice.
	if err := store.SaveReport(context.Background(), report); err == nil {
		t.Error("duplicate run ID should be rejected")
	}
}
