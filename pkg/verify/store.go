package verify

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// EvidenceStore persists verification run evidence to SQLite so that runs
// can be compared across releases. Purely optional: the harness works
// without one.
type EvidenceStore struct {
	db *sql.DB
}

const evidenceSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	started_at       TEXT NOT NULL,
	finished_at      TEXT NOT NULL,
	passed           INTEGER NOT NULL,
	standby_fraction REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS run_phases (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	name        TEXT NOT NULL,
	passed      INTEGER NOT NULL,
	detail      TEXT NOT NULL,
	duration_ms REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS run_requests (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	idx         INTEGER NOT NULL,
	status      INTEGER NOT NULL,
	pool        TEXT NOT NULL,
	release_id  TEXT NOT NULL,
	duration_ms REAL NOT NULL,
	error       TEXT NOT NULL DEFAULT ''
);
`

// OpenEvidenceStore opens (creating if necessary) the evidence database.
func OpenEvidenceStore(path string) (*EvidenceStore, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open evidence database: %w", err)
	}

	if _, err := db.Exec(evidenceSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize evidence schema: %w", err)
	}

	return &EvidenceStore{db: db}, nil
}

// SaveReport persists one run with its phases and per-request evidence in
// a single transaction.
func (s *EvidenceStore) SaveReport(ctx context.Context, report *Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, passed, standby_fraction) VALUES (?, ?, ?, ?, ?)`,
		report.RunID,
		report.Started.Format(time.RFC3339Nano),
		report.Finished.Format(time.RFC3339Nano),
		boolToInt(report.Passed),
		report.StandbyFraction,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, p := range report.Phases {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_phases (run_id, name, passed, detail, duration_ms) VALUES (?, ?, ?, ?, ?)`,
			report.RunID, p.Name, boolToInt(p.Passed), p.Detail, float64(p.Duration.Microseconds())/1000,
		)
		if err != nil {
			return fmt.Errorf("failed to insert phase: %w", err)
		}
	}

	for _, e := range report.Evidence {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_requests (run_id, idx, status, pool, release_id, duration_ms, error) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			report.RunID, e.Index, e.Status, e.Pool, e.Release, e.DurationMS, e.Err,
		)
		if err != nil {
			return fmt.Errorf("failed to insert request evidence: %w", err)
		}
	}

	return tx.Commit()
}

// Close closes the underlying database.
func (s *EvidenceStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
