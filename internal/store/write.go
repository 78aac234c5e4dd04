package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/conformer/internal/harness"
)

// WriteRun stores a report with all its scenario results and failures in
// one transaction. source names the fixture the run came from.
//
// Uses ON CONFLICT(id) DO NOTHING for idempotency: writing a run id that is
// already stored leaves the existing rows untouched.
func (s *Store) WriteRun(ctx context.Context, rep *harness.Report, source string) error {
	if rep.ID == "" {
		return fmt.Errorf("write run: id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, duration_ms, source, passed, failed, total)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rep.ID,
		formatTime(rep.Started),
		rep.Duration.Milliseconds(),
		source,
		rep.Totals.Passed,
		rep.Totals.Failed,
		rep.Totals.Total,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("write run: %w", err)
	} else if n == 0 {
		// Already stored.
		return nil
	}

	for i, r := range rep.Results {
		if err := writeResult(ctx, tx, rep.ID, i, r); err != nil {
			return fmt.Errorf("write run: scenario %q: %w", r.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run: commit: %w", err)
	}
	return nil
}

func writeResult(ctx context.Context, tx *sql.Tx, runID string, idx int, r *harness.Result) error {
	trace, err := marshalTrace(r.Trace)
	if err != nil {
		return err
	}
	notes, err := marshalNotes(r.Notes)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scenario_results (run_id, idx, name, passed, duration_ms, trace, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, runID, idx, r.Name, r.Passed, r.Duration.Milliseconds(), trace, notes)
	if err != nil {
		return err
	}

	for j, f := range r.Failures {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO failures
			(run_id, scenario_idx, idx, step, step_name, kind, message, field_key, expected, actual)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, runID, idx, j, f.Step, f.StepName, string(f.Kind), f.Message, f.Key, f.Expected, f.Actual)
		if err != nil {
			return fmt.Errorf("failure %d: %w", j, err)
		}
	}
	return nil
}
