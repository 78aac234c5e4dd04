package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/conformer/internal/failure"
	"github.com/roach88/conformer/internal/harness"
)

// RunSummary is one row of the run list.
type RunSummary struct {
	ID       string         `json:"id"`
	Started  time.Time      `json:"started"`
	Duration time.Duration  `json:"duration_ns"`
	Source   string         `json:"source"`
	Totals   harness.Totals `json:"totals"`
}

// ScenarioRecord is one scenario's outcome in one past run.
type ScenarioRecord struct {
	RunID    string        `json:"run_id"`
	Started  time.Time     `json:"started"`
	Passed   bool          `json:"passed"`
	Duration time.Duration `json:"duration_ns"`

	// Kind is the primary failure kind, empty for a pass.
	Kind failure.Kind `json:"kind,omitempty"`
}

// KindCount is the number of failures of one kind.
type KindCount struct {
	Kind  failure.Kind `json:"kind"`
	Count int          `json:"count"`
}

// ListRuns returns stored runs, newest first. A limit <= 0 returns all.
//
// Returns an empty slice (not nil) if no runs are stored.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, duration_ms, source, passed, failed, total
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunSummary, error) {
	var (
		run        RunSummary
		started    string
		durationMS int64
	)
	err := row.Scan(&run.ID, &started, &durationMS, &run.Source,
		&run.Totals.Passed, &run.Totals.Failed, &run.Totals.Total)
	if err != nil {
		return RunSummary{}, err
	}
	if run.Started, err = parseTime(started); err != nil {
		return RunSummary{}, err
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return run, nil
}

// ReadRun reconstructs a stored report. Returns ErrNotFound for an unknown
// id. Durations come back truncated to milliseconds.
func (s *Store) ReadRun(ctx context.Context, id string) (*harness.Report, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, duration_ms, source, passed, failed, total
		FROM runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read run: %w", err)
	}

	results, err := s.readResults(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.readFailures(ctx, id, results); err != nil {
		return nil, err
	}

	return &harness.Report{
		ID:       run.ID,
		Started:  run.Started,
		Duration: run.Duration,
		Results:  results,
		Totals:   run.Totals,
	}, nil
}

func (s *Store) readResults(ctx context.Context, runID string) ([]*harness.Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, passed, duration_ms, trace, notes
		FROM scenario_results
		WHERE run_id = ?
		ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query scenario results: %w", err)
	}
	defer rows.Close()

	results := []*harness.Result{}
	for rows.Next() {
		var (
			r          harness.Result
			durationMS int64
			trace      string
			notes      string
		)
		if err := rows.Scan(&r.Name, &r.Passed, &durationMS, &trace, &notes); err != nil {
			return nil, fmt.Errorf("scan scenario result: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		if r.Trace, err = unmarshalTrace(trace); err != nil {
			return nil, err
		}
		if r.Notes, err = unmarshalNotes(notes); err != nil {
			return nil, err
		}
		results = append(results, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scenario results: %w", err)
	}
	return results, nil
}

// readFailures attaches failures to results by scenario index.
func (s *Store) readFailures(ctx context.Context, runID string, results []*harness.Result) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scenario_idx, step, step_name, kind, message, field_key, expected, actual
		FROM failures
		WHERE run_id = ?
		ORDER BY scenario_idx ASC, idx ASC
	`, runID)
	if err != nil {
		return fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			idx  int
			f    harness.Failure
			kind string
		)
		if err := rows.Scan(&idx, &f.Step, &f.StepName, &kind, &f.Message, &f.Key, &f.Expected, &f.Actual); err != nil {
			return fmt.Errorf("scan failure: %w", err)
		}
		if idx < 0 || idx >= len(results) {
			return fmt.Errorf("failure references missing scenario %d", idx)
		}
		f.Kind = failure.Kind(kind)
		results[idx].Failures = append(results[idx].Failures, f)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate failures: %w", err)
	}
	return nil
}

// ScenarioHistory returns the named scenario's outcomes across runs, newest
// first. A limit <= 0 returns all.
func (s *Store) ScenarioHistory(ctx context.Context, name string, limit int) ([]ScenarioRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.started_at, sr.passed, sr.duration_ms, COALESCE(f.kind, '')
		FROM scenario_results sr
		JOIN runs r ON r.id = sr.run_id
		LEFT JOIN failures f
			ON f.run_id = sr.run_id AND f.scenario_idx = sr.idx AND f.idx = 0
		WHERE sr.name = ?
		ORDER BY r.started_at DESC, r.id COLLATE BINARY DESC
		LIMIT ?
	`, name, limit)
	if err != nil {
		return nil, fmt.Errorf("query scenario history: %w", err)
	}
	defer rows.Close()

	records := []ScenarioRecord{}
	for rows.Next() {
		var (
			rec        ScenarioRecord
			started    string
			durationMS int64
			kind       string
		)
		if err := rows.Scan(&rec.RunID, &started, &rec.Passed, &durationMS, &kind); err != nil {
			return nil, fmt.Errorf("scan scenario history: %w", err)
		}
		if rec.Started, err = parseTime(started); err != nil {
			return nil, err
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.Kind = failure.Kind(kind)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scenario history: %w", err)
	}
	return records, nil
}

// FailureKinds counts failures by kind, most frequent first. An empty runID
// counts across all runs.
func (s *Store) FailureKinds(ctx context.Context, runID string) ([]KindCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*) AS n
		FROM failures
		WHERE ? = '' OR run_id = ?
		GROUP BY kind
		ORDER BY n DESC, kind ASC
	`, runID, runID)
	if err != nil {
		return nil, fmt.Errorf("query failure kinds: %w", err)
	}
	defer rows.Close()

	counts := []KindCount{}
	for rows.Next() {
		var (
			kc   KindCount
			kind string
		)
		if err := rows.Scan(&kind, &kc.Count); err != nil {
			return nil, fmt.Errorf("scan failure kind: %w", err)
		}
		kc.Kind = failure.Kind(kind)
		counts = append(counts, kc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failure kinds: %w", err)
	}
	return counts, nil
}
