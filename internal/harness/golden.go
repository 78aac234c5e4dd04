package harness

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot is the deterministic part of a Result: everything except
// timings.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Passed       bool         `json:"passed"`
	Trace        []TraceEvent `json:"trace"`
	Failures     []Failure    `json:"failures,omitempty"`
	Notes        []string     `json:"notes,omitempty"`
}

// Snapshot extracts the deterministic part of r.
func Snapshot(r *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: r.Name,
		Passed:       r.Passed,
		Trace:        r.Trace,
		Failures:     r.Failures,
		Notes:        r.Notes,
	}
}

// AssertGolden compares the result's snapshot against
// testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./... -update
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Snapshot(result)); err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, buf.Bytes())
	return nil
}
