package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/conformer/internal/harness"
)

// timeFormat is fixed-width so started_at sorts lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse started_at %q: %w", s, err)
	}
	return t, nil
}

// marshalTrace serializes a trace. A nil trace is stored as "[]".
func marshalTrace(trace []harness.TraceEvent) (string, error) {
	if trace == nil {
		trace = []harness.TraceEvent{}
	}
	b, err := json.Marshal(trace)
	if err != nil {
		return "", fmt.Errorf("marshal trace: %w", err)
	}
	return string(b), nil
}

func unmarshalTrace(s string) ([]harness.TraceEvent, error) {
	trace := []harness.TraceEvent{}
	if err := json.Unmarshal([]byte(s), &trace); err != nil {
		return nil, fmt.Errorf("unmarshal trace: %w", err)
	}
	return trace, nil
}

// marshalNotes serializes notes. Nil notes are stored as "[]".
func marshalNotes(notes []string) (string, error) {
	if notes == nil {
		notes = []string{}
	}
	b, err := json.Marshal(notes)
	if err != nil {
		return "", fmt.Errorf("marshal notes: %w", err)
	}
	return string(b), nil
}

// unmarshalNotes returns nil for an empty list so a read-back result
// matches one built by the runner.
func unmarshalNotes(s string) ([]string, error) {
	var notes []string
	if err := json.Unmarshal([]byte(s), &notes); err != nil {
		return nil, fmt.Errorf("unmarshal notes: %w", err)
	}
	if len(notes) == 0 {
		return nil, nil
	}
	return notes, nil
}
