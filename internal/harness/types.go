package harness

import (
	"time"

	"github.com/roach88/conformer/internal/failure"
)

// TraceEvent records one executed step. Traces hold no timings or
// generated ids, so runs against the twins are byte-for-byte reproducible.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Step   int    `json:"step"`
	Type   string `json:"type"` // "call" or "flow"
	Target string `json:"target"`

	// Call steps.
	Status int `json:"status,omitempty"`

	// Flow steps.
	Visited  []string `json:"visited,omitempty"`
	Terminal string   `json:"terminal,omitempty"`
	Signal   string   `json:"signal,omitempty"`

	Outcome string `json:"outcome"` // "pass" or a failure kind
}

// Failure is one assertion failure attributed to a step.
type Failure struct {
	// Step is the zero-based step index, or -1 for scenario-level failures
	// such as an invalid declaration or session setup.
	Step     int          `json:"step"`
	StepName string       `json:"step_name,omitempty"`
	Kind     failure.Kind `json:"kind"`
	Message  string       `json:"message"`
	Key      string       `json:"key,omitempty"`
	Expected string       `json:"expected,omitempty"`
	Actual   string       `json:"actual,omitempty"`
}

// Result is the outcome of one scenario.
type Result struct {
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	Failures []Failure     `json:"failures,omitempty"`
	Notes    []string      `json:"notes,omitempty"`
	Trace    []TraceEvent  `json:"trace"`
	Duration time.Duration `json:"duration_ns"`
}

// NewResult creates a passing result for the named scenario.
func NewResult(name string) *Result {
	return &Result{
		Name:   name,
		Passed: true,
		Trace:  []TraceEvent{},
	}
}

// First returns the primary failure, or nil for a passing result.
func (r *Result) First() *Failure {
	if len(r.Failures) == 0 {
		return nil
	}
	return &r.Failures[0]
}

// AddFailure records err against step and marks the result failed. Every
// failure carried by err is recorded in order; the first stays primary.
func (r *Result) AddFailure(step int, stepName string, err error) {
	for _, fe := range failure.Flatten(err) {
		msg := fe.Message
		if msg == "" && fe.Err != nil {
			msg = fe.Err.Error()
		} else if fe.Err != nil {
			msg += ": " + fe.Err.Error()
		}
		r.Failures = append(r.Failures, Failure{
			Step:     step,
			StepName: stepName,
			Kind:     fe.Kind,
			Message:  msg,
			Key:      fe.Key,
			Expected: fe.Expected,
			Actual:   fe.Actual,
		})
	}
	r.Passed = false
}

// AddNote records an informative observation that is not a failure.
func (r *Result) AddNote(note string) {
	r.Notes = append(r.Notes, note)
}

func (r *Result) addTrace(ev TraceEvent) {
	ev.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, ev)
}

// Totals counts results by outcome.
type Totals struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
	Total  int `json:"total"`
}

// Summary counts passed and failed scenarios.
func Summary(results []*Result) Totals {
	var t Totals
	for _, r := range results {
		t.Total++
		if r.Passed {
			t.Passed++
		} else {
			t.Failed++
		}
	}
	return t
}

// Failed reports whether any scenario failed.
func Failed(results []*Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}

// Report is the outcome of a whole run.
type Report struct {
	ID       string        `json:"id"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration_ns"`
	Results  []*Result     `json:"results"`
	Totals   Totals        `json:"totals"`
}
