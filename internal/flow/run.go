package flow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/conformer/internal/failure"
	"github.com/roach88/conformer/internal/ui"
)

// SignalKind is the outcome of an action that was allowed to time out.
type SignalKind string

const (
	// SignalTimeout means the capability raised a timeout, as expected for
	// unstable interactions.
	SignalTimeout SignalKind = "timeout_raised"

	// SignalCompleted means the action finished inside its reduced timeout.
	SignalCompleted SignalKind = "completed"
)

// Signal records the outcome of one AllowTimeout action.
type Signal struct {
	From     string     `json:"from"`
	To       string     `json:"to"`
	Selector string     `json:"selector"`
	Kind     SignalKind `json:"kind"`
}

// Result describes how far a flow got.
type Result struct {
	Flow     string       `json:"flow"`
	Final    string       `json:"final"`
	Terminal TerminalKind `json:"terminal"`
	Visited  []string     `json:"visited"`
	Signals  []Signal     `json:"signals,omitempty"`
}

// Signal returns the kind of the last recorded signal, or "" if none.
func (r *Result) Signal() SignalKind {
	if r == nil || len(r.Signals) == 0 {
		return ""
	}
	return r.Signals[len(r.Signals)-1].Kind
}

// Option configures Run.
type Option func(*runner)

// WithLogger sets the logger for step tracing.
func WithLogger(l *slog.Logger) Option {
	return func(r *runner) { r.logger = l }
}

// WithSettle keeps re-evaluating a state's observables for up to d before
// reporting a violation. Real browsers render asynchronously after a
// click; the in-memory model does not need it.
func WithSettle(d, interval time.Duration) Option {
	return func(r *runner) {
		r.settle = d
		if interval > 0 {
			r.interval = interval
		}
	}
}

type runner struct {
	graph    *Graph
	flow     Flow
	page     ui.Page
	vars     map[string]string
	logger   *slog.Logger
	settle   time.Duration
	interval time.Duration
}

// Run walks f against page. Before each transition the current state's
// observables are checked, then the transition's actions run in order.
// After the last transition the final state's observables are checked.
//
// The returned Result is non-nil even on error and reflects the states
// reached so far.
func Run(ctx context.Context, g *Graph, f Flow, page ui.Page, vars map[string]string, opts ...Option) (*Result, error) {
	r := &runner{
		graph:    g,
		flow:     f,
		page:     page,
		vars:     vars,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		interval: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r.run(ctx)
}

func (r *runner) run(ctx context.Context) (*Result, error) {
	res := &Result{Flow: r.flow.Name, Final: r.flow.Entry}

	if err := r.flow.Validate(r.graph); err != nil {
		return res, failure.Wrap(failure.KindFlowError, "invalid flow", err)
	}

	if r.flow.URL != "" {
		target, err := r.expand(r.flow.URL)
		if err != nil {
			return res, err
		}
		if err := r.page.Goto(ctx, target); err != nil {
			return res, capabilityError(fmt.Sprintf("navigate to %s", target), err)
		}
	}

	res.Visited = append(res.Visited, r.flow.Entry)
	for _, step := range r.flow.Steps {
		if err := r.check(ctx, step.From); err != nil {
			return res, err
		}

		for i, a := range step.Actions {
			sig, err := r.perform(ctx, a)
			if err != nil {
				return res, fmt.Errorf("%s -> %s: action %d: %w", step.From, step.To, i, err)
			}
			if sig != "" {
				res.Signals = append(res.Signals, Signal{From: step.From, To: step.To, Selector: a.Selector, Kind: sig})
				r.logger.Debug("action signal", "flow", r.flow.Name, "selector", a.Selector, "signal", sig)
			}
		}

		r.logger.Debug("transition", "flow", r.flow.Name, "from", step.From, "to", step.To)
		res.Final = step.To
		res.Visited = append(res.Visited, step.To)
	}

	if err := r.check(ctx, res.Final); err != nil {
		return res, err
	}

	final, _ := r.graph.State(res.Final)
	res.Terminal = final.Terminal
	if res.Terminal == TerminalNone {
		// A journey that completes at an unmarked state ends successfully.
		res.Terminal = TerminalSuccess
	}
	return res, nil
}

// perform runs one action. For AllowTimeout actions the returned signal
// reports whether the capability timed out or completed.
func (r *runner) perform(ctx context.Context, a Action) (SignalKind, error) {
	actx := ctx
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	el := r.page.Locate(a.Selector)
	var err error
	switch a.Kind {
	case Fill:
		var value string
		value, err = r.expand(a.Value)
		if err != nil {
			return "", err
		}
		err = el.Fill(actx, value)
	case Click:
		err = el.Click(actx)
	default:
		return "", failure.New(failure.KindFlowError, "unknown action kind %q", a.Kind)
	}

	if !a.AllowTimeout {
		if err != nil {
			return "", capabilityError(fmt.Sprintf("%s %s", a.Kind, a.Selector), err)
		}
		return "", nil
	}

	switch {
	case err == nil:
		return SignalCompleted, nil
	case failure.IsTimeout(err) && ctx.Err() == nil:
		// Only the action's own reduced deadline counts as the signal; an
		// expired outer deadline is still a timeout failure.
		return SignalTimeout, nil
	default:
		return "", capabilityError(fmt.Sprintf("%s %s", a.Kind, a.Selector), err)
	}
}

// check evaluates every observable of the named state, retrying within the
// settle window.
func (r *runner) check(ctx context.Context, name string) error {
	state, _ := r.graph.State(name)
	if len(state.Observables) == 0 {
		return nil
	}

	deadline := time.Now().Add(r.settle)
	for {
		violations, err := r.evaluate(ctx, state)
		if err != nil {
			return err
		}
		if len(violations) == 0 {
			return nil
		}
		if r.settle <= 0 || time.Now().After(deadline) {
			return violations
		}
		if err := sleepOrDone(ctx, r.interval); err != nil {
			return failure.Wrap(failure.KindTimeout, fmt.Sprintf("waiting for state %s", name), err)
		}
	}
}

func (r *runner) evaluate(ctx context.Context, state State) (failure.List, error) {
	var violations failure.List
	for _, o := range state.Observables {
		expected := o.Value
		if o.Kind != TitleMatches {
			var err error
			if expected, err = r.expand(o.Value); err != nil {
				return nil, err
			}
		}
		ok, actual, err := r.observe(ctx, o, expected)
		if err != nil {
			return nil, capabilityError(fmt.Sprintf("observe %s in %s", o, state.Name), err)
		}
		if ok {
			continue
		}
		v := failure.Mismatch(failure.KindInvariantViolation,
			fmt.Sprintf("state %s: %s does not hold", state.Name, o),
			describe(o, expected), actual)
		v.Key = state.Name + "." + string(o.Kind)
		violations = append(violations, v)
	}
	return violations, nil
}

// observe returns whether o holds and a rendering of what was seen.
func (r *runner) observe(ctx context.Context, o Observable, expected string) (bool, string, error) {
	switch o.Kind {
	case Visible, Hidden:
		visible, err := r.page.Locate(o.Selector).IsVisible(ctx)
		if err != nil {
			return false, "", err
		}
		actual := "hidden"
		if visible {
			actual = "visible"
		}
		return visible == (o.Kind == Visible), actual, nil

	case TextEquals, TextContains:
		el := r.page.Locate(o.Selector)
		visible, err := el.IsVisible(ctx)
		if err != nil {
			return false, "", err
		}
		if !visible {
			return false, "<not visible>", nil
		}
		text, err := el.Text(ctx)
		if err != nil {
			return false, "", err
		}
		text, want := normalize(text), normalize(expected)
		if o.Kind == TextEquals {
			return text == want, text, nil
		}
		return strings.Contains(text, want), text, nil

	case AttributeEquals:
		value, present, err := r.page.Locate(o.Selector).Attribute(ctx, o.Attribute)
		if err != nil {
			return false, "", err
		}
		if !present {
			return false, "<absent>", nil
		}
		return value == expected, value, nil

	case URLEquals:
		current, err := r.page.CurrentURL(ctx)
		if err != nil {
			return false, "", err
		}
		want := r.resolveURL(expected)
		return current == want, current, nil

	case TitleMatches:
		title, err := r.page.Title(ctx)
		if err != nil {
			return false, "", err
		}
		re, err := regexp.Compile(expected)
		if err != nil {
			return false, "", err
		}
		return re.MatchString(title), title, nil
	}
	return false, "", fmt.Errorf("unknown observable kind %q", o.Kind)
}

// resolveURL resolves a relative expectation against the flow's start URL.
func (r *runner) resolveURL(ref string) string {
	if r.flow.URL == "" {
		return ref
	}
	start, err := r.expand(r.flow.URL)
	if err != nil {
		return ref
	}
	base, err := url.Parse(start)
	if err != nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

func describe(o Observable, expected string) string {
	switch o.Kind {
	case Visible:
		return "visible"
	case Hidden:
		return "hidden"
	case TextContains:
		return fmt.Sprintf("contains %q", expected)
	case TitleMatches:
		return fmt.Sprintf("matches /%s/", expected)
	}
	return expected
}

// normalize canonicalises rendered text: NFC form with runs of whitespace
// collapsed, the way a reader sees it.
func normalize(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

// capabilityError classifies a ui error: timeouts become TIMEOUT, anything
// else is FLOW_ERROR.
func capabilityError(op string, err error) error {
	if failure.IsTimeout(err) {
		return failure.Wrap(failure.KindTimeout, op, err)
	}
	return failure.Wrap(failure.KindFlowError, op, err)
}

func sleepOrDone(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
