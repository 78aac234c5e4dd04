package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/conformer/internal/endpoint"
	"github.com/roach88/conformer/internal/failure"
	"github.com/roach88/conformer/internal/flow"
	"github.com/roach88/conformer/internal/transport"
	"github.com/roach88/conformer/internal/ui"
	"github.com/roach88/conformer/internal/verify"
)

// DefaultTimeout bounds a scenario when neither it nor the runner sets one.
const DefaultTimeout = 60 * time.Second

// Session holds the capabilities owned by one scenario.
type Session struct {
	Transport transport.Transport
	Page      ui.Page
}

// SessionFactory creates an isolated Session. The returned release func
// must be called exactly once when the scenario ends.
type SessionFactory interface {
	Acquire(ctx context.Context, needs Needs) (*Session, func(), error)
}

// Sessions is a SessionFactory built from constructors. Capabilities a
// scenario does not need are never created, so an API-only scenario never
// starts a browser.
type Sessions struct {
	NewTransport func() (transport.Transport, func())
	NewPage      func(ctx context.Context) (ui.Page, func(), error)
}

// Acquire implements SessionFactory.
func (s Sessions) Acquire(ctx context.Context, needs Needs) (*Session, func(), error) {
	sess := &Session{}
	var releases []func()
	release := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	if needs.API {
		if s.NewTransport == nil {
			return nil, nil, errors.New("no API transport configured")
		}
		t, done := s.NewTransport()
		sess.Transport = t
		if done != nil {
			releases = append(releases, done)
		}
	}
	if needs.UI {
		if s.NewPage == nil {
			release()
			return nil, nil, errors.New("no browser configured")
		}
		page, done, err := s.NewPage(ctx)
		if err != nil {
			release()
			return nil, nil, fmt.Errorf("failed to open page: %w", err)
		}
		sess.Page = page
		if done != nil {
			releases = append(releases, done)
		}
	}
	return sess, release, nil
}

// Clock is the time source for run timestamps and durations.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// IDGenerator produces run identifiers.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable run ids.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Credential is a named login for UI flows.
type Credential struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Runner executes scenarios.
type Runner struct {
	Registry    *endpoint.Registry
	Graph       *flow.Graph
	Flows       map[string]flow.Flow
	Credentials map[string]Credential
	Objects     map[string]any

	// Vars are substitutions available to every flow.
	Vars map[string]string

	Sessions SessionFactory
	Logger   *slog.Logger
	Clock    Clock
	IDs      IDGenerator

	// Parallel is the number of concurrent scenarios; <= 1 runs them
	// sequentially.
	Parallel int

	// Timeout bounds each scenario that does not set its own.
	Timeout time.Duration

	// Tolerance is the default upper slack for timing windows.
	Tolerance time.Duration

	// Settle is how long UI observables are re-polled before failing.
	Settle time.Duration
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r.Logger
}

func (r *Runner) clock() Clock {
	if r.Clock == nil {
		return systemClock{}
	}
	return r.Clock
}

func (r *Runner) timeout(s *Scenario) time.Duration {
	switch {
	case s.Timeout > 0:
		return s.Timeout
	case r.Timeout > 0:
		return r.Timeout
	}
	return DefaultTimeout
}

func (r *Runner) tolerance(w *Within) time.Duration {
	switch {
	case w.Tolerance > 0:
		return w.Tolerance
	case r.Tolerance > 0:
		return r.Tolerance
	}
	return verify.DefaultTolerance
}

// Check resolves every reference a scenario makes: endpoints and their
// arity, flows, credentials and body objects.
func (r *Runner) Check(s *Scenario) error {
	if err := ValidateScenario(s); err != nil {
		return err
	}
	for i, step := range s.Steps {
		if step.IsCall() {
			if r.Registry == nil {
				return fmt.Errorf("steps[%d]: no endpoints registered", i)
			}
			params, ok := r.Registry.Params(step.Call.Endpoint)
			if !ok {
				return fmt.Errorf("steps[%d]: unknown endpoint %q", i, step.Call.Endpoint)
			}
			if len(params) != len(step.Call.Params) {
				return fmt.Errorf("steps[%d]: endpoint %q takes %d param(s), got %d", i, step.Call.Endpoint, len(params), len(step.Call.Params))
			}
			if ref := step.Call.BodyRef; ref != "" {
				if _, ok := r.Objects[ref]; !ok {
					return fmt.Errorf("steps[%d]: unknown object %q", i, ref)
				}
			}
			continue
		}

		f, ok := r.Flows[step.Flow]
		if !ok {
			return fmt.Errorf("steps[%d]: unknown flow %q", i, step.Flow)
		}
		if r.Graph == nil {
			return fmt.Errorf("steps[%d]: no UI states declared", i)
		}
		if err := f.Validate(r.Graph); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if step.User != "" {
			if _, ok := r.Credentials[step.User]; !ok {
				return fmt.Errorf("steps[%d]: unknown user %q", i, step.User)
			}
		}
		if step.Expect.Final != "" {
			if _, ok := r.Graph.State(step.Expect.Final); !ok {
				return fmt.Errorf("steps[%d]: unknown final state %q", i, step.Expect.Final)
			}
		}
	}
	return nil
}

// Run executes one scenario in a fresh session. It never returns nil and
// never panics on assertion failures: every problem becomes a Failure.
func (r *Runner) Run(ctx context.Context, s *Scenario) *Result {
	log := r.logger().With("scenario", s.Name)
	res := NewResult(s.Name)
	start := r.clock().Now()
	defer func() {
		res.Duration = r.clock().Now().Sub(start)
		log.Info("scenario finished", "passed", res.Passed, "duration_ms", res.Duration.Milliseconds())
	}()

	if err := r.Check(s); err != nil {
		res.AddFailure(-1, "", failure.Wrap(failure.KindInvalidScenario, "invalid scenario", err))
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout(s))
	defer cancel()

	if r.Sessions == nil {
		res.AddFailure(-1, "", failure.New(failure.KindFlowError, "no session factory configured"))
		return res
	}
	sess, release, err := r.Sessions.Acquire(ctx, s.Needs())
	if err != nil {
		res.AddFailure(-1, "", classify(ctx, "failed to acquire session", err, failure.KindFlowError))
		return res
	}
	defer release()

	for i, step := range s.Steps {
		log.Debug("step started", "step", i, "label", step.Label())
		var err error
		if step.IsCall() {
			err = r.runCall(ctx, sess, i, step, res)
		} else {
			err = r.runFlow(ctx, sess, i, step, res)
		}
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) && !failure.IsTimeout(err) {
				// The scenario deadline cut the step short.
				err = failure.Wrap(failure.KindTimeout, "scenario timed out", err)
			}
			res.AddFailure(i, step.Label(), err)
			log.Debug("step failed", "step", i, "kind", failure.KindOf(err), "err", err)
			return res
		}
	}
	return res
}

// RunAll runs scenarios sequentially or, with Parallel > 1, on a bounded
// pool of workers. Results are returned in declaration order.
func (r *Runner) RunAll(ctx context.Context, scenarios []*Scenario) *Report {
	ids := r.IDs
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	rep := &Report{ID: ids.Generate(), Started: r.clock().Now()}
	results := make([]*Result, len(scenarios))

	if r.Parallel <= 1 {
		for i, s := range scenarios {
			results[i] = r.Run(ctx, s)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(r.Parallel)
		for i, s := range scenarios {
			g.Go(func() error {
				results[i] = r.Run(ctx, s)
				return nil
			})
		}
		_ = g.Wait() // workers never return errors
	}

	rep.Results = results
	rep.Totals = Summary(results)
	rep.Duration = r.clock().Now().Sub(rep.Started)
	return rep
}

// classify turns a capability error into a failure: deadline expiry is a
// timeout, anything else gets fallback.
func classify(ctx context.Context, msg string, err error, fallback failure.Kind) error {
	var fe *failure.Error
	if errors.As(err, &fe) {
		return err
	}
	if failure.IsTimeout(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return failure.Wrap(failure.KindTimeout, msg, err)
	}
	return failure.Wrap(fallback, msg, err)
}
