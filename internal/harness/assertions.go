package harness

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/roach88/conformer/internal/failure"
	"github.com/roach88/conformer/internal/flow"
	"github.com/roach88/conformer/internal/transport"
	"github.com/roach88/conformer/internal/verify"
)

// runCall resolves the endpoint, issues the request and applies the step's
// expectations in order: status, timing, then body.
func (r *Runner) runCall(ctx context.Context, sess *Session, idx int, step Step, res *Result) error {
	c := step.Call
	path, err := r.Registry.Resolve(c.Endpoint, c.Params...)
	if err != nil {
		return err
	}
	if c.Query != "" {
		path += "?" + c.Query
	}

	body := c.Body
	if c.BodyRef != "" {
		body = r.Objects[c.BodyRef]
	}

	method := strings.ToUpper(c.Method)
	ev := TraceEvent{Step: idx, Type: "call", Target: method + " " + path}

	out, err := transport.Do(ctx, sess.Transport, method, path, body)
	if err != nil {
		err = classify(ctx, fmt.Sprintf("%s %s", method, path), err, failure.KindTransport)
		ev.Outcome = string(failure.KindOf(err))
		res.addTrace(ev)
		return err
	}
	ev.Status = out.Status

	err = r.expectCall(step.Expect, out)
	ev.Outcome = outcome(err)
	res.addTrace(ev)
	return err
}

func (r *Runner) expectCall(exp Expect, out transport.Outcome) error {
	if exp.Status != 0 {
		if err := verify.Status(out, exp.Status); err != nil {
			return err
		}
	}

	if exp.Within != nil {
		lower, upper := verify.Window(exp.Within.Delay, r.tolerance(exp.Within))
		if err := verify.WithinWindow(out.Duration, lower, upper); err != nil {
			return err
		}
	}

	if exp.Body == nil && exp.Item == nil && exp.Items == nil {
		return nil
	}
	doc, err := verify.ParseBody(out.Body)
	if err != nil {
		return err
	}

	if exp.Body != nil {
		if err := verify.SingleItem(doc, exp.Body); err != nil {
			return err
		}
	}
	if exp.Item != nil {
		item, err := verify.Select(doc, exp.Item.At)
		if err != nil {
			return err
		}
		if err := verify.SingleItem(item, exp.Item.Shape); err != nil {
			return err
		}
	}
	if exp.Items != nil {
		items, err := verify.Select(doc, exp.Items.At)
		if err != nil {
			return err
		}
		if err := verify.MultipleItems(items, exp.Items.minLength(), exp.Items.First); err != nil {
			return err
		}
	}
	return nil
}

// runFlow walks a declared UI flow and checks how it ended.
func (r *Runner) runFlow(ctx context.Context, sess *Session, idx int, step Step, res *Result) error {
	f := r.Flows[step.Flow]
	vars := r.flowVars(step)

	fr, err := flow.Run(ctx, r.Graph, f, sess.Page, vars,
		flow.WithLogger(r.logger()),
		flow.WithSettle(r.Settle, 0),
	)

	ev := TraceEvent{Step: idx, Type: "flow", Target: f.Name}
	if fr != nil {
		ev.Visited = fr.Visited
		ev.Terminal = string(fr.Terminal)
		ev.Signal = string(fr.Signal())
		for _, sig := range fr.Signals {
			res.AddNote(fmt.Sprintf("step %d: %s on %s (%s -> %s)", idx, sig.Kind, sig.Selector, sig.From, sig.To))
		}
	}
	if err == nil {
		err = expectFlow(step.Expect, fr)
	}
	ev.Outcome = outcome(err)
	res.addTrace(ev)
	return err
}

// flowVars layers runner vars, the step's credential and step vars.
func (r *Runner) flowVars(step Step) map[string]string {
	vars := make(map[string]string, len(r.Vars)+len(step.Vars)+2)
	maps.Copy(vars, r.Vars)
	if step.User != "" {
		cred := r.Credentials[step.User]
		vars["username"] = cred.Username
		vars["password"] = cred.Password
	}
	maps.Copy(vars, step.Vars)
	return vars
}

func expectFlow(exp Expect, fr *flow.Result) error {
	if exp.Final != "" && fr.Final != exp.Final {
		return failure.Mismatch(failure.KindInvariantViolation, "flow ended in the wrong state", exp.Final, fr.Final)
	}
	if exp.Terminal != "" && fr.Terminal != exp.Terminal {
		return failure.Mismatch(failure.KindInvariantViolation, "unexpected terminal kind", string(exp.Terminal), string(fr.Terminal))
	}

	got := fr.Signal()
	actual := string(got)
	if actual == "" {
		actual = "<none>"
	}
	switch exp.Signal {
	case SignalTimeout:
		if got != flow.SignalTimeout {
			return failure.Mismatch(failure.KindInvariantViolation, "expected the action to time out", string(flow.SignalTimeout), actual)
		}
	case SignalCompleted:
		if got != flow.SignalCompleted {
			return failure.Mismatch(failure.KindInvariantViolation, "expected the action to complete", string(flow.SignalCompleted), actual)
		}
	case SignalAny:
		if got == "" {
			return failure.Mismatch(failure.KindInvariantViolation, "no allow_timeout action ran", "a signal", actual)
		}
	}
	return nil
}

func outcome(err error) string {
	if err == nil {
		return "pass"
	}
	return string(failure.KindOf(err))
}
