// Package flow models multi-step browser journeys as a state machine.
//
// A Graph declares the UI states and what must be observable in each. A
// Flow is a simple path through the graph: an entry state followed by
// transitions, each carrying the user actions that move the page from one
// state to the next. Run walks a flow against a ui.Page and checks every
// state's observables along the way.
package flow

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// TerminalKind classifies how a flow ends.
type TerminalKind string

const (
	// TerminalNone marks an intermediate state.
	TerminalNone TerminalKind = ""

	// TerminalSuccess is the happy-path end of a journey.
	TerminalSuccess TerminalKind = "success"

	// TerminalExpectedFailure is a known-bad but valid end, such as the
	// locked-out banner or the broken product images.
	TerminalExpectedFailure TerminalKind = "expected_failure"
)

func (k TerminalKind) valid() bool {
	switch k {
	case TerminalNone, TerminalSuccess, TerminalExpectedFailure:
		return true
	}
	return false
}

// ObservableKind names a predicate over the page.
type ObservableKind string

const (
	Visible         ObservableKind = "visible"
	Hidden          ObservableKind = "hidden"
	TextEquals      ObservableKind = "text_equals"
	TextContains    ObservableKind = "text_contains"
	AttributeEquals ObservableKind = "attribute_equals"
	URLEquals       ObservableKind = "url_equals"
	TitleMatches    ObservableKind = "title_matches"
)

// Observable is one predicate that must hold while the page is in a state.
type Observable struct {
	Kind      ObservableKind `yaml:"kind" json:"kind"`
	Selector  string         `yaml:"selector,omitempty" json:"selector,omitempty"`
	Attribute string         `yaml:"attribute,omitempty" json:"attribute,omitempty"`
	Value     string         `yaml:"value,omitempty" json:"value,omitempty"`
}

// String renders the observable for failure keys and traces.
func (o Observable) String() string {
	switch o.Kind {
	case URLEquals, TitleMatches:
		return string(o.Kind)
	case AttributeEquals:
		return fmt.Sprintf("%s %s[%s]", o.Kind, o.Selector, o.Attribute)
	}
	return fmt.Sprintf("%s %s", o.Kind, o.Selector)
}

func (o Observable) validate() error {
	switch o.Kind {
	case Visible, Hidden, TextEquals, TextContains:
		if o.Selector == "" {
			return fmt.Errorf("%s requires a selector", o.Kind)
		}
	case AttributeEquals:
		if o.Selector == "" || o.Attribute == "" {
			return fmt.Errorf("%s requires a selector and an attribute", o.Kind)
		}
	case URLEquals:
		if o.Value == "" {
			return fmt.Errorf("%s requires a value", o.Kind)
		}
	case TitleMatches:
		if _, err := regexp.Compile(o.Value); err != nil {
			return fmt.Errorf("%s: invalid pattern: %w", o.Kind, err)
		}
	case "":
		return fmt.Errorf("observable kind is required")
	default:
		return fmt.Errorf("unknown observable kind %q", o.Kind)
	}
	return nil
}

// State is a named node of the graph.
type State struct {
	Name        string       `yaml:"name" json:"name"`
	Terminal    TerminalKind `yaml:"terminal,omitempty" json:"terminal,omitempty"`
	Observables []Observable `yaml:"observables,omitempty" json:"observables,omitempty"`
}

// ActionKind is a user interaction.
type ActionKind string

const (
	Fill  ActionKind = "fill"
	Click ActionKind = "click"
)

// Action is one interaction with an element.
type Action struct {
	Kind     ActionKind `yaml:"kind" json:"kind"`
	Selector string     `yaml:"selector" json:"selector"`

	// Value is the text typed by fill. ${name} references are expanded
	// from the run's variables.
	Value string `yaml:"value,omitempty" json:"value,omitempty"`

	// Timeout bounds this action more tightly than the flow deadline.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// AllowTimeout turns a timeout into a recorded signal rather than a
	// failure.
	AllowTimeout bool `yaml:"allow_timeout,omitempty" json:"allow_timeout,omitempty"`
}

func (a Action) validate() error {
	switch a.Kind {
	case Fill, Click:
	case "":
		return fmt.Errorf("action kind is required")
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
	if a.Selector == "" {
		return fmt.Errorf("%s requires a selector", a.Kind)
	}
	if a.Kind == Click && a.Value != "" {
		return fmt.Errorf("click does not take a value")
	}
	if a.Timeout < 0 {
		return fmt.Errorf("negative timeout %s", a.Timeout)
	}
	if a.AllowTimeout && a.Timeout == 0 {
		return fmt.Errorf("allow_timeout requires a timeout")
	}
	return nil
}

// Transition moves the page from one state to another.
type Transition struct {
	From    string   `yaml:"from" json:"from"`
	To      string   `yaml:"to" json:"to"`
	Actions []Action `yaml:"actions" json:"actions"`
}

// Flow is a declared journey through a Graph.
type Flow struct {
	Name        string       `yaml:"name" json:"name"`
	Description string       `yaml:"description,omitempty" json:"description,omitempty"`
	URL         string       `yaml:"url,omitempty" json:"url,omitempty"`
	Entry       string       `yaml:"entry" json:"entry"`
	Steps       []Transition `yaml:"steps,omitempty" json:"steps,omitempty"`
}

// Path returns the states the flow visits, entry first.
func (f Flow) Path() []string {
	path := make([]string, 0, len(f.Steps)+1)
	path = append(path, f.Entry)
	for _, step := range f.Steps {
		path = append(path, step.To)
	}
	return path
}

// Graph is the set of declared UI states.
type Graph struct {
	States map[string]State
}

// NewGraph builds a graph, rejecting duplicate and invalid states.
func NewGraph(states ...State) (*Graph, error) {
	g := &Graph{States: make(map[string]State, len(states))}
	for _, s := range states {
		if _, dup := g.States[s.Name]; dup {
			return nil, fmt.Errorf("duplicate state %q", s.Name)
		}
		g.States[s.Name] = s
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Validate checks every state declaration.
func (g *Graph) Validate() error {
	for _, name := range g.Names() {
		s := g.States[name]
		if name == "" || s.Name != name {
			return fmt.Errorf("state %q: name mismatch", name)
		}
		if !s.Terminal.valid() {
			return fmt.Errorf("state %q: unknown terminal kind %q", name, s.Terminal)
		}
		for i, o := range s.Observables {
			if err := o.validate(); err != nil {
				return fmt.Errorf("state %q: observable %d: %w", name, i, err)
			}
		}
	}
	return nil
}

// State returns the named state.
func (g *Graph) State(name string) (State, bool) {
	s, ok := g.States[name]
	return s, ok
}

// Names returns state names in sorted order.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.States))
	for name := range g.States {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that f is a simple path through g: the entry exists,
// transitions chain, no state is revisited and only the final state may be
// terminal.
func (f Flow) Validate(g *Graph) error {
	if f.Name == "" {
		return fmt.Errorf("flow name is required")
	}
	if _, ok := g.State(f.Entry); !ok {
		return fmt.Errorf("flow %q: unknown entry state %q", f.Name, f.Entry)
	}

	seen := map[string]int{f.Entry: 0}
	current := f.Entry
	for i, step := range f.Steps {
		if step.From != current {
			return fmt.Errorf("flow %q: step %d starts at %q, expected %q", f.Name, i, step.From, current)
		}
		if _, ok := g.State(step.To); !ok {
			return fmt.Errorf("flow %q: step %d: unknown state %q", f.Name, i, step.To)
		}
		if len(step.Actions) == 0 {
			return fmt.Errorf("flow %q: step %d (%s -> %s) has no actions", f.Name, i, step.From, step.To)
		}
		for j, a := range step.Actions {
			if err := a.validate(); err != nil {
				return fmt.Errorf("flow %q: step %d: action %d: %w", f.Name, i, j, err)
			}
		}
		if prev, dup := seen[step.To]; dup {
			cycle := append(f.Path()[prev:i+1], step.To)
			return fmt.Errorf("flow %q: state %q revisited: %s", f.Name, step.To, strings.Join(cycle, " → "))
		}
		seen[step.To] = i + 1
		current = step.To
	}

	path := f.Path()
	for _, name := range path[:len(path)-1] {
		if s, _ := g.State(name); s.Terminal != TerminalNone {
			return fmt.Errorf("flow %q: terminal state %q is not the last state", f.Name, name)
		}
	}
	return nil
}
