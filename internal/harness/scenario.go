package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/conformer/internal/flow"
	"github.com/roach88/conformer/internal/shape"
	"github.com/roach88/conformer/internal/transport"
)

// Scenario is one independent test case.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name" json:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Tags select scenarios from the command line.
	Tags []string `yaml:"tags,omitempty" json:"tags,omitempty"`

	// Timeout bounds the whole scenario. Zero uses the runner default.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// Steps execute in order; the first failure stops the scenario.
	Steps []Step `yaml:"steps" json:"steps"`
}

// Step is either an endpoint call or a flow run.
type Step struct {
	// Name labels the step in reports. Defaults to a rendering of the call
	// or flow.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	Call *Call `yaml:"call,omitempty" json:"call,omitempty"`

	// Flow names a declared UI flow.
	Flow string `yaml:"flow,omitempty" json:"flow,omitempty"`

	// User names a declared credential; its username and password are
	// exposed to the flow as ${username} and ${password}.
	User string `yaml:"user,omitempty" json:"user,omitempty"`

	// Vars are extra ${name} substitutions for the flow.
	Vars map[string]string `yaml:"vars,omitempty" json:"vars,omitempty"`

	Expect Expect `yaml:"expect,omitempty" json:"expect,omitempty"`
}

// Call is a request against a registered endpoint.
type Call struct {
	Method   string `yaml:"method" json:"method"`
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Params   []int  `yaml:"params,omitempty" json:"params,omitempty"`

	// Query is appended verbatim after "?".
	Query string `yaml:"query,omitempty" json:"query,omitempty"`

	// Body is sent as JSON. BodyRef names a declared test object instead.
	Body    any    `yaml:"body,omitempty" json:"body,omitempty"`
	BodyRef string `yaml:"body_ref,omitempty" json:"body_ref,omitempty"`
}

// Expect lists the checks applied to a step's outcome.
type Expect struct {
	// Call checks.
	Status int          `yaml:"status,omitempty" json:"status,omitempty"`
	Within *Within      `yaml:"within,omitempty" json:"within,omitempty"`
	Body   shape.Shape  `yaml:"body,omitempty" json:"body,omitempty"`
	Item   *ItemExpect  `yaml:"item,omitempty" json:"item,omitempty"`
	Items  *ItemsExpect `yaml:"items,omitempty" json:"items,omitempty"`

	// Flow checks.
	Terminal flow.TerminalKind `yaml:"terminal,omitempty" json:"terminal,omitempty"`
	Final    string            `yaml:"final,omitempty" json:"final,omitempty"`
	Signal   SignalExpect      `yaml:"signal,omitempty" json:"signal,omitempty"`
}

// Within is a timing window for a delayed endpoint.
type Within struct {
	Delay time.Duration `yaml:"delay" json:"delay"`

	// Tolerance widens the upper bound. Zero uses the runner default.
	Tolerance time.Duration `yaml:"tolerance,omitempty" json:"tolerance,omitempty"`
}

// ItemExpect checks a single value selected from the body.
type ItemExpect struct {
	At    string      `yaml:"at,omitempty" json:"at,omitempty"`
	Shape shape.Shape `yaml:"shape" json:"shape"`
}

// ItemsExpect checks a collection selected from the body.
type ItemsExpect struct {
	At string `yaml:"at,omitempty" json:"at,omitempty"`

	// MinLength defaults to 1.
	MinLength *int        `yaml:"min_length,omitempty" json:"min_length,omitempty"`
	First     shape.Shape `yaml:"first,omitempty" json:"first,omitempty"`
}

// minLength returns the declared minimum, defaulting to one element.
func (e *ItemsExpect) minLength() int {
	if e.MinLength == nil {
		return 1
	}
	return *e.MinLength
}

// SignalExpect is the signal an allow_timeout action must produce.
type SignalExpect string

const (
	SignalNone      SignalExpect = ""
	SignalTimeout   SignalExpect = "timeout"
	SignalCompleted SignalExpect = "completed"
	SignalAny       SignalExpect = "any"
)

// IsCall reports whether the step is an endpoint call.
func (s Step) IsCall() bool {
	return s.Call != nil
}

// Label returns the step name used in reports.
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	if s.Call != nil {
		label := strings.ToUpper(s.Call.Method) + " " + s.Call.Endpoint
		if len(s.Call.Params) > 0 {
			parts := make([]string, len(s.Call.Params))
			for i, p := range s.Call.Params {
				parts[i] = fmt.Sprint(p)
			}
			label += "(" + strings.Join(parts, ",") + ")"
		}
		return label
	}
	label := "flow " + s.Flow
	if s.User != "" {
		label += " as " + s.User
	}
	return label
}

// Needs reports which capabilities a scenario uses.
type Needs struct {
	API bool
	UI  bool
}

// Needs returns the capabilities the scenario's steps require.
func (s *Scenario) Needs() Needs {
	var n Needs
	for _, step := range s.Steps {
		if step.IsCall() {
			n.API = true
		} else {
			n.UI = true
		}
	}
	return n
}

// HasTag reports whether the scenario carries tag.
func (s *Scenario) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// scenarioFile is the top-level document of a scenarios file: either a
// list under "scenarios" or a single scenario.
type scenarioFile struct {
	Scenarios []*Scenario `yaml:"scenarios"`
}

// LoadScenarios reads scenarios from a YAML file. The file holds either a
// single scenario or a "scenarios:" list. Unknown fields are rejected.
func LoadScenarios(path string) ([]*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return DecodeScenarios(data)
}

// DecodeScenarios parses scenario YAML with strict field validation.
func DecodeScenarios(data []byte) ([]*Scenario, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("scenario file is empty")
	}

	var scenarios []*Scenario
	if isList(root.Content[0]) {
		var file scenarioFile
		if err := decodeStrict(data, &file); err != nil {
			return nil, err
		}
		scenarios = file.Scenarios
	} else {
		var s Scenario
		if err := decodeStrict(data, &s); err != nil {
			return nil, err
		}
		scenarios = []*Scenario{&s}
	}

	for _, s := range scenarios {
		if err := ValidateScenario(s); err != nil {
			return nil, fmt.Errorf("invalid scenario %q: %w", s.Name, err)
		}
	}
	return scenarios, nil
}

func isList(doc *yaml.Node) bool {
	if doc.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value == "scenarios" {
			return true
		}
	}
	return false
}

func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// ValidateScenario checks a scenario's structure. References to endpoints,
// flows, credentials and objects are checked by Runner.Check.
func ValidateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}
	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch {
	case step.Call != nil && step.Flow != "":
		return fmt.Errorf("call and flow are mutually exclusive")
	case step.Call == nil && step.Flow == "":
		return fmt.Errorf("either call or flow is required")
	}

	exp := step.Expect
	if step.Call != nil {
		c := step.Call
		if c.Endpoint == "" {
			return fmt.Errorf("call.endpoint is required")
		}
		if !transport.ValidMethod(c.Method) {
			return fmt.Errorf("call.method %q is not one of GET, POST, PUT, DELETE", c.Method)
		}
		if c.Body != nil && c.BodyRef != "" {
			return fmt.Errorf("call.body and call.body_ref are mutually exclusive")
		}
		if strings.HasPrefix(c.Query, "?") {
			return fmt.Errorf("call.query must not start with '?'")
		}
		if exp.Terminal != "" || exp.Final != "" || exp.Signal != "" {
			return fmt.Errorf("terminal, final and signal apply to flow steps only")
		}
		if step.User != "" || len(step.Vars) > 0 {
			return fmt.Errorf("user and vars apply to flow steps only")
		}
		if exp.Status != 0 && (exp.Status < 100 || exp.Status > 599) {
			return fmt.Errorf("expect.status %d is not an HTTP status", exp.Status)
		}
		if exp.Within != nil && (exp.Within.Delay < 0 || exp.Within.Tolerance < 0) {
			return fmt.Errorf("expect.within must be non-negative")
		}
		if exp.Item != nil && len(exp.Item.Shape) == 0 {
			return fmt.Errorf("expect.item.shape is required")
		}
		if exp.Items != nil && exp.Items.minLength() < 0 {
			return fmt.Errorf("expect.items.min_length must be non-negative")
		}
		return nil
	}

	if exp.Status != 0 || exp.Within != nil || exp.Body != nil || exp.Item != nil || exp.Items != nil {
		return fmt.Errorf("status, within, body, item and items apply to call steps only")
	}
	switch exp.Terminal {
	case flow.TerminalNone, flow.TerminalSuccess, flow.TerminalExpectedFailure:
	default:
		return fmt.Errorf("expect.terminal %q is not success or expected_failure", exp.Terminal)
	}
	switch exp.Signal {
	case SignalNone, SignalTimeout, SignalCompleted, SignalAny:
	default:
		return fmt.Errorf("expect.signal %q is not timeout, completed or any", exp.Signal)
	}
	return nil
}
