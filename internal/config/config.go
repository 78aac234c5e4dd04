// Package config loads fixture files: the endpoints, UI states, flows,
// credentials, test objects and scenarios that make up a suite.
//
// Fixtures are YAML or CUE. CUE files are evaluated and exported to JSON,
// then decoded through the same strict path as YAML, so both formats accept
// exactly the same fields. A built-in fixture covering the reqres API and
// SauceDemo login journeys is embedded for zero-configuration runs.
package config

import (
	"fmt"
	"time"

	"github.com/roach88/conformer/internal/endpoint"
	"github.com/roach88/conformer/internal/flow"
	"github.com/roach88/conformer/internal/harness"
)

// File is the top-level fixture document.
type File struct {
	API         API                           `yaml:"api"`
	UI          UI                            `yaml:"ui"`
	Credentials map[string]harness.Credential `yaml:"credentials,omitempty"`

	// Objects are named request bodies referenced by call.body_ref.
	Objects map[string]any `yaml:"objects,omitempty"`

	Run       Run                 `yaml:"run"`
	Scenarios []*harness.Scenario `yaml:"scenarios"`
}

// API configures the HTTP side of the suite.
type API struct {
	BaseURL string            `yaml:"base_url"`
	Headers map[string]string `yaml:"headers,omitempty"`

	// Timeout bounds each request. Zero leaves requests bounded only by the
	// scenario deadline.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	Endpoints []endpoint.Endpoint `yaml:"endpoints,omitempty"`

	// OpenAPI is a path to an OpenAPI 3 document whose operations are added
	// to Endpoints. Relative paths resolve against the fixture's directory.
	OpenAPI string `yaml:"openapi,omitempty"`
}

// UI configures the browser side of the suite.
type UI struct {
	BaseURL        string        `yaml:"base_url"`
	DefaultTimeout time.Duration `yaml:"default_timeout,omitempty"`

	// Settle is how long observables are re-polled before a state check
	// fails.
	Settle time.Duration `yaml:"settle,omitempty"`

	States []flow.State `yaml:"states,omitempty"`
	Flows  []flow.Flow  `yaml:"flows,omitempty"`
}

// Run holds execution defaults that command-line flags may override.
type Run struct {
	Parallel        int           `yaml:"parallel,omitempty"`
	ScenarioTimeout time.Duration `yaml:"scenario_timeout,omitempty"`
	Tolerance       time.Duration `yaml:"tolerance,omitempty"`
}

// Validate checks the fixture's structure. Cross references (flows to
// states, scenarios to endpoints) are checked by Build.
func (f *File) Validate() error {
	if len(f.Scenarios) == 0 {
		return fmt.Errorf("scenarios list is required and must be non-empty")
	}
	if len(f.API.Endpoints) > 0 || f.API.OpenAPI != "" {
		if f.API.BaseURL == "" {
			return fmt.Errorf("api.base_url is required when endpoints are declared")
		}
	}
	if len(f.UI.Flows) > 0 && f.UI.BaseURL == "" {
		return fmt.Errorf("ui.base_url is required when flows are declared")
	}
	if f.API.Timeout < 0 || f.UI.DefaultTimeout < 0 || f.UI.Settle < 0 {
		return fmt.Errorf("timeouts must be non-negative")
	}
	if f.Run.Parallel < 0 {
		return fmt.Errorf("run.parallel must be non-negative")
	}
	if f.Run.ScenarioTimeout < 0 || f.Run.Tolerance < 0 {
		return fmt.Errorf("run.scenario_timeout and run.tolerance must be non-negative")
	}

	seen := make(map[string]bool, len(f.Scenarios))
	for i, s := range f.Scenarios {
		if s == nil {
			return fmt.Errorf("scenarios[%d]: empty scenario", i)
		}
		if err := harness.ValidateScenario(s); err != nil {
			return fmt.Errorf("scenarios[%d] %q: %w", i, s.Name, err)
		}
		if seen[s.Name] {
			return fmt.Errorf("scenarios[%d]: duplicate scenario name %q", i, s.Name)
		}
		seen[s.Name] = true
	}
	for name, cred := range f.Credentials {
		if cred.Username == "" {
			return fmt.Errorf("credentials.%s: username is required", name)
		}
	}
	return nil
}
