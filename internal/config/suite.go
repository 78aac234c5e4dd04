package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/roach88/conformer/internal/endpoint"
	"github.com/roach88/conformer/internal/flow"
	"github.com/roach88/conformer/internal/harness"
)

// Suite is a fixture with its declarations compiled.
type Suite struct {
	File      *File
	Registry  *endpoint.Registry
	Graph     *flow.Graph
	Flows     map[string]flow.Flow
	Scenarios []*harness.Scenario
}

// Build compiles the fixture's endpoints, states and flows. baseDir
// resolves a relative api.openapi path; pass "" for the embedded fixture.
func Build(f *File, baseDir string) (*Suite, error) {
	endpoints := append([]endpoint.Endpoint(nil), f.API.Endpoints...)
	if f.API.OpenAPI != "" {
		p := f.API.OpenAPI
		if !filepath.IsAbs(p) && baseDir != "" {
			p = filepath.Join(baseDir, p)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read OpenAPI doc: %w", err)
		}
		derived, err := endpoint.FromOpenAPI(data)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, derived...)
	}
	reg, err := endpoint.NewRegistry(endpoints...)
	if err != nil {
		return nil, fmt.Errorf("api.endpoints: %w", err)
	}

	graph, err := flow.NewGraph(f.UI.States...)
	if err != nil {
		return nil, fmt.Errorf("ui.states: %w", err)
	}

	flows := make(map[string]flow.Flow, len(f.UI.Flows))
	for i, fl := range f.UI.Flows {
		if _, dup := flows[fl.Name]; dup {
			return nil, fmt.Errorf("ui.flows[%d]: duplicate flow name %q", i, fl.Name)
		}
		if err := fl.Validate(graph); err != nil {
			return nil, fmt.Errorf("ui.flows[%d]: %w", i, err)
		}
		flows[fl.Name] = fl
	}

	return &Suite{
		File:      f,
		Registry:  reg,
		Graph:     graph,
		Flows:     flows,
		Scenarios: f.Scenarios,
	}, nil
}

// Runner returns a runner carrying the suite's declarations and run
// defaults. Callers set Sessions, Logger and any flag overrides.
func (s *Suite) Runner() *harness.Runner {
	f := s.File
	return &harness.Runner{
		Registry:    s.Registry,
		Graph:       s.Graph,
		Flows:       s.Flows,
		Credentials: f.Credentials,
		Objects:     f.Objects,
		Vars: map[string]string{
			"api_base_url": f.API.BaseURL,
			"ui_base_url":  f.UI.BaseURL,
		},
		Parallel:  f.Run.Parallel,
		Timeout:   f.Run.ScenarioTimeout,
		Tolerance: f.Run.Tolerance,
		Settle:    f.UI.Settle,
	}
}

// Check resolves every scenario's references and reports all problems.
func (s *Suite) Check() error {
	r := s.Runner()
	var errs []error
	for _, sc := range s.Scenarios {
		if err := r.Check(sc); err != nil {
			errs = append(errs, fmt.Errorf("scenario %q: %w", sc.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Select returns the scenarios whose name matches the glob pattern and that
// carry every tag. An empty pattern matches all names.
func (s *Suite) Select(pattern string, tags []string) ([]*harness.Scenario, error) {
	if pattern != "" {
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid filter %q: %w", pattern, err)
		}
	}

	var out []*harness.Scenario
next:
	for _, sc := range s.Scenarios {
		if pattern != "" {
			if ok, _ := path.Match(pattern, sc.Name); !ok {
				continue
			}
		}
		for _, tag := range tags {
			if !sc.HasTag(tag) {
				continue next
			}
		}
		out = append(out, sc)
	}
	return out, nil
}
