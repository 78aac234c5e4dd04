// Package endpoint declares API routes and resolves them to request paths.
//
// An Endpoint's Path is a template. Plain paths ("/api/users") resolve to
// themselves; parameterized paths ("/api/users/{id}") take exactly one
// integer per placeholder, rendered in decimal. Templates are parsed once
// when the registry is built, so Resolve is a pure lookup.
package endpoint

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/conformer/internal/failure"
)

// Endpoint is a named, possibly parameterized API route.
type Endpoint struct {
	Name string `yaml:"name" json:"name"`
	Path string `yaml:"path" json:"path"`
}

// segment is a literal chunk of a template, or a placeholder when param is set.
type segment struct {
	text  string
	param string
}

type compiled struct {
	endpoint Endpoint
	segments []segment
	params   []string
}

// Registry is an immutable set of endpoints keyed by name.
type Registry struct {
	byName map[string]compiled
	names  []string
}

// NewRegistry builds a registry. Names must be unique and non-empty and
// every template must parse.
func NewRegistry(endpoints ...Endpoint) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]compiled, len(endpoints)),
		names:  make([]string, 0, len(endpoints)),
	}

	for i, ep := range endpoints {
		if ep.Name == "" {
			return nil, fmt.Errorf("endpoints[%d]: name is required", i)
		}
		if _, dup := r.byName[ep.Name]; dup {
			return nil, fmt.Errorf("endpoints[%d]: duplicate endpoint name %q", i, ep.Name)
		}
		segs, params, err := parseTemplate(ep.Path)
		if err != nil {
			return nil, fmt.Errorf("endpoint %q: %w", ep.Name, err)
		}
		r.byName[ep.Name] = compiled{endpoint: ep, segments: segs, params: params}
		r.names = append(r.names, ep.Name)
	}

	sort.Strings(r.names)
	return r, nil
}

// Resolve renders the named endpoint with the given parameters.
// Fails with KindUnknownEndpoint when the name is absent or when the number
// of parameters does not match the template.
func (r *Registry) Resolve(name string, params ...int) (string, error) {
	c, ok := r.byName[name]
	if !ok {
		return "", failure.New(failure.KindUnknownEndpoint, "no endpoint named %q", name)
	}
	if len(params) != len(c.params) {
		return "", &failure.Error{
			Kind:     failure.KindUnknownEndpoint,
			Message:  fmt.Sprintf("endpoint %q has no form taking %d parameter(s)", name, len(params)),
			Expected: strconv.Itoa(len(c.params)),
			Actual:   strconv.Itoa(len(params)),
		}
	}

	var buf strings.Builder
	next := 0
	for _, seg := range c.segments {
		if seg.param == "" {
			buf.WriteString(seg.text)
			continue
		}
		buf.WriteString(strconv.Itoa(params[next]))
		next++
	}
	return buf.String(), nil
}

// Lookup returns the declaration for name.
func (r *Registry) Lookup(name string) (Endpoint, bool) {
	c, ok := r.byName[name]
	return c.endpoint, ok
}

// Params returns the placeholder names of the named endpoint in order.
func (r *Registry) Params(name string) ([]string, bool) {
	c, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return append([]string(nil), c.params...), true
}

// Names returns all endpoint names, sorted.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Len returns the number of endpoints.
func (r *Registry) Len() int {
	return len(r.names)
}

// parseTemplate splits a path template into literal and placeholder segments.
func parseTemplate(path string) ([]segment, []string, error) {
	if path == "" {
		return nil, nil, fmt.Errorf("path is required")
	}

	var segs []segment
	var params []string
	seen := make(map[string]bool)
	rest := path

	for rest != "" {
		open := strings.IndexByte(rest, '{')
		if closing := strings.IndexByte(rest, '}'); closing >= 0 && (open < 0 || closing < open) {
			return nil, nil, fmt.Errorf("unbalanced '}' in path %q", path)
		}
		if open < 0 {
			segs = append(segs, segment{text: rest})
			break
		}
		if open > 0 {
			segs = append(segs, segment{text: rest[:open]})
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return nil, nil, fmt.Errorf("unterminated '{' in path %q", path)
		}
		name := rest[open+1 : open+end]
		if name == "" || strings.ContainsAny(name, "{/") {
			return nil, nil, fmt.Errorf("invalid placeholder %q in path %q", name, path)
		}
		if seen[name] {
			return nil, nil, fmt.Errorf("duplicate placeholder %q in path %q", name, path)
		}
		seen[name] = true
		segs = append(segs, segment{param: name})
		params = append(params, name)
		rest = rest[open+end+1:]
	}

	return segs, params, nil
}
