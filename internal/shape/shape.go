// Package shape models declarative structural expectations for JSON values.
//
// A Shape maps field names to an Expectation. Expectation is sealed: only
// Literal, Predicate and Nested implement it, so a check over a Shape is an
// exhaustive type switch instead of a reflective walk.
package shape

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/conformer/internal/failure"
)

// Expectation is a sealed interface over the three expectation variants.
type Expectation interface {
	expectation() // Sealed - only Literal, Predicate and Nested implement it
	String() string
}

// Literal matches a value that deep-equals Value after JSON normalization.
type Literal struct {
	Value any
}

func (Literal) expectation() {}

// String renders the literal as JSON.
func (l Literal) String() string {
	return render(l.Value)
}

// Predicate matches any value for which Fn returns true.
type Predicate struct {
	Name string
	Fn   func(any) bool
}

func (Predicate) expectation() {}

// String renders the predicate by name.
func (p Predicate) String() string {
	return "<" + p.Name + ">"
}

// Nested matches an object whose fields satisfy Shape.
type Nested struct {
	Shape Shape
}

func (Nested) expectation() {}

// String renders the nested keys.
func (n Nested) String() string {
	return "object{" + joinKeys(n.Shape) + "}"
}

// Shape maps field names to expectations. Fields not named are ignored
// (subset match).
type Shape map[string]Expectation

// Check validates actual against the shape and returns every violation.
// Keys are visited in sorted order so the first violation is stable.
func (s Shape) Check(actual any) failure.List {
	var out failure.List
	s.check("", actual, &out)
	return out
}

func (s Shape) check(prefix string, actual any, out *failure.List) {
	obj, ok := actual.(map[string]any)
	if !ok {
		*out = append(*out, &failure.Error{
			Kind:     failure.KindShapeMismatch,
			Message:  "value is not an object",
			Key:      keyOrRoot(prefix),
			Expected: "object{" + joinKeys(s) + "}",
			Actual:   render(actual),
		})
		return
	}

	for _, key := range sortedKeys(s) {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		value, present := obj[key]

		switch exp := s[key].(type) {
		case Literal:
			if !present || !Equal(exp.Value, value) {
				*out = append(*out, mismatch(path, exp, value, present))
			}
		case Predicate:
			if !present || exp.Fn == nil || !exp.Fn(value) {
				*out = append(*out, mismatch(path, exp, value, present))
			}
		case Nested:
			if !present {
				*out = append(*out, mismatch(path, exp, nil, false))
				continue
			}
			exp.Shape.check(path, value, out)
		default:
			*out = append(*out, failure.New(failure.KindShapeMismatch, "unsupported expectation %T for key %q", exp, path))
		}
	}
}

func mismatch(path string, exp Expectation, actual any, present bool) *failure.Error {
	act := "<missing>"
	if present {
		act = render(actual)
	}
	return &failure.Error{
		Kind:     failure.KindShapeMismatch,
		Message:  "field does not match",
		Key:      path,
		Expected: exp.String(),
		Actual:   act,
	}
}

// Equal reports whether two JSON-like values are deeply equal once numbers
// are normalized. YAML fixtures produce int while decoded bodies produce
// float64, so both sides are compared as float64.
func Equal(expected, actual any) bool {
	return reflect.DeepEqual(Normalize(expected), Normalize(actual))
}

// Normalize converts numeric types to float64 and generic containers to
// map[string]any / []any recursively.
func Normalize(v any) any {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int8:
		return float64(val)
	case int16:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint8:
		return float64(val)
	case uint16:
		return float64(val)
	case uint32:
		return float64(val)
	case uint64:
		return float64(val)
	case float32:
		return float64(val)
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = Normalize(elem)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[fmt.Sprint(k)] = Normalize(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = Normalize(elem)
		}
		return out
	default:
		return v
	}
}

func render(v any) string {
	data, err := json.Marshal(Normalize(v))
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func keyOrRoot(prefix string) string {
	if prefix == "" {
		return "$"
	}
	return prefix
}

func sortedKeys(s Shape) []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinKeys(s Shape) string {
	return strings.Join(sortedKeys(s), ",")
}
