package shape

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Reserved mapping keys that select a non-nested variant.
const (
	keyType    = "$type"
	keyLiteral = "$literal"
)

// FromMap converts a generic map (from YAML, JSON or CUE) into a Shape.
//
//	email: janet.weaver@reqres.in   # Literal
//	id: {$type: number}             # Predicate
//	support: {url: ...}             # Nested
//	tags: {$literal: {a: 1}}        # Literal object
func FromMap(m map[string]any) (Shape, error) {
	s := make(Shape, len(m))
	for key, raw := range m {
		exp, err := fromValue(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		s[key] = exp
	}
	return s, nil
}

func fromValue(raw any) (Expectation, error) {
	obj, ok := asStringMap(raw)
	if !ok {
		return Literal{Value: Normalize(raw)}, nil
	}

	if len(obj) == 1 {
		if name, ok := obj[keyType]; ok {
			str, ok := name.(string)
			if !ok {
				return nil, fmt.Errorf("%s must be a string, got %T", keyType, name)
			}
			return LookupPredicate(str)
		}
		if lit, ok := obj[keyLiteral]; ok {
			return Literal{Value: Normalize(lit)}, nil
		}
	}
	if _, ok := obj[keyType]; ok {
		return nil, fmt.Errorf("%s must be the only key in its mapping", keyType)
	}

	nested, err := FromMap(obj)
	if err != nil {
		return nil, err
	}
	return Nested{Shape: nested}, nil
}

func asStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, elem := range m {
			out[fmt.Sprint(k)] = elem
		}
		return out, true
	}
	return nil, false
}

// UnmarshalYAML decodes a Shape from a YAML mapping.
func (s *Shape) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("shape must be a mapping: %w", err)
	}
	decoded, err := FromMap(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*s = decoded
	return nil
}

// MarshalYAML encodes the shape back to its fixture form.
func (s Shape) MarshalYAML() (any, error) {
	return s.ToMap(), nil
}

// ToMap renders the shape in the same form FromMap accepts.
func (s Shape) ToMap() map[string]any {
	out := make(map[string]any, len(s))
	for key, exp := range s {
		switch e := exp.(type) {
		case Literal:
			if _, isMap := asStringMap(e.Value); isMap {
				out[key] = map[string]any{keyLiteral: e.Value}
			} else {
				out[key] = e.Value
			}
		case Predicate:
			out[key] = map[string]any{keyType: e.Name}
		case Nested:
			out[key] = e.Shape.ToMap()
		}
	}
	return out
}
