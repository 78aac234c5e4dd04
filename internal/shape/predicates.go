package shape

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Built-in predicates, addressable from fixtures with {$type: <name>}.
var (
	IsNumber = Predicate{Name: "number", Fn: func(v any) bool {
		switch v.(type) {
		case float64, float32, int, int32, int64, json.Number:
			return true
		}
		return false
	}}

	IsString = Predicate{Name: "string", Fn: func(v any) bool {
		_, ok := v.(string)
		return ok
	}}

	IsBool = Predicate{Name: "bool", Fn: func(v any) bool {
		_, ok := v.(bool)
		return ok
	}}

	IsArray = Predicate{Name: "array", Fn: func(v any) bool {
		_, ok := v.([]any)
		return ok
	}}

	IsObject = Predicate{Name: "object", Fn: func(v any) bool {
		_, ok := v.(map[string]any)
		return ok
	}}

	// IsPresent matches any non-null value.
	IsPresent = Predicate{Name: "present", Fn: func(v any) bool {
		return v != nil
	}}

	// IsNonEmpty matches non-empty strings, arrays and objects.
	IsNonEmpty = Predicate{Name: "non_empty", Fn: func(v any) bool {
		switch val := v.(type) {
		case string:
			return val != ""
		case []any:
			return len(val) > 0
		case map[string]any:
			return len(val) > 0
		}
		return false
	}}
)

var predicates = map[string]Predicate{
	IsNumber.Name:   IsNumber,
	IsString.Name:   IsString,
	IsBool.Name:     IsBool,
	IsArray.Name:    IsArray,
	IsObject.Name:   IsObject,
	IsPresent.Name:  IsPresent,
	IsNonEmpty.Name: IsNonEmpty,
}

// LookupPredicate returns the built-in predicate with the given name.
func LookupPredicate(name string) (Predicate, error) {
	p, ok := predicates[name]
	if !ok {
		return Predicate{}, fmt.Errorf("unknown predicate %q (known: %v)", name, PredicateNames())
	}
	return p, nil
}

// PredicateNames lists the built-in predicate names, sorted.
func PredicateNames() []string {
	names := make([]string, 0, len(predicates))
	for name := range predicates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
