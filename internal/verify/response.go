// Package verify is the response and timing assertion engine.
//
// Every function returns nil on success or an error carrying a
// failure.Kind. Assertions never panic and never abort a run; the scenario
// orchestrator decides what a failure means for the scenario.
package verify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/conformer/internal/failure"
	"github.com/roach88/conformer/internal/shape"
	"github.com/roach88/conformer/internal/transport"
)

// Status checks both the numeric status and the transport's ok flag.
// The ok flag must agree with the 2xx class of expected, which catches
// transports that report ok inconsistently with the code.
func Status(out transport.Outcome, expected int) error {
	wantOK := expected >= 200 && expected < 300

	if out.Status != expected {
		return &failure.Error{
			Kind:     failure.KindStatusMismatch,
			Message:  "unexpected status code",
			Expected: strconv.Itoa(expected),
			Actual:   strconv.Itoa(out.Status),
		}
	}
	if out.OK != wantOK {
		return &failure.Error{
			Kind:     failure.KindStatusMismatch,
			Message:  fmt.Sprintf("ok flag inconsistent with status %d", out.Status),
			Expected: fmt.Sprintf("ok=%t", wantOK),
			Actual:   fmt.Sprintf("ok=%t", out.OK),
		}
	}
	return nil
}

// SingleItem checks every key of expected against item. All violations are
// returned as a failure.List; the first is the primary failure.
func SingleItem(item any, expected shape.Shape) error {
	return expected.Check(item).OrNil()
}

// MultipleItems checks that items is a sequence of at least minLength
// elements and, when first is non-empty, that items[0] matches it.
func MultipleItems(items any, minLength int, first shape.Shape) error {
	list, ok := items.([]any)
	if !ok {
		return &failure.Error{
			Kind:     failure.KindNotACollection,
			Message:  "value is not a collection",
			Expected: "array",
			Actual:   typeName(items),
		}
	}
	if len(list) < minLength {
		return &failure.Error{
			Kind:     failure.KindTooShort,
			Message:  "collection has too few items",
			Expected: fmt.Sprintf(">= %d", minLength),
			Actual:   strconv.Itoa(len(list)),
		}
	}
	if len(first) > 0 {
		if len(list) == 0 {
			return &failure.Error{
				Kind:     failure.KindTooShort,
				Message:  "first item expected but collection is empty",
				Expected: ">= 1",
				Actual:   "0",
			}
		}
		return SingleItem(list[0], first)
	}
	return nil
}

// ParseBody decodes a JSON body. Decode failures are returned as
// KindParseError with the decoder error preserved as the cause.
func ParseBody(raw []byte) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, failure.Wrap(failure.KindParseError, "failed to parse JSON", fmt.Errorf("empty body"))
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&doc); err != nil {
		return nil, failure.Wrap(failure.KindParseError, "failed to parse JSON", err)
	}
	if dec.More() {
		return nil, failure.Wrap(failure.KindParseError, "failed to parse JSON", fmt.Errorf("trailing data after JSON value"))
	}
	return doc, nil
}

// Select walks a dotted path ("data", "data.0.email") into a decoded
// document. An empty path selects the document itself.
func Select(doc any, path string) (any, error) {
	if path == "" || path == "$" {
		return doc, nil
	}

	cur := doc
	walked := ""
	for _, part := range strings.Split(path, ".") {
		if walked == "" {
			walked = part
		} else {
			walked += "." + part
		}

		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, &failure.Error{
					Kind:     failure.KindShapeMismatch,
					Message:  "path not found",
					Key:      walked,
					Expected: "present",
					Actual:   "<missing>",
				}
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, &failure.Error{
					Kind:     failure.KindShapeMismatch,
					Message:  "index out of range",
					Key:      walked,
					Expected: fmt.Sprintf("index < %d", len(node)),
					Actual:   part,
				}
			}
			cur = node[idx]
		default:
			return nil, &failure.Error{
				Kind:     failure.KindShapeMismatch,
				Message:  "cannot descend into scalar",
				Key:      walked,
				Expected: "object or array",
				Actual:   typeName(cur),
			}
		}
	}
	return cur, nil
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64, json.Number:
		return "number"
	case bool:
		return "bool"
	default:
		return fmt.Sprintf("%T", v)
	}
}
