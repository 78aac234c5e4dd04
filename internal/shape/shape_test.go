package shape

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/conformer/internal/failure"
)

func decodeJSON(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestCheckLiteral(t *testing.T) {
	item := decodeJSON(t, `{"id": 2, "email": "janet.weaver@reqres.in", "first_name": "Janet"}`)

	s := Shape{"email": Literal{Value: "janet.weaver@reqres.in"}, "id": Literal{Value: 2}}
	assert.Empty(t, s.Check(item))
}

func TestCheckLiteralMismatchReportsContext(t *testing.T) {
	item := decodeJSON(t, `{"email": "emma.wong@reqres.in"}`)

	fails := Shape{"email": Literal{Value: "janet.weaver@reqres.in"}}.Check(item)
	require.Len(t, fails, 1)
	assert.Equal(t, failure.KindShapeMismatch, fails[0].Kind)
	assert.Equal(t, "email", fails[0].Key)
	assert.Equal(t, `"janet.weaver@reqres.in"`, fails[0].Expected)
	assert.Equal(t, `"emma.wong@reqres.in"`, fails[0].Actual)
}

func TestCheckMissingKey(t *testing.T) {
	fails := Shape{"token": IsString}.Check(decodeJSON(t, `{"id": 4}`))
	require.Len(t, fails, 1)
	assert.Equal(t, "<missing>", fails[0].Actual)
	assert.Equal(t, "<string>", fails[0].Expected)
}

func TestCheckPredicates(t *testing.T) {
	item := decodeJSON(t, `{"id": 4, "token": "QpwL5tke4Pnpja7X4", "tags": [], "meta": {}, "ok": true, "none": null}`)

	assert.Empty(t, Shape{"id": IsNumber, "token": IsString, "ok": IsBool}.Check(item))
	assert.Empty(t, Shape{"tags": IsArray, "meta": IsObject, "token": IsNonEmpty}.Check(item))

	fails := Shape{"id": IsString, "none": IsPresent, "tags": IsNonEmpty}.Check(item)
	require.Len(t, fails, 3)
	// Sorted key order: id, none, tags
	assert.Equal(t, "id", fails[0].Key)
	assert.Equal(t, "none", fails[1].Key)
	assert.Equal(t, "tags", fails[2].Key)
}

func TestCheckCollectsAllViolations(t *testing.T) {
	item := decodeJSON(t, `{"name": "morpheus", "job": "leader"}`)

	fails := Shape{
		"name": Literal{Value: "Neo"},
		"job":  Literal{Value: "The One"},
	}.Check(item)
	require.Len(t, fails, 2)
	assert.Equal(t, "job", fails[0].Key, "first violation follows sorted key order")
	assert.Equal(t, "name", fails[1].Key)
}

func TestCheckNested(t *testing.T) {
	body := decodeJSON(t, `{"data": {"id": 2, "email": "janet.weaver@reqres.in"}, "support": {"url": "https://reqres.in/#support-heading"}}`)

	s := Shape{
		"data": Nested{Shape: Shape{"email": Literal{Value: "janet.weaver@reqres.in"}, "id": IsNumber}},
	}
	assert.Empty(t, s.Check(body))

	fails := Shape{"data": Nested{Shape: Shape{"email": Literal{Value: "x"}}}}.Check(body)
	require.Len(t, fails, 1)
	assert.Equal(t, "data.email", fails[0].Key)

	fails = Shape{"support": Nested{Shape: Shape{"url": IsString}}, "missing": Nested{Shape: Shape{}}}.Check(body)
	require.Len(t, fails, 1)
	assert.Equal(t, "missing", fails[0].Key)
}

func TestCheckNonObject(t *testing.T) {
	fails := Shape{"a": IsString}.Check([]any{1, 2})
	require.Len(t, fails, 1)
	assert.Equal(t, "$", fails[0].Key)
	assert.Equal(t, "[1,2]", fails[0].Actual)
}

func TestEqualNormalizesNumbers(t *testing.T) {
	assert.True(t, Equal(2, float64(2)))
	assert.True(t, Equal(int64(7), json.Number("7")))
	assert.True(t, Equal(map[string]any{"a": []any{1, "x"}}, map[string]any{"a": []any{float64(1), "x"}}))
	assert.False(t, Equal(2, "2"))
	assert.False(t, Equal(nil, float64(0)))
	assert.True(t, Equal(nil, nil))
}

func TestUnmarshalYAML(t *testing.T) {
	src := `
email: janet.weaver@reqres.in
id: {$type: number}
token: {$type: string}
support:
  url: {$type: non_empty}
tags: {$literal: {a: 1}}
`
	var s Shape
	require.NoError(t, yaml.Unmarshal([]byte(src), &s))

	assert.Equal(t, Literal{Value: "janet.weaver@reqres.in"}, s["email"])
	assert.Equal(t, "number", s["id"].(Predicate).Name)
	assert.Equal(t, "string", s["token"].(Predicate).Name)
	nested, ok := s["support"].(Nested)
	require.True(t, ok)
	assert.Equal(t, "non_empty", nested.Shape["url"].(Predicate).Name)
	assert.Equal(t, Literal{Value: map[string]any{"a": float64(1)}}, s["tags"])
}

func TestUnmarshalYAMLErrors(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		errMsg string
	}{
		{"unknown predicate", `id: {$type: uuid}`, `unknown predicate "uuid"`},
		{"non-string type", `id: {$type: 3}`, "must be a string"},
		{"type with siblings", `id: {$type: number, x: 1}`, "must be the only key"},
		{"not a mapping", `- a`, "shape must be a mapping"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Shape
			err := yaml.Unmarshal([]byte(tt.src), &s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestToMapRoundTrip(t *testing.T) {
	s := Shape{
		"email": Literal{Value: "x@y"},
		"id":    IsNumber,
		"data":  Nested{Shape: Shape{"name": Literal{Value: "cerulean"}}},
		"raw":   Literal{Value: map[string]any{"k": "v"}},
	}
	back, err := FromMap(s.ToMap())
	require.NoError(t, err)
	assert.Equal(t, s.ToMap(), back.ToMap())
}

func TestLookupPredicate(t *testing.T) {
	p, err := LookupPredicate("bool")
	require.NoError(t, err)
	assert.True(t, p.Fn(false))

	_, err = LookupPredicate("nope")
	assert.Error(t, err)
	assert.Contains(t, PredicateNames(), "present")
}
