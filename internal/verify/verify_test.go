package verify

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/conformer/internal/failure"
	"github.com/roach88/conformer/internal/shape"
	"github.com/roach88/conformer/internal/transport"
)

func mustParse(t *testing.T, raw string) any {
	t.Helper()
	doc, err := ParseBody([]byte(raw))
	require.NoError(t, err)
	return doc
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name     string
		out      transport.Outcome
		expected int
		wantErr  bool
	}{
		{"200 ok", transport.NewOutcome(200, nil), 200, false},
		{"204 ok", transport.NewOutcome(204, nil), 204, false},
		{"404 not ok", transport.NewOutcome(404, nil), 404, false},
		{"code mismatch", transport.NewOutcome(200, nil), 201, true},
		{"201 but ok false", transport.Outcome{Status: 201, OK: false}, 201, true},
		{"404 but ok true", transport.Outcome{Status: 404, OK: true}, 404, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Status(tt.out, tt.expected)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, failure.Is(err, failure.KindStatusMismatch))
		})
	}
}

func TestStatusReportsOKInconsistency(t *testing.T) {
	err := Status(transport.Outcome{Status: 201, OK: false}, 201)

	var fe *failure.Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "ok=true", fe.Expected)
	assert.Equal(t, "ok=false", fe.Actual)
}

func TestSingleItem(t *testing.T) {
	user := mustParse(t, `{"name": "Mr. Andersen", "job": "Nobody", "id": "412", "createdAt": "2025-01-01T00:00:00Z"}`)

	assert.NoError(t, SingleItem(user, shape.Shape{
		"name": shape.Literal{Value: "Mr. Andersen"},
		"job":  shape.Literal{Value: "Nobody"},
	}))

	err := SingleItem(user, shape.Shape{
		"name": shape.Literal{Value: "Neo"},
		"job":  shape.Literal{Value: "The One"},
	})
	require.Error(t, err)

	var list failure.List
	require.True(t, errors.As(err, &list))
	assert.Len(t, list, 2)
	assert.Equal(t, failure.KindShapeMismatch, failure.KindOf(err))
}

func TestSingleItemTypedPredicates(t *testing.T) {
	registered := mustParse(t, `{"id": 4, "token": "QpwL5tke4Pnpja7X4"}`)

	assert.NoError(t, SingleItem(registered, shape.Shape{"id": shape.IsNumber, "token": shape.IsString}))
	assert.Error(t, SingleItem(registered, shape.Shape{"id": shape.IsString}))
}

func TestMultipleItems(t *testing.T) {
	users := mustParse(t, `[{"email": "george.bluth@reqres.in"}, {"email": "janet.weaver@reqres.in"}]`)

	assert.NoError(t, MultipleItems(users, 1, nil))
	assert.NoError(t, MultipleItems(users, 2, shape.Shape{"email": shape.Literal{Value: "george.bluth@reqres.in"}}))

	err := MultipleItems(users, 1, shape.Shape{"email": shape.Literal{Value: "janet.weaver@reqres.in"}})
	assert.True(t, failure.Is(err, failure.KindShapeMismatch))

	err = MultipleItems(users, 3, nil)
	assert.True(t, failure.Is(err, failure.KindTooShort))
}

func TestMultipleItemsEmptyAndArbitraryContent(t *testing.T) {
	err := MultipleItems([]any{}, 1, nil)
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.KindTooShort))

	for _, items := range [][]any{
		{nil},
		{"x", 1.0, true},
		{map[string]any{}, []any{}},
	} {
		assert.NoError(t, MultipleItems(items, 1, nil))
		assert.NoError(t, MultipleItems(items, 1, shape.Shape{}))
	}
}

func TestMultipleItemsNotACollection(t *testing.T) {
	for _, v := range []any{nil, "users", 3.0, map[string]any{"data": []any{}}} {
		err := MultipleItems(v, 1, nil)
		assert.True(t, failure.Is(err, failure.KindNotACollection), "%v", v)
	}
}

func TestMultipleItemsZeroMinWithFirstItem(t *testing.T) {
	err := MultipleItems([]any{}, 0, shape.Shape{"a": shape.IsString})
	assert.True(t, failure.Is(err, failure.KindTooShort))
}

func TestParseBody(t *testing.T) {
	doc := mustParse(t, `{"error": "Missing password"}`)
	assert.Equal(t, map[string]any{"error": "Missing password"}, doc)

	for _, raw := range []string{"", "   ", "{", "<html>", `{"a":1} {"b":2}`} {
		_, err := ParseBody([]byte(raw))
		require.Error(t, err, raw)
		assert.True(t, failure.Is(err, failure.KindParseError), raw)

		var fe *failure.Error
		require.True(t, errors.As(err, &fe))
		assert.NotNil(t, fe.Err, "cause must be preserved for %q", raw)
	}
}

func TestSelect(t *testing.T) {
	doc := mustParse(t, `{"data": [{"email": "george.bluth@reqres.in"}], "page": 1}`)

	v, err := Select(doc, "data.0.email")
	require.NoError(t, err)
	assert.Equal(t, "george.bluth@reqres.in", v)

	v, err = Select(doc, "")
	require.NoError(t, err)
	assert.Equal(t, doc, v)

	_, err = Select(doc, "support")
	assert.True(t, failure.Is(err, failure.KindShapeMismatch))
	_, err = Select(doc, "data.5")
	assert.True(t, failure.Is(err, failure.KindShapeMismatch))
	_, err = Select(doc, "page.x")
	assert.True(t, failure.Is(err, failure.KindShapeMismatch))
}

func TestWithinWindow(t *testing.T) {
	ms := time.Millisecond

	assert.NoError(t, WithinWindow(2500*ms, 2000*ms, 2500*ms))
	assert.NoError(t, WithinWindow(2000*ms, 2000*ms, 2500*ms))

	err := WithinWindow(2600*ms, 2000*ms, 2500*ms)
	require.Error(t, err)
	var fe *failure.Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, failure.KindTimingViolation, fe.Kind)
	assert.Equal(t, "(2000,2500)", fe.Expected)
	assert.Equal(t, "2600", fe.Actual)

	assert.Error(t, WithinWindow(1999*ms, 2000*ms, 2500*ms))
}

func TestWindow(t *testing.T) {
	lower, upper := Window(2*time.Second, DefaultTolerance)
	assert.Equal(t, 2*time.Second, lower)
	assert.Equal(t, 2500*time.Millisecond, upper)
}
