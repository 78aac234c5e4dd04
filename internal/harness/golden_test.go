package harness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGolden_ShapeMismatch(t *testing.T) {
	r := testRunner(t, time.Minute)
	step := callStep("GET", "singleUser", 2)
	step.Expect = Expect{
		Status: 200,
		Item:   &ItemExpect{At: "data", Shape: mustShape(t, map[string]any{"email": "george.bluth@reqres.in"})},
	}

	res := r.Run(context.Background(), &Scenario{
		Name:  "wrong email",
		Steps: []Step{step, callStep("GET", "users")},
	})
	require.NoError(t, AssertGolden(t, "shape_mismatch", res))
}

func TestGolden_StandardLogin(t *testing.T) {
	r := testRunner(t, time.Minute)
	res := r.Run(context.Background(), &Scenario{
		Name:  "standard login",
		Steps: []Step{{Flow: "standard", User: "standard", Expect: Expect{Terminal: "success"}}},
	})
	require.NoError(t, AssertGolden(t, "standard_login", res))
}

func TestGolden_GlitchTimeout(t *testing.T) {
	r := testRunner(t, time.Minute)
	res := r.Run(context.Background(), &Scenario{
		Name:  "performance glitch",
		Steps: []Step{{Flow: "performance-glitch", User: "glitch", Expect: Expect{Signal: SignalAny}}},
	})
	require.NoError(t, AssertGolden(t, "glitch_timeout", res))
}
