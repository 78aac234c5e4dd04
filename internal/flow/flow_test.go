package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loginActions(user string) []Action {
	return []Action{
		{Kind: Fill, Selector: "#user-name", Value: user},
		{Kind: Fill, Selector: "#password", Value: "${password}"},
		{Kind: Click, Selector: "#login-button"},
	}
}

func testGraph(t *testing.T) *Graph {
	t.Helper()
	g, err := NewGraph(
		State{Name: "LoginPage", Observables: []Observable{
			{Kind: Visible, Selector: "#login-button"},
			{Kind: TitleMatches, Value: "Swag Labs"},
		}},
		State{Name: "InventoryPage", Observables: []Observable{
			{Kind: Visible, Selector: "#add-to-cart-sauce-labs-backpack"},
		}},
		State{Name: "LockedOut", Terminal: TerminalExpectedFailure, Observables: []Observable{
			{Kind: TextEquals, Selector: `[data-test="error"]`, Value: "Epic sadface: Sorry, this user has been locked out."},
		}},
		State{Name: "BrokenImages", Terminal: TerminalExpectedFailure, Observables: []Observable{
			{Kind: AttributeEquals, Selector: `img[alt="Sauce Labs Backpack"]`, Attribute: "src", Value: "/static/media/sl-404.168b1cce.jpg"},
		}},
		State{Name: "LoginAttempted", Terminal: TerminalSuccess},
		State{Name: "Cart", Observables: []Observable{
			{Kind: TextEquals, Selector: ".shopping_cart_badge", Value: "1"},
		}},
		State{Name: "CartEmpty", Terminal: TerminalSuccess, Observables: []Observable{
			{Kind: Hidden, Selector: ".shopping_cart_badge"},
		}},
		State{Name: "CheckoutInfo", Observables: []Observable{
			{Kind: TextContains, Selector: ".title", Value: "Checkout: Your Information"},
		}},
		State{Name: "CheckoutOverview", Observables: []Observable{
			{Kind: TextContains, Selector: ".title", Value: "Checkout: Overview"},
		}},
		State{Name: "Complete", Observables: []Observable{
			{Kind: TextContains, Selector: ".complete-header", Value: "Thank you for your order!"},
			{Kind: URLEquals, Value: "/checkout-complete.html"},
		}},
		State{Name: "OrderPlaced", Terminal: TerminalSuccess, Observables: []Observable{
			{Kind: URLEquals, Value: "/inventory.html"},
			{Kind: Hidden, Selector: ".shopping_cart_badge"},
		}},
	)
	require.NoError(t, err)
	return g
}

func TestNewGraphRejectsDuplicates(t *testing.T) {
	_, err := NewGraph(State{Name: "A"}, State{Name: "A"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate state")
}

func TestGraphValidate(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  string
	}{
		{"bad terminal", State{Name: "A", Terminal: "maybe"}, "unknown terminal kind"},
		{"missing observable kind", State{Name: "A", Observables: []Observable{{Selector: "#x"}}}, "kind is required"},
		{"unknown observable kind", State{Name: "A", Observables: []Observable{{Kind: "glows", Selector: "#x"}}}, "unknown observable kind"},
		{"visible without selector", State{Name: "A", Observables: []Observable{{Kind: Visible}}}, "requires a selector"},
		{"attribute without name", State{Name: "A", Observables: []Observable{{Kind: AttributeEquals, Selector: "img"}}}, "requires a selector and an attribute"},
		{"url without value", State{Name: "A", Observables: []Observable{{Kind: URLEquals}}}, "requires a value"},
		{"bad title pattern", State{Name: "A", Observables: []Observable{{Kind: TitleMatches, Value: "("}}}, "invalid pattern"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGraph(tt.state)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFlowValidate(t *testing.T) {
	g := testGraph(t)

	tests := []struct {
		name string
		flow Flow
		want string
	}{
		{
			name: "valid login",
			flow: Flow{Name: "standard", Entry: "LoginPage", Steps: []Transition{
				{From: "LoginPage", To: "InventoryPage", Actions: loginActions("standard_user")},
			}},
		},
		{
			name: "entry only",
			flow: Flow{Name: "has-title", Entry: "LoginPage"},
		},
		{
			name: "missing name",
			flow: Flow{Entry: "LoginPage"},
			want: "flow name is required",
		},
		{
			name: "unknown entry",
			flow: Flow{Name: "x", Entry: "Nowhere"},
			want: "unknown entry state",
		},
		{
			name: "broken chain",
			flow: Flow{Name: "x", Entry: "LoginPage", Steps: []Transition{
				{From: "Cart", To: "InventoryPage", Actions: loginActions("u")},
			}},
			want: `starts at "Cart", expected "LoginPage"`,
		},
		{
			name: "unknown target",
			flow: Flow{Name: "x", Entry: "LoginPage", Steps: []Transition{
				{From: "LoginPage", To: "Nowhere", Actions: loginActions("u")},
			}},
			want: `unknown state "Nowhere"`,
		},
		{
			name: "no actions",
			flow: Flow{Name: "x", Entry: "LoginPage", Steps: []Transition{
				{From: "LoginPage", To: "InventoryPage"},
			}},
			want: "has no actions",
		},
		{
			name: "cycle",
			flow: Flow{Name: "x", Entry: "InventoryPage", Steps: []Transition{
				{From: "InventoryPage", To: "Cart", Actions: []Action{{Kind: Click, Selector: "#a"}}},
				{From: "Cart", To: "InventoryPage", Actions: []Action{{Kind: Click, Selector: "#b"}}},
			}},
			want: "InventoryPage → Cart → InventoryPage",
		},
		{
			name: "terminal in the middle",
			flow: Flow{Name: "x", Entry: "LoginPage", Steps: []Transition{
				{From: "LoginPage", To: "LockedOut", Actions: loginActions("u")},
				{From: "LockedOut", To: "InventoryPage", Actions: []Action{{Kind: Click, Selector: "#a"}}},
			}},
			want: `terminal state "LockedOut" is not the last state`,
		},
		{
			name: "click with value",
			flow: Flow{Name: "x", Entry: "LoginPage", Steps: []Transition{
				{From: "LoginPage", To: "InventoryPage", Actions: []Action{{Kind: Click, Selector: "#a", Value: "v"}}},
			}},
			want: "click does not take a value",
		},
		{
			name: "allow timeout without timeout",
			flow: Flow{Name: "x", Entry: "LoginPage", Steps: []Transition{
				{From: "LoginPage", To: "LoginAttempted", Actions: []Action{{Kind: Click, Selector: "#a", AllowTimeout: true}}},
			}},
			want: "allow_timeout requires a timeout",
		},
		{
			name: "unknown action",
			flow: Flow{Name: "x", Entry: "LoginPage", Steps: []Transition{
				{From: "LoginPage", To: "InventoryPage", Actions: []Action{{Kind: "hover", Selector: "#a"}}},
			}},
			want: `unknown action kind "hover"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.flow.Validate(g)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFlowPath(t *testing.T) {
	f := Flow{Name: "x", Entry: "A", Steps: []Transition{
		{From: "A", To: "B"},
		{From: "B", To: "C"},
	}}
	assert.Equal(t, []string{"A", "B", "C"}, f.Path())
}

func TestActionTimeoutValidation(t *testing.T) {
	a := Action{Kind: Click, Selector: "#a", Timeout: -time.Second}
	assert.ErrorContains(t, a.validate(), "negative timeout")
}

func TestExpand(t *testing.T) {
	vars := map[string]string{"user": "standard_user", "password": "secret_sauce"}

	got, err := Expand("${user}:${password}", vars)
	require.NoError(t, err)
	assert.Equal(t, "standard_user:secret_sauce", got)

	got, err = Expand("plain", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain", got)

	_, err = Expand("${nope} ${also}", vars)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "also, nope")
}

func TestNormalize(t *testing.T) {
	// "e" + combining acute composes to "é" under NFC.
	assert.Equal(t, "caf\u00e9 au lait", normalize("  cafe\u0301\n  au   lait "))
}
