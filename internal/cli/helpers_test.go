package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/conformer/internal/config"
)

// smallFixture runs offline in milliseconds: one passing and one failing
// API scenario, plus a UI login.
const smallFixture = `
api:
  base_url: https://reqres.in
  endpoints:
    - {name: users, path: /api/users}
    - {name: singleUser, path: "/api/users/{id}"}

ui:
  base_url: https://www.saucedemo.com/
  states:
    - name: LoginPage
      observables:
        - {kind: visible, selector: "#login-button"}
    - name: InventoryPage
      observables:
        - {kind: visible, selector: "#add-to-cart-sauce-labs-backpack"}
  flows:
    - name: standard
      url: ${ui_base_url}
      entry: LoginPage
      steps:
        - from: LoginPage
          to: InventoryPage
          actions:
            - {kind: fill, selector: "#user-name", value: "${username}"}
            - {kind: fill, selector: "#password", value: "${password}"}
            - {kind: click, selector: "#login-button"}

credentials:
  standard: {username: standard_user, password: secret_sauce}

scenarios:
  - name: get single user
    tags: [api]
    steps:
      - call: {method: GET, endpoint: singleUser, params: [2]}
        expect:
          status: 200
          item: {at: data, shape: {email: janet.weaver@reqres.in}}

  - name: wrong email
    tags: [api, broken]
    steps:
      - call: {method: GET, endpoint: singleUser, params: [1]}
        expect:
          status: 200
          item: {at: data, shape: {email: janet.weaver@reqres.in}}

  - name: standard user login
    tags: [ui]
    steps:
      - flow: standard
        user: standard
        expect: {terminal: success, final: InventoryPage}
`

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, writeFile(path, content))
	return path
}

// clearEnv keeps the developer's environment out of fixture loading.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{config.EnvAPIBaseURL, config.EnvUIBaseURL, config.EnvAPIKey, config.EnvParallel} {
		t.Setenv(name, "")
	}
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
