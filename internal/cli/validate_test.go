package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateBuiltIn(t *testing.T) {
	clearEnv(t)
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "✓ Fixture valid: 22 scenario(s), 6 endpoint(s), 8 flow(s)")
}

func TestValidateFixtureJSON(t *testing.T) {
	clearEnv(t)
	path := writeFixture(t, smallFixture)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})
	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, ValidationResult{Valid: true, Scenarios: 3, Endpoints: 2, Flows: 1}, resp.Data)
}

func TestValidateNonExistentFile(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "missing.yaml")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E005")

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E005", resp.Error.Code)
}

func TestValidateUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.toml")
	require.NoError(t, writeFile(path, "x = 1"))

	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E009")
}

func TestValidateReportsEveryError(t *testing.T) {
	clearEnv(t)
	path := writeFixture(t, smallFixture+`
  - name: unknown endpoint
    steps:
      - call: {method: GET, endpoint: missing}
  - name: unknown user
    steps:
      - flow: standard
        user: nobody
`)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "fixture has 2 error(s)", err.Error())
	assert.Contains(t, buf.String(), `✗ scenario "unknown endpoint"`)
	assert.Contains(t, buf.String(), `✗ scenario "unknown user"`)
}
