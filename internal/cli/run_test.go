package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/conformer/internal/failure"
	"github.com/roach88/conformer/internal/harness"
)

func TestRun_OfflinePass(t *testing.T) {
	clearEnv(t)
	path := writeFixture(t, smallFixture)

	out, err := execute(t, "run", "--offline", "-c", path, "--filter", "get single user")
	require.NoError(t, err)

	assert.Contains(t, out, "✓ get single user")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestRun_OfflineUI(t *testing.T) {
	clearEnv(t)
	path := writeFixture(t, smallFixture)

	out, err := execute(t, "run", "--offline", "-c", path, "--tag", "ui")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ standard user login")
}

func TestRun_FailureExitCode(t *testing.T) {
	clearEnv(t)
	path := writeFixture(t, smallFixture)

	out, err := execute(t, "run", "--offline", "-c", path, "--tag", "api")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "1 of 2 scenario(s) failed", err.Error())

	assert.Contains(t, out, "✓ get single user")
	assert.Contains(t, out, "✗ wrong email")
	assert.Contains(t, out, string(failure.KindShapeMismatch))
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestRun_JSON(t *testing.T) {
	clearEnv(t)
	path := writeFixture(t, smallFixture)

	out, err := execute(t, "run", "--offline", "-c", path, "--tag", "api", "--parallel", "2", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string         `json:"status"`
		Data   harness.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "failed", resp.Status)
	assert.NotEmpty(t, resp.Data.ID)
	assert.Equal(t, harness.Totals{Passed: 1, Failed: 1, Total: 2}, resp.Data.Totals)

	// Results keep declaration order regardless of parallelism.
	require.Len(t, resp.Data.Results, 2)
	assert.Equal(t, "get single user", resp.Data.Results[0].Name)
	assert.Equal(t, "wrong email", resp.Data.Results[1].Name)
	f := resp.Data.Results[1].First()
	require.NotNil(t, f)
	assert.Equal(t, failure.KindShapeMismatch, f.Kind)
	assert.Equal(t, "email", f.Key)
}

func TestRun_NoScenarios(t *testing.T) {
	clearEnv(t)
	path := writeFixture(t, smallFixture)

	out, err := execute(t, "run", "--offline", "-c", path, "--tag", "nothing")
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", out)
}

func TestRun_CommandErrors(t *testing.T) {
	clearEnv(t)
	path := writeFixture(t, smallFixture)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing fixture", []string{"run", "-c", filepath.Join(t.TempDir(), "nope.yaml")}, "E005"},
		{"bad filter", []string{"run", "--offline", "-c", path, "--filter", "[", "--tag", "api"}, "invalid filter"},
		{"negative parallel", []string{"run", "--offline", "-c", path, "--parallel", "-1"}, "--parallel"},
		{"unknown flag", []string{"run", "--bogus"}, "unknown flag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRun_InvalidReferences(t *testing.T) {
	clearEnv(t)
	path := writeFixture(t, smallFixture+`
  - name: dangling
    steps:
      - call: {method: GET, endpoint: missing}
`)

	_, err := execute(t, "run", "--offline", "-c", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `scenario "dangling"`)
}

func TestRun_RecordsHistory(t *testing.T) {
	clearEnv(t)
	path := writeFixture(t, smallFixture)
	db := filepath.Join(t.TempDir(), "history.db")

	_, err := execute(t, "run", "--offline", "-c", path, "--tag", "api", "--db", db)
	require.Equal(t, ExitFailure, GetExitCode(err))

	out, err := execute(t, "history", "--db", db, "--format", "json")
	require.NoError(t, err)

	var runs struct {
		Data []struct {
			ID     string         `json:"id"`
			Source string         `json:"source"`
			Totals harness.Totals `json:"totals"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs.Data, 1)
	assert.Equal(t, path, runs.Data[0].Source)
	assert.Equal(t, harness.Totals{Passed: 1, Failed: 1, Total: 2}, runs.Data[0].Totals)

	id := runs.Data[0].ID
	out, err = execute(t, "history", "--db", db, "--run", id, "--kinds")
	require.NoError(t, err)
	assert.Contains(t, out, "✗ wrong email")
	assert.Contains(t, out, "Failures by kind")
	assert.Contains(t, out, string(failure.KindShapeMismatch))

	out, err = execute(t, "history", "--db", db, "--scenario", "wrong email")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, string(failure.KindShapeMismatch))

	out, err = execute(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "1/2 passed")
}
