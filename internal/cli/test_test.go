package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	harnessScenarios = "../harness/testdata/scenarios"
	harnessSuite     = "../harness/testdata/properties.yaml"
)

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(t, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandShippedScenarios(t *testing.T) {
	out, err := execute(t, "test", harnessScenarios)
	require.NoError(t, err, out)
	assert.Contains(t, out, "ok    same_field_conflict")
	assert.Contains(t, out, "Test Summary: 7 passed, 0 failed, 7 total")
}

func TestTestCommandFilterJSON(t *testing.T) {
	out, err := execute(t, "test", harnessScenarios, "--filter", "resolve_*", "--format", "json")
	require.NoError(t, err, out)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "resolve_advances_head", resp.Data.Scenarios[0].Name)
}

func TestTestCommandUpdateAndMismatch(t *testing.T) {
	golden := t.TempDir()

	_, err := execute(t, "test", harnessScenarios, "--filter", "fast_forward", "--golden", golden, "--update")
	require.NoError(t, err)

	written, err := os.ReadFile(filepath.Join(golden, "fast_forward.golden"))
	require.NoError(t, err)
	shipped, err := os.ReadFile("../harness/testdata/golden/fast_forward.golden")
	require.NoError(t, err)
	assert.Equal(t, string(shipped), string(written))

	require.NoError(t, os.WriteFile(filepath.Join(golden, "fast_forward.golden"), []byte("{}"), 0o644))
	out, err := execute(t, "test", harnessScenarios, "--filter", "fast_forward", "--golden", golden)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "does not match golden file")
}

func TestTestCommandSuite(t *testing.T) {
	out, err := execute(t, "test", "--suite", harnessSuite)
	require.NoError(t, err, out)
	assert.Contains(t, out, "ok    no partial merge")
	assert.Contains(t, out, "7 passed, 0 failed")
}

func TestTestCommandSuiteRejectsArgs(t *testing.T) {
	_, err := execute(t, "test", "--suite", harnessSuite, harnessScenarios)
	require.Error(t, err)
}
