package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: one
description: "a constant definition"
source: |
  package: p
  defs:
    - name: one
      body: 1
expect:
  exports:
    one: int
assertions:
  - type: function_count
    count: 1
`

const failingScenario = `name: wrong
description: "expects an export that is not there"
source: |
  package: p
  defs:
    - name: one
      body: 1
expect:
  exports:
    two: int
`

func runTestCmd(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTest_AllPass(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.yaml", passingScenario)

	output, err := runTestCmd(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, output, "✓ one")
	assert.Contains(t, output, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, output, "✓ All scenarios passed")
}

func TestTest_Failure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.yaml", passingScenario)
	writeFile(t, dir, "wrong.yaml", failingScenario)

	output, err := runTestCmd(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, output, "✗ wrong")
	assert.Contains(t, output, "export two: not in manifest")
	assert.Contains(t, output, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTest_LoadError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "name: broken\n")

	output, err := runTestCmd(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, output, "✗ broken.yaml")
	assert.Contains(t, output, "load: ")
}

func TestTest_Filter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.yaml", passingScenario)
	writeFile(t, dir, "wrong.yaml", failingScenario)

	output, err := runTestCmd(t, "text", dir, "--filter", "on*")
	require.NoError(t, err)
	assert.Contains(t, output, "1 total")
	assert.NotContains(t, output, "wrong")

	_, err = runTestCmd(t, "text", dir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTest_Golden(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.yaml", passingScenario)
	goldenPath := filepath.Join(dir, "golden", "one.golden")

	output, err := runTestCmd(t, "text", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, output, "✓ one (golden updated)")

	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), "DO NOT EDIT")
	assert.Contains(t, string(golden), "package p")

	_, err = runTestCmd(t, "text", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte("package stale\n"), 0o644))
	output, err = runTestCmd(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, output, "does not match golden file")
	assert.Contains(t, output, "--update")
}

func TestTest_GoldenDirFlag(t *testing.T) {
	dir := t.TempDir()
	goldenDir := filepath.Join(t.TempDir(), "expected")
	writeFile(t, dir, "one.yaml", passingScenario)

	_, err := runTestCmd(t, "text", dir, "--update", "--golden", goldenDir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(goldenDir, "one.golden"))
	assert.NoDirExists(t, filepath.Join(dir, "golden"))
}

func TestTest_JSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.yaml", passingScenario)
	writeFile(t, dir, "wrong.yaml", failingScenario)

	output, err := runTestCmd(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Scenarios, 2)
	assert.Equal(t, "one", resp.Data.Scenarios[0].Name)
	assert.True(t, resp.Data.Scenarios[0].Pass)
	assert.False(t, resp.Data.Scenarios[1].Pass)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
}

func TestTest_NoScenarios(t *testing.T) {
	output, err := runTestCmd(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, output, "No scenarios found.")
}

func TestTest_MissingDir(t *testing.T) {
	_, err := runTestCmd(t, "text", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

// TestTest_RepositoryScenarios runs the harness scenarios through the command.
func TestTest_RepositoryScenarios(t *testing.T) {
	scenarios := filepath.Join("..", "harness", "testdata", "scenarios")
	golden := filepath.Join("..", "harness", "testdata", "golden")

	output, err := runTestCmd(t, "text", scenarios, "--golden", golden)
	require.NoError(t, err, output)
	assert.Contains(t, output, "✓ cart")
	assert.Contains(t, output, "✓ All scenarios passed")
}
