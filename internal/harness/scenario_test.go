package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "s.yaml", `name: one
description: "compiles a constant"
source: |
  package: p
  defs:
    - name: one
      body: 1
max_passes: 4
expect:
  exports:
    one: int
assertions:
  - type: source_contains
    text: "int64(1)"
  - type: function_count
    count: 1
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "one", s.Name)
	assert.Equal(t, 4, s.MaxPasses)
	assert.Contains(t, s.Source, "package: p")
	assert.Equal(t, map[string]string{"one": "int"}, s.Expect.Exports)
	require.Len(t, s.Assertions, 2)
	assert.Equal(t, AssertSourceContains, s.Assertions[0].Type)
	assert.Equal(t, 1, s.Assertions[1].Count)
}

func TestLoadScenario_FileResolvedRelative(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "pkg.yaml", "package: p\ndefs: [{name: a, body: 1}]\n")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "scenarios"), 0o755))
	path := writeScenario(t, dir, filepath.Join("scenarios", "s.yaml"), `name: rel
description: "file next to the scenarios directory"
file: ../pkg.yaml
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "pkg.yaml"), s.File)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownFieldsRejected(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "s.yaml", `name: typo
description: "misspelled key"
source: "package: p"
assertion:
  - type: rebuild_stable
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestValidateScenario(t *testing.T) {
	dir := t.TempDir()
	txt := writeScenario(t, dir, "doc.txt", "package: p\n")
	valid := func() *Scenario {
		return &Scenario{Name: "n", Description: "d", Source: "package: p\n"}
	}

	tests := []struct {
		name   string
		mutate func(*Scenario)
		want   string
	}{
		{"valid", func(*Scenario) {}, ""},
		{"no name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"no description", func(s *Scenario) { s.Description = "" }, "description is required"},
		{"no source", func(s *Scenario) { s.Source = "" }, "one of source or file is required"},
		{"both sources", func(s *Scenario) { s.File = txt }, "mutually exclusive"},
		{"missing file", func(s *Scenario) {
			s.Source = ""
			s.File = filepath.Join(dir, "gone.yaml")
		}, "source file not found"},
		{"bad extension", func(s *Scenario) {
			s.Source = ""
			s.File = txt
		}, "unsupported source file"},
		{"negative passes", func(s *Scenario) { s.MaxPasses = -1 }, "max_passes must be non-negative"},
		{"error without code", func(s *Scenario) {
			s.Expect.Errors = []ExpectedError{{Line: 3}}
		}, "expect.errors[0]: code is required"},
		{"errors with assertions", func(s *Scenario) {
			s.Expect.Errors = []ExpectedError{{Code: "E210"}}
			s.Assertions = []Assertion{{Type: AssertRebuildStable}}
		}, "cannot assert"},
		{"assertion without type", func(s *Scenario) {
			s.Assertions = []Assertion{{}}
		}, "assertions[0]: type is required"},
		{"contains without text", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertSourceContains}}
		}, "text is required for source_contains"},
		{"negative count", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertSharedCount, Count: -1}}
		}, "count must be non-negative for shared_count"},
		{"unknown type", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertRebuildStable}, {Type: "trace_order"}}
		}, `assertions[1]: unknown assertion type "trace_order"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := valid()
			tc.mutate(s)
			err := validateScenario(s)
			if tc.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadScenarios(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	names := make(map[string]bool)
	for _, s := range scenarios {
		assert.False(t, names[s.Name], "duplicate scenario name %s", s.Name)
		names[s.Name] = true
	}
	assert.True(t, names["cart"])
	assert.True(t, names["ledger"])
}

func TestLoadScenarios_ReportsFile(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "broken.yaml", "name: x\n")
	_, err := LoadScenarios(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yaml")
}

func TestFindScenarios(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b_two.yaml", "a_one.yml", "doc.cue", "notes.txt"} {
		writeScenario(t, dir, name, "")
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "golden.yaml"), 0o755))

	files, err := FindScenarios(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a_one.yml"), filepath.Join(dir, "b_two.yaml")}, files)

	files, err = FindScenarios(dir, "b_*")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b_two.yaml")}, files)

	_, err = FindScenarios(dir, "[")
	assert.ErrorContains(t, err, "invalid filter pattern")

	_, err = FindScenarios(filepath.Join(dir, "missing"), "")
	assert.Error(t, err)
}
