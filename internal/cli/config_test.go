package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ConfigFile, `runtime_import: example.com/rt
go_package: gen
max_passes: 4
out_dir: out
registry: /abs/reg.db
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "example.com/rt", cfg.RuntimeImport)
	assert.Equal(t, "gen", cfg.GoPackage)
	assert.Equal(t, 4, cfg.MaxPasses)
	assert.Equal(t, filepath.Join(dir, "out"), cfg.OutDir)
	assert.Equal(t, "/abs/reg.db", cfg.Registry)
	assert.Equal(t, path, cfg.Path())
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "reading config")

	_, err = LoadConfig(writeFile(t, dir, "a.yaml", "max_passes: -1\n"))
	assert.ErrorContains(t, err, "max_passes must not be negative")

	_, err = LoadConfig(writeFile(t, dir, "b.yaml", "maxpasses: 2\n"))
	assert.ErrorContains(t, err, "field maxpasses not found")

	cfg, err := LoadConfig(writeFile(t, dir, "empty.yaml", ""))
	require.NoError(t, err)
	assert.Zero(t, cfg.MaxPasses)
}

func TestFindConfig(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "cart.yaml", cartDoc)

	cfg, err := findConfig("", []string{src})
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Path())

	writeFile(t, dir, ConfigFile, "go_package: x\n")
	cfg, err = findConfig("", []string{src})
	require.NoError(t, err)
	assert.Equal(t, "x", cfg.GoPackage)

	cfg, err = findConfig("", []string{dir})
	require.NoError(t, err)
	assert.Equal(t, "x", cfg.GoPackage)

	other := writeFile(t, t.TempDir(), "other.yaml", "go_package: y\n")
	cfg, err = findConfig(other, []string{src})
	require.NoError(t, err)
	assert.Equal(t, "y", cfg.GoPackage)
}

func TestFindSources(t *testing.T) {
	dir := t.TempDir()
	b := writeFile(t, dir, "b.yaml", cartDoc)
	a := writeFile(t, dir, "sub/a.cue", "")
	writeFile(t, dir, "notes.txt", "")
	writeFile(t, dir, ConfigFile, "")
	writeFile(t, dir, ".hidden/c.yaml", "")

	got, err := FindSources([]string{dir, b})
	require.NoError(t, err)
	assert.Equal(t, []string{b, a}, got)
}
