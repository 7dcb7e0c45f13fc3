package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/roach88/stigc/internal/compiler"
)

// ConfigFile is the config file name looked up next to the sources.
const ConfigFile = "stigc.yaml"

// Config holds project settings. Command-line flags override it.
type Config struct {
	RuntimeImport string `yaml:"runtime_import"`
	GoPackage     string `yaml:"go_package"`
	MaxPasses     int    `yaml:"max_passes"`
	OutDir        string `yaml:"out_dir"`
	Registry      string `yaml:"registry"`

	// path is the file the config was read from, "" for defaults.
	path string
}

// LoadConfig reads and validates a config file. Unknown keys are errors.
// Relative out_dir and registry paths resolve against the file's directory.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := &Config{path: path}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.MaxPasses < 0 {
		return nil, fmt.Errorf("config %s: max_passes must not be negative", path)
	}
	dir := filepath.Dir(path)
	cfg.OutDir = resolve(dir, cfg.OutDir)
	cfg.Registry = resolve(dir, cfg.Registry)
	return cfg, nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// findConfig loads the explicit config file, or else ConfigFile next to the
// first input. Without either it returns the zero config.
func findConfig(explicit string, inputs []string) (*Config, error) {
	if explicit != "" {
		return LoadConfig(explicit)
	}
	if len(inputs) == 0 {
		return &Config{}, nil
	}
	dir := inputs[0]
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	path := filepath.Join(dir, ConfigFile)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return &Config{}, nil
	}
	return LoadConfig(path)
}

// Path returns the file the config was read from.
func (c *Config) Path() string {
	return c.path
}

// BuildOptions holds the settings shared by compile and check.
type BuildOptions struct {
	OutDir        string
	Registry      string
	GoPackage     string
	RuntimeImport string
	MaxPasses     int
}

func (o *BuildOptions) addFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&o.OutDir, "out-dir", "o", "", "directory for emitted Go files")
	flags.StringVar(&o.Registry, "registry", "", "path to the SQLite package registry")
	flags.StringVar(&o.GoPackage, "go-package", "", "Go package name of emitted files")
	flags.StringVar(&o.RuntimeImport, "runtime-import", "", "import path of the runtime package")
	flags.IntVar(&o.MaxPasses, "max-passes", 0, "resolution pass limit")
}

// merge fills every option whose flag was not given from cfg.
func (o *BuildOptions) merge(cfg *Config, flags *pflag.FlagSet) {
	if !flags.Changed("out-dir") {
		o.OutDir = cfg.OutDir
	}
	if !flags.Changed("registry") {
		o.Registry = cfg.Registry
	}
	if !flags.Changed("go-package") {
		o.GoPackage = cfg.GoPackage
	}
	if !flags.Changed("runtime-import") {
		o.RuntimeImport = cfg.RuntimeImport
	}
	if !flags.Changed("max-passes") {
		o.MaxPasses = cfg.MaxPasses
	}
}

func (o *BuildOptions) compilerOptions() compiler.Options {
	return compiler.Options{
		MaxPasses:     o.MaxPasses,
		GoPackage:     o.GoPackage,
		RuntimeImport: o.RuntimeImport,
	}
}
