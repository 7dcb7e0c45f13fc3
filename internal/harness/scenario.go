package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/stigc/internal/cst"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Source is an inline YAML package document.
	Source string `yaml:"source,omitempty"`

	// File is a package document on disk. Relative paths are resolved
	// against the scenario file's directory.
	File string `yaml:"file,omitempty"`

	// MaxPasses bounds the resolution scheduler. Zero uses the default.
	MaxPasses int `yaml:"max_passes,omitempty"`

	// GoPackage overrides the emitted package name.
	GoPackage string `yaml:"go_package,omitempty"`

	// Expect describes the compile outcome.
	Expect Expectation `yaml:"expect,omitempty"`

	// Assertions validate the emitted source.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Expectation describes the outcome of compiling a scenario's document.
type Expectation struct {
	// Errors lists the expected diagnostics in reported order. An empty
	// list means the document must compile.
	Errors []ExpectedError `yaml:"errors,omitempty"`

	// Exports maps definition names to their manifest type. This is a
	// subset match.
	Exports map[string]string `yaml:"exports,omitempty"`
}

// ExpectedError is one expected diagnostic.
type ExpectedError struct {
	// Code is the diagnostic code, e.g. "E210".
	Code string `yaml:"code"`

	// Line is the 1-based line of the diagnostic. Zero skips the check.
	Line int `yaml:"line,omitempty"`
}

// Assertion validates the emitted source.
type Assertion struct {
	// Type specifies the assertion type:
	// - "source_contains": text appears in the emitted source
	// - "source_excludes": text does not appear in the emitted source
	// - "function_count": exactly count functions were emitted
	// - "shared_count": exactly count shared values got identifiers
	// - "rebuild_stable": a second compile is byte-identical and reuses
	//   the registered version
	Type string `yaml:"type"`

	// Text is the substring to look for (source_contains, source_excludes).
	Text string `yaml:"text,omitempty"`

	// Count is the expected number (function_count, shared_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertSourceContains = "source_contains"
	AssertSourceExcludes = "source_excludes"
	AssertFunctionCount  = "function_count"
	AssertSharedCount    = "shared_count"
	AssertRebuildStable  = "rebuild_stable"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.File != "" && !filepath.IsAbs(scenario.File) {
		scenario.File = filepath.Join(filepath.Dir(path), scenario.File)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// FindScenarios lists the scenario files directly in dir, sorted by name.
// A non-empty filter is a glob matched against the file name without its
// extension.
func FindScenarios(dir, filter string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(e.Name(), ext))
			if err != nil {
				return nil, fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				continue
			}
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}

// LoadScenarios loads every scenario in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := FindScenarios(dir, "")
	if err != nil {
		return nil, err
	}
	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, s)
	}
	return out, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Source == "" && s.File == "":
		return fmt.Errorf("one of source or file is required")
	case s.Source != "" && s.File != "":
		return fmt.Errorf("source and file are mutually exclusive")
	}

	if s.File != "" {
		if _, err := os.Stat(s.File); os.IsNotExist(err) {
			return fmt.Errorf("source file not found: %s", s.File)
		}
		if !slices.Contains(cst.Extensions, filepath.Ext(s.File)) {
			return fmt.Errorf("unsupported source file: %s", s.File)
		}
	}

	if s.MaxPasses < 0 {
		return fmt.Errorf("max_passes must be non-negative")
	}

	for i, e := range s.Expect.Errors {
		if e.Code == "" {
			return fmt.Errorf("expect.errors[%d]: code is required", i)
		}
		if e.Line < 0 {
			return fmt.Errorf("expect.errors[%d]: line must be non-negative", i)
		}
	}

	if len(s.Expect.Errors) > 0 && (len(s.Expect.Exports) > 0 || len(s.Assertions) > 0) {
		return fmt.Errorf("a scenario expecting errors cannot assert on exports or source")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertSourceContains, AssertSourceExcludes:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for %s", index, a.Type)
		}
	case AssertFunctionCount, AssertSharedCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertRebuildStable:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
