package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/stigc/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update    bool   // rewrite golden files from the emitted source
	Filter    string // glob over scenario file names
	GoldenDir string // default: <scenarios-dir>/golden
}

// ScenarioResult is the outcome of one scenario.
type ScenarioResult struct {
	Name    string   `json:"name"`
	Pass    bool     `json:"pass"`
	Updated bool     `json:"updated,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// TestResult is the outcome of a test run.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run compiler conformance scenarios.

Each scenario compiles one package document against a fresh in-memory
registry and checks the diagnostics, manifest types and emitted source.
When <golden-dir>/<name>.golden exists the emitted source must match it.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  stigc test ./scenarios
  stigc test ./scenarios --filter "cart*"
  stigc test ./scenarios --update
  stigc test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "run only scenarios whose file name matches the glob")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "golden file directory (default: <scenarios-dir>/golden)")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return outputError(formatter, ErrCodeNotFound, "scenarios directory not found: "+dir, ExitCommandError)
	}
	files, err := harness.FindScenarios(dir, opts.Filter)
	if err != nil {
		return outputError(formatter, ErrCodeScanError, err.Error(), ExitCommandError)
	}

	goldenDir := opts.GoldenDir
	if goldenDir == "" {
		goldenDir = filepath.Join(dir, "golden")
	}

	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	for _, file := range files {
		formatter.VerboseLog("running %s", file)
		r := runScenario(file, goldenDir, opts.Update)
		if r.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, r)
	}

	if formatter.Format == "json" {
		if err := formatter.Report(result, failure(result)); err != nil {
			return err
		}
	} else {
		printTestResult(formatter, result)
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// runScenario loads, runs and golden-checks one scenario file. Scenarios
// that fail to load are reported under their file name.
func runScenario(file, goldenDir string, update bool) ScenarioResult {
	s, err := harness.LoadScenario(file)
	if err != nil {
		return ScenarioResult{Name: filepath.Base(file), Errors: []string{"load: " + err.Error()}}
	}
	res, err := harness.Run(s)
	if err != nil {
		return ScenarioResult{Name: s.Name, Errors: []string{"run: " + err.Error()}}
	}

	out := ScenarioResult{Name: s.Name}
	if res.Package != nil {
		golden := filepath.Join(goldenDir, s.Name+".golden")
		if update {
			if err := writeGolden(golden, res.Package.Source); err != nil {
				res.AddError(err.Error())
			} else {
				out.Updated = true
			}
		} else if err := compareGolden(golden, res.Package.Source); err != nil {
			res.AddError(err.Error())
		}
	}
	out.Pass = res.Pass
	out.Errors = res.Errors
	return out
}

func writeGolden(path string, src []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("update golden: %w", err)
	}
	if err := os.WriteFile(path, src, 0o644); err != nil {
		return fmt.Errorf("update golden: %w", err)
	}
	return nil
}

// compareGolden checks src against the golden file at path. Scenarios
// without a golden file are checked by their assertions alone.
func compareGolden(path string, src []byte) error {
	want, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read golden: %w", err)
	}
	if !bytes.Equal(want, src) {
		return fmt.Errorf("source does not match golden file %s (run with --update to regenerate)", path)
	}
	return nil
}

func failure(result TestResult) *CLIError {
	if result.Failed == 0 {
		return nil
	}
	return &CLIError{Code: ErrCodeTestFailed, Message: fmt.Sprintf("%d scenario(s) failed", result.Failed)}
}

func printTestResult(formatter *OutputFormatter, result TestResult) {
	w := formatter.Writer
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}
	for _, r := range result.Scenarios {
		if r.Pass {
			note := ""
			if r.Updated {
				note = " (golden updated)"
			}
			fmt.Fprintf(w, "✓ %s%s\n", r.Name, note)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", r.Name)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintf(w, "\nTest Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed == 0 {
		fmt.Fprintln(w, "✓ All scenarios passed")
	}
}
