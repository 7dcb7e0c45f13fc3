package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/stigc/internal/compiler"
	"github.com/roach88/stigc/internal/cst"
	"github.com/roach88/stigc/internal/diag"
	"github.com/roach88/stigc/internal/store"
	"github.com/roach88/stigc/internal/testutil"
)

// Harness is the test execution engine.
// It compiles scenarios against an in-memory registry with fixed build ids.
type Harness struct {
	store  *store.Store
	ids    *testutil.FixedIDGenerator
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh in-memory registry for isolation.
// The returned error is reserved for failures of the harness itself and
// internal compiler errors; compile diagnostics are part of the result.
//
// Execution flow:
// 1. Create fresh in-memory registry
// 2. Load and compile the scenario's document
// 3. Compare diagnostics and exports with the expectation
// 4. Evaluate assertions against the emitted source
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	h, err := newHarness()
	if err != nil {
		return nil, err
	}
	defer h.Close()

	result := NewResult()
	pkg, err := h.compile(ctx, scenario)
	switch {
	case err == nil:
		result.Package = pkg
	case compiler.IsInternal(err):
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	default:
		diags, ok := diagnostics(err)
		if !ok {
			return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
		result.Diagnostics = diags
	}
	h.logger.Debug("compiled scenario",
		"scenario", scenario.Name,
		"diagnostics", len(result.Diagnostics),
		"compiled", result.Package != nil,
	)

	checkErrors(scenario.Expect.Errors, result)
	if result.Package != nil {
		checkExports(scenario.Expect.Exports, result)
		for _, msg := range h.EvaluateAssertions(ctx, scenario, result) {
			result.AddError(msg)
		}
	}

	return result, nil
}

func newHarness() (*Harness, error) {
	ids := testutil.NewFixedIDGenerator()
	st, err := store.Open(":memory:", store.WithIDGenerator(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory registry: %w", err)
	}
	return &Harness{
		store:  st,
		ids:    ids,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// Close releases the harness registry.
func (h *Harness) Close() error {
	return h.store.Close()
}

// compile loads the scenario's document and compiles it. Each call loads
// the document afresh.
func (h *Harness) compile(ctx context.Context, scenario *Scenario) (*compiler.Result, error) {
	var (
		pkg *cst.Package
		err error
	)
	if scenario.File != "" {
		pkg, err = cst.LoadFile(scenario.File)
	} else {
		pkg, err = cst.LoadYAML(scenario.Name+".yaml", []byte(scenario.Source))
	}
	if err != nil {
		return nil, err
	}
	return compiler.Compile(ctx, pkg, compiler.Options{
		MaxPasses: scenario.MaxPasses,
		GoPackage: scenario.GoPackage,
		Registry:  h.store,
	})
}

// diagnostics flattens a compile or load error into its diagnostics.
func diagnostics(err error) ([]*diag.Error, bool) {
	var le *diag.ListError
	if errors.As(err, &le) {
		return le.Errs, true
	}
	var de *diag.Error
	if errors.As(err, &de) {
		return []*diag.Error{de}, true
	}
	return nil, false
}

// checkErrors compares the diagnostics with the expected errors, in order.
func checkErrors(want []ExpectedError, result *Result) {
	got := result.Diagnostics
	if len(want) == 0 {
		for _, d := range got {
			result.AddError(fmt.Sprintf("unexpected error: %s", d))
		}
		return
	}
	if result.Package != nil {
		result.AddError(fmt.Sprintf("expected %d error(s), compiled successfully", len(want)))
		return
	}
	if len(got) != len(want) {
		result.AddError(fmt.Sprintf("expected %d error(s), got %d: %v", len(want), len(got), got))
		return
	}
	for i, w := range want {
		d := got[i]
		if d.Code != w.Code {
			result.AddError(fmt.Sprintf("errors[%d]: expected %s, got %s", i, w.Code, d))
			continue
		}
		if w.Line != 0 && d.Span.Start.Line != w.Line {
			result.AddError(fmt.Sprintf("errors[%d]: expected %s at line %d, got %s", i, w.Code, w.Line, d))
		}
	}
}

// checkExports compares manifest types. Only the listed names are checked.
func checkExports(want map[string]string, result *Result) {
	m := result.Package.Manifest
	for _, name := range slices.Sorted(maps.Keys(want)) {
		exp, ok := m.Lookup(name)
		if !ok {
			result.AddError(fmt.Sprintf("export %s: not in manifest", name))
			continue
		}
		if exp.Type != want[name] {
			result.AddError(fmt.Sprintf("export %s: expected type %q, got %q", name, want[name], exp.Type))
		}
	}
}
