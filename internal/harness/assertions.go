package harness

import (
	"bytes"
	"context"
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the emitted source to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Source   string // Emitted source for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Source != "" {
		fmt.Fprintf(&buf, "\nSource:\n")
		for i, line := range strings.Split(strings.TrimRight(e.Source, "\n"), "\n") {
			fmt.Fprintf(&buf, "  %3d  %s\n", i+1, line)
		}
	}

	return buf.String()
}

// assertSourceContains checks that text appears in the source.
func assertSourceContains(source string, assertion Assertion) error {
	if strings.Contains(source, assertion.Text) {
		return nil
	}
	return &AssertionError{
		Type:     AssertSourceContains,
		Expected: fmt.Sprintf("source containing %q", assertion.Text),
		Actual:   "not found",
		Source:   source,
	}
}

// assertSourceExcludes checks that text does not appear in the source.
func assertSourceExcludes(source string, assertion Assertion) error {
	n := strings.Count(source, assertion.Text)
	if n == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertSourceExcludes,
		Expected: fmt.Sprintf("source without %q", assertion.Text),
		Actual:   fmt.Sprintf("found %d time(s)", n),
		Source:   source,
	}
}

// assertCount compares one of the code generator's counters.
func assertCount(kind string, got int, assertion Assertion, source string) error {
	if got == assertion.Count {
		return nil
	}
	return &AssertionError{
		Type:     assertion.Type,
		Expected: fmt.Sprintf("%d %s", assertion.Count, kind),
		Actual:   fmt.Sprintf("%d %s", got, kind),
		Source:   source,
	}
}

// assertRebuildStable compiles the scenario a second time against the same
// registry. The source must be byte-identical and the registry must hand
// back the existing version without allocating a build id.
func (h *Harness) assertRebuildStable(ctx context.Context, scenario *Scenario, result *Result) error {
	first := result.Package
	builds := h.ids.Count()

	second, err := h.compile(ctx, scenario)
	if err != nil {
		return &AssertionError{
			Type:     AssertRebuildStable,
			Expected: "second compile to succeed",
			Actual:   err.Error(),
		}
	}

	var problems []string
	if !bytes.Equal(first.Source, second.Source) {
		problems = append(problems, "source differs")
	}
	if second.Hash != first.Hash {
		problems = append(problems, fmt.Sprintf("hash %s != %s", second.Hash, first.Hash))
	}
	if second.ID != first.ID {
		problems = append(problems, fmt.Sprintf("registered as %s, first build was %s", second.ID, first.ID))
	}
	if second.Created {
		problems = append(problems, "registry created a new version")
	}
	if n := h.ids.Count(); n != builds {
		problems = append(problems, fmt.Sprintf("%d build id(s) allocated", n-builds))
	}
	if len(problems) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertRebuildStable,
		Expected: fmt.Sprintf("identical rebuild of %s", first.ID),
		Actual:   strings.Join(problems, "; "),
		Source:   string(second.Source),
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func (h *Harness) EvaluateAssertions(ctx context.Context, scenario *Scenario, result *Result) []string {
	var errors []string

	source := result.Source()
	for i, assertion := range scenario.Assertions {
		var err error

		switch assertion.Type {
		case AssertSourceContains:
			err = assertSourceContains(source, assertion)
		case AssertSourceExcludes:
			err = assertSourceExcludes(source, assertion)
		case AssertFunctionCount:
			err = assertCount("function(s)", result.Package.Codegen.Functions, assertion, source)
		case AssertSharedCount:
			err = assertCount("shared value(s)", result.Package.Codegen.IDs, assertion, source)
		case AssertRebuildStable:
			err = h.assertRebuildStable(ctx, scenario, result)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
