package harness

import (
	"github.com/roach88/stigc/internal/compiler"
	"github.com/roach88/stigc/internal/diag"
)

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if the compile outcome and every assertion match.
	Pass bool `json:"pass"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Diagnostics are the compile errors the document produced.
	Diagnostics []*diag.Error `json:"diagnostics,omitempty"`

	// Package is the compiled package. Nil if compilation failed.
	Package *compiler.Result `json:"package,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Source returns the emitted Go source, or "" if compilation failed.
func (r *Result) Source() string {
	if r.Package == nil {
		return ""
	}
	return string(r.Package.Source)
}
