package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/stigc/internal/diag"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The input has errors (check found diagnostics)
	ExitCommandError = 2 // Command error (compile failed, bad paths, registry unavailable, etc.)
)

// CLI error codes. Compile diagnostics carry their own E2xx codes.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No package documents found
	ErrCodeLoadFailed  = "E004" // Document could not be read
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeConfig      = "E006" // Invalid config file
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeRegistry    = "E008" // Registry open/read/write error
	ErrCodeInternal    = "E009" // Internal compiler error
	ErrCodeTestFailed  = "E010" // One or more scenarios failed
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E201", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Diagnostic is one positioned error in command output.
type Diagnostic struct {
	Code    string `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Col     int    `json:"col,omitempty"`
}

// Position renders the diagnostic's location, or "" when it has none.
func (d Diagnostic) Position() string {
	if d.Line == 0 {
		return d.File
	}
	return diag.Pos{File: d.File, Line: d.Line, Col: d.Col}.String()
}

// Diagnostics flattens err into positioned diagnostics. A *diag.ListError
// yields one entry per error, in its sorted order.
func Diagnostics(err error) []Diagnostic {
	var le *diag.ListError
	if errors.As(err, &le) {
		out := make([]Diagnostic, len(le.Errs))
		for i, e := range le.Errs {
			out[i] = fromDiag(e)
		}
		return out
	}
	var de *diag.Error
	if errors.As(err, &de) {
		return []Diagnostic{fromDiag(de)}
	}
	var ie *diag.InternalError
	if errors.As(err, &ie) {
		s := ie.Span.Start
		return []Diagnostic{{Code: ErrCodeInternal, Kind: "internal", Message: ie.Message, File: s.File, Line: s.Line, Col: s.Col}}
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return []Diagnostic{{Code: loadErr.Code, Message: loadErr.Message, File: loadErr.Path}}
	}
	return []Diagnostic{{Code: ErrCodeGeneric, Message: err.Error()}}
}

func fromDiag(e *diag.Error) Diagnostic {
	s := e.Span.Start
	return Diagnostic{Code: e.Code, Kind: string(e.Kind), Message: e.Message, File: s.File, Line: s.Line, Col: s.Col}
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Report outputs data together with an optional error. In JSON both go into
// one response whose status follows cliErr.
func (f *OutputFormatter) Report(data any, cliErr *CLIError) error {
	if f.Format != "json" {
		fmt.Fprintln(f.Writer, data)
		return nil
	}
	resp := CLIResponse{Status: "ok", Data: data, Error: cliErr}
	if cliErr != nil {
		resp.Status = "error"
	}
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Diagnostics outputs a list of diagnostics under a headline. In JSON the
// first diagnostic is the response error and the full list is the data.
func (f *OutputFormatter) Diagnostics(headline string, diags []Diagnostic) error {
	if f.Format == "json" {
		resp := CLIResponse{Status: "error", Data: diags}
		if len(diags) > 0 {
			resp.Error = &CLIError{Code: diags[0].Code, Message: diags[0].Message}
		}
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Fprintf(f.Writer, "✗ %s\n\n", headline)
	for _, d := range diags {
		if pos := d.Position(); pos != "" {
			fmt.Fprintln(f.Writer, pos)
		}
		fmt.Fprintf(f.Writer, "  %s: %s\n\n", d.Code, d.Message)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
