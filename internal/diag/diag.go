// Package diag provides source positions and the error taxonomy shared by
// every layer of the compiler.
//
// This package imports nothing internal. Recoverable errors (binding, name
// resolution, type) are collected into a List sorted by source position;
// internal errors signal a compiler bug and abort the compile.
package diag

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Pos is a position in a source file. Line and Col are 1-based; the zero
// value is an unknown position.
type Pos struct {
	File string `json:"file,omitempty" yaml:"file,omitempty"`
	Line int    `json:"line" yaml:"line"`
	Col  int    `json:"col" yaml:"col"`
}

// IsValid reports whether the position carries a line number.
func (p Pos) IsValid() bool {
	return p.Line > 0
}

// Compare orders positions by file, line, then column.
func (p Pos) Compare(o Pos) int {
	if c := strings.Compare(p.File, o.File); c != 0 {
		return c
	}
	if c := cmp.Compare(p.Line, o.Line); c != 0 {
		return c
	}
	return cmp.Compare(p.Col, o.Col)
}

func (p Pos) String() string {
	if !p.IsValid() {
		return "-"
	}
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Col)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Span is a half-open source range.
type Span struct {
	Start Pos `json:"start" yaml:"start"`
	End   Pos `json:"end" yaml:"end"`
}

// At returns a zero-width span at the given line and column of file.
func At(file string, line, col int) Span {
	p := Pos{File: file, Line: line, Col: col}
	return Span{Start: p, End: p}
}

// IsValid reports whether the span has a known start.
func (s Span) IsValid() bool {
	return s.Start.IsValid()
}

func (s Span) String() string {
	return s.Start.String()
}

// Kind categorizes a recoverable compile error.
type Kind string

const (
	// KindBinding is a use of that/lhs/rhs/start/given outside its construct.
	KindBinding Kind = "binding"

	// KindName is a reference that names nothing in the scope chain.
	KindName Kind = "name"

	// KindType is an operator or construct rejecting its operand types.
	KindType Kind = "type"

	// KindConvergence is a definition that did not finish within the pass limit.
	KindConvergence Kind = "convergence"

	// KindSyntax is a malformed CST node or literal.
	KindSyntax Kind = "syntax"
)

// Error codes (E200-E299), in the CLI's numbered style.
const (
	ErrThatOutside     = "E201" // that outside filter/map/reduce/assert
	ErrSortOutside     = "E202" // lhs/rhs outside sort
	ErrStartOutside    = "E203" // start outside reduce
	ErrGivenOutside    = "E204" // given outside a function
	ErrDuplicateName   = "E205" // name defined twice in a scope
	ErrUnresolved      = "E210" // reference names nothing
	ErrNotCallable     = "E211" // call target is not a function
	ErrBadArgs         = "E212" // argument names/types mismatch
	ErrOperandTypes    = "E220" // operator rejected operand types
	ErrConstruct       = "E221" // ill-typed constructor/member/branch
	ErrRecursive       = "E222" // type depends on itself
	ErrNotConverged    = "E230" // did not finish within max passes
	ErrBadLiteral      = "E240" // malformed literal
	ErrMalformedSyntax = "E241" // malformed CST node
)

// Error is a recoverable compile error with a source span.
type Error struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"code"`
	Span    Span   `json:"span"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Span.IsValid() {
		return fmt.Sprintf("%s: [%s] %s", e.Span, e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Errorf creates an Error of the given kind and code.
func Errorf(kind Kind, code string, span Span, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Code:    code,
		Span:    span,
		Message: fmt.Sprintf(format, args...),
	}
}

// Spanned is implemented by errors that know where they happened. Errors from
// other layers (for example types.TypeError) are folded into a List through it.
type Spanned interface {
	error
	ErrSpan() Span
}

// Coded is implemented by Spanned errors that choose their own code. Spanned
// errors without it are reported as ErrOperandTypes.
type Coded interface {
	ErrCode() string
}

// List accumulates recoverable errors. The zero value is ready to use.
//
// The same error value is recorded once no matter how often it is added, so
// a cached resolution error can be re-raised by every consumer.
type List struct {
	errs []*Error
	seen map[error]bool
}

// Add appends err to the list. Errors that are not *Error are converted,
// keeping their span when they implement Spanned. Nil is ignored.
func (l *List) Add(err error) {
	if err == nil || l.seen[err] {
		return
	}
	if l.seen == nil {
		l.seen = make(map[error]bool)
	}
	l.seen[err] = true
	var ie *InternalError
	if errors.As(err, &ie) {
		panic(ie)
	}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, e := range joined.Unwrap() {
			l.Add(e)
		}
		return
	}
	var de *Error
	if errors.As(err, &de) {
		l.errs = append(l.errs, de)
		return
	}
	var sp Spanned
	if errors.As(err, &sp) {
		code := ErrOperandTypes
		if c, ok := sp.(Coded); ok {
			code = c.ErrCode()
		}
		l.errs = append(l.errs, &Error{Kind: KindType, Code: code, Span: sp.ErrSpan(), Message: sp.Error()})
		return
	}
	l.errs = append(l.errs, &Error{Kind: KindSyntax, Code: ErrMalformedSyntax, Message: err.Error()})
}

// Len returns the number of collected errors.
func (l *List) Len() int {
	return len(l.errs)
}

// Errors returns the collected errors sorted by source position. Errors at
// the same position keep their insertion order.
func (l *List) Errors() []*Error {
	out := slices.Clone(l.errs)
	slices.SortStableFunc(out, func(a, b *Error) int {
		return a.Span.Start.Compare(b.Span.Start)
	})
	return out
}

// Err returns the list as an error, or nil when it is empty.
func (l *List) Err() error {
	if len(l.errs) == 0 {
		return nil
	}
	return &ListError{Errs: l.Errors()}
}

// ListError is a non-empty, sorted list of compile errors.
type ListError struct {
	Errs []*Error
}

func (e *ListError) Error() string {
	if len(e.Errs) == 1 {
		return e.Errs[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d errors:", len(e.Errs))
	for _, err := range e.Errs {
		b.WriteString("\n\t")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e *ListError) Unwrap() []error {
	out := make([]error, len(e.Errs))
	for i, err := range e.Errs {
		out[i] = err
	}
	return out
}

// InternalError indicates a bug in the compiler itself, never in the input
// program. It is raised with panic and recovered once by the driver.
type InternalError struct {
	Message string
	Span    Span
}

func (e *InternalError) Error() string {
	if e.Span.IsValid() {
		return fmt.Sprintf("internal compiler error at %s: %s", e.Span, e.Message)
	}
	return "internal compiler error: " + e.Message
}

// Internalf panics with an InternalError.
func Internalf(span Span, format string, args ...any) {
	panic(&InternalError{Message: fmt.Sprintf(format, args...), Span: span})
}

// RecoverInternal converts a panicking InternalError into *errp. Other panics
// are re-raised. Use as: defer diag.RecoverInternal(&err).
func RecoverInternal(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if ie, ok := r.(*InternalError); ok {
		*errp = ie
		return
	}
	panic(r)
}
