// Package compiler drives a package from its CST to emitted Go source and a
// registered version.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/stigc/internal/codegen"
	"github.com/roach88/stigc/internal/cst"
	"github.com/roach88/stigc/internal/diag"
	"github.com/roach88/stigc/internal/expr"
	"github.com/roach88/stigc/internal/ir"
	"github.com/roach88/stigc/internal/store"
	"github.com/roach88/stigc/internal/symbol"
	"github.com/roach88/stigc/internal/synth"
	"github.com/roach88/stigc/internal/types"
)

// Registry allocates package versions. *store.Store implements it.
type Registry interface {
	Register(ctx context.Context, reg store.Registration) (store.Entry, bool, error)
}

// Options configures Check and Compile.
type Options struct {
	// MaxPasses bounds the resolution scheduler. Zero means
	// symbol.DefaultMaxPasses.
	MaxPasses int
	// GoPackage names the emitted Go package. Defaults to the last segment
	// of the package name.
	GoPackage string
	// RuntimeImport overrides codegen.DefaultRuntimeImport.
	RuntimeImport string
	// Registry versions compiled packages. Without one every package is
	// version 1.
	Registry Registry
}

// PackageID is a namespace path plus an integer version.
type PackageID struct {
	Path    string `json:"path"`
	Version int    `json:"version"`
}

func (id PackageID) String() string {
	return fmt.Sprintf("%s@v%d", id.Path, id.Version)
}

// Unit is a package whose definitions resolved without errors.
type Unit struct {
	Package  *cst.Package
	Path     string
	Table    *symbol.Table
	Scope    symbol.ScopeID
	Schedule symbol.Stats
	Cycles   []symbol.CycleWarning
}

// Defs returns the package's top-level definitions in declaration order.
func (u *Unit) Defs() []*symbol.Def {
	ids := u.Table.Scope(u.Scope).Defs()
	out := make([]*symbol.Def, 0, len(ids))
	for _, id := range ids {
		if d := u.Table.Def(id); d != nil {
			out = append(out, d)
		}
	}
	return out
}

// Result is a compiled package.
type Result struct {
	ID        PackageID     `json:"id"`
	GoPackage string        `json:"go_package"`
	Source    []byte        `json:"-"`
	Hash      string        `json:"hash"`
	BuildID   string        `json:"build_id,omitempty"`
	Created   bool          `json:"created"`
	Manifest  *ir.Manifest  `json:"manifest"`
	Schedule  symbol.Stats  `json:"schedule"`
	Codegen   codegen.Stats `json:"codegen"`
}

// IsInternal reports whether err signals a bug in the compiler rather than
// in the input program.
func IsInternal(err error) bool {
	var ie *diag.InternalError
	return errors.As(err, &ie)
}

// PackagePath joins the segments of a package name into a namespace path.
func PackagePath(pkg *cst.Package) string {
	return strings.Join(pkg.Name, "/")
}

// Check synthesizes and resolves pkg. Recoverable errors come back together
// as a *diag.ListError sorted by position; an internal error aborts.
func Check(pkg *cst.Package, opts Options) (u *Unit, err error) {
	defer diag.RecoverInternal(&err)
	return check(pkg, opts)
}

func check(pkg *cst.Package, opts Options) (*Unit, error) {
	if pkg == nil || len(pkg.Name) == 0 {
		return nil, errors.New("package has no name")
	}
	errs := &diag.List{}
	tab := symbol.NewTable(types.NewEngine(), errs.Add)
	scope := synth.New(tab, errs.Add).Package(pkg)
	u := &Unit{
		Package: pkg,
		Path:    PackagePath(pkg),
		Table:   tab,
		Scope:   scope,
	}
	u.Schedule = tab.Build(opts.MaxPasses)
	slog.Debug("resolved definitions",
		"package", u.Path,
		"passes", u.Schedule.Passes,
		"invocations", u.Schedule.Invocations,
		"unfinished", u.Schedule.Unfinished,
	)
	if err := errs.Err(); err != nil {
		return nil, err
	}
	u.Cycles = symbol.AnalyzeCycles(tab)
	return u, nil
}

// Compile checks pkg, emits its Go source and, when opts.Registry is set,
// registers it. Code generation only runs for a package without errors.
func Compile(ctx context.Context, pkg *cst.Package, opts Options) (res *Result, err error) {
	defer diag.RecoverInternal(&err)

	u, err := check(pkg, opts)
	if err != nil {
		return nil, err
	}

	goPkg := opts.GoPackage
	if goPkg == "" {
		goPkg = pkg.Name[len(pkg.Name)-1]
	}
	gen := codegen.New(u.Table, codegen.Options{
		Package:       goPkg,
		RuntimeImport: opts.RuntimeImport,
		Source:        sourceName(pkg),
	})
	src, err := gen.File(u.Defs())
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", u.Path, err)
	}

	res = &Result{
		ID:        PackageID{Path: u.Path, Version: 1},
		GoPackage: goPkg,
		Source:    src,
		Hash:      ir.SourceHash(src),
		Created:   true,
		Manifest:  NewManifest(u),
		Schedule:  u.Schedule,
		Codegen:   gen.Stats(),
	}
	if opts.Registry != nil {
		entry, created, err := opts.Registry.Register(ctx, store.Registration{
			Path:       u.Path,
			SourceHash: res.Hash,
			Manifest:   res.Manifest,
		})
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", u.Path, err)
		}
		res.ID.Version = entry.Version
		res.BuildID = entry.BuildID
		res.Created = created
	}
	slog.Info("compiled package",
		"id", res.ID.String(),
		"functions", res.Codegen.Functions,
		"ids", res.Codegen.IDs,
		"created", res.Created,
	)
	return res, nil
}

func sourceName(pkg *cst.Package) string {
	if f := pkg.Span().Start.File; f != "" {
		return filepath.Base(f)
	}
	return ""
}

// NewManifest lists the exported definitions of u.
func NewManifest(u *Unit) *ir.Manifest {
	m := &ir.Manifest{Package: u.Path, Compiler: ir.CompilerVersion, Exports: []ir.Export{}}
	for _, d := range u.Defs() {
		sig, err := u.Table.Signature(d.ID())
		if err != nil {
			diag.Internalf(d.Span(), "signature of checked %s: %v", d.Label(), err)
		}
		m.Exports = append(m.Exports, ir.Export{
			Name: d.Name(),
			Kind: d.Kind().String(),
			Type: signatureString(sig),
		})
	}
	return m
}

func signatureString(sig *expr.Signature) string {
	if len(sig.Params) == 0 {
		return sig.Result.String()
	}
	params := make([]string, len(sig.Params))
	for i, p := range sig.Params {
		params[i] = "." + p.Name + ": " + p.Type.String()
	}
	return "(" + strings.Join(params, ", ") + ") -> " + sig.Result.String()
}

// OutputPath is where WriteFile puts the source of res under dir:
// dir/<path>/v<version>/<go package>.go.
func OutputPath(dir string, res *Result) string {
	return filepath.Join(dir, filepath.FromSlash(res.ID.Path),
		fmt.Sprintf("v%d", res.ID.Version), res.GoPackage+".go")
}

// WriteFile writes the emitted source of res below dir and returns the file
// path.
func WriteFile(dir string, res *Result) (string, error) {
	path := OutputPath(dir, res)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("write %s: %w", res.ID, err)
	}
	if err := os.WriteFile(path, res.Source, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", res.ID, err)
	}
	return path, nil
}
