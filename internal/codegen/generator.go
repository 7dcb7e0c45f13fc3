package codegen

import (
	"fmt"
	"go/format"
	"strconv"
	"strings"

	"github.com/roach88/stigc/internal/diag"
	"github.com/roach88/stigc/internal/expr"
	"github.com/roach88/stigc/internal/symbol"
)

// DefaultRuntimeImport is the package generated code calls into for
// sequences, storage access and built-ins.
const DefaultRuntimeImport = "github.com/roach88/stigc/rt"

// Options configures a Generator.
type Options struct {
	// Package is the Go package name of the generated file.
	Package string
	// RuntimeImport is the import path of the runtime package.
	RuntimeImport string
	// Source names the compiled document in the file header.
	Source string
}

// Stats summarizes one generated file.
type Stats struct {
	Functions int
	Aliases   int
	IDs       int
}

// Generator emits one compiled unit. It owns the lowering graph and the
// per-definition function memo, so each definition is emitted once.
type Generator struct {
	tab   *symbol.Table
	opts  Options
	graph *Graph

	emitted map[expr.DefID]bool
	binders map[any]string
	counts  map[string]int
	usesRT  bool
	stats   Stats
}

// New creates a generator for the definitions of tab.
func New(tab *symbol.Table, opts Options) *Generator {
	if opts.RuntimeImport == "" {
		opts.RuntimeImport = DefaultRuntimeImport
	}
	if opts.Package == "" {
		opts.Package = "main"
	}
	return &Generator{
		tab:     tab,
		opts:    opts,
		graph:   NewGraph(tab),
		emitted: make(map[expr.DefID]bool),
		binders: make(map[any]string),
		counts:  make(map[string]int),
	}
}

// Graph returns the lowering graph shared by every emitted function.
func (g *Generator) Graph() *Graph {
	return g.graph
}

// Stats returns counts for everything emitted so far.
func (g *Generator) Stats() Stats {
	return g.stats
}

// Function returns the memoized function for def.
func (g *Generator) Function(def *symbol.Def) *Function {
	if f, ok := g.graph.funcs[def.ID()]; ok {
		return f
	}
	f := newFunction(g.graph, def)
	g.graph.funcs[def.ID()] = f
	return f
}

// File emits the top-level definitions defs as a formatted Go file. Givens
// and removed definitions are skipped.
func (g *Generator) File(defs []*symbol.Def) ([]byte, error) {
	var body TextPrinter
	g.Emit(&body, defs)

	var p TextPrinter
	if g.opts.Source != "" {
		p.Line("// Code generated by stigc from " + g.opts.Source + ". DO NOT EDIT.")
	} else {
		p.Line("// Code generated by stigc. DO NOT EDIT.")
	}
	p.Newline()
	p.Line("package " + g.opts.Package)
	if g.usesRT {
		p.Newline()
		p.Line("import rt " + strconv.Quote(g.opts.RuntimeImport))
	}
	p.Write(body.String())

	src, err := format.Source([]byte(p.String()))
	if err != nil {
		return nil, fmt.Errorf("format generated code: %w", err)
	}
	return src, nil
}

// Emit writes the declarations for defs to p without formatting.
func (g *Generator) Emit(p Printer, defs []*symbol.Def) {
	for _, def := range defs {
		if def == nil || def.Removed() || g.emitted[def.ID()] {
			continue
		}
		switch def.Kind() {
		case symbol.KindTypeAlias:
			g.emitted[def.ID()] = true
			g.alias(p, def)
		case symbol.KindFunc:
			if !def.IsTopLevel() {
				diag.Internalf(def.Span(), "%s is not top-level", def.Label())
			}
			g.emitted[def.ID()] = true
			g.topLevel(p, g.Function(def))
		}
	}
}

func (g *Generator) alias(p Printer, def *symbol.Def) {
	sig, err := g.tab.Signature(def.ID())
	if err != nil || sig.Result.IsUnknown() {
		diag.Internalf(def.Span(), "%s has no type", def.Label())
	}
	p.Newline()
	p.Write("type " + goIdent(def.Name()) + " = " + g.goType(sig.Result))
	p.Newline()
	g.stats.Aliases++
}

func (g *Generator) topLevel(p Printer, f *Function) {
	params := []string{"ctx *" + g.rt("Context")}
	params = append(params, g.params(f)...)

	var block TextPrinter
	block.Line("func " + goIdent(f.Def.Name()) + "(" + strings.Join(params, ", ") + ") " + g.goType(f.Result) + " {")
	block.Indent()
	ids := NewIDScope()
	g.body(&block, f.Scope, ids, f.Result, newPlan(f.Scope), nil)
	block.Dedent()
	block.Write("}")

	p.Newline()
	p.Write(block.String())
	p.Newline()
	g.stats.Functions++
	g.stats.IDs += ids.Total()
}

func (g *Generator) params(f *Function) []string {
	out := make([]string, len(f.Params))
	for i, p := range f.Params {
		out[i] = goIdent(p.Name()) + " " + g.goType(f.Types[i])
	}
	return out
}

// rt qualifies a runtime identifier.
func (g *Generator) rt(name string) string {
	g.usesRT = true
	return "rt." + name
}

// binder returns the variable name of a that, sort or start binder. Names
// are unique within the generator, so a binder captured by a nested closure
// is never shadowed.
func (g *Generator) binder(b any, kind string) string {
	if name, ok := g.binders[b]; ok {
		return name
	}
	name := kind + strconv.Itoa(g.counts[kind])
	g.counts[kind]++
	g.binders[b] = name
	return name
}
