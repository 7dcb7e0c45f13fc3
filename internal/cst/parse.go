package cst

import (
	"strings"

	"github.com/roach88/stigc/internal/diag"
)

var litTags = map[string]LitKind{
	"bool": LitBool, "int": LitInt, "real": LitReal, "str": LitStr,
	"id": LitID, "time_pnt": LitTimePnt, "time_diff": LitTimeDiff,
}

var unaryTags = map[string]bool{"neg": true, "not": true, "seq_of": true, "is_known": true}

var binaryTags = map[string]bool{
	"add": true, "sub": true, "mult": true, "div": true, "mod": true, "exp": true,
	"eq": true, "neq": true, "lt": true, "le": true, "gt": true, "ge": true,
	"and": true, "or": true,
}

// parser turns a raw document into CST nodes. Malformed nodes are recorded
// and replaced with nil so that sibling definitions are still parsed.
type parser struct {
	errs diag.List
}

func parsePackage(r *raw) (*Package, error) {
	p := &parser{}
	pkg := p.pkg(r)
	if err := p.errs.Err(); err != nil {
		return nil, err
	}
	return pkg, nil
}

func (p *parser) fail(span diag.Span, format string, args ...any) {
	p.errs.Add(syntaxErr(span, format, args...))
}

func (p *parser) want(r *raw, kind rawKind, what string) bool {
	if r == nil {
		return false
	}
	if r.kind != kind {
		p.fail(r.span, "%s must be a %s, not a %s", what, kind, r.kind)
		return false
	}
	return true
}

func (p *parser) field(r *raw, key string) *raw {
	v := r.get(key)
	if v == nil {
		p.fail(r.span, "missing %q", key)
	}
	return v
}

func (p *parser) name(r *raw, what string) string {
	if !p.want(r, rawScalar, what) {
		return ""
	}
	if r.scalar != scalarStr || r.text == "" {
		p.fail(r.span, "%s must be a name, not %q", what, r.text)
		return ""
	}
	return r.text
}

func (p *parser) pkg(r *raw) *Package {
	pkg := &Package{pos: pos{r.span}}
	if !p.want(r, rawMap, "package document") {
		return pkg
	}
	for _, k := range r.keys {
		if k != "package" && k != "defs" {
			p.fail(r.span, "unknown package key %q", k)
		}
	}
	switch n := p.field(r, "package"); {
	case n == nil:
	case n.kind == rawList:
		for _, item := range n.items {
			pkg.Name = append(pkg.Name, p.name(item, "package name"))
		}
	default:
		pkg.Name = strings.Split(p.name(n, "package name"), ".")
	}
	pkg.Defs = p.defs(r.get("defs"))
	return pkg
}

func (p *parser) defs(r *raw) []*Def {
	if r == nil || !p.want(r, rawList, "defs") {
		return nil
	}
	out := make([]*Def, 0, len(r.items))
	for _, item := range r.items {
		if d := p.def(item); d != nil {
			out = append(out, d)
		}
	}
	return out
}

func (p *parser) def(r *raw) *Def {
	if !p.want(r, rawMap, "definition") {
		return nil
	}
	d := &Def{pos: pos{r.span}, Name: p.name(p.field(r, "name"), "definition name")}
	body, typ := r.get("body"), r.get("type")
	switch {
	case body != nil && typ != nil:
		p.fail(r.span, "definition %s has both a body and a type", d.Name)
	case body != nil:
		d.Body = p.expr(body)
	case typ != nil:
		d.Type = p.typ(typ)
	default:
		p.fail(r.span, "definition %s needs a body or a type", d.Name)
	}
	return d
}

// expr parses an expression node. Plain scalars are shorthand: numbers and
// booleans are literals, strings are identifiers.
func (p *parser) expr(r *raw) Node {
	if r == nil {
		return nil
	}
	at := pos{r.span}
	switch r.kind {
	case rawScalar:
		switch r.scalar {
		case scalarInt:
			return &Lit{pos: at, Kind: LitInt, Text: r.text}
		case scalarReal:
			return &Lit{pos: at, Kind: LitReal, Text: r.text}
		case scalarBool:
			return &Lit{pos: at, Kind: LitBool, Text: r.text}
		}
		return &Ident{pos: at, Name: r.text}
	case rawMap:
	default:
		p.fail(r.span, "expression must be a scalar or a mapping, not a %s", r.kind)
		return nil
	}
	if len(r.keys) != 1 {
		p.fail(r.span, "expression mapping must have exactly one key, has %d", len(r.keys))
		return nil
	}
	tag, v := r.keys[0], r.vals[0]

	if kind, ok := litTags[tag]; ok {
		if !p.want(v, rawScalar, tag+" literal") {
			return nil
		}
		return &Lit{pos: at, Kind: kind, Text: v.text}
	}
	if unaryTags[tag] {
		return &Unary{pos: at, Op: tag, Operand: p.expr(v)}
	}
	if binaryTags[tag] {
		l, rr := p.pair(v, tag)
		return &Binary{pos: at, Op: tag, Lhs: l, Rhs: rr}
	}

	switch tag {
	case "ref":
		return &Ident{pos: at, Name: p.name(v, "ref")}
	case "that":
		return &That{pos: at}
	case "lhs":
		return &Lhs{pos: at}
	case "rhs":
		return &Rhs{pos: at}
	case "start":
		return &Start{pos: at, Init: p.expr(v)}
	case "given":
		return &Given{pos: at, Type: p.typ(v)}
	case "if":
		if !p.want(v, rawMap, "if") {
			return nil
		}
		return &If{pos: at, Cond: p.sub(v, "cond"), Then: p.sub(v, "then"), Else: p.sub(v, "else")}
	case "filter":
		if !p.want(v, rawMap, tag) {
			return nil
		}
		return &Filter{pos: at, Seq: p.sub(v, "seq"), Pred: p.sub(v, "pred")}
	case "map":
		if !p.want(v, rawMap, tag) {
			return nil
		}
		return &Map{pos: at, Seq: p.sub(v, "seq"), Body: p.sub(v, "body")}
	case "reduce":
		if !p.want(v, rawMap, tag) {
			return nil
		}
		return &Reduce{pos: at, Seq: p.sub(v, "seq"), Body: p.sub(v, "body")}
	case "sort":
		if !p.want(v, rawMap, tag) {
			return nil
		}
		return &Sort{pos: at, Seq: p.sub(v, "seq"), Less: p.sub(v, "less")}
	case "assert":
		if !p.want(v, rawMap, tag) {
			return nil
		}
		return &Assert{pos: at, Value: p.sub(v, "value"), Pred: p.sub(v, "pred")}
	case "obj":
		if v.kind == rawNull {
			return &Obj{pos: at}
		}
		if !p.want(v, rawMap, tag) {
			return nil
		}
		return &Obj{pos: at, Fields: p.fields(v)}
	case "addr":
		return p.addr(at, v)
	case "list", "set":
		elems, elem := p.collection(v, tag)
		if tag == "set" {
			return &Set{pos: at, Elems: elems, Elem: elem}
		}
		return &List{pos: at, Elems: elems, Elem: elem}
	case "dict":
		return p.dict(at, v)
	case "member":
		if !p.want(v, rawMap, tag) {
			return nil
		}
		return &Member{pos: at, Obj: p.sub(v, "obj"), Field: p.name(p.field(v, "field"), "field")}
	case "call":
		if !p.want(v, rawMap, tag) {
			return nil
		}
		c := &Call{pos: at, Fn: p.name(p.field(v, "fn"), "function")}
		if args := v.get("args"); args != nil && args.kind != rawNull && p.want(args, rawMap, "args") {
			c.Args = p.fields(args)
		}
		return c
	case "range":
		lo, hi := p.pair(v, tag)
		return &Range{pos: at, Lo: lo, Hi: hi}
	case "where":
		if !p.want(v, rawMap, tag) {
			return nil
		}
		return &Where{pos: at, Body: p.sub(v, "body"), Defs: p.defs(v.get("defs"))}
	case "read":
		if !p.want(v, rawMap, tag) {
			return nil
		}
		return &Read{pos: at, Addr: p.sub(v, "addr"), Type: p.typ(p.field(v, "type"))}
	case "write":
		if !p.want(v, rawMap, tag) {
			return nil
		}
		return &Write{pos: at, Addr: p.sub(v, "addr"), Value: p.sub(v, "value")}
	case "delete":
		return &Delete{pos: at, Addr: p.expr(v)}
	case "effects":
		if !p.want(v, rawMap, tag) {
			return nil
		}
		fx := &Effects{pos: at, Result: p.sub(v, "result")}
		if stmts := v.get("stmts"); stmts != nil && p.want(stmts, rawList, "stmts") {
			for _, s := range stmts.items {
				fx.Stmts = append(fx.Stmts, p.expr(s))
			}
		}
		return fx
	}
	p.fail(r.span, "unknown expression %q", tag)
	return nil
}

func (p *parser) sub(r *raw, key string) Node {
	return p.expr(p.field(r, key))
}

func (p *parser) pair(r *raw, what string) (Node, Node) {
	if !p.want(r, rawList, what) {
		return nil, nil
	}
	if len(r.items) != 2 {
		p.fail(r.span, "%s takes 2 operands, got %d", what, len(r.items))
		return nil, nil
	}
	return p.expr(r.items[0]), p.expr(r.items[1])
}

func (p *parser) fields(r *raw) []Field {
	out := make([]Field, len(r.keys))
	for i, k := range r.keys {
		out[i] = Field{Name: k, Value: p.expr(r.vals[i])}
	}
	return out
}

// direction reads the {asc: x} / {desc: x} wrapper of an address member.
func direction(r *raw) (desc bool, inner *raw) {
	if r.kind == rawMap && len(r.keys) == 1 {
		switch r.keys[0] {
		case "desc":
			return true, r.vals[0]
		case "asc":
			return false, r.vals[0]
		}
	}
	return false, r
}

func (p *parser) addr(at pos, r *raw) Node {
	if !p.want(r, rawList, "addr") {
		return nil
	}
	a := &Addr{pos: at}
	for _, item := range r.items {
		desc, inner := direction(item)
		a.Members = append(a.Members, AddrMember{Desc: desc, Value: p.expr(inner)})
	}
	return a
}

func (p *parser) collection(r *raw, what string) ([]Node, Type) {
	var items *raw
	var elem Type
	switch r.kind {
	case rawList:
		items = r
	case rawMap:
		items = r.get("elems")
		if t := r.get("type"); t != nil {
			elem = p.typ(t)
		}
	default:
		p.fail(r.span, "%s must be a list or a mapping", what)
		return nil, nil
	}
	var elems []Node
	if items != nil && p.want(items, rawList, what+" elems") {
		for _, item := range items.items {
			elems = append(elems, p.expr(item))
		}
	}
	return elems, elem
}

func (p *parser) dict(at pos, r *raw) Node {
	d := &Dict{pos: at}
	entries := r
	if r.kind == rawMap {
		entries = r.get("entries")
		if k := r.get("key"); k != nil {
			d.Key = p.typ(k)
		}
		if v := r.get("val"); v != nil {
			d.Val = p.typ(v)
		}
		if (d.Key == nil) != (d.Val == nil) {
			p.fail(r.span, "dict annotation needs both key and val")
		}
	}
	if entries == nil {
		return d
	}
	if !p.want(entries, rawList, "dict entries") {
		return nil
	}
	for _, e := range entries.items {
		k, v := p.pair(e, "dict entry")
		d.Entries = append(d.Entries, Entry{Key: k, Value: v})
	}
	return d
}

var wrapTags = map[string]bool{"opt": true, "seq": true, "list": true, "set": true}

// typ parses a type annotation: a name, or a one-key mapping for
// composite types.
func (p *parser) typ(r *raw) Type {
	if r == nil {
		return nil
	}
	at := typePos{r.span}
	if r.kind == rawScalar {
		return &NamedType{typePos: at, Name: p.name(r, "type name")}
	}
	if !p.want(r, rawMap, "type") {
		return nil
	}
	if len(r.keys) != 1 {
		p.fail(r.span, "type mapping must have exactly one key, has %d", len(r.keys))
		return nil
	}
	tag, v := r.keys[0], r.vals[0]
	switch {
	case wrapTags[tag]:
		return &WrapType{typePos: at, Kind: tag, Elem: p.typ(v)}
	case tag == "dict":
		if !p.want(v, rawList, "dict type") {
			return nil
		}
		if len(v.items) != 2 {
			p.fail(v.span, "dict type takes key and value types")
			return nil
		}
		return &DictType{typePos: at, Key: p.typ(v.items[0]), Val: p.typ(v.items[1])}
	case tag == "obj":
		o := &ObjType{typePos: at}
		if v.kind == rawNull {
			return o
		}
		if !p.want(v, rawMap, "object type") {
			return nil
		}
		for i, k := range v.keys {
			o.Fields = append(o.Fields, TypeField{Name: k, Type: p.typ(v.vals[i])})
		}
		return o
	case tag == "addr":
		if !p.want(v, rawList, "address type") {
			return nil
		}
		a := &AddrType{typePos: at}
		for _, item := range v.items {
			desc, inner := direction(item)
			a.Members = append(a.Members, TypeMember{Desc: desc, Type: p.typ(inner)})
		}
		return a
	}
	p.fail(r.span, "unknown type %q", tag)
	return nil
}
