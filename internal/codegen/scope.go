package codegen

import (
	"strconv"

	"github.com/roach88/stigc/internal/diag"
	"github.com/roach88/stigc/internal/symbol"
	"github.com/roach88/stigc/internal/types"
)

// IDScope hands out generated identifiers. Each nested scope draws from its
// own namespace: the root issues t0, t1, ...; its first child t0_0, t0_1,
// ...; so identifiers never collide across nested bodies. Lookups see the
// identifiers of enclosing scopes, which the nested closures capture.
type IDScope struct {
	parent   *IDScope
	prefix   string
	next     int
	children int
	ids      map[*Inline]string
	total    *int
}

// NewIDScope returns a root namespace.
func NewIDScope() *IDScope {
	return &IDScope{prefix: "t", ids: make(map[*Inline]string), total: new(int)}
}

// Child returns a fresh namespace nested in s.
func (s *IDScope) Child() *IDScope {
	c := &IDScope{
		parent: s,
		prefix: s.prefix + strconv.Itoa(s.children) + "_",
		ids:    make(map[*Inline]string),
		total:  s.total,
	}
	s.children++
	return c
}

// Lookup returns the identifier bound to in by s or an enclosing scope.
func (s *IDScope) Lookup(in *Inline) (string, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if id, ok := sc.ids[in]; ok {
			return id, true
		}
	}
	return "", false
}

// Assign binds in to a new identifier of s. Assigning the same Inline again
// returns the identifier it already has.
func (s *IDScope) Assign(in *Inline) string {
	if id, ok := s.ids[in]; ok {
		return id
	}
	id := s.prefix + strconv.Itoa(s.next)
	s.next++
	s.ids[in] = id
	*s.total++
	return id
}

// Total returns the number of identifiers assigned in the whole tree of
// scopes s belongs to.
func (s *IDScope) Total() int {
	return *s.total
}

// Function is a definition emitted as Go code. Top-level definitions become
// free functions that take the runtime context; local functions become
// closures that capture it.
type Function struct {
	Def      *symbol.Def
	TopLevel bool
	Params   []*symbol.Def
	Types    []*types.Type
	Result   *types.Type
	Scope    *InlineScope

	inline *Inline
}

func newFunction(g *Graph, def *symbol.Def) *Function {
	sig, err := g.tab.Signature(def.ID())
	if err != nil {
		diag.Internalf(def.Span(), "signature of %s: %v", def.Label(), err)
	}
	if sig.Result == nil || sig.Result.IsUnknown() {
		diag.Internalf(def.Span(), "%s has no result type", def.Label())
	}
	f := &Function{Def: def, TopLevel: def.IsTopLevel(), Result: sig.Result}
	for i, id := range def.Params() {
		p := g.tab.Def(id)
		if p == nil {
			diag.Internalf(def.Span(), "%s has a removed parameter", def.Label())
		}
		f.Params = append(f.Params, p)
		f.Types = append(f.Types, sig.Params[i].Type)
	}
	f.Scope = newScope(g.Lower(g.body(def)))
	return f
}
