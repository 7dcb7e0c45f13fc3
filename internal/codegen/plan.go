package codegen

import (
	"github.com/roach88/stigc/internal/diag"
	"github.com/roach88/stigc/internal/expr"
)

// plan places the shared Inlines of one top-level function. Uses are
// counted over the whole body, nested scopes included, and a shared Inline
// is bound in the innermost scope enclosing all of its uses.
//
// Scopes form a tree: the parent of a nested scope is the scope its owning
// Inline is emitted in. A where that is the body of a scope and is used
// nowhere else shares that scope.
type plan struct {
	indeg  map[*Inline]int
	home   map[*Inline]*InlineScope
	flat   map[*Inline]bool
	canon  map[*InlineScope]*InlineScope
	parent map[*InlineScope]*InlineScope
	depth  map[*InlineScope]int
	effect map[*Inline]bool
}

func newPlan(root *InlineScope) *plan {
	p := &plan{
		indeg:  make(map[*Inline]int),
		home:   make(map[*Inline]*InlineScope),
		flat:   make(map[*Inline]bool),
		canon:  map[*InlineScope]*InlineScope{root: root},
		parent: make(map[*InlineScope]*InlineScope),
		depth:  map[*InlineScope]int{root: 0},
		effect: make(map[*Inline]bool),
	}

	bodies := map[*Inline]bool{root.Body: true}
	seen := make(map[*Inline]bool)
	var order []*Inline
	var visit func(*Inline)
	visit = func(in *Inline) {
		if seen[in] {
			return
		}
		seen[in] = true
		for _, s := range in.scopes {
			bodies[s.Body] = true
		}
		for _, d := range in.AppendDependsOn(nil) {
			p.indeg[d]++
			visit(d)
		}
		order = append(order, in)
	}
	p.indeg[root.Body]++
	visit(root.Body)

	// Reverse postorder reaches every Inline after all of its users.
	at := map[*Inline][]*InlineScope{root.Body: {root}}
	for i := len(order) - 1; i >= 0; i-- {
		in := order[i]
		uses := at[in]
		if len(uses) == 0 {
			diag.Internalf(spanOf(in), "inline without a use scope")
		}
		where := p.lcaAll(uses)
		emitted := distinct(uses)
		if p.bindable(in) && (len(emitted) == 1 || !p.effectful(in)) {
			p.home[in] = where
			emitted = []*InlineScope{where}
		}
		for _, d := range in.deps {
			at[d] = append(at[d], emitted...)
		}
		p.flat[in] = bodies[in] && p.indeg[in] == 1 && isWhere(in)
		for _, s := range in.scopes {
			if p.flat[in] {
				p.canon[s] = where
			} else {
				p.canon[s] = s
				p.parent[s] = where
				p.depth[s] = p.depth[where] + 1
			}
			at[s.Body] = append(at[s.Body], p.canon[s])
		}
	}
	return p
}

// bindable reports whether in is bound to an identifier. Binder variables
// only occur inside the scope that binds them, so the common ancestor of
// their users never leaves it.
func (p *plan) bindable(in *Inline) bool {
	return in.shareable() && p.indeg[in] >= 2
}

// effectful reports whether evaluating in writes or deletes. Effects used
// from several scopes are evaluated where they are used.
func (p *plan) effectful(in *Inline) bool {
	if eff, ok := p.effect[in]; ok {
		return eff
	}
	p.effect[in] = false
	eff := false
	switch in.Expr.(type) {
	case *expr.Write, *expr.Delete:
		eff = true
	}
	for _, d := range in.AppendDependsOn(nil) {
		if eff {
			break
		}
		eff = p.effectful(d)
	}
	p.effect[in] = eff
	return eff
}

// scope returns the scope s is emitted as.
func (p *plan) scope(s *InlineScope) *InlineScope {
	if c, ok := p.canon[s]; ok {
		return c
	}
	return s
}

func (p *plan) lcaAll(scopes []*InlineScope) *InlineScope {
	out := scopes[0]
	for _, s := range scopes[1:] {
		out = p.lca(out, s)
	}
	return out
}

func (p *plan) lca(a, b *InlineScope) *InlineScope {
	for p.depth[a] > p.depth[b] {
		a = p.parent[a]
	}
	for p.depth[b] > p.depth[a] {
		b = p.parent[b]
	}
	for a != b {
		a, b = p.parent[a], p.parent[b]
	}
	return a
}

func distinct(scopes []*InlineScope) []*InlineScope {
	out := scopes[:0:0]
	seen := make(map[*InlineScope]bool, len(scopes))
	for _, s := range scopes {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func isWhere(in *Inline) bool {
	_, ok := in.Expr.(*expr.Where)
	return ok && in.kind == inlineExpr
}

func spanOf(in *Inline) diag.Span {
	if in.Expr != nil {
		return in.Expr.Span()
	}
	return in.def.Span()
}
