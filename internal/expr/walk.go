package expr

import "github.com/roach88/stigc/internal/diag"

// Children returns the owned children of e in evaluation order.
func Children(e Expr) []Expr {
	switch n := e.(type) {
	case *Lit, *Ref, *That, *SortArg:
		return nil
	case *Start:
		return []Expr{n.Init}
	case *Unary:
		return []Expr{n.Operand}
	case *Binary:
		return []Expr{n.Lhs, n.Rhs}
	case *If:
		return []Expr{n.Cond, n.Then, n.Else}
	case *Filter:
		return []Expr{n.Seq, n.Pred}
	case *Map:
		return []Expr{n.Seq, n.Body}
	case *Reduce:
		return []Expr{n.Seq, n.Body}
	case *Sort:
		return []Expr{n.Seq, n.Less}
	case *Assert:
		return []Expr{n.Value, n.Pred}
	case *Ctor:
		return n.Elems
	case *Member:
		return []Expr{n.Obj}
	case *Call:
		return n.Args
	case *Range:
		return []Expr{n.Lo, n.Hi}
	case *Where:
		return []Expr{n.Body}
	case *Read:
		return []Expr{n.Addr}
	case *Write:
		return []Expr{n.Addr, n.Value}
	case *Delete:
		return []Expr{n.Addr}
	case *Effects:
		out := make([]Expr, 0, len(n.Stmts)+1)
		out = append(out, n.Stmts...)
		return append(out, n.Result)
	}
	diag.Internalf(e.Span(), "unhandled expression %T", e)
	return nil
}

// Walk calls fn for e and its descendants in pre-order. Returning false from
// fn skips the node's children.
func Walk(e Expr, fn func(Expr) bool) {
	if !fn(e) {
		return
	}
	for _, c := range Children(e) {
		Walk(c, fn)
	}
}

// Refs returns the links of every Ref and Call under e, in pre-order.
func Refs(e Expr) []Link {
	var out []Link
	Walk(e, func(n Expr) bool {
		switch n := n.(type) {
		case *Ref:
			out = append(out, n.Link)
		case *Call:
			out = append(out, n.Link)
		}
		return true
	})
	return out
}
