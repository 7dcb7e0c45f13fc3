package cst

import (
	"fmt"
	"strconv"

	"cuelang.org/go/cue"
	"gopkg.in/yaml.v3"

	"github.com/roach88/stigc/internal/diag"
)

// raw is a position-carrying document tree common to the YAML and CUE
// front ends. Mapping keys keep their document order.
type raw struct {
	kind   rawKind
	span   diag.Span
	scalar scalarKind
	text   string
	keys   []string
	vals   []*raw
	items  []*raw
}

type rawKind uint8

const (
	rawNull rawKind = iota
	rawScalar
	rawMap
	rawList
)

var rawKindNames = [...]string{"null", "scalar", "mapping", "list"}

func (k rawKind) String() string { return rawKindNames[k] }

type scalarKind uint8

const (
	scalarStr scalarKind = iota
	scalarInt
	scalarReal
	scalarBool
)

// get returns the value under key, or nil.
func (r *raw) get(key string) *raw {
	for i, k := range r.keys {
		if k == key {
			return r.vals[i]
		}
	}
	return nil
}

func syntaxErr(span diag.Span, format string, args ...any) *diag.Error {
	return diag.Errorf(diag.KindSyntax, diag.ErrMalformedSyntax, span, format, args...)
}

// fromYAML converts a yaml.v3 node tree, keeping line and column.
func fromYAML(file string, n *yaml.Node) (*raw, error) {
	span := diag.At(file, n.Line, n.Column)
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return &raw{kind: rawNull, span: span}, nil
		}
		return fromYAML(file, n.Content[0])

	case yaml.AliasNode:
		return fromYAML(file, n.Alias)

	case yaml.ScalarNode:
		r := &raw{kind: rawScalar, span: span, text: n.Value}
		switch n.ShortTag() {
		case "!!null":
			r.kind = rawNull
		case "!!int":
			r.scalar = scalarInt
		case "!!float":
			r.scalar = scalarReal
		case "!!bool":
			r.scalar = scalarBool
		}
		return r, nil

	case yaml.MappingNode:
		r := &raw{kind: rawMap, span: span}
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Kind != yaml.ScalarNode || k.Value == "<<" {
				return nil, syntaxErr(diag.At(file, k.Line, k.Column), "mapping keys must be plain scalars")
			}
			if r.get(k.Value) != nil {
				return nil, syntaxErr(diag.At(file, k.Line, k.Column), "duplicate key %q", k.Value)
			}
			val, err := fromYAML(file, v)
			if err != nil {
				return nil, err
			}
			r.keys = append(r.keys, k.Value)
			r.vals = append(r.vals, val)
		}
		return r, nil

	case yaml.SequenceNode:
		r := &raw{kind: rawList, span: span}
		for _, c := range n.Content {
			item, err := fromYAML(file, c)
			if err != nil {
				return nil, err
			}
			r.items = append(r.items, item)
		}
		return r, nil
	}
	return nil, syntaxErr(span, "unsupported YAML node kind %d", n.Kind)
}

// fromCUE converts a concrete CUE value. Struct fields keep declaration
// order.
func fromCUE(v cue.Value) (*raw, error) {
	p := v.Pos()
	span := diag.At(p.Filename(), p.Line(), p.Column())
	switch v.Kind() {
	case cue.NullKind:
		return &raw{kind: rawNull, span: span}, nil

	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return &raw{kind: rawScalar, span: span, scalar: scalarBool, text: strconv.FormatBool(b)}, nil

	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return &raw{kind: rawScalar, span: span, scalar: scalarInt, text: strconv.FormatInt(i, 10)}, nil

	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return &raw{kind: rawScalar, span: span, scalar: scalarReal, text: strconv.FormatFloat(f, 'g', -1, 64)}, nil

	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return &raw{kind: rawScalar, span: span, text: s}, nil

	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		r := &raw{kind: rawMap, span: span}
		for iter.Next() {
			val, err := fromCUE(iter.Value())
			if err != nil {
				return nil, err
			}
			r.keys = append(r.keys, iter.Label())
			r.vals = append(r.vals, val)
		}
		return r, nil

	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		r := &raw{kind: rawList, span: span}
		for iter.Next() {
			item, err := fromCUE(iter.Value())
			if err != nil {
				return nil, err
			}
			r.items = append(r.items, item)
		}
		return r, nil
	}
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return nil, syntaxErr(span, "value is not concrete: %s", fmt.Sprint(v))
}
