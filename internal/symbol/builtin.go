package symbol

import (
	"slices"
	"strings"

	"github.com/roach88/stigc/internal/expr"
	"github.com/roach88/stigc/internal/types"
)

// Param is a named parameter of a built-in function.
type Param struct {
	Name string
	Kind types.Kind
}

// Builtin is a function provided by the runtime. Its parameter and result
// kinds are atomic; Any accepts every argument type.
type Builtin struct {
	Name   string
	Params []Param
	Result types.Kind

	// Go is the runtime function the generated code calls.
	Go string
}

func (b *Builtin) signature(eng *types.Engine) *expr.Signature {
	params := make([]types.Field, len(b.Params))
	for i, p := range b.Params {
		params[i] = types.Field{Name: p.Name, Type: atomType(eng, p.Kind)}
	}
	return &expr.Signature{Name: b.Name, Params: params, Result: atomType(eng, b.Result), IsValue: true}
}

func atomType(eng *types.Engine, k types.Kind) *types.Type {
	return eng.Intern(types.Desc{Kind: k})
}

// builtins is the registry, built once and never modified.
var builtins = func() []*Builtin {
	reg := []*Builtin{
		{Name: "random_int", Params: []Param{{"lo", types.Int}, {"hi", types.Int}}, Result: types.Int, Go: "RandomInt"},
		{Name: "replace", Params: []Param{{"s", types.Str}, {"old", types.Str}, {"new", types.Str}}, Result: types.Str, Go: "Replace"},
		{Name: "time_diff", Params: []Param{{"s", types.Str}}, Result: types.TimeDiff, Go: "ParseTimeDiff"},
		{Name: "time_pnt", Params: []Param{{"s", types.Str}}, Result: types.TimePnt, Go: "ParseTimePnt"},
		{Name: "now", Result: types.TimePnt, Go: "Now"},
		{Name: "len", Params: []Param{{"s", types.Any}}, Result: types.Int, Go: "Len"},
	}
	slices.SortFunc(reg, func(a, b *Builtin) int { return strings.Compare(a.Name, b.Name) })
	return reg
}()

// Builtins returns the registry sorted by name. The entries are shared and
// must not be modified.
func Builtins() []*Builtin {
	return slices.Clone(builtins)
}

// LookupBuiltin returns the built-in with the given name.
func LookupBuiltin(name string) (*Builtin, bool) {
	i, ok := slices.BinarySearchFunc(builtins, name, func(b *Builtin, n string) int {
		return strings.Compare(b.Name, n)
	})
	if !ok {
		return nil, false
	}
	return builtins[i], true
}
