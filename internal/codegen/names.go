package codegen

import (
	"go/token"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/stigc/internal/diag"
	"github.com/roach88/stigc/internal/types"
)

var predeclared = map[string]bool{
	"any": true, "append": true, "bool": true, "byte": true, "cap": true, "clear": true,
	"close": true, "complex": true, "copy": true, "delete": true, "error": true,
	"false": true, "float32": true, "float64": true, "imag": true, "int": true,
	"int64": true, "iota": true, "len": true, "make": true, "max": true, "min": true,
	"new": true, "nil": true, "panic": true, "print": true, "println": true,
	"real": true, "recover": true, "rune": true, "string": true, "true": true,
	"ctx": true, "rt": true,
}

// generated matches the names the generator itself introduces.
var generated = regexp.MustCompile(`^(t|that|acc|lhs|rhs)[0-9]`)

// goIdent maps a definition name onto a Go identifier that cannot clash
// with keywords, predeclared names or generated names.
func goIdent(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_' || unicode.IsLetter(r):
			b.WriteRune(r)
		case unicode.IsDigit(r):
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	id := b.String()
	if id == "" {
		id = "_"
	}
	if token.IsKeyword(id) || predeclared[id] || generated.MatchString(id) {
		id += "_"
	}
	return id
}

// fieldName maps an object field onto an exported Go field name.
func fieldName(name string) string {
	id := goIdent(name)
	r, size := utf8.DecodeRuneInString(id)
	if r == '_' {
		return "X" + id
	}
	return string(unicode.ToUpper(r)) + id[size:]
}

// goType renders t as a Go type.
func (g *Generator) goType(t *types.Type) string {
	switch t.Kind() {
	case types.Any:
		return "any"
	case types.Bool:
		return "bool"
	case types.Int:
		return "int64"
	case types.Real:
		return "float64"
	case types.Str:
		return "string"
	case types.ID:
		return g.rt("ID")
	case types.TimePnt:
		return g.rt("TimePnt")
	case types.TimeDiff:
		return g.rt("TimeDiff")
	case types.Opt:
		return g.rt("Opt") + "[" + g.goType(t.Elem()) + "]"
	case types.Seq:
		return g.rt("Seq") + "[" + g.goType(t.Elem()) + "]"
	case types.List:
		return "[]" + g.goType(t.Elem())
	case types.Set:
		return g.rt("Set") + "[" + g.goType(t.Elem()) + "]"
	case types.Dict:
		return "map[" + g.goType(t.Key()) + "]" + g.goType(t.Val())
	case types.Obj:
		fields := t.Fields()
		if len(fields) == 0 {
			return "struct{}"
		}
		parts := make([]string, len(fields))
		for i, f := range fields {
			parts[i] = fieldName(f.Name) + " " + g.goType(f.Type)
		}
		return "struct{ " + strings.Join(parts, "; ") + " }"
	case types.Addr:
		return g.rt("Addr")
	}
	diag.Internalf(diag.Span{}, "no Go type for %s", t)
	return ""
}

// basic reports whether values of t compare with Go's == operator.
func basic(t *types.Type) bool {
	switch t.Kind() {
	case types.Bool, types.Int, types.Real, types.Str, types.ID, types.TimePnt, types.TimeDiff:
		return true
	}
	return false
}
