package cst

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/stigc/internal/diag"
)

// Extensions lists the document extensions Load understands.
var Extensions = []string{".yaml", ".yml", ".json", ".cue"}

// ErrFormat is returned for a file whose extension is not in Extensions.
var ErrFormat = errors.New("unsupported document format")

// LoadFile reads and parses the package document at path.
func LoadFile(path string) (*Package, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Load(path, src)
}

// Load parses a package document; the format follows name's extension.
func Load(name string, src []byte) (*Package, error) {
	switch filepath.Ext(name) {
	case ".yaml", ".yml", ".json":
		return LoadYAML(name, src)
	case ".cue":
		return LoadCUE(name, src)
	}
	return nil, fmt.Errorf("%s: %w", name, ErrFormat)
}

// LoadYAML parses a package document written in YAML. JSON documents are
// YAML documents and load the same way.
func LoadYAML(name string, src []byte) (*Package, error) {
	var doc yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(src))
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, syntaxErr(diag.At(name, 1, 1), "empty document")
		}
		return nil, syntaxErr(diag.At(name, 1, 1), "%v", err)
	}
	r, err := fromYAML(name, &doc)
	if err != nil {
		return nil, err
	}
	return parsePackage(r)
}

// LoadCUE parses a package document written in CUE. The document is
// evaluated first, so it may use CUE definitions and references to build
// the tree.
func LoadCUE(name string, src []byte) (*Package, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	r, err := fromCUE(v)
	if err != nil {
		return nil, err
	}
	return parsePackage(r)
}

// formatCUEError converts the first CUE error into a positioned syntax
// error.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		p := positions[0]
		return syntaxErr(diag.At(p.Filename(), p.Line(), p.Column()), "%s", first.Error())
	}
	return syntaxErr(diag.Span{}, "%s", first.Error())
}
