package ir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Manifest lists what a compiled package exports.
type Manifest struct {
	Package  string   `json:"package"`
	Compiler string   `json:"compiler"`
	Exports  []Export `json:"exports"`
}

// Export is one top-level definition of a package.
type Export struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Type string `json:"type"`
}

// Value converts m to its canonical form.
func (m *Manifest) Value() Object {
	exports := make(Array, len(m.Exports))
	for i, e := range m.Exports {
		exports[i] = Object{
			"name": String(e.Name),
			"kind": String(e.Kind),
			"type": String(e.Type),
		}
	}
	return Object{
		"version":  String(ManifestVersion),
		"package":  String(m.Package),
		"compiler": String(m.Compiler),
		"exports":  exports,
	}
}

// Canonical returns the canonical JSON encoding of m.
func (m *Manifest) Canonical() ([]byte, error) {
	return MarshalCanonical(m.Value())
}

// ParseManifest decodes a manifest stored by the registry.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// Lookup returns the export called name.
func (m *Manifest) Lookup(name string) (Export, bool) {
	for _, e := range m.Exports {
		if e.Name == name {
			return e, true
		}
	}
	return Export{}, false
}

// String renders one export per line.
func (m *Manifest) String() string {
	var b strings.Builder
	for _, e := range m.Exports {
		fmt.Fprintf(&b, "%s %s: %s\n", e.Kind, e.Name, e.Type)
	}
	return b.String()
}
