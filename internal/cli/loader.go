package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/stigc/internal/cst"
)

// LoadError represents an error locating or reading package documents.
type LoadError struct {
	Code    string
	Message string
	Path    string
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Source is one loaded package document.
type Source struct {
	Path    string
	Package *cst.Package
}

// FindSources expands paths into package documents. A directory contributes
// every file below it with one of cst.Extensions, except config files and
// hidden entries. The result is sorted and free of duplicates.
func FindSources(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if errors.Is(err, os.ErrNotExist) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: "path not found", Path: p}
		}
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: err.Error(), Path: p}
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != p && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.IsDir() && isSource(path) {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err), Path: p}
		}
	}
	if len(out) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no package documents found in %s", strings.Join(paths, ", "))}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func isSource(path string) bool {
	if filepath.Base(path) == ConfigFile {
		return false
	}
	return slices.Contains(cst.Extensions, filepath.Ext(path))
}

// LoadSources parses every document. It keeps going after a failure and
// returns the errors of all documents that did not load.
func LoadSources(paths []string) ([]Source, []error) {
	var sources []Source
	var errs []error
	for _, p := range paths {
		pkg, err := cst.LoadFile(p)
		if err != nil {
			var pe *fs.PathError
			if errors.As(err, &pe) {
				err = &LoadError{Code: ErrCodeLoadFailed, Message: pe.Err.Error(), Path: p}
			}
			errs = append(errs, err)
			continue
		}
		sources = append(sources, Source{Path: p, Package: pkg})
	}
	return sources, errs
}

// loadDiagnostics flattens load errors for output.
func loadDiagnostics(errs []error) []Diagnostic {
	var out []Diagnostic
	for _, err := range errs {
		out = append(out, Diagnostics(err)...)
	}
	return out
}
