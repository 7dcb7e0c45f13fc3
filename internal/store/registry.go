package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/roach88/stigc/internal/ir"
)

// ErrNotFound is returned when a package has no registered version.
var ErrNotFound = errors.New("package not registered")

// Entry is one registered package version.
type Entry struct {
	Path         string       `json:"path"`
	Version      int          `json:"version"`
	BuildID      string       `json:"build_id"`
	SourceHash   string       `json:"source_hash"`
	ManifestHash string       `json:"manifest_hash"`
	Manifest     *ir.Manifest `json:"manifest"`
	Compiler     string       `json:"compiler"`
	Seq          int64        `json:"seq"`
}

// Registration describes a freshly compiled package.
type Registration struct {
	Path       string
	SourceHash string
	Manifest   *ir.Manifest
}

// Register records a compiled package and returns its entry. When the latest
// version of the path has the same source hash and was written by a
// compatible compiler, that entry is returned unchanged and created is
// false. Otherwise a new row with version latest+1 is inserted.
func (s *Store) Register(ctx context.Context, reg Registration) (entry Entry, created bool, err error) {
	if reg.Path == "" {
		return Entry{}, false, fmt.Errorf("register: empty package path")
	}
	if reg.Manifest == nil {
		return Entry{}, false, fmt.Errorf("register %s: missing manifest", reg.Path)
	}
	manifest, err := reg.Manifest.Canonical()
	if err != nil {
		return Entry{}, false, fmt.Errorf("register %s: %w", reg.Path, err)
	}
	manifestHash, err := ir.ManifestHash(reg.Manifest)
	if err != nil {
		return Entry{}, false, fmt.Errorf("register %s: %w", reg.Path, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, false, fmt.Errorf("register %s: begin: %w", reg.Path, err)
	}
	defer tx.Rollback()

	prev, err := latest(ctx, tx, reg.Path)
	switch {
	case err == nil:
		if prev.SourceHash == reg.SourceHash && Compatible(prev.Compiler, reg.Manifest.Compiler) {
			return prev, false, nil
		}
	case errors.Is(err, ErrNotFound):
	default:
		return Entry{}, false, fmt.Errorf("register %s: %w", reg.Path, err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM packages`).Scan(&seq); err != nil {
		return Entry{}, false, fmt.Errorf("register %s: next seq: %w", reg.Path, err)
	}

	entry = Entry{
		Path:         reg.Path,
		Version:      prev.Version + 1,
		BuildID:      s.ids.Generate(),
		SourceHash:   reg.SourceHash,
		ManifestHash: manifestHash,
		Manifest:     reg.Manifest,
		Compiler:     reg.Manifest.Compiler,
		Seq:          seq,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO packages
		(path, version, build_id, source_hash, manifest_hash, manifest, compiler_version, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.Path,
		entry.Version,
		entry.BuildID,
		entry.SourceHash,
		entry.ManifestHash,
		string(manifest),
		entry.Compiler,
		entry.Seq,
	)
	if err != nil {
		return Entry{}, false, fmt.Errorf("register %s: insert: %w", reg.Path, err)
	}
	if err := tx.Commit(); err != nil {
		return Entry{}, false, fmt.Errorf("register %s: commit: %w", reg.Path, err)
	}
	return entry, true, nil
}

// Compatible reports whether a registry entry written by compiler version
// written can be reused by compiler version current. Versions that do not
// parse are never compatible.
func Compatible(written, current string) bool {
	c, err := semver.NewConstraint("^" + written)
	if err != nil {
		return false
	}
	v, err := semver.NewVersion(current)
	if err != nil {
		return false
	}
	return c.Check(v)
}

// Latest returns the highest version of path.
func (s *Store) Latest(ctx context.Context, path string) (Entry, error) {
	return latest(ctx, s.db, path)
}

// Versions returns every version of path in ascending order. Returns an
// empty slice (not nil) if the path is unknown.
func (s *Store) Versions(ctx context.Context, path string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, selectEntry+`
		WHERE path = ?
		ORDER BY version ASC
	`, path)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return entries, nil
}

// Packages returns every registered path in lexical order.
func (s *Store) Packages(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT path FROM packages ORDER BY path COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query packages: %w", err)
	}
	defer rows.Close()

	paths := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan package: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate packages: %w", err)
	}
	return paths, nil
}

const selectEntry = `
	SELECT path, version, build_id, source_hash, manifest_hash, manifest, compiler_version, seq
	FROM packages`

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func latest(ctx context.Context, q querier, path string) (Entry, error) {
	row := q.QueryRowContext(ctx, selectEntry+`
		WHERE path = ?
		ORDER BY version DESC
		LIMIT 1
	`, path)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var e Entry
	var manifest string
	err := row.Scan(&e.Path, &e.Version, &e.BuildID, &e.SourceHash, &e.ManifestHash,
		&manifest, &e.Compiler, &e.Seq)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scan entry: %w", err)
	}
	e.Manifest, err = ir.ParseManifest([]byte(manifest))
	if err != nil {
		return Entry{}, fmt.Errorf("entry %s v%d: %w", e.Path, e.Version, err)
	}
	return e, nil
}
