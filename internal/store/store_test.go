package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stigc/internal/ir"
	"github.com/roach88/stigc/internal/testutil"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testReg(path, hash, compiler string) Registration {
	return Registration{
		Path:       path,
		SourceHash: hash,
		Manifest: &ir.Manifest{
			Package:  path,
			Compiler: compiler,
			Exports:  []ir.Export{{Name: "total", Kind: "func", Type: "int"}},
		},
	}
}

// TestOpen_Pragmas tests that Open configures SQLite.
func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)
	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("synchronous", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

// TestOpen_Idempotent tests reopening an existing registry keeps its rows.
func TestOpen_Idempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reg.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, _, err = s.Register(ctx, testReg("shop/cart", "h1", ir.CompilerVersion))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	e, err := s.Latest(ctx, "shop/cart")
	require.NoError(t, err)
	assert.Equal(t, 1, e.Version)
}

// TestRegister_Versions tests version allocation.
func TestRegister_Versions(t *testing.T) {
	ctx := context.Background()
	gen := testutil.NewFixedIDGenerator()
	s := createTestStore(t, WithIDGenerator(gen))

	e1, created, err := s.Register(ctx, testReg("shop/cart", "h1", "0.1.0"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, e1.Version)
	assert.Equal(t, "build-1", e1.BuildID)

	again, created, err := s.Register(ctx, testReg("shop/cart", "h1", "0.1.3"))
	require.NoError(t, err)
	assert.False(t, created, "unchanged source keeps its version")
	assert.Equal(t, e1.Version, again.Version)
	assert.Equal(t, e1.BuildID, again.BuildID)

	e2, created, err := s.Register(ctx, testReg("shop/cart", "h2", "0.1.0"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 2, e2.Version)

	e3, created, err := s.Register(ctx, testReg("shop/cart", "h2", "0.2.0"))
	require.NoError(t, err)
	assert.True(t, created, "incompatible compiler allocates a new version")
	assert.Equal(t, 3, e3.Version)

	other, _, err := s.Register(ctx, testReg("shop/tax", "h1", "0.1.0"))
	require.NoError(t, err)
	assert.Equal(t, 1, other.Version, "versions are per path")
	assert.Equal(t, 4, gen.Count())

	all, err := s.Versions(ctx, "shop/cart")
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, e := range all {
		assert.Equal(t, i+1, e.Version)
		assert.Equal(t, int64(i+1), e.Seq)
	}
	assert.Equal(t, "0.2.0", all[2].Compiler)
	assert.Equal(t, "int", all[0].Manifest.Exports[0].Type)

	paths, err := s.Packages(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"shop/cart", "shop/tax"}, paths)
}

// TestRegister_UUIDv7 tests the default build id generator.
func TestRegister_UUIDv7(t *testing.T) {
	s := createTestStore(t)
	e, _, err := s.Register(context.Background(), testReg("p", "h", ir.CompilerVersion))
	require.NoError(t, err)
	id, err := uuid.Parse(e.BuildID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

// TestRegister_Invalid tests rejected registrations.
func TestRegister_Invalid(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, _, err := s.Register(ctx, testReg("", "h", "0.1.0"))
	assert.ErrorContains(t, err, "empty package path")

	_, _, err = s.Register(ctx, Registration{Path: "p", SourceHash: "h"})
	assert.ErrorContains(t, err, "missing manifest")
}

// TestLatest_NotFound tests lookups of unknown paths.
func TestLatest_NotFound(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Latest(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := s.Versions(ctx, "nope")
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

// TestCompatible tests compiler version compatibility.
func TestCompatible(t *testing.T) {
	tests := []struct {
		written, current string
		want             bool
	}{
		{"0.1.0", "0.1.0", true},
		{"0.1.0", "0.1.9", true},
		{"0.1.0", "0.2.0", false},
		{"1.2.0", "1.9.1", true},
		{"1.2.0", "2.0.0", false},
		{"1.2.0", "1.1.0", false},
		{"junk", "1.0.0", false},
		{"1.0.0", "junk", false},
	}
	for _, tt := range tests {
		t.Run(tt.written+"->"+tt.current, func(t *testing.T) {
			assert.Equal(t, tt.want, Compatible(tt.written, tt.current))
		})
	}
}
