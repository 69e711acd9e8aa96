package scanner

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/uigraph/pkg/store"
	"github.com/gnana997/uigraph/pkg/util"
)

func TestChangeDetector_ShouldSkip(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	d := NewChangeDetector(mem, util.NopLogger())

	_, skip, err := d.ShouldSkip(ctx, "web", "agg")
	require.NoError(t, err)
	assert.False(t, skip, "no history")

	sc, err := mem.CreateScan(ctx, "web", "agg")
	require.NoError(t, err)
	_, skip, err = d.ShouldSkip(ctx, "web", "agg")
	require.NoError(t, err)
	assert.False(t, skip, "running scans do not count")

	_, err = mem.CompleteScan(ctx, sc.ID, sc.Checksum)
	require.NoError(t, err)
	prior, skip, err := d.ShouldSkip(ctx, "web", "agg")
	require.NoError(t, err)
	assert.True(t, skip)
	assert.Equal(t, sc.ID, prior)

	_, skip, err = d.ShouldSkip(ctx, "web", "other")
	require.NoError(t, err)
	assert.False(t, skip)
}

func TestChangeDetector_HistoryErrors(t *testing.T) {
	ctx := context.Background()
	down := errors.New("timeout")
	d := NewChangeDetector(&failingStore{Store: store.NewMemoryStore(), findScanErr: down, findFileErr: down}, nil)

	_, _, err := d.ShouldSkip(ctx, "web", "agg")
	assert.ErrorIs(t, err, ErrHistoryLookup)
	assert.ErrorIs(t, err, down)

	_, _, err = d.KnownFile(ctx, "web", "a.jsx", "c")
	assert.ErrorIs(t, err, ErrHistoryLookup)
}

func TestComputeChecksums(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.jsx", "a")
	writeFile(t, dir, "b.jsx", "b")
	files := []SourceFile{
		{Path: "a.jsx", AbsPath: filepath.Join(dir, "a.jsx")},
		{Path: "missing.jsx", AbsPath: filepath.Join(dir, "missing.jsx")},
		{Path: "b.jsx", AbsPath: filepath.Join(dir, "b.jsx")},
	}

	hashed, err := ComputeChecksums(context.Background(), files, 2)
	require.NoError(t, err)
	require.Len(t, hashed, 3)

	assert.Equal(t, "a.jsx", hashed[0].Path)
	assert.Len(t, hashed[0].Checksum, 64)
	assert.Error(t, hashed[1].Err)
	assert.Equal(t, store.FailureRead, failureKind(hashed[1].Err))
	assert.NotEqual(t, hashed[0].Checksum, hashed[2].Checksum)

	// The unreadable file does not take part in the aggregate.
	assert.Equal(t, aggregateOf([]HashedFile{hashed[0], hashed[2]}), aggregateOf(hashed))
}
