package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/uigraph/pkg/analyzer"
)

func sampleFile(path, checksum string) NewFile {
	return NewFile{
		Path:     path,
		Language: "jsx",
		Checksum: checksum,
		Analysis: &analyzer.FileAnalysis{
			Path: path,
			Components: []analyzer.Component{
				{LocalID: 1, Name: "Outer", Kind: analyzer.ComponentKindFunction, Line: 1},
				{LocalID: 2, Name: "Inner", Kind: analyzer.ComponentKindArrow, Line: 2},
			},
			Usages: []analyzer.MarkupUsage{
				{Tag: "div", Component: "Outer", Line: 1, Column: 20},
				{Tag: "Inner", Component: "Outer", Line: 1, Column: 25},
			},
			Imports: []analyzer.Import{{Source: "react", DefaultImport: "React", Line: 1}},
			Exports: []analyzer.Export{{Name: "Outer", Kind: analyzer.ExportKindNamed, Line: 1}},
		},
		Edges: []LocalEdge{{Parent: 1, Child: 2}},
	}
}

func completedScan(t *testing.T, s Store, project, checksum string, files ...NewFile) (*Scan, []*File) {
	t.Helper()
	ctx := context.Background()
	sc, err := s.CreateScan(ctx, project, checksum)
	require.NoError(t, err)

	var saved []*File
	for _, f := range files {
		rec, err := s.SaveFile(ctx, sc.ID, f)
		require.NoError(t, err)
		saved = append(saved, rec)
	}
	done, err := s.CompleteScan(ctx, sc.ID, sc.Checksum)
	require.NoError(t, err)
	return done, saved
}

func TestMemoryStore_ScanLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	sc, err := s.CreateScan(ctx, "web", "agg-1")
	require.NoError(t, err)
	assert.Equal(t, ScanRunning, sc.Status)
	assert.Nil(t, sc.FinishedAt)

	require.NoError(t, s.RecordFailure(ctx, sc.ID, FileFailure{Path: "bad.jsx", Kind: FailureParse, Message: "syntax error"}))

	done, err := s.CompleteScan(ctx, sc.ID, sc.Checksum)
	require.NoError(t, err)
	assert.Equal(t, ScanSuccess, done.Status)
	assert.NotNil(t, done.FinishedAt)
	assert.Equal(t, []FileFailure{{Path: "bad.jsx", Kind: FailureParse, Message: "syntax error"}}, done.Failures)

	_, err = s.CompleteScan(ctx, sc.ID, sc.Checksum)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, s.AbortScan(ctx, sc.ID), ErrInvalidTransition)
	assert.ErrorIs(t, s.RecordFailure(ctx, sc.ID, FileFailure{}), ErrInvalidTransition)
}

func TestMemoryStore_CreateScanRequiresProject(t *testing.T) {
	_, err := NewMemoryStore().CreateScan(context.Background(), "  ", "x")
	assert.Error(t, err)
}

func TestMemoryStore_FindScanByChecksumIgnoresRunning(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	running, err := s.CreateScan(ctx, "web", "agg")
	require.NoError(t, err)
	_, err = s.FindScanByChecksum(ctx, "web", "agg")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.CompleteScan(ctx, running.ID, running.Checksum)
	require.NoError(t, err)
	found, err := s.FindScanByChecksum(ctx, "web", "agg")
	require.NoError(t, err)
	assert.Equal(t, running.ID, found.ID)

	_, err = s.FindScanByChecksum(ctx, "other", "agg")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_SaveFileAssignsGlobalIDs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	sc, files := completedScan(t, s, "web", "agg", sampleFile("src/App.jsx", "c1"))

	d, err := s.GetFile(ctx, files[0].ID)
	require.NoError(t, err)
	require.Len(t, d.Components, 2)
	require.Len(t, d.Edges, 1)

	e := d.Edges[0]
	assert.Equal(t, d.Components[0].ID, e.ParentID)
	assert.Equal(t, d.Components[1].ID, e.ChildID)
	assert.Equal(t, "Outer", e.ParentName)
	assert.Equal(t, "Inner", e.ChildName)
	assert.Len(t, d.Usages, 2)
	assert.Equal(t, "react", d.Imports[0].Source)
	assert.Equal(t, sc.ID, d.File.ScanID)

	c, err := s.GetComponent(ctx, e.ChildID)
	require.NoError(t, err)
	assert.Equal(t, "Inner", c.Name)
}

func TestMemoryStore_SaveFileRejectsDanglingEdge(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	sc, err := s.CreateScan(ctx, "web", "agg")
	require.NoError(t, err)

	f := sampleFile("a.jsx", "c")
	f.Edges = append(f.Edges, LocalEdge{Parent: 1, Child: 9})
	_, err = s.SaveFile(ctx, sc.ID, f)
	assert.Error(t, err)

	files, err := s.ListFiles(ctx, sc.ID)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestMemoryStore_FindFileRequiresSuccessfulOwner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	sc, err := s.CreateScan(ctx, "web", "agg")
	require.NoError(t, err)
	f, err := s.SaveFile(ctx, sc.ID, sampleFile("a.jsx", "c1"))
	require.NoError(t, err)

	_, err = s.FindFileByChecksum(ctx, "web", "a.jsx", "c1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.CompleteScan(ctx, sc.ID, sc.Checksum)
	require.NoError(t, err)
	id, err := s.FindFileByChecksum(ctx, "web", "a.jsx", "c1")
	require.NoError(t, err)
	assert.Equal(t, f.ID, id)

	_, err = s.FindFileByChecksum(ctx, "web", "a.jsx", "c2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_MembershipTracksLatestScan(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, first := completedScan(t, s, "web", "agg-1",
		sampleFile("a.jsx", "a1"), sampleFile("b.jsx", "b1"))

	// Second scan: a.jsx unchanged and linked, b.jsx deleted, c.jsx new.
	sc2, err := s.CreateScan(ctx, "web", "agg-2")
	require.NoError(t, err)
	require.NoError(t, s.LinkFile(ctx, sc2.ID, first[0].ID))
	require.NoError(t, s.LinkFile(ctx, sc2.ID, first[0].ID), "linking twice is a no-op")
	_, err = s.SaveFile(ctx, sc2.ID, sampleFile("c.jsx", "c1"))
	require.NoError(t, err)
	done, err := s.CompleteScan(ctx, sc2.ID, sc2.Checksum)
	require.NoError(t, err)
	assert.Equal(t, 2, done.FileCount)

	latest, err := s.LatestScan(ctx, "web")
	require.NoError(t, err)
	assert.Equal(t, sc2.ID, latest.ID)

	files, err := s.ListFiles(ctx, latest.ID)
	require.NoError(t, err)
	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"a.jsx", "c.jsx"}, paths)

	comps, err := s.ListComponents(ctx, latest.ID)
	require.NoError(t, err)
	assert.Len(t, comps, 4)

	edges, err := s.ListEdges(ctx, latest.ID)
	require.NoError(t, err)
	assert.Len(t, edges, 2)

	scans, err := s.ListScans(ctx, "web")
	require.NoError(t, err)
	require.Len(t, scans, 2)
	assert.Equal(t, sc2.ID, scans[0].ID, "newest first")
}

func TestMemoryStore_LinkFileRejectsOtherProject(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, files := completedScan(t, s, "web", "agg", sampleFile("a.jsx", "a1"))

	sc, err := s.CreateScan(ctx, "admin", "agg")
	require.NoError(t, err)
	assert.Error(t, s.LinkFile(ctx, sc.ID, files[0].ID))
	assert.ErrorIs(t, s.LinkFile(ctx, sc.ID, 999), ErrNotFound)
}

func TestMemoryStore_AbortScanRemovesOwnedFiles(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, kept := completedScan(t, s, "web", "agg-1", sampleFile("a.jsx", "a1"))

	sc, err := s.CreateScan(ctx, "web", "agg-2")
	require.NoError(t, err)
	require.NoError(t, s.LinkFile(ctx, sc.ID, kept[0].ID))
	owned, err := s.SaveFile(ctx, sc.ID, sampleFile("b.jsx", "b1"))
	require.NoError(t, err)

	require.NoError(t, s.AbortScan(ctx, sc.ID))

	_, err = s.GetScan(ctx, sc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetFile(ctx, owned.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetFile(ctx, kept[0].ID)
	assert.NoError(t, err, "linked files owned by earlier scans survive")

	scans, err := s.ListScans(ctx, "web")
	require.NoError(t, err)
	assert.Len(t, scans, 1)
}

func TestMemoryStore_LatestScanWithoutHistory(t *testing.T) {
	_, err := NewMemoryStore().LatestScan(context.Background(), "web")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ListsRaceAbort(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for round := 0; round < 50; round++ {
		sc, err := s.CreateScan(ctx, "web", fmt.Sprintf("agg-%d", round))
		require.NoError(t, err)
		for i := 0; i < 4; i++ {
			_, err := s.SaveFile(ctx, sc.ID, sampleFile(fmt.Sprintf("src/F%d.jsx", i), fmt.Sprintf("sum-%d-%d", round, i)))
			require.NoError(t, err)
		}

		var wg sync.WaitGroup
		wg.Add(3)
		go func() {
			defer wg.Done()
			if comps, err := s.ListComponents(ctx, sc.ID); err != nil {
				assert.ErrorIs(t, err, ErrNotFound)
			} else {
				assert.Len(t, comps, 8)
			}
		}()
		go func() {
			defer wg.Done()
			if edges, err := s.ListEdges(ctx, sc.ID); err != nil {
				assert.ErrorIs(t, err, ErrNotFound)
			} else {
				assert.Len(t, edges, 4)
			}
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, s.AbortScan(ctx, sc.ID))
		}()
		wg.Wait()
	}
}
