package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gnana997/uigraph/pkg/store"
)

// ProjectGraph is the component graph of a project as seen by one
// successful scan.
type ProjectGraph struct {
	Scan       store.Scan        `json:"scan"`
	Files      []store.File      `json:"files"`
	Components []store.Component `json:"components"`
	Edges      []store.Edge      `json:"edges"`
}

// GraphIndex provides O(1) lookups into a ProjectGraph.
type GraphIndex struct {
	// ComponentByID maps component ID -> *store.Component.
	ComponentByID map[int64]*store.Component

	// ComponentsByName maps component name -> components with that name.
	// Names are unique per file, not per project.
	ComponentsByName map[string][]*store.Component

	// FileByID maps file ID -> *store.File.
	FileByID map[int64]*store.File

	// Children maps a component ID to the IDs it renders.
	Children map[int64][]int64

	// Parents maps a component ID to the IDs that render it.
	Parents map[int64][]int64
}

// BuildIndex builds lookup tables over the graph.
func (g *ProjectGraph) BuildIndex() *GraphIndex {
	idx := &GraphIndex{
		ComponentByID:    make(map[int64]*store.Component, len(g.Components)),
		ComponentsByName: make(map[string][]*store.Component),
		FileByID:         make(map[int64]*store.File, len(g.Files)),
		Children:         make(map[int64][]int64),
		Parents:          make(map[int64][]int64),
	}
	for i := range g.Files {
		idx.FileByID[g.Files[i].ID] = &g.Files[i]
	}
	for i := range g.Components {
		c := &g.Components[i]
		idx.ComponentByID[c.ID] = c
		idx.ComponentsByName[c.Name] = append(idx.ComponentsByName[c.Name], c)
	}
	for _, e := range g.Edges {
		idx.Children[e.ParentID] = append(idx.Children[e.ParentID], e.ChildID)
		idx.Parents[e.ChildID] = append(idx.Parents[e.ChildID], e.ParentID)
	}
	return idx
}

// QueryService answers read-only questions about persisted graphs.
type QueryService struct {
	store  store.Store
	logger *slog.Logger
}

// NewQueryService creates a QueryService over s.
func NewQueryService(s store.Store, logger *slog.Logger) *QueryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryService{store: s, logger: logger}
}

// ProjectGraph loads the graph of the project's latest successful scan.
func (q *QueryService) ProjectGraph(ctx context.Context, projectID string) (*ProjectGraph, error) {
	scan, err := q.store.LatestScan(ctx, projectID)
	if err != nil {
		return nil, err
	}
	files, err := q.store.ListFiles(ctx, scan.ID)
	if err != nil {
		return nil, fmt.Errorf("list files of scan %d: %w", scan.ID, err)
	}
	components, err := q.store.ListComponents(ctx, scan.ID)
	if err != nil {
		return nil, fmt.Errorf("list components of scan %d: %w", scan.ID, err)
	}
	edges, err := q.store.ListEdges(ctx, scan.ID)
	if err != nil {
		return nil, fmt.Errorf("list edges of scan %d: %w", scan.ID, err)
	}

	q.logger.Debug("project graph loaded",
		"project", projectID,
		"scan_id", scan.ID,
		"files", len(files),
		"components", len(components),
		"edges", len(edges))

	return &ProjectGraph{Scan: *scan, Files: files, Components: components, Edges: edges}, nil
}

// Components returns the components of the project's latest scan whose
// name contains keyword, case-insensitively. An empty keyword matches all.
func (q *QueryService) Components(ctx context.Context, projectID, keyword string) ([]store.Component, error) {
	scan, err := q.store.LatestScan(ctx, projectID)
	if err != nil {
		return nil, err
	}
	all, err := q.store.ListComponents(ctx, scan.ID)
	if err != nil {
		return nil, err
	}

	keyword = strings.ToLower(keyword)
	result := make([]store.Component, 0, len(all))
	for _, c := range all {
		if keyword != "" && !strings.Contains(strings.ToLower(c.Name), keyword) {
			continue
		}
		result = append(result, c)
	}
	return result, nil
}

// Dependencies returns the components that componentID renders.
func (q *QueryService) Dependencies(ctx context.Context, componentID int64) ([]store.Component, error) {
	return q.neighbours(ctx, componentID, func(e store.Edge) (int64, bool) {
		return e.ChildID, e.ParentID == componentID
	})
}

// Dependents returns the components that render componentID. Only
// components of the same file can appear.
func (q *QueryService) Dependents(ctx context.Context, componentID int64) ([]store.Component, error) {
	return q.neighbours(ctx, componentID, func(e store.Edge) (int64, bool) {
		return e.ParentID, e.ChildID == componentID
	})
}

func (q *QueryService) neighbours(ctx context.Context, componentID int64, pick func(store.Edge) (int64, bool)) ([]store.Component, error) {
	c, err := q.store.GetComponent(ctx, componentID)
	if err != nil {
		return nil, err
	}
	file, err := q.store.GetFile(ctx, c.FileID)
	if err != nil {
		return nil, fmt.Errorf("load file of component %d: %w", componentID, err)
	}

	byID := make(map[int64]store.Component, len(file.Components))
	for _, fc := range file.Components {
		byID[fc.ID] = fc
	}
	result := make([]store.Component, 0)
	for _, e := range file.Edges {
		id, ok := pick(e)
		if !ok {
			continue
		}
		result = append(result, byID[id])
	}
	return result, nil
}

// FileDetails returns a file with all of its artifacts.
func (q *QueryService) FileDetails(ctx context.Context, fileID int64) (*store.FileDetails, error) {
	return q.store.GetFile(ctx, fileID)
}

// ListScans returns the project's scans, newest first.
func (q *QueryService) ListScans(ctx context.Context, projectID string) ([]store.Scan, error) {
	return q.store.ListScans(ctx, projectID)
}
