package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gnana997/uigraph/pkg/scanner"
	"github.com/gnana997/uigraph/pkg/store"
)

const defaultScanLimit = 20

// scanSummary is the scan_project response. Per-file analyses are left
// out; get_file_details serves them.
type scanSummary struct {
	ScanID   int64             `json:"scan_id"`
	Skipped  bool              `json:"skipped"`
	Checksum string            `json:"checksum"`
	Stats    scanner.ScanStats `json:"stats"`
	Failures []fileFailure     `json:"failures,omitempty"`
}

type fileFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

type componentRef struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	FileID int64  `json:"file_id"`
	Kind   string `json:"kind"`
	Line   int    `json:"line"`
}

func (s *Server) handleScanProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.scanner == nil {
		return mcp.NewToolResultError("scanning is not enabled on this server"), nil
	}
	scanReq := scanner.ScanRequest{
		ProjectID: req.GetString("project", s.projectID),
		Root:      req.GetString("root", s.root),
	}
	if scanReq.ProjectID == "" || scanReq.Root == "" {
		return mcp.NewToolResultError("project and root are required"), nil
	}

	rec := callRecordFrom(ctx)
	rec.Project = scanReq.ProjectID

	res, err := s.scanner.Scan(ctx, scanReq)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("scan failed: %v", err)), nil
	}
	rec.ScanID = res.ScanID
	rec.Skipped = res.Skipped
	rec.FilesFailed = res.Stats.FilesFailed
	rec.Components = res.Stats.Components
	rec.Edges = res.Stats.Edges

	summary := scanSummary{ScanID: res.ScanID, Skipped: res.Skipped, Checksum: res.Checksum, Stats: res.Stats}
	for _, f := range res.Files {
		if f.Err != nil {
			summary.Failures = append(summary.Failures, fileFailure{Path: f.Path, Error: f.Err.Error()})
		}
	}
	return jsonResult(summary)
}

func (s *Server) handleListScans(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project := req.GetString("project", s.projectID)
	limit := req.GetInt("limit", defaultScanLimit)

	scans, err := s.query.ListScans(ctx, project)
	if err != nil {
		return errorResult(err, "project %q", project), nil
	}
	if limit > 0 && len(scans) > limit {
		scans = scans[:limit]
	}
	if len(scans) > 0 {
		callRecordFrom(ctx).ScanID = scans[0].ID
	}
	return jsonResult(scans)
}

func (s *Server) handleListComponents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project := req.GetString("project", s.projectID)
	keyword := req.GetString("keyword", "")

	comps, err := s.query.Components(ctx, project, keyword)
	if err != nil {
		return errorResult(err, "no successful scan for project %q", project), nil
	}
	callRecordFrom(ctx).Components = len(comps)
	return jsonResult(refs(comps))
}

func (s *Server) handleGetComponentGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project := req.GetString("project", s.projectID)

	g, err := s.query.ProjectGraph(ctx, project)
	if err != nil {
		return errorResult(err, "no successful scan for project %q", project), nil
	}
	rec := callRecordFrom(ctx)
	rec.ScanID = g.Scan.ID
	rec.Components = len(g.Components)
	rec.Edges = len(g.Edges)
	return jsonResult(g)
}

func (s *Server) handleGetComponentDependencies(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("component_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	comps, err := s.query.Dependencies(ctx, int64(id))
	if err != nil {
		return errorResult(err, "component %d", id), nil
	}
	callRecordFrom(ctx).Components = len(comps)
	return jsonResult(refs(comps))
}

func (s *Server) handleGetComponentDependents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("component_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	comps, err := s.query.Dependents(ctx, int64(id))
	if err != nil {
		return errorResult(err, "component %d", id), nil
	}
	callRecordFrom(ctx).Components = len(comps)
	return jsonResult(refs(comps))
}

func (s *Server) handleGetFileDetails(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("file_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	details, err := s.query.FileDetails(ctx, int64(id))
	if err != nil {
		return errorResult(err, "file %d", id), nil
	}
	rec := callRecordFrom(ctx)
	rec.ScanID = details.File.ScanID
	rec.Components = len(details.Components)
	rec.Edges = len(details.Edges)
	return jsonResult(details)
}

// --- helpers ---

func refs(comps []store.Component) []componentRef {
	out := make([]componentRef, len(comps))
	for i, c := range comps {
		out[i] = componentRef{ID: c.ID, Name: c.Name, FileID: c.FileID, Kind: string(c.Kind), Line: c.Line}
	}
	return out
}

// errorResult turns a query error into a tool error. Misses are reported
// with the given subject; other errors are reported as-is.
func errorResult(err error, subject string, args ...any) *mcp.CallToolResult {
	if errors.Is(err, store.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: "+subject, args...))
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}
