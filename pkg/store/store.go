// Package store persists scan history and per-file analysis artifacts.
//
// Files are immutable once saved. A file row is owned by the scan that
// analyzed it and is keyed by (project, path, checksum); later scans that
// observe the same content link to the existing row instead of writing a
// new one. Every query that asks "what does the project look like now"
// goes through the membership of the latest successful scan, so stale rows
// for changed or deleted paths never leak into results.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gnana997/uigraph/pkg/analyzer"
)

var (
	// ErrNotFound is returned by lookups and queries that match nothing.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned when a scan is moved out of a state
	// it cannot leave.
	ErrInvalidTransition = errors.New("invalid scan state transition")
)

// ScanStatus is the lifecycle state of a scan record.
type ScanStatus string

const (
	ScanRunning ScanStatus = "running"
	ScanSuccess ScanStatus = "success"
)

// FailureKind classifies a per-file failure recorded against a scan.
type FailureKind string

const (
	FailureParse            FailureKind = "parse"
	FailureChecksumMismatch FailureKind = "checksum_mismatch"
	FailureRead             FailureKind = "read"
)

// FileFailure is a per-file error absorbed by a scan.
type FileFailure struct {
	Path    string      `json:"path"`
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Scan is one orchestrator run for a project.
type Scan struct {
	ID         int64         `json:"id"`
	ProjectID  string        `json:"project_id"`
	Checksum   string        `json:"checksum"`
	Status     ScanStatus    `json:"status"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	FileCount  int           `json:"file_count"`
	Failures   []FileFailure `json:"failures,omitempty"`
}

// File is an analyzed source file. ScanID is the scan that analyzed it.
type File struct {
	ID        int64     `json:"id"`
	ProjectID string    `json:"project_id"`
	ScanID    int64     `json:"scan_id"`
	Path      string    `json:"path"`
	Language  string    `json:"language"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
}

// Component is a persisted component with a global identifier.
type Component struct {
	ID              int64                  `json:"id"`
	FileID          int64                  `json:"file_id"`
	LocalID         int                    `json:"local_id"`
	Name            string                 `json:"name"`
	Kind            analyzer.ComponentKind `json:"kind"`
	IsDefaultExport bool                   `json:"is_default_export"`
	Line            int                    `json:"line"`
}

// Edge is a persisted "Parent renders Child" relation. Both endpoints are
// components of FileID.
type Edge struct {
	ID         int64  `json:"id"`
	FileID     int64  `json:"file_id"`
	ParentID   int64  `json:"parent_id"`
	ChildID    int64  `json:"child_id"`
	ParentName string `json:"parent_name"`
	ChildName  string `json:"child_name"`
}

// FileDetails is a file with every artifact recorded for it.
type FileDetails struct {
	File       File                   `json:"file"`
	Components []Component            `json:"components"`
	Edges      []Edge                 `json:"edges"`
	Usages     []analyzer.MarkupUsage `json:"usages"`
	Imports    []analyzer.Import      `json:"imports"`
	Exports    []analyzer.Export      `json:"exports"`
	Functions  []analyzer.Function    `json:"functions"`
}

// Clone returns a deep copy of d.
func (d *FileDetails) Clone() *FileDetails {
	out := *d
	out.Components = append([]Component(nil), d.Components...)
	out.Edges = append([]Edge(nil), d.Edges...)
	out.Usages = append([]analyzer.MarkupUsage(nil), d.Usages...)
	out.Exports = append([]analyzer.Export(nil), d.Exports...)
	out.Imports = make([]analyzer.Import, len(d.Imports))
	for i, imp := range d.Imports {
		imp.NamedImports = append([]string(nil), imp.NamedImports...)
		out.Imports[i] = imp
	}
	out.Functions = make([]analyzer.Function, len(d.Functions))
	for i, fn := range d.Functions {
		fn.Params = append([]string(nil), fn.Params...)
		out.Functions[i] = fn
	}
	return &out
}

// LocalEdge references two components of the same file by local ID.
type LocalEdge struct {
	Parent int
	Child  int
}

// NewFile is the input of SaveFile.
type NewFile struct {
	Path     string
	Language string
	Checksum string
	Analysis *analyzer.FileAnalysis
	Edges    []LocalEdge
}

// HistoryReader answers the questions incremental scanning asks about
// earlier scans. Implementations never write.
type HistoryReader interface {
	// FindScanByChecksum returns the most recent successful scan of the
	// project with the given aggregate checksum.
	FindScanByChecksum(ctx context.Context, projectID, checksum string) (*Scan, error)

	// FindFileByChecksum returns the ID of a file analyzed by a successful
	// scan with the given path and content checksum.
	FindFileByChecksum(ctx context.Context, projectID, path, checksum string) (int64, error)
}

// Store is the full persistence contract.
type Store interface {
	HistoryReader

	CreateScan(ctx context.Context, projectID, checksum string) (*Scan, error)
	// LinkFile records that a scan observed an existing file.
	LinkFile(ctx context.Context, scanID, fileID int64) error
	// SaveFile persists a file and all of its artifacts atomically and
	// links it to the scan.
	SaveFile(ctx context.Context, scanID int64, f NewFile) (*File, error)
	RecordFailure(ctx context.Context, scanID int64, failure FileFailure) error
	// CompleteScan moves a running scan to success and records checksum as
	// the aggregate of the content it actually covered.
	CompleteScan(ctx context.Context, scanID int64, checksum string) (*Scan, error)
	// AbortScan deletes a running scan together with the files it owns.
	AbortScan(ctx context.Context, scanID int64) error

	GetScan(ctx context.Context, scanID int64) (*Scan, error)
	// ListScans returns the project's scans, newest first.
	ListScans(ctx context.Context, projectID string) ([]Scan, error)
	// LatestScan returns the newest successful scan of the project.
	LatestScan(ctx context.Context, projectID string) (*Scan, error)
	// ListFiles returns every file observed by the scan, ordered by path.
	ListFiles(ctx context.Context, scanID int64) ([]File, error)
	GetFile(ctx context.Context, fileID int64) (*FileDetails, error)
	GetComponent(ctx context.Context, componentID int64) (*Component, error)
	// ListComponents returns the components of every file observed by the
	// scan, ordered by file path then local ID.
	ListComponents(ctx context.Context, scanID int64) ([]Component, error)
	// ListEdges returns the edges of every file observed by the scan.
	ListEdges(ctx context.Context, scanID int64) ([]Edge, error)

	Close() error
}

func validateNewFile(f NewFile) error {
	if f.Path == "" {
		return fmt.Errorf("file path is required")
	}
	if f.Checksum == "" {
		return fmt.Errorf("%s: checksum is required", f.Path)
	}
	if f.Analysis == nil {
		return fmt.Errorf("%s: analysis is required", f.Path)
	}
	local := make(map[int]bool, len(f.Analysis.Components))
	for _, c := range f.Analysis.Components {
		local[c.LocalID] = true
	}
	for _, e := range f.Edges {
		if !local[e.Parent] || !local[e.Child] {
			return fmt.Errorf("%s: edge %d->%d references an unknown component", f.Path, e.Parent, e.Child)
		}
	}
	return nil
}
