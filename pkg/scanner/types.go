// Package scanner runs incremental scans of a project: it discovers source
// files, hashes them, decides what can be skipped and drives the per-file
// analysis pipeline into the store.
package scanner

import (
	"github.com/gnana997/uigraph/pkg/analyzer"
	"github.com/gnana997/uigraph/pkg/graph"
)

// ScanOptions configures discovery and the worker pool.
type ScanOptions struct {
	// Include glob patterns for file matching, relative to the root.
	Include []string
	// Exclude glob patterns. A matching directory is skipped entirely.
	Exclude []string
	// RespectGitignore skips paths matched by the root .gitignore.
	RespectGitignore bool
	// Workers is the analysis pool size. 0 picks util.GetOptimalPoolSize.
	Workers int
}

// DefaultScanOptions returns the default include/exclude configuration.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		Include: []string{
			"**/*.js",
			"**/*.jsx",
			"**/*.ts",
			"**/*.tsx",
			"**/*.mjs",
			"**/*.cjs",
			"**/*.mts",
			"**/*.cts",
		},
		Exclude: []string{
			"node_modules/**",
			"**/node_modules/**",
			".git/**",
			"dist/**",
			"build/**",
			".next/**",
			"coverage/**",
			"out/**",
			".uigraph/**",
			"**/*.d.ts",
			"**/*.min.js",
		},
		RespectGitignore: true,
	}
}

// SourceFile is a discovered candidate file.
type SourceFile struct {
	// Path is slash separated and relative to the project root.
	Path    string
	AbsPath string
}

// ScanRequest identifies the project to scan.
type ScanRequest struct {
	ProjectID string
	Root      string
}

// FileOutcome is the per-file part of a scan result. Exactly one of
// Reused, Analysis or Err describes what happened to the file.
type FileOutcome struct {
	Path     string                 `json:"path"`
	Checksum string                 `json:"checksum"`
	FileID   int64                  `json:"file_id,omitempty"`
	Reused   bool                   `json:"reused"`
	Analysis *analyzer.FileAnalysis `json:"analysis,omitempty"`
	Edges    []graph.Edge           `json:"edges,omitempty"`
	Err      error                  `json:"-"`
}

// ScanResult is what one Scan call reports.
type ScanResult struct {
	ScanID int64 `json:"scan_id"`
	// Skipped is true when an earlier successful scan recorded the same
	// aggregate checksum. ScanID is that scan and nothing was written.
	Skipped  bool          `json:"skipped"`
	Checksum string        `json:"checksum"`
	Files    []FileOutcome `json:"files,omitempty"`
	Stats    ScanStats     `json:"stats"`
}

// ScanStats tracks scan counters and timings.
type ScanStats struct {
	FilesDiscovered int   `json:"files_discovered"`
	FilesAnalyzed   int   `json:"files_analyzed"`
	FilesReused     int   `json:"files_reused"`
	FilesFailed     int   `json:"files_failed"`
	Components      int   `json:"components"`
	Edges           int   `json:"edges"`
	EdgesDropped    int   `json:"edges_dropped"`
	WorkerCount     int   `json:"worker_count"`
	DiscoveryTimeMs int64 `json:"discovery_time_ms"`
	ChecksumTimeMs  int64 `json:"checksum_time_ms"`
	AnalysisTimeMs  int64 `json:"analysis_time_ms"`
	TotalTimeMs     int64 `json:"total_time_ms"`
}
