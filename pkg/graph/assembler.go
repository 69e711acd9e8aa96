// Package graph turns raw render pairs into component dependency edges and
// answers queries over the persisted graph.
package graph

import (
	"github.com/gnana997/uigraph/pkg/analyzer"
)

// Edge means "Parent renders Child". Both endpoints are local IDs of
// components in the same file.
type Edge struct {
	Parent     int    `json:"parent"`
	Child      int    `json:"child"`
	ParentName string `json:"parent_name"`
	ChildName  string `json:"child_name"`
}

// AssembleResult holds the resolved edges of one file and the pairs that
// did not resolve. Dropped pairs are expected, typically components
// imported from other files, and are not errors.
type AssembleResult struct {
	Edges   []Edge
	Dropped []analyzer.RawDependency
}

// Assemble resolves raw pairs against the file's components.
//
// The name table is built from every component before any pair is
// looked at, so a component rendered above its own declaration still
// resolves. A pair becomes an edge only when both names resolve.
// Repeated pairs yield one edge.
func Assemble(components []analyzer.Component, pairs []analyzer.RawDependency) AssembleResult {
	ids := make(map[string]int, len(components))
	for _, c := range components {
		ids[c.Name] = c.LocalID
	}

	var result AssembleResult
	seen := make(map[[2]int]bool, len(pairs))
	for _, p := range pairs {
		parent, okParent := ids[p.Parent]
		child, okChild := ids[p.Child]
		if !okParent || !okChild {
			result.Dropped = append(result.Dropped, p)
			continue
		}

		key := [2]int{parent, child}
		if seen[key] {
			continue
		}
		seen[key] = true
		result.Edges = append(result.Edges, Edge{
			Parent:     parent,
			Child:      child,
			ParentName: p.Parent,
			ChildName:  p.Child,
		})
	}
	return result
}

// AssembleFile is Assemble over an analysis result.
func AssembleFile(fa *analyzer.FileAnalysis) AssembleResult {
	return Assemble(fa.Components, fa.Dependencies)
}
