package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/uigraph/pkg/analyzer"
	"github.com/gnana997/uigraph/pkg/parser"
	"github.com/gnana997/uigraph/pkg/util"
)

func analyzeSource(t *testing.T, path, src string) *analyzer.FileAnalysis {
	t.Helper()
	pm := parser.NewParserManager(util.NopLogger())
	t.Cleanup(func() { pm.Close() })

	fa, err := analyzer.New(pm, util.NopLogger()).AnalyzeSource(path, []byte(src))
	require.NoError(t, err)
	return fa
}

func TestAssembleResolvesBothEndpoints(t *testing.T) {
	components := []analyzer.Component{
		{LocalID: 1, Name: "Outer"},
		{LocalID: 2, Name: "Inner"},
	}
	pairs := []analyzer.RawDependency{
		{Parent: "Outer", Child: "Inner"},
		{Parent: "Outer", Child: "Imported"},
		{Parent: "Outer", Child: "Inner"},
		{Parent: "Ghost", Child: "Inner"},
	}

	result := Assemble(components, pairs)

	assert.Equal(t, []Edge{{Parent: 1, Child: 2, ParentName: "Outer", ChildName: "Inner"}}, result.Edges)
	assert.Equal(t, []analyzer.RawDependency{
		{Parent: "Outer", Child: "Imported"},
		{Parent: "Ghost", Child: "Inner"},
	}, result.Dropped)
}

func TestAssembleSelfEdge(t *testing.T) {
	result := Assemble(
		[]analyzer.Component{{LocalID: 1, Name: "Tree"}},
		[]analyzer.RawDependency{{Parent: "Tree", Child: "Tree"}},
	)
	assert.Equal(t, []Edge{{Parent: 1, Child: 1, ParentName: "Tree", ChildName: "Tree"}}, result.Edges)
}

func TestAssembleEmpty(t *testing.T) {
	result := Assemble(nil, nil)
	assert.Empty(t, result.Edges)
	assert.Empty(t, result.Dropped)
}

func TestAssembleFileScopeCorrectness(t *testing.T) {
	fa := analyzeSource(t, "Outer.jsx", `
function Outer(){ return <div><Inner/></div>; }
function Inner(){ return <span/>; }
`)
	result := AssembleFile(fa)

	assert.Equal(t, []string{"Outer", "Inner"}, fa.ComponentNames())
	require.Len(t, result.Edges, 1)
	assert.Equal(t, "Outer", result.Edges[0].ParentName)
	assert.Equal(t, "Inner", result.Edges[0].ChildName)
}

func TestAssembleFileClassForm(t *testing.T) {
	fa := analyzeSource(t, "Widget.jsx", `
class Widget extends React.Component { render(){ return <Child/>; } }
function Child(){ return <p/>; }
`)
	result := AssembleFile(fa)
	require.Len(t, result.Edges, 1)
	assert.Equal(t, "Widget", result.Edges[0].ParentName)
	assert.Equal(t, "Child", result.Edges[0].ChildName)
}

func TestAssembleFileUnresolvedChild(t *testing.T) {
	fa := analyzeSource(t, "Page.tsx", `
import { Button } from "./Button";
export const Page = () => <main><Button/><Local/></main>;
const Local = () => <Button/>;
`)
	result := AssembleFile(fa)

	assert.Equal(t, []Edge{{Parent: 1, Child: 2, ParentName: "Page", ChildName: "Local"}}, result.Edges)
	require.Len(t, result.Dropped, 2)
	for _, d := range result.Dropped {
		assert.Equal(t, "Button", d.Child)
	}

	// Usages are kept for the unresolved tag.
	var tags []string
	for _, u := range fa.Usages {
		tags = append(tags, u.Tag)
	}
	assert.Contains(t, tags, "Button")
}

func TestAssembleNoDanglingEdges(t *testing.T) {
	fa := analyzeSource(t, "mixed.jsx", `
const A = () => <B><C/><d/><Fragment/><External/></B>;
const B = ({ children }) => <section>{children}<A/></section>;
function C() { return <><B/><B/></>; }
`)
	result := AssembleFile(fa)

	ids := map[int]bool{}
	for _, c := range fa.Components {
		ids[c.LocalID] = true
	}
	require.NotEmpty(t, result.Edges)
	for _, e := range result.Edges {
		assert.True(t, ids[e.Parent], "parent %d", e.Parent)
		assert.True(t, ids[e.Child], "child %d", e.Child)
	}

	// C renders B twice but yields one edge.
	count := 0
	for _, e := range result.Edges {
		if e.ParentName == "C" && e.ChildName == "B" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
