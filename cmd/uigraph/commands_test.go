package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/uigraph/pkg/graph"
	"github.com/gnana997/uigraph/pkg/scanner"
)

func writeSource(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func testProject(t *testing.T) string {
	t.Helper()
	unsetEnv(t, allEnv()...)
	root := t.TempDir()
	writeSource(t, root, "src/Page.tsx", `export function Page(){ return <Layout><Title/></Layout>; }
const Layout = ({ children }) => <main>{children}</main>;
function Title(){ return <h1/>; }
`)
	writeSource(t, root, "node_modules/lib/index.js", "export const Ignored = () => <div/>;")
	return root
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand("test")
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(context.Background()), out.String())
	return out.String()
}

func TestScanCommand_JSON(t *testing.T) {
	root := testProject(t)

	out := execute(t, "scan", root, "--json", "--project", "web", "--log-level", "error")
	var res scanner.ScanResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, res.Stats.FilesDiscovered)
	assert.Equal(t, 3, res.Stats.Components)
	assert.Equal(t, 2, res.Stats.Edges)
}

func TestScanCommand_Text(t *testing.T) {
	root := testProject(t)

	out := execute(t, "scan", root, "--log-level", "error")
	assert.Contains(t, out, "1 files, 1 analyzed, 0 reused, 0 failed")
	assert.Contains(t, out, "components: 3, edges: 2")
}

func TestGraphCommand(t *testing.T) {
	root := testProject(t)

	out := execute(t, "graph", root, "--log-level", "error")
	assert.Contains(t, out, "src/Page.tsx")
	assert.Contains(t, out, "Page -> Layout")
	assert.Contains(t, out, "Page -> Title")

	filtered := execute(t, "graph", root, "--component", "title", "--log-level", "error")
	assert.Contains(t, filtered, "Page -> Title")
	assert.NotContains(t, filtered, "Page -> Layout")

	var g graph.ProjectGraph
	require.NoError(t, json.Unmarshal([]byte(execute(t, "graph", root, "--json", "--log-level", "error")), &g))
	assert.Len(t, g.Components, 3)
	assert.Len(t, g.Edges, 2)
}

func TestScanCommand_BadLogLevel(t *testing.T) {
	root := testProject(t)
	cmd := newRootCommand("test")
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"scan", root, "--log-level", "loud"})
	assert.Error(t, cmd.Execute())
}

func TestVersionCommand(t *testing.T) {
	assert.Equal(t, "uigraph test\n", execute(t, "version"))
}
