package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverFiles_ExtensionAllowlist(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, tmp, "App.jsx", "export const App = () => <div/>;")
	writeFile(t, tmp, "util.ts", "export const x = 1;")
	writeFile(t, tmp, "styles.css", "body {}")
	writeFile(t, tmp, "README.md", "# readme")
	writeFile(t, tmp, "types.d.ts", "declare const x: number;")

	files, err := DiscoverFiles(tmp, DefaultScanOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"App.jsx", "util.ts"}, relPaths(files))

	for _, f := range files {
		assert.True(t, filepath.IsAbs(f.AbsPath), "expected absolute path, got %s", f.AbsPath)
	}
}

func TestDiscoverFiles_ExcludesDirectories(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, tmp, "src/Button.tsx", "export function Button() { return <button/>; }")
	writeFile(t, tmp, "node_modules/react/index.js", "module.exports = {}")
	writeFile(t, tmp, "packages/ui/node_modules/x/index.js", "module.exports = {}")
	writeFile(t, tmp, "dist/bundle.js", "")

	files, err := DiscoverFiles(tmp, DefaultScanOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"src/Button.tsx"}, relPaths(files))
}

func TestDiscoverFiles_RespectsGitignore(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, tmp, ".gitignore", "generated/\n*.gen.tsx\n")
	writeFile(t, tmp, "src/App.tsx", "")
	writeFile(t, tmp, "src/Icons.gen.tsx", "")
	writeFile(t, tmp, "generated/Api.ts", "")

	files, err := DiscoverFiles(tmp, DefaultScanOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"src/App.tsx"}, relPaths(files))

	opts := DefaultScanOptions()
	opts.RespectGitignore = false
	files, err = DiscoverFiles(tmp, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"generated/Api.ts", "src/App.tsx", "src/Icons.gen.tsx"}, relPaths(files))
}

func TestDiscoverFiles_IncludeNarrows(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, tmp, "src/components/Card.tsx", "")
	writeFile(t, tmp, "src/lib/fetch.ts", "")

	opts := DefaultScanOptions()
	opts.Include = []string{"src/components/**"}
	files, err := DiscoverFiles(tmp, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/components/Card.tsx"}, relPaths(files))
}

func TestDiscoverFiles_SortedOutput(t *testing.T) {
	tmp := t.TempDir()
	for _, name := range []string{"c.js", "a/b.jsx", "b.tsx", "a.ts"} {
		writeFile(t, tmp, name, "")
	}

	files, err := DiscoverFiles(tmp, DefaultScanOptions())
	require.NoError(t, err)
	require.Len(t, files, 4)
	for i := 1; i < len(files); i++ {
		assert.Less(t, files[i-1].Path, files[i].Path, "files should be sorted")
	}
}

func TestDiscoverFiles_EmptyDirectory(t *testing.T) {
	files, err := DiscoverFiles(t.TempDir(), DefaultScanOptions())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscoverFiles_InvalidGlob(t *testing.T) {
	opts := DefaultScanOptions()
	opts.Exclude = append(opts.Exclude, "[invalid")
	_, err := DiscoverFiles(t.TempDir(), opts)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid exclude pattern")
}

func TestDiscoverFiles_MissingRoot(t *testing.T) {
	_, err := DiscoverFiles(filepath.Join(t.TempDir(), "nope"), DefaultScanOptions())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// --- helpers ---

func relPaths(files []SourceFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
