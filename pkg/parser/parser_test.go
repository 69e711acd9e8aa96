package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/uigraph/pkg/util"
)

const jsxSource = `import React from "react";

export function App() {
  return <div><Header title="x" /></div>;
}
`

const tsxSource = `type Props = { label: string };

export const Button = ({ label }: Props) => <button>{label}</button>;
`

const tsSource = `const n = <number>someValue;
export function double(x: number): number { return x * 2; }
`

func newTestManager(t *testing.T) *ParserManager {
	t.Helper()
	manager := NewParserManager(util.NopLogger())
	t.Cleanup(func() { manager.Close() })
	return manager
}

func TestParseJSX(t *testing.T) {
	manager := newTestManager(t)

	tree, err := manager.Parse([]byte(jsxSource), LanguageJSX)
	require.NoError(t, err)
	defer tree.Close()

	root := tree.RootNode()
	assert.Equal(t, "program", root.Kind())
	assert.Contains(t, root.ToSexp(), "jsx_element")
	assert.Contains(t, root.ToSexp(), "jsx_self_closing_element")
}

func TestParseTSX(t *testing.T) {
	manager := newTestManager(t)

	tree, err := manager.Parse([]byte(tsxSource), LanguageTSX)
	require.NoError(t, err)
	defer tree.Close()

	assert.Contains(t, tree.RootNode().ToSexp(), "jsx_element")
}

func TestParseTypeScriptAngleBracketCast(t *testing.T) {
	manager := newTestManager(t)

	tree, err := manager.Parse([]byte(tsSource), LanguageTypeScript)
	require.NoError(t, err)
	defer tree.Close()

	assert.Contains(t, tree.RootNode().ToSexp(), "type_assertion")
}

func TestParseMalformedReturnsParseError(t *testing.T) {
	manager := newTestManager(t)

	source := "export function Broken() {\n  return <div/>;\n}\n)))\n"
	tree, err := manager.ParseFile([]byte(source), "src/Broken.jsx")
	require.Error(t, err)
	assert.Nil(t, tree)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "src/Broken.jsx", perr.Path)
	assert.Equal(t, LanguageJSX, perr.Language)
	assert.GreaterOrEqual(t, perr.Line, 1)
	assert.Contains(t, perr.Error(), "src/Broken.jsx")

	assert.Equal(t, 1, manager.GetStats().ParseErrors)
}

func TestParseToleratesRecoveredTokens(t *testing.T) {
	manager := newTestManager(t)

	source := "export default function(){ return <Foo/>; } function Foo(){ return <b/>; }"
	tree, err := manager.ParseFile([]byte(source), "src/Page.jsx")
	require.NoError(t, err)
	defer tree.Close()

	root := tree.RootNode()
	assert.True(t, root.HasError(), "the parser inserted a token")
	assert.Nil(t, firstErrorNode(root))
	assert.Equal(t, 0, manager.GetStats().ParseErrors)
}

func TestFirstErrorNodeLocation(t *testing.T) {
	manager := newTestManager(t)

	_, err := manager.Parse([]byte("const a = 1;\nconst b = 2;\n)))\n"), LanguageJavaScript)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 3, perr.Line)
	assert.Contains(t, perr.Error(), "syntax error at 3:")
}

func TestParseFileUnsupportedExtension(t *testing.T) {
	manager := newTestManager(t)

	_, err := manager.ParseFile([]byte("body {}"), "styles.css")
	require.Error(t, err)

	var perr *ParseError
	assert.False(t, errors.As(err, &perr))
}

func TestParseUnknownLanguage(t *testing.T) {
	manager := newTestManager(t)

	_, err := manager.Parse([]byte("x"), LanguageUnknown)
	assert.Error(t, err)
}

func TestLazyPoolCreation(t *testing.T) {
	manager := newTestManager(t)
	assert.Equal(t, 0, manager.GetStats().ParsersCreated)

	tree, err := manager.Parse([]byte("const a = 1;"), LanguageJavaScript)
	require.NoError(t, err)
	tree.Close()

	stats := manager.GetStats()
	assert.Equal(t, 1, stats.ParsersCreated)
	assert.Equal(t, 1, stats.ParsesCalled)

	tree, err = manager.Parse([]byte("const b = 2;"), LanguageJavaScript)
	require.NoError(t, err)
	tree.Close()

	assert.Equal(t, 1, manager.GetStats().ParsersCreated, "idle parser is reused")
}

func TestLanguageDetection(t *testing.T) {
	tests := map[string]Language{
		"a/App.js":      LanguageJavaScript,
		"a/App.mjs":     LanguageJavaScript,
		"a/App.JSX":     LanguageJSX,
		"a/types.ts":    LanguageTypeScript,
		"a/types.d.mts": LanguageTypeScript,
		"a/App.tsx":     LanguageTSX,
		"a/style.css":   LanguageUnknown,
		"Makefile":      LanguageUnknown,
	}
	for path, want := range tests {
		assert.Equal(t, want, DetectLanguage(path), path)
		assert.Equal(t, want != LanguageUnknown, IsSupportedFile(path), path)
	}
}

func TestLanguageString(t *testing.T) {
	assert.Equal(t, "js", LanguageJavaScript.String())
	assert.Equal(t, "jsx", LanguageJSX.String())
	assert.Equal(t, "ts", LanguageTypeScript.String())
	assert.Equal(t, "tsx", LanguageTSX.String())
	assert.Equal(t, "unknown", LanguageUnknown.String())
}

func TestStatsPerLanguage(t *testing.T) {
	manager := newTestManager(t)

	for _, src := range []string{"const a = 1;", "const b = <B/>;"} {
		tree, err := manager.Parse([]byte(src), LanguageJSX)
		require.NoError(t, err)
		tree.Close()
	}
	_, err := manager.Parse([]byte("let x = ) ;"), LanguageTypeScript)
	require.Error(t, err)

	stats := manager.GetStats()
	require.Len(t, stats.Languages, 2)
	assert.Equal(t, PoolStats{Created: 1, Parses: 2}, stats.Languages["jsx"])
	assert.Equal(t, PoolStats{Created: 1, Parses: 1, Errors: 1}, stats.Languages["ts"])
	assert.Equal(t, 3, stats.ParsesCalled)
}

func TestCloseDropsPools(t *testing.T) {
	manager := NewParserManager(util.NopLogger())

	tree, err := manager.Parse([]byte("const a = 1;"), LanguageJavaScript)
	require.NoError(t, err)
	tree.Close()

	require.NoError(t, manager.Close())
	assert.Empty(t, manager.GetStats().Languages)
}
