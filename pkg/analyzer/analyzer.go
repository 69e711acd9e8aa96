// Package analyzer classifies the components declared in a JavaScript or
// TypeScript file and records the markup they render.
package analyzer

import (
	"fmt"
	"log/slog"

	"github.com/gnana997/uigraph/pkg/parser"
)

// Analyzer parses sources and walks them. Safe for concurrent use: every
// call owns its tree and walker state.
type Analyzer struct {
	parsers *parser.ParserManager
	logger  *slog.Logger
}

// New returns an Analyzer backed by parsers.
func New(parsers *parser.ParserManager, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{parsers: parsers, logger: logger}
}

// AnalyzeSource parses src as the language implied by path and analyzes
// it. Malformed input is returned as a *parser.ParseError.
func (a *Analyzer) AnalyzeSource(path string, src []byte) (*FileAnalysis, error) {
	lang := parser.DetectLanguage(path)
	if lang == parser.LanguageUnknown {
		return nil, fmt.Errorf("unsupported file extension: %s", path)
	}

	tree, err := a.parsers.ParseFile(src, path)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	fa := Analyze(path, lang, tree.RootNode(), src)

	a.logger.Debug("file analyzed",
		"path", path,
		"language", lang.String(),
		"components", len(fa.Components),
		"usages", len(fa.Usages),
		"raw_dependencies", len(fa.Dependencies))

	return fa, nil
}
