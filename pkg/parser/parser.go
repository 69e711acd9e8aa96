package parser

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	ts "github.com/tree-sitter/go-tree-sitter"
	ts_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	ts_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// ParserManager manages tree-sitter parsers for the four language tags
// with lazy initialization and thread-safe concurrent access.
//
// Memory Management:
// - Parser pools are created lazily on first use per language
// - ParserManager owns parser pool instances and must be closed via Close()
// - Callers own Tree instances and must call tree.Close() after use
//
// Thread Safety:
// - Multiple goroutines can parse the same language simultaneously
// - Pool creation is synchronized with write locks
//
// Example:
//
//	manager := NewParserManager(logger)
//	defer manager.Close()
//
//	tree, err := manager.Parse([]byte("const App = () => <div />;"), LanguageJSX)
//	if err != nil {
//	    return err
//	}
//	defer tree.Close()
type ParserManager struct {
	pools    map[Language]*grammarPool
	poolSize int

	mutex  sync.RWMutex
	logger *slog.Logger
}

// NewParserManager creates a ParserManager with CPU-derived pool sizes.
//
// The returned manager must be closed via Close() to free resources.
func NewParserManager(logger *slog.Logger) *ParserManager {
	return NewParserManagerWithPoolSize(logger, 0)
}

// NewParserManagerWithPoolSize creates a ParserManager whose pools hold up
// to poolSize parsers each. Pass the analysis worker count so workers
// never block waiting for a parser. 0 uses the CPU-derived default.
func NewParserManagerWithPoolSize(logger *slog.Logger, poolSize int) *ParserManager {
	if logger == nil {
		logger = slog.Default()
	}

	return &ParserManager{
		pools:    make(map[Language]*grammarPool),
		poolSize: getPoolSize(poolSize),
		logger:   logger,
	}
}

// Parse parses source with the grammar for lang.
//
// Malformed input is reported as a *ParseError and no tree is returned.
// On success the caller owns the Tree and MUST close it.
//
// Safe for concurrent use from multiple goroutines.
func (pm *ParserManager) Parse(source []byte, lang Language) (*ts.Tree, error) {
	if lang == LanguageUnknown {
		return nil, fmt.Errorf("cannot parse unknown language")
	}

	pool, err := pm.getOrCreatePool(lang)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool for %s: %w", lang, err)
	}

	tree, err := pool.parse(source)
	if err != nil {
		return nil, err
	}

	if bad := firstErrorNode(tree.RootNode()); bad != nil {
		perr := newParseError(bad, lang)
		pool.recordError()
		tree.Close()
		return nil, perr
	}
	return tree, nil
}

// ParseFile parses source after detecting its language from filePath.
// A *ParseError returned from here carries the path.
func (pm *ParserManager) ParseFile(source []byte, filePath string) (*ts.Tree, error) {
	lang := DetectLanguage(filePath)
	if lang == LanguageUnknown {
		return nil, fmt.Errorf("unsupported file extension: %s", filePath)
	}

	tree, err := pm.Parse(source, lang)
	if perr, ok := err.(*ParseError); ok {
		perr.Path = filePath
	}
	return tree, err
}

// Close releases all parser pool resources. The manager cannot be used
// afterwards.
func (pm *ParserManager) Close() error {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	for lang, pool := range pm.pools {
		st := pool.stats()
		pool.close()
		pm.logger.Debug("closed parser pool",
			"language", lang.String(),
			"parsers_created", st.Created,
			"parses", st.Parses,
			"parse_errors", st.Errors)
	}
	pm.pools = make(map[Language]*grammarPool)
	return nil
}

// getOrCreatePool returns an existing parser pool or creates a new one.
// Thread-safe using double-checked locking pattern.
func (pm *ParserManager) getOrCreatePool(lang Language) (*grammarPool, error) {
	pm.mutex.RLock()
	pool, exists := pm.pools[lang]
	pm.mutex.RUnlock()

	if exists {
		return pool, nil
	}

	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if pool, exists = pm.pools[lang]; exists {
		return pool, nil
	}

	grammar, err := GetLanguagePointer(lang)
	if err != nil {
		return nil, err
	}

	pool = newGrammarPool(lang, grammar, pm.poolSize, pm.logger)
	pm.pools[lang] = pool

	pm.logger.Debug("created new parser pool",
		"language", lang.String(),
		"maxSize", pm.poolSize)

	return pool, nil
}

// GetLanguagePointer returns the tree-sitter grammar for lang. JSX files
// use the JavaScript grammar, which parses JSX natively. Plain TypeScript
// files use the grammar without JSX so that angle-bracket casts parse.
func GetLanguagePointer(lang Language) (unsafe.Pointer, error) {
	switch lang {
	case LanguageJavaScript, LanguageJSX:
		return ts_javascript.Language(), nil
	case LanguageTypeScript:
		return ts_typescript.LanguageTypescript(), nil
	case LanguageTSX:
		return ts_typescript.LanguageTSX(), nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang.String())
	}
}

// GetStats returns parser usage statistics, in total and per language
// tag that has been parsed at least once.
func (pm *ParserManager) GetStats() ParserStats {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	stats := ParserStats{Languages: make(map[string]PoolStats, len(pm.pools))}
	for lang, pool := range pm.pools {
		ps := pool.stats()
		stats.Languages[lang.String()] = ps
		stats.ParsersCreated += ps.Created
		stats.ParsesCalled += ps.Parses
		stats.ParseErrors += ps.Errors
	}
	return stats
}

// ParserStats contains parser usage statistics.
type ParserStats struct {
	ParsersCreated int
	ParsesCalled   int
	ParseErrors    int
	Languages      map[string]PoolStats
}
