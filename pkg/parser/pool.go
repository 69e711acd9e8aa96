package parser

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// grammarPool holds the parsers of one language tag.
//
// Parsers are created lazily up to maxSize and parked on the idle
// channel between parses. Once every parser is checked out, borrow
// blocks until one comes back. A parser returned after close is freed
// instead of parked.
type grammarPool struct {
	lang    Language
	grammar unsafe.Pointer
	maxSize int
	idle    chan *ts.Parser

	mu      sync.Mutex
	closed  bool
	created int
	inUse   int
	parses  int
	errors  int

	logger *slog.Logger
}

// PoolStats describes one language's parser pool.
type PoolStats struct {
	Created int `json:"created"`
	InUse   int `json:"in_use"`
	Parses  int `json:"parses"`
	Errors  int `json:"errors"`
}

func newGrammarPool(lang Language, grammar unsafe.Pointer, maxSize int, logger *slog.Logger) *grammarPool {
	return &grammarPool{
		lang:    lang,
		grammar: grammar,
		maxSize: maxSize,
		idle:    make(chan *ts.Parser, maxSize),
		logger:  logger,
	}
}

// parse runs one parse on a borrowed parser. The caller owns the tree.
func (p *grammarPool) parse(source []byte) (*ts.Tree, error) {
	parser, err := p.borrow()
	if err != nil {
		return nil, err
	}
	tree := parser.Parse(source, nil)
	p.giveBack(parser)

	p.mu.Lock()
	p.parses++
	p.mu.Unlock()

	if tree == nil {
		return nil, fmt.Errorf("%s parser returned no tree", p.lang)
	}
	return tree, nil
}

func (p *grammarPool) borrow() (*ts.Parser, error) {
	select {
	case parser := <-p.idle:
		p.mu.Lock()
		p.inUse++
		p.mu.Unlock()
		return parser, nil
	default:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("%s parser pool is closed", p.lang)
	}
	if p.created >= p.maxSize {
		p.mu.Unlock()
		parser, ok := <-p.idle
		if !ok {
			return nil, fmt.Errorf("%s parser pool is closed", p.lang)
		}
		p.mu.Lock()
		p.inUse++
		p.mu.Unlock()
		return parser, nil
	}
	defer p.mu.Unlock()

	parser := ts.NewParser()
	if parser == nil {
		return nil, fmt.Errorf("failed to create %s parser", p.lang)
	}
	if err := parser.SetLanguage(ts.NewLanguage(p.grammar)); err != nil {
		parser.Close()
		return nil, fmt.Errorf("failed to set %s grammar: %w", p.lang, err)
	}
	p.created++
	p.inUse++
	p.logger.Debug("created parser", "language", p.lang.String(), "pool_size", p.created)
	return parser, nil
}

func (p *grammarPool) giveBack(parser *ts.Parser) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.inUse--
	if p.closed {
		parser.Close()
		return
	}
	select {
	case p.idle <- parser:
	default:
		// Only reachable if a parser is given back twice.
		parser.Close()
		p.logger.Warn("parser pool full, closing excess parser", "language", p.lang.String())
	}
}

// close frees idle parsers. Parsers still checked out are freed when
// they come back.
func (p *grammarPool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	close(p.idle)
	for parser := range p.idle {
		parser.Close()
	}
}

// recordError counts a parse rejected for syntax errors.
func (p *grammarPool) recordError() {
	p.mu.Lock()
	p.errors++
	p.mu.Unlock()
}

func (p *grammarPool) stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{Created: p.created, InUse: p.inUse, Parses: p.parses, Errors: p.errors}
}
