package parser

import (
	"fmt"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// ParseError reports malformed source text. Line and Column are 1-based
// and point at the first ERROR node of the tree.
//
// Tokens the parser recovered by inserting (MISSING nodes, typically an
// automatic semicolon) do not make a parse fail.
type ParseError struct {
	Path     string
	Language Language
	Line     int
	Column   int
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("syntax error at %d:%d (%s)", e.Line, e.Column, e.Language)
	}
	return fmt.Sprintf("%s: syntax error at %d:%d", e.Path, e.Line, e.Column)
}

func newParseError(n *ts.Node, lang Language) *ParseError {
	pos := n.StartPosition()
	return &ParseError{Language: lang, Line: int(pos.Row) + 1, Column: int(pos.Column) + 1}
}

// firstErrorNode returns the first ERROR node below root in document
// order, or nil. Only subtrees that report an error are entered.
func firstErrorNode(root *ts.Node) *ts.Node {
	if !root.HasError() {
		return nil
	}
	c := root.Walk()
	defer c.Close()

	for {
		n := c.Node()
		if n.IsError() {
			return n
		}
		if n.HasError() && c.GotoFirstChild() {
			continue
		}
		for !c.GotoNextSibling() {
			if !c.GotoParent() {
				return nil
			}
		}
	}
}
