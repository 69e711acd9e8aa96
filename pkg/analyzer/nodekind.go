package analyzer

import (
	ts "github.com/tree-sitter/go-tree-sitter"
)

// NodeKind is the closed set of syntax node variants the analyzer acts on.
// Every tree-sitter node maps to exactly one NodeKind. Anything the
// analyzer has no rule for is KindOther and is only descended into.
type NodeKind int

const (
	KindOther NodeKind = iota
	KindImport
	KindExport
	KindFunctionDecl
	KindFunctionExpr
	KindArrowFunction
	KindClassDecl
	KindClassExpr
	KindClassBody
	KindMethod
	KindVariableDeclarator
	KindReturn
	KindParenthesized
	KindTernary
	KindBinary
	KindCall
	KindMember
	KindIdentifier
	KindJSXElement
	KindJSXSelfClosing
	KindJSXFragment
	KindJSXOpening
)

var nodeKinds = map[string]NodeKind{
	"import_statement":         KindImport,
	"export_statement":         KindExport,
	"function_declaration":     KindFunctionDecl,
	"function_expression":      KindFunctionExpr,
	"function":                 KindFunctionExpr,
	"arrow_function":           KindArrowFunction,
	"class_declaration":        KindClassDecl,
	"class":                    KindClassExpr,
	"class_body":               KindClassBody,
	"method_definition":        KindMethod,
	"variable_declarator":      KindVariableDeclarator,
	"return_statement":         KindReturn,
	"parenthesized_expression": KindParenthesized,
	"ternary_expression":       KindTernary,
	"binary_expression":        KindBinary,
	"call_expression":          KindCall,
	"member_expression":        KindMember,
	"identifier":               KindIdentifier,
	"jsx_element":              KindJSXElement,
	"jsx_self_closing_element": KindJSXSelfClosing,
	"jsx_fragment":             KindJSXFragment,
	"jsx_opening_element":      KindJSXOpening,
}

// kindOf maps a tree-sitter node to its NodeKind.
func kindOf(n *ts.Node) NodeKind {
	if n == nil {
		return KindOther
	}
	if k, ok := nodeKinds[n.Kind()]; ok {
		return k
	}
	return KindOther
}

// isMarkup reports whether k is a JSX element or fragment.
func (k NodeKind) isMarkup() bool {
	switch k {
	case KindJSXElement, KindJSXSelfClosing, KindJSXFragment:
		return true
	default:
		return false
	}
}

// opensScope reports whether k starts a new function or class body. The
// return search for a declaration stops at these.
func (k NodeKind) opensScope() bool {
	switch k {
	case KindFunctionDecl, KindFunctionExpr, KindArrowFunction,
		KindClassDecl, KindClassExpr, KindMethod:
		return true
	default:
		return false
	}
}
