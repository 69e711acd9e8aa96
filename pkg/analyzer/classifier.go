package analyzer

import (
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// frameworkNamespace is the namespace object base classes and wrappers are
// reached through, as in React.Component or React.memo.
const frameworkNamespace = "React"

// baseComponents are the superclasses that make a class a component.
var baseComponents = map[string]bool{
	"Component":     true,
	"PureComponent": true,
}

// wrapperCallees maps higher-order wrapper callees to the kind of the
// component they produce. The bare forms cover named imports from react.
var wrapperCallees = map[string]ComponentKind{
	frameworkNamespace + ".memo":       ComponentKindMemo,
	frameworkNamespace + ".forwardRef": ComponentKindForwardRef,
	"memo":                             ComponentKindMemo,
	"forwardRef":                       ComponentKindForwardRef,
}

// fragmentMarkers never produce dependency pairs.
var fragmentMarkers = map[string]bool{
	"Fragment":                        true,
	frameworkNamespace + ".Fragment": true,
}

// classifyFunctionDeclaration applies the function-declaration rule: the
// function's own body returns markup.
func classifyFunctionDeclaration(fn *ts.Node) bool {
	return returnsMarkup(fn.ChildByFieldName("body"))
}

// classifyClass applies the class rule: the superclass is a base component
// referenced directly or through the framework namespace.
func classifyClass(class *ts.Node, src []byte) bool {
	return isBaseComponentRef(superclassOf(class), src)
}

// classifyInitializer applies the arrow, function-expression, class
// expression and wrapped rules to a variable declarator's value.
func classifyInitializer(value *ts.Node, src []byte) (ComponentKind, bool) {
	value = unwrapParens(value)
	switch kindOf(value) {
	case KindArrowFunction:
		body := value.ChildByFieldName("body")
		if body == nil {
			return "", false
		}
		if body.Kind() == "statement_block" {
			return ComponentKindArrow, returnsMarkup(body)
		}
		return ComponentKindArrow, isMarkupExpression(body)

	case KindFunctionExpr:
		return ComponentKindFunction, returnsMarkup(value.ChildByFieldName("body"))

	case KindClassExpr:
		return ComponentKindClass, classifyClass(value, src)

	case KindCall:
		kind, ok := wrapperCallees[calleeName(value, src)]
		return kind, ok

	default:
		return "", false
	}
}

// returnsMarkup searches body for a return statement whose argument is
// markup. The search does not enter nested functions or classes, whose
// returns belong to them.
func returnsMarkup(body *ts.Node) bool {
	if body == nil {
		return false
	}
	for _, child := range namedChildren(body) {
		kind := kindOf(&child)
		switch {
		case kind == KindReturn:
			if isMarkupExpression(returnArgument(&child)) {
				return true
			}
		case kind.opensScope():
			continue
		default:
			if returnsMarkup(&child) {
				return true
			}
		}
	}
	return false
}

// isMarkupExpression reports whether an expression evaluates to markup:
// a JSX element or fragment, possibly parenthesized, or a conditional
// whose branch is one.
func isMarkupExpression(expr *ts.Node) bool {
	expr = unwrapParens(expr)
	if expr == nil {
		return false
	}
	switch kind := kindOf(expr); {
	case kind.isMarkup():
		return true
	case kind == KindTernary:
		return isMarkupExpression(expr.ChildByFieldName("consequence")) ||
			isMarkupExpression(expr.ChildByFieldName("alternative"))
	case kind == KindBinary:
		op := expr.ChildByFieldName("operator")
		if op == nil || (op.Kind() != "&&" && op.Kind() != "||" && op.Kind() != "??") {
			return false
		}
		return isMarkupExpression(expr.ChildByFieldName("right"))
	default:
		return false
	}
}

func returnArgument(ret *ts.Node) *ts.Node {
	if ret.NamedChildCount() == 0 {
		return nil
	}
	return ret.NamedChild(0)
}

func unwrapParens(n *ts.Node) *ts.Node {
	for n != nil && kindOf(n) == KindParenthesized {
		if n.NamedChildCount() == 0 {
			return nil
		}
		n = n.NamedChild(0)
	}
	return n
}

// superclassOf returns the extended expression of a class. The JavaScript
// grammar puts it directly under class_heritage, the TypeScript grammar
// nests it in an extends_clause.
func superclassOf(class *ts.Node) *ts.Node {
	for _, child := range namedChildren(class) {
		if child.Kind() != "class_heritage" {
			continue
		}
		if child.NamedChildCount() == 0 {
			return nil
		}
		sup := child.NamedChild(0)
		if sup.Kind() == "extends_clause" {
			if v := sup.ChildByFieldName("value"); v != nil {
				return v
			}
			if sup.NamedChildCount() > 0 {
				return sup.NamedChild(0)
			}
			return nil
		}
		return sup
	}
	return nil
}

func isBaseComponentRef(n *ts.Node, src []byte) bool {
	switch kindOf(n) {
	case KindIdentifier:
		return baseComponents[n.Utf8Text(src)]
	case KindMember:
		obj := n.ChildByFieldName("object")
		prop := n.ChildByFieldName("property")
		if obj == nil || prop == nil {
			return false
		}
		return obj.Utf8Text(src) == frameworkNamespace && baseComponents[prop.Utf8Text(src)]
	default:
		return false
	}
}

// calleeName returns the callee text of a call: "memo" or "React.memo".
func calleeName(call *ts.Node, src []byte) string {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return ""
	}
	return compact(fn.Utf8Text(src))
}

// compact drops whitespace so that "React . memo" and "React.memo" compare
// equal.
func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}
