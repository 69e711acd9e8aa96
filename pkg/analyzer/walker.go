package analyzer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/uigraph/pkg/parser"
)

// Analyze walks a parsed file once. Classification, scope tracking and
// markup extraction run co-operatively in the same depth-first pass.
func Analyze(path string, lang parser.Language, root *ts.Node, src []byte) *FileAnalysis {
	w := &walker{
		src:    src,
		cursor: root.Walk(),
		scope:  NewScopeTracker(),
		byName: make(map[string]int),
		fa: &FileAnalysis{
			Path:     path,
			Language: lang,
		},
	}
	defer w.cursor.Close()

	w.visit(root)
	w.finish()
	return w.fa
}

type walker struct {
	src   []byte
	scope *ScopeTracker

	// cursor lists children in linear time. Child(i) is O(i) per call.
	cursor *ts.TreeCursor

	// byName indexes fa.Components for idempotent marking.
	byName map[string]int
	// defaults are local names exported as default, resolved after the
	// walk so that order of declaration does not matter.
	defaults []string

	fa *FileAnalysis
}

func (w *walker) visit(n *ts.Node) {
	if n == nil {
		return
	}

	switch kindOf(n) {
	case KindImport:
		w.recordImport(n)

	case KindExport:
		w.recordExport(n)
		w.visitExport(n)

	case KindFunctionDecl:
		w.visitFunctionDeclaration(n)

	case KindClassDecl:
		w.visitClass(n, w.text(n.ChildByFieldName("name")))

	case KindVariableDeclarator:
		w.visitDeclarator(n)

	case KindMethod:
		w.recordFunction(w.text(n.ChildByFieldName("name")), FunctionKindMethod, n)
		w.visitChildren(n)

	case KindJSXElement:
		if open := openingElement(n); open != nil {
			w.recordMarkup(open)
		}
		w.visitChildren(n)

	case KindJSXSelfClosing:
		w.recordMarkup(n)
		w.visitChildren(n)

	case KindFunctionExpr, KindArrowFunction, KindClassExpr, KindClassBody,
		KindReturn, KindParenthesized, KindTernary, KindBinary, KindCall,
		KindMember, KindIdentifier, KindJSXFragment, KindJSXOpening, KindOther:
		w.visitChildren(n)
	}
}

func (w *walker) visitChildren(n *ts.Node) {
	kids := n.Children(w.cursor)
	for i := range kids {
		w.visit(&kids[i])
	}
}

// visitExcept visits the children of n other than skip.
func (w *walker) visitExcept(n, skip *ts.Node) {
	kids := n.Children(w.cursor)
	for i := range kids {
		if sameNode(&kids[i], skip) {
			continue
		}
		w.visit(&kids[i])
	}
}

// visitExport routes "export default function Name() {}" and the class
// equivalent through the declaration rules when the grammar produced an
// expression rather than a declaration.
func (w *walker) visitExport(n *ts.Node) {
	value := n.ChildByFieldName("value")
	if value == nil || value.ChildByFieldName("name") == nil {
		w.visitChildren(n)
		return
	}

	switch kindOf(value) {
	case KindFunctionExpr:
		w.visitExcept(n, value)
		w.visitFunctionDeclaration(value)
	case KindClassExpr:
		w.visitExcept(n, value)
		w.visitClass(value, w.text(value.ChildByFieldName("name")))
	default:
		w.visitChildren(n)
	}
}

func (w *walker) visitFunctionDeclaration(n *ts.Node) {
	name := w.text(n.ChildByFieldName("name"))
	w.recordFunction(name, FunctionKindDeclaration, n)

	body := n.ChildByFieldName("body")
	if name == "" || body == nil || !classifyFunctionDeclaration(n) {
		w.visitChildren(n)
		return
	}

	w.mark(name, ComponentKindFunction, n)
	w.visitExcept(n, body)
	w.scope.Within(name, func() { w.visit(body) })
}

// visitClass covers class declarations. The class body, and with it every
// method and field initializer, is walked inside the class's scope.
func (w *walker) visitClass(n *ts.Node, name string) {
	body := n.ChildByFieldName("body")
	if name == "" || body == nil || !classifyClass(n, w.src) {
		w.visitChildren(n)
		return
	}

	w.mark(name, ComponentKindClass, n)
	w.visitExcept(n, body)
	w.scope.Within(name, func() { w.visit(body) })
}

// visitDeclarator covers the arrow, function-expression, class-expression
// and wrapped rules. A classified declarator's whole initializer is walked
// inside its scope.
func (w *walker) visitDeclarator(n *ts.Node) {
	nameNode := n.ChildByFieldName("name")
	value := n.ChildByFieldName("value")
	if kindOf(nameNode) != KindIdentifier || value == nil {
		w.visitChildren(n)
		return
	}
	name := w.text(nameNode)

	switch fn := unwrapParens(value); kindOf(fn) {
	case KindArrowFunction:
		w.recordFunction(name, FunctionKindArrow, fn)
	case KindFunctionExpr:
		w.recordFunction(name, FunctionKindExpression, fn)
	}

	kind, ok := classifyInitializer(value, w.src)
	if !ok {
		w.visitChildren(n)
		return
	}

	w.mark(name, kind, n)
	w.visitExcept(n, value)
	w.scope.Within(name, func() { w.visit(value) })
}

// mark records a component. Marking a name again is a no-op.
func (w *walker) mark(name string, kind ComponentKind, n *ts.Node) {
	if _, exists := w.byName[name]; exists {
		return
	}
	w.byName[name] = len(w.fa.Components)
	w.fa.Components = append(w.fa.Components, Component{
		Name: name,
		Kind: kind,
		Line: line(n),
	})
}

// recordMarkup handles one element tag: a usage always, and a raw
// dependency when a component scope is active and the tag names a
// component.
func (w *walker) recordMarkup(el *ts.Node) {
	tag := w.tagName(el)
	if tag == "" {
		// <>...</> has no tag.
		return
	}

	pos := el.StartPosition()
	usage := MarkupUsage{
		Tag:    tag,
		Line:   int(pos.Row) + 1,
		Column: int(pos.Column) + 1,
	}

	current, inScope := w.scope.Current()
	if inScope {
		usage.Component = current
	}
	w.fa.Usages = append(w.fa.Usages, usage)

	if inScope && IsComponentTag(tag) {
		w.fa.Dependencies = append(w.fa.Dependencies, RawDependency{Parent: current, Child: tag})
	}
}

// tagName resolves Foo, Ns.Tag and a.b.c element names.
func (w *walker) tagName(el *ts.Node) string {
	if name := el.ChildByFieldName("name"); name != nil {
		return compact(w.text(name))
	}
	for _, child := range namedChildren(el) {
		switch child.Kind() {
		case "identifier", "member_expression", "nested_identifier", "jsx_namespace_name":
			return compact(w.text(&child))
		}
	}
	return ""
}

// IsComponentTag reports whether a tag refers to a component: it starts
// with an uppercase letter and is not a fragment marker.
func IsComponentTag(tag string) bool {
	r, _ := utf8.DecodeRuneInString(tag)
	if r == utf8.RuneError || !unicode.IsUpper(r) {
		return false
	}
	return !fragmentMarkers[tag]
}

func (w *walker) recordImport(n *ts.Node) {
	imp := Import{Line: line(n)}

	source := n.ChildByFieldName("source")
	for _, child := range namedChildren(n) {
		switch child.Kind() {
		case "import_clause":
			w.readImportClause(&child, &imp)
		case "import_require_clause":
			// TypeScript: import x = require("y")
			if id := firstNamedOfKind(&child, "identifier"); id != nil {
				imp.DefaultImport = w.text(id)
			}
			if source == nil {
				source = child.ChildByFieldName("source")
			}
		}
	}
	imp.Source = w.stringValue(source)

	w.fa.Imports = append(w.fa.Imports, imp)
}

func (w *walker) readImportClause(clause *ts.Node, imp *Import) {
	for _, part := range namedChildren(clause) {
		switch part.Kind() {
		case "identifier":
			imp.DefaultImport = w.text(&part)
		case "namespace_import":
			if id := firstNamedOfKind(&part, "identifier"); id != nil {
				imp.Namespace = w.text(id)
			}
		case "named_imports":
			for _, spec := range namedChildren(&part) {
				if spec.Kind() != "import_specifier" {
					continue
				}
				local := spec.ChildByFieldName("alias")
				if local == nil {
					local = spec.ChildByFieldName("name")
				}
				if name := w.text(local); name != "" {
					imp.NamedImports = append(imp.NamedImports, name)
				}
			}
		}
	}
}

func (w *walker) recordExport(n *ts.Node) {
	ln := line(n)
	source := w.stringValue(n.ChildByFieldName("source"))
	isDefault := hasToken(n, "default")

	add := func(name string, kind ExportKind) {
		w.fa.Exports = append(w.fa.Exports, Export{Name: name, Kind: kind, Source: source, Line: ln})
	}

	if decl := n.ChildByFieldName("declaration"); decl != nil {
		names := w.declaredNames(decl)
		for _, name := range names {
			if isDefault {
				add(name, ExportKindDefault)
				w.defaults = append(w.defaults, name)
			} else {
				add(name, ExportKindNamed)
			}
		}
		if isDefault && len(names) == 0 {
			add("default", ExportKindDefault)
		}
		return
	}

	if value := n.ChildByFieldName("value"); value != nil {
		name := ""
		switch kindOf(value) {
		case KindIdentifier:
			name = w.text(value)
		case KindFunctionExpr, KindClassExpr:
			name = w.text(value.ChildByFieldName("name"))
		}
		if name == "" {
			add("default", ExportKindDefault)
			return
		}
		add(name, ExportKindDefault)
		w.defaults = append(w.defaults, name)
		return
	}

	if clause := firstNamedOfKind(n, "export_clause"); clause != nil {
		for _, spec := range namedChildren(clause) {
			if spec.Kind() != "export_specifier" {
				continue
			}
			local := w.text(spec.ChildByFieldName("name"))
			exported := local
			if alias := spec.ChildByFieldName("alias"); alias != nil {
				exported = w.text(alias)
			}
			if exported == "default" {
				add(local, ExportKindDefault)
				if source == "" {
					w.defaults = append(w.defaults, local)
				}
				continue
			}
			add(exported, ExportKindNamed)
		}
		return
	}

	// export * from "x" and export * as ns from "x"
	if source != "" {
		name := "*"
		if ns := firstNamedOfKind(n, "namespace_export"); ns != nil {
			if id := firstNamedOfKind(ns, "identifier"); id != nil {
				name = w.text(id)
			}
		}
		add(name, ExportKindNamed)
	}
}

// declaredNames returns the bindings an exported declaration introduces.
func (w *walker) declaredNames(decl *ts.Node) []string {
	switch decl.Kind() {
	case "lexical_declaration", "variable_declaration":
		var names []string
		for _, d := range namedChildren(decl) {
			if d.Kind() != "variable_declarator" {
				continue
			}
			if nameNode := d.ChildByFieldName("name"); kindOf(nameNode) == KindIdentifier {
				names = append(names, w.text(nameNode))
			}
		}
		return names
	default:
		if name := w.text(decl.ChildByFieldName("name")); name != "" {
			return []string{name}
		}
		return nil
	}
}

func (w *walker) recordFunction(name string, kind FunctionKind, fn *ts.Node) {
	if name == "" {
		return
	}
	w.fa.Functions = append(w.fa.Functions, Function{
		Name:   name,
		Kind:   kind,
		Params: w.params(fn),
		Line:   line(fn),
	})
}

func (w *walker) params(fn *ts.Node) []string {
	params := []string{}
	if single := fn.ChildByFieldName("parameter"); single != nil {
		return append(params, w.text(single))
	}
	list := fn.ChildByFieldName("parameters")
	if list == nil {
		return params
	}
	for _, p := range namedChildren(list) {
		if p.Kind() == "comment" {
			continue
		}
		params = append(params, strings.Join(strings.Fields(w.text(&p)), " "))
	}
	return params
}

// finish resolves default exports and assigns local IDs.
func (w *walker) finish() {
	for _, name := range w.defaults {
		if idx, ok := w.byName[name]; ok {
			w.fa.Components[idx].IsDefaultExport = true
		}
	}
	for i := range w.fa.Components {
		w.fa.Components[i].LocalID = i + 1
	}
}

func (w *walker) text(n *ts.Node) string {
	if n == nil {
		return ""
	}
	return n.Utf8Text(w.src)
}

// stringValue returns the contents of a string literal node.
func (w *walker) stringValue(n *ts.Node) string {
	if n == nil {
		return ""
	}
	if frag := firstNamedOfKind(n, "string_fragment"); frag != nil {
		return w.text(frag)
	}
	s := w.text(n)
	if len(s) >= 2 {
		return s[1 : len(s)-1]
	}
	return ""
}

func openingElement(el *ts.Node) *ts.Node {
	if open := el.ChildByFieldName("open_tag"); open != nil {
		return open
	}
	return firstNamedOfKind(el, "jsx_opening_element")
}

func firstNamedOfKind(n *ts.Node, kind string) *ts.Node {
	kids := namedChildren(n)
	for i := range kids {
		if kids[i].Kind() == kind {
			return &kids[i]
		}
	}
	return nil
}

func hasToken(n *ts.Node, token string) bool {
	for _, child := range children(n) {
		if !child.IsNamed() && child.Kind() == token {
			return true
		}
	}
	return false
}

func children(n *ts.Node) []ts.Node {
	c := n.Walk()
	defer c.Close()
	return n.Children(c)
}

func namedChildren(n *ts.Node) []ts.Node {
	c := n.Walk()
	defer c.Close()
	return n.NamedChildren(c)
}

func sameNode(a, b *ts.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Kind() == b.Kind()
}

func line(n *ts.Node) int {
	return int(n.StartPosition().Row) + 1
}
