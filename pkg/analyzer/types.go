package analyzer

import "github.com/gnana997/uigraph/pkg/parser"

// ComponentKind is the declaration idiom a component was recognized by.
type ComponentKind string

const (
	ComponentKindFunction   ComponentKind = "function"
	ComponentKindArrow      ComponentKind = "arrow"
	ComponentKindClass      ComponentKind = "class"
	ComponentKindMemo       ComponentKind = "memo"
	ComponentKindForwardRef ComponentKind = "forwardRef"
)

// Component is a declaration classified as a renderable component.
// Names are unique within a file.
type Component struct {
	// LocalID identifies the component inside its file: 1..n in the order
	// components were first classified.
	LocalID         int           `json:"local_id"`
	Name            string        `json:"name"`
	Kind            ComponentKind `json:"kind"`
	IsDefaultExport bool          `json:"is_default_export"`
	Line            int           `json:"line"`
}

// MarkupUsage is one JSX element observed in the file. Component is the
// enclosing component, empty when the element sits outside every
// component body.
type MarkupUsage struct {
	Tag       string `json:"tag"`
	Component string `json:"component,omitempty"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
}

// RawDependency is a name-based "Parent renders Child" pair before
// resolution against the file's components.
type RawDependency struct {
	Parent string `json:"parent"`
	Child  string `json:"child"`
}

// Import is one import declaration.
type Import struct {
	Source        string   `json:"source"`
	DefaultImport string   `json:"default_import,omitempty"`
	Namespace     string   `json:"namespace,omitempty"`
	NamedImports  []string `json:"named_imports,omitempty"`
	Line          int      `json:"line"`
}

// ExportKind distinguishes default from named exports.
type ExportKind string

const (
	ExportKindDefault ExportKind = "default"
	ExportKindNamed   ExportKind = "named"
)

// Export is one exported binding. Source is set for re-exports.
type Export struct {
	Name   string     `json:"name"`
	Kind   ExportKind `json:"kind"`
	Source string     `json:"source,omitempty"`
	Line   int        `json:"line"`
}

// FunctionKind is the syntactic form of a function record.
type FunctionKind string

const (
	FunctionKindDeclaration FunctionKind = "declaration"
	FunctionKindArrow       FunctionKind = "arrow"
	FunctionKindExpression  FunctionKind = "expression"
	FunctionKindMethod      FunctionKind = "method"
)

// Function is a named function, arrow function bound to a variable, or
// class method.
type Function struct {
	Name   string       `json:"name"`
	Kind   FunctionKind `json:"kind"`
	Params []string     `json:"params"`
	Line   int          `json:"line"`
}

// FileAnalysis is everything one walk over a file produces.
type FileAnalysis struct {
	Path         string          `json:"path"`
	Language     parser.Language `json:"-"`
	Components   []Component     `json:"components"`
	Usages       []MarkupUsage   `json:"usages"`
	Dependencies []RawDependency `json:"dependencies"`
	Imports      []Import        `json:"imports"`
	Exports      []Export        `json:"exports"`
	Functions    []Function      `json:"functions"`
}

// Component returns the component with the given name.
func (fa *FileAnalysis) Component(name string) (Component, bool) {
	for _, c := range fa.Components {
		if c.Name == name {
			return c, true
		}
	}
	return Component{}, false
}

// ComponentNames returns component names in LocalID order.
func (fa *FileAnalysis) ComponentNames() []string {
	names := make([]string, len(fa.Components))
	for i, c := range fa.Components {
		names[i] = c.Name
	}
	return names
}
