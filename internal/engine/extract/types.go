// # internal/engine/extract/types.go
package extract

import "strings"

// Document is one normalized input file handed to an extractor.
type Document struct {
	Path     string
	Language string // optional; detected from the path when empty
	Content  []byte
}

// SymbolKind classifies a declared symbol. The values double as graph node
// kinds for declaration nodes.
type SymbolKind string

const (
	SymbolFunction  SymbolKind = "Function"
	SymbolClass     SymbolKind = "Class"
	SymbolSchema    SymbolKind = "Schema"
	SymbolComponent SymbolKind = "Component"
	SymbolEndpoint  SymbolKind = "Endpoint"
)

// Span is a 1-based line range within the declaring file.
type Span struct {
	StartLine int
	EndLine   int
}

// Param is one entry of a signature summary.
type Param struct {
	Name     string
	TypeHint string
}

// SymbolDecl is a symbol declared by one document.
type SymbolDecl struct {
	Name      string
	Kind      SymbolKind
	Span      Span
	Signature []Param
	// Verb and Route are set for endpoint declarations only.
	Verb  string
	Route string
}

// RefKind classifies a raw, not-yet-resolved reference.
type RefKind string

const (
	RefImport     RefKind = "Import"
	RefCall       RefKind = "Call"
	RefImplements RefKind = "Implements"
	RefEndpoint   RefKind = "EndpointRef"
)

// RawRef is a reference whose target is resolved later during graph merge.
// From names the enclosing declared symbol, or "" for file-level references.
type RawRef struct {
	Kind RefKind
	Name string
	From string
	// Verb and Route are set for endpoint references only.
	Verb  string
	Route string
	Span  Span
}

// Contribution is the complete extraction result for one document.
type Contribution struct {
	Path     string
	Language string
	Module   string
	Symbols  []SymbolDecl
	Refs     []RawRef
}

// UnparsedFile records a document that contributed nothing to the graph.
type UnparsedFile struct {
	Path     string
	Language string
	Reason   string
}

const (
	ReasonEmptyFile   = "empty file"
	ReasonUnsupported = "unsupported extension"
	ReasonSyntaxError = "syntax error"
	ReasonTooLarge    = "file exceeds size limit"
)

// ModuleName derives the dotted module name from a normalized path, e.g.
// "src/api/users.py" becomes "src.api.users".
func ModuleName(path string) string {
	if idx := strings.LastIndex(path, "."); idx > strings.LastIndex(path, "/") {
		path = path[:idx]
	}
	return strings.ReplaceAll(path, "/", ".")
}
