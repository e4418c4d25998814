// # internal/engine/extract/generic.go
package extract

import (
	"regexp"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// GenericExtractor covers languages without a dedicated extractor (java, rust)
// using regex-driven node-kind classification. It trades precision for
// breadth: declarations and call references are captured, framework-specific
// constructs like endpoints are not.
type GenericExtractor struct {
	Language string
}

type nodeClass int

const (
	classNone nodeClass = iota
	classFunction
	classClass
	classSchema
	classImport
	classCall
)

type classifierTier struct {
	re    *regexp.Regexp
	class nodeClass
}

// genericTiers is evaluated top to bottom; first match wins.
var genericTiers = []classifierTier{
	{regexp.MustCompile(`^(function_item|method_declaration|function_declaration|constructor_declaration)$`), classFunction},
	{regexp.MustCompile(`^(class_declaration|trait_item|interface_declaration|impl_item|enum_declaration)$`), classClass},
	{regexp.MustCompile(`^(struct_item|record_declaration|type_item)$`), classSchema},
	{regexp.MustCompile(`^(import_declaration|use_declaration)$`), classImport},
	{regexp.MustCompile(`^(call_expression|method_invocation|macro_invocation|object_creation_expression)$`), classCall},
}

func classifyKind(kind string) nodeClass {
	for _, tier := range genericTiers {
		if tier.re.MatchString(kind) {
			return tier.class
		}
	}
	return classNone
}

func (e *GenericExtractor) Extract(root *sitter.Node, source []byte, path string) (*Contribution, error) {
	out := &Contribution{
		Path:     path,
		Language: e.Language,
		Module:   ModuleName(path),
	}
	ctx := &ExtractionContext{Source: source, Out: out}
	e.walk(ctx, root)
	return out, nil
}

func (e *GenericExtractor) walk(ctx *ExtractionContext, node *sitter.Node) {
	if node == nil {
		return
	}

	scoped := false
	switch classifyKind(node.Kind()) {
	case classFunction:
		if name := e.declName(ctx, node); name != "" {
			ctx.AddSymbol(SymbolDecl{Name: name, Kind: SymbolFunction, Span: ctx.SpanOf(node)})
			ctx.PushScope(name)
			scoped = true
		}
	case classClass:
		if name := e.declName(ctx, node); name != "" {
			ctx.AddSymbol(SymbolDecl{Name: name, Kind: SymbolClass, Span: ctx.SpanOf(node)})
			e.emitHeritage(ctx, node, name)
			ctx.PushScope(name)
			scoped = true
		}
	case classSchema:
		if name := e.declName(ctx, node); name != "" {
			ctx.AddSymbol(SymbolDecl{Name: name, Kind: SymbolSchema, Span: ctx.SpanOf(node)})
		}
	case classImport:
		if module := e.importName(ctx, node); module != "" {
			ctx.AddRef(RawRef{Kind: RefImport, Name: module, Span: ctx.SpanOf(node)})
		}
	case classCall:
		if name := e.callName(ctx, node); name != "" {
			ctx.AddRef(RawRef{Kind: RefCall, Name: name, Span: ctx.SpanOf(node)})
		}
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		e.walk(ctx, node.Child(i))
	}
	if scoped {
		ctx.PopScope()
	}
}

func (e *GenericExtractor) declName(ctx *ExtractionContext, node *sitter.Node) string {
	if name := ctx.ChildFieldText(node, "name"); name != "" {
		return name
	}
	// rust impl blocks carry the type under the "type" field.
	if name := ctx.ChildFieldText(node, "type"); name != "" {
		return name
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "identifier", "type_identifier":
			return ctx.Text(child)
		}
	}
	return ""
}

// emitHeritage covers java extends/implements and rust trait impls.
func (e *GenericExtractor) emitHeritage(ctx *ExtractionContext, node *sitter.Node, name string) {
	if trait := node.ChildByFieldName("trait"); trait != nil {
		ctx.AddRef(RawRef{Kind: RefImplements, Name: ctx.Text(trait), From: name, Span: ctx.SpanOf(node)})
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		kind := child.Kind()
		if kind != "superclass" && kind != "super_interfaces" && kind != "extends_interfaces" {
			continue
		}
		var collect func(*sitter.Node)
		collect = func(n *sitter.Node) {
			if n == nil {
				return
			}
			if n.Kind() == "type_identifier" {
				ctx.AddRef(RawRef{Kind: RefImplements, Name: ctx.Text(n), From: name, Span: ctx.SpanOf(node)})
				return
			}
			for j := uint(0); j < n.ChildCount(); j++ {
				collect(n.Child(j))
			}
		}
		collect(child)
	}
}

func (e *GenericExtractor) importName(ctx *ExtractionContext, node *sitter.Node) string {
	text := ctx.Text(node)
	text = strings.TrimSuffix(strings.TrimSpace(text), ";")
	for _, prefix := range []string{"import static ", "import ", "use "} {
		if strings.HasPrefix(text, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(text, prefix))
		}
	}
	return ""
}

func (e *GenericExtractor) callName(ctx *ExtractionContext, node *sitter.Node) string {
	callee := ctx.ChildFieldText(node, "function")
	if callee == "" {
		callee = ctx.ChildFieldText(node, "name")
	}
	if callee == "" {
		return ""
	}
	callee = strings.TrimSuffix(callee, "!")
	if idx := strings.LastIndexAny(callee, ".:"); idx >= 0 {
		callee = callee[idx+1:]
	}
	return callee
}
