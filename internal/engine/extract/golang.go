package extract

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// GoExtractor handles Go sources.
type GoExtractor struct{}

func (e *GoExtractor) Extract(root *sitter.Node, source []byte, path string) (*Contribution, error) {
	out := &Contribution{
		Path:     path,
		Language: "go",
		Module:   ModuleName(path),
	}

	ctx := &ExtractionContext{Source: source, Out: out}
	engine := NewExtractorEngine(map[string]NodeHandler{
		"import_declaration":   e.extractImports,
		"function_declaration": e.extractFunction,
		"method_declaration":   e.extractFunction,
		"type_declaration":     e.extractType,
		"call_expression":      e.extractCall,
	})
	engine.MarkScopeKind("function_declaration", "method_declaration")
	engine.Walk(ctx, root)

	return out, nil
}

func (e *GoExtractor) extractImports(ctx *ExtractionContext, node *sitter.Node) bool {
	e.walkImports(ctx, node)
	return true
}

func (e *GoExtractor) walkImports(ctx *ExtractionContext, node *sitter.Node) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() != "import_spec" {
			e.walkImports(ctx, child)
			continue
		}
		for j := uint(0); j < child.ChildCount(); j++ {
			spec := child.Child(j)
			kind := spec.Kind()
			if kind == "interpreted_string_literal" || kind == "raw_string_literal" {
				module := strings.Trim(ctx.Text(spec), "\"`")
				if module != "" {
					ctx.AddRef(RawRef{Kind: RefImport, Name: module, Span: ctx.SpanOf(child)})
				}
			}
		}
	}
}

func (e *GoExtractor) extractFunction(ctx *ExtractionContext, node *sitter.Node) bool {
	name := ctx.ChildFieldText(node, "name")
	if name == "" {
		return true
	}
	ctx.AddSymbol(SymbolDecl{
		Name:      name,
		Kind:      SymbolFunction,
		Span:      ctx.SpanOf(node),
		Signature: e.signature(ctx, node.ChildByFieldName("parameters")),
	})
	return false
}

func (e *GoExtractor) extractType(ctx *ExtractionContext, node *sitter.Node) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() != "type_spec" {
			continue
		}
		name := ctx.ChildFieldText(child, "name")
		if name == "" {
			continue
		}
		kind := SymbolSchema
		var sig []Param
		if typeNode := child.ChildByFieldName("type"); typeNode != nil {
			switch typeNode.Kind() {
			case "interface_type":
				kind = SymbolClass
			case "struct_type":
				sig = e.structFields(ctx, typeNode)
			}
		}
		ctx.AddSymbol(SymbolDecl{
			Name:      name,
			Kind:      kind,
			Span:      ctx.SpanOf(child),
			Signature: sig,
		})
	}
	return true
}

func (e *GoExtractor) structFields(ctx *ExtractionContext, structType *sitter.Node) []Param {
	var sig []Param
	var walk func(*sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Kind() == "field_declaration" {
			name := ctx.ChildFieldText(n, "name")
			if name != "" {
				sig = append(sig, Param{Name: name, TypeHint: ctx.ChildFieldText(n, "type")})
			}
			return
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(structType)
	return sig
}

func (e *GoExtractor) extractCall(ctx *ExtractionContext, node *sitter.Node) bool {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return false
	}
	callee := ctx.Text(fn)
	if callee == "" {
		return false
	}
	if idx := strings.LastIndex(callee, "."); idx >= 0 {
		callee = callee[idx+1:]
	}
	ctx.AddRef(RawRef{Kind: RefCall, Name: callee, Span: ctx.SpanOf(node)})
	return false
}

func (e *GoExtractor) signature(ctx *ExtractionContext, params *sitter.Node) []Param {
	if params == nil {
		return nil
	}
	var sig []Param
	for i := uint(0); i < params.ChildCount(); i++ {
		child := params.Child(i)
		if child.Kind() != "parameter_declaration" && child.Kind() != "variadic_parameter_declaration" {
			continue
		}
		hint := ctx.ChildFieldText(child, "type")
		name := ctx.ChildFieldText(child, "name")
		if name == "" {
			name = ctx.ChildText(child, "identifier")
		}
		if name == "" && hint == "" {
			continue
		}
		sig = append(sig, Param{Name: name, TypeHint: hint})
	}
	return sig
}
