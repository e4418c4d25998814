package extract

import (
	"strings"
	"unicode"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// TypeScriptExtractor handles frontend sources: javascript, typescript and tsx
// share a grammar family, so one extractor covers all three. Components are
// recognized by the upper-case naming convention in component-bearing files.
type TypeScriptExtractor struct {
	Language string
}

func (e *TypeScriptExtractor) Extract(root *sitter.Node, source []byte, path string) (*Contribution, error) {
	out := &Contribution{
		Path:     path,
		Language: e.Language,
		Module:   ModuleName(path),
	}

	ctx := &ExtractionContext{Source: source, Out: out}
	engine := NewExtractorEngine(map[string]NodeHandler{
		"import_statement":       e.extractImport,
		"function_declaration":   e.extractFunction,
		"lexical_declaration":    e.extractLexical,
		"variable_declaration":   e.extractLexical,
		"class_declaration":      e.extractClass,
		"interface_declaration":  e.extractInterface,
		"type_alias_declaration": e.extractTypeAlias,
		"call_expression":        e.extractCall,
		"new_expression":         e.extractNew,
	})
	engine.MarkScopeKind("function_declaration", "class_declaration", "method_definition")
	engine.Walk(ctx, root)

	return out, nil
}

// componentCapable reports whether this dialect declares UI components.
func (e *TypeScriptExtractor) componentCapable() bool {
	return e.Language == "tsx" || e.Language == "javascript"
}

func isUpperInitial(name string) bool {
	for _, r := range name {
		return unicode.IsUpper(r)
	}
	return false
}

func (e *TypeScriptExtractor) declKind(name string) SymbolKind {
	if e.componentCapable() && isUpperInitial(name) {
		return SymbolComponent
	}
	return SymbolFunction
}

func (e *TypeScriptExtractor) extractImport(ctx *ExtractionContext, node *sitter.Node) bool {
	source := ctx.ChildFieldText(node, "source")
	source = strings.Trim(source, "\"'`")
	if source == "" {
		return true
	}
	ctx.AddRef(RawRef{Kind: RefImport, Name: source, Span: ctx.SpanOf(node)})
	return true
}

func (e *TypeScriptExtractor) extractFunction(ctx *ExtractionContext, node *sitter.Node) bool {
	name := ctx.ChildFieldText(node, "name")
	if name == "" {
		return true
	}
	ctx.AddSymbol(SymbolDecl{
		Name:      name,
		Kind:      e.declKind(name),
		Span:      ctx.SpanOf(node),
		Signature: e.signature(ctx, node.ChildByFieldName("parameters")),
	})
	return false
}

// extractLexical catches `const Foo = () => ...` declarations, the dominant
// component and handler form in modern frontend code.
func (e *TypeScriptExtractor) extractLexical(ctx *ExtractionContext, node *sitter.Node) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		decl := node.Child(i)
		if decl.Kind() != "variable_declarator" {
			continue
		}
		value := decl.ChildByFieldName("value")
		if value == nil {
			continue
		}
		vk := value.Kind()
		if vk != "arrow_function" && vk != "function_expression" && vk != "function" {
			continue
		}
		name := ctx.ChildFieldText(decl, "name")
		if name == "" {
			continue
		}
		ctx.AddSymbol(SymbolDecl{
			Name:      name,
			Kind:      e.declKind(name),
			Span:      ctx.SpanOf(decl),
			Signature: e.signature(ctx, value.ChildByFieldName("parameters")),
		})
		ctx.PushScope(name)
		engineWalkChildren(ctx, e, value)
		ctx.PopScope()
		ctx.ProcessedChildren = true
	}
	return false
}

// engineWalkChildren re-dispatches call extraction inside an arrow function
// body so references attribute to the declared symbol.
func engineWalkChildren(ctx *ExtractionContext, e *TypeScriptExtractor, node *sitter.Node) {
	var walk func(*sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Kind() {
		case "call_expression":
			e.extractCall(ctx, n)
		case "new_expression":
			e.extractNew(ctx, n)
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(node)
}

func (e *TypeScriptExtractor) extractClass(ctx *ExtractionContext, node *sitter.Node) bool {
	name := ctx.ChildFieldText(node, "name")
	if name == "" {
		return true
	}
	span := ctx.SpanOf(node)
	ctx.AddSymbol(SymbolDecl{Name: name, Kind: SymbolClass, Span: span})

	// extends / implements clauses live under class_heritage.
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() != "class_heritage" {
			continue
		}
		for _, base := range e.heritageNames(ctx, child) {
			ctx.AddRef(RawRef{Kind: RefImplements, Name: base, From: name, Span: span})
		}
	}
	return false
}

func (e *TypeScriptExtractor) heritageNames(ctx *ExtractionContext, node *sitter.Node) []string {
	var names []string
	var walk func(*sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		kind := n.Kind()
		if kind == "identifier" || kind == "type_identifier" {
			names = append(names, ctx.Text(n))
			return
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(node)
	return names
}

func (e *TypeScriptExtractor) extractInterface(ctx *ExtractionContext, node *sitter.Node) bool {
	name := ctx.ChildFieldText(node, "name")
	if name == "" {
		return true
	}
	ctx.AddSymbol(SymbolDecl{
		Name:      name,
		Kind:      SymbolSchema,
		Span:      ctx.SpanOf(node),
		Signature: e.interfaceFields(ctx, node.ChildByFieldName("body")),
	})
	return true
}

func (e *TypeScriptExtractor) extractTypeAlias(ctx *ExtractionContext, node *sitter.Node) bool {
	name := ctx.ChildFieldText(node, "name")
	if name == "" {
		return true
	}
	ctx.AddSymbol(SymbolDecl{Name: name, Kind: SymbolSchema, Span: ctx.SpanOf(node)})
	return true
}

func (e *TypeScriptExtractor) interfaceFields(ctx *ExtractionContext, body *sitter.Node) []Param {
	if body == nil {
		return nil
	}
	var sig []Param
	for i := uint(0); i < body.ChildCount(); i++ {
		member := body.Child(i)
		if member.Kind() != "property_signature" {
			continue
		}
		name := ctx.ChildFieldText(member, "name")
		if name == "" {
			continue
		}
		hint := strings.TrimPrefix(ctx.ChildFieldText(member, "type"), ": ")
		sig = append(sig, Param{Name: name, TypeHint: strings.TrimSpace(hint)})
	}
	return sig
}

func (e *TypeScriptExtractor) extractCall(ctx *ExtractionContext, node *sitter.Node) bool {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return false
	}
	callee := ctx.Text(fn)
	if callee == "" {
		return false
	}

	if verb, route, ok := e.httpCall(ctx, node, callee); ok {
		ctx.AddRef(RawRef{Kind: RefEndpoint, Name: verb + " " + route, Verb: verb, Route: route, Span: ctx.SpanOf(node)})
		return false
	}

	if idx := strings.LastIndex(callee, "."); idx >= 0 {
		callee = callee[idx+1:]
	}
	ctx.AddRef(RawRef{Kind: RefCall, Name: callee, Span: ctx.SpanOf(node)})
	return false
}

func (e *TypeScriptExtractor) extractNew(ctx *ExtractionContext, node *sitter.Node) bool {
	callee := ctx.ChildFieldText(node, "constructor")
	if callee == "" {
		return false
	}
	ctx.AddRef(RawRef{Kind: RefCall, Name: callee, Span: ctx.SpanOf(node)})
	return false
}

// httpCall recognizes fetch() and axios-style requests with literal URLs.
func (e *TypeScriptExtractor) httpCall(ctx *ExtractionContext, node *sitter.Node, callee string) (verb, route string, ok bool) {
	args := node.ChildByFieldName("arguments")
	argsText := ctx.Text(args)

	if callee == "fetch" {
		path := urlPath(firstQuoted(argsText))
		if path == "" {
			return "", "", false
		}
		verb = "GET"
		if m := quotedAfter(argsText, "method"); m != "" {
			verb = strings.ToUpper(m)
		}
		return verb, path, true
	}

	idx := strings.LastIndex(callee, ".")
	if idx < 0 {
		return "", "", false
	}
	receiver, method := callee[:idx], callee[idx+1:]
	v, known := routeVerbs[method]
	if !known {
		return "", "", false
	}
	if receiver != "axios" && receiver != "api" && receiver != "http" && !strings.HasSuffix(receiver, "Client") {
		return "", "", false
	}
	path := urlPath(firstQuoted(argsText))
	if path == "" {
		return "", "", false
	}
	return v, path, true
}

func (e *TypeScriptExtractor) signature(ctx *ExtractionContext, params *sitter.Node) []Param {
	if params == nil {
		return nil
	}
	var sig []Param
	for i := uint(0); i < params.ChildCount(); i++ {
		child := params.Child(i)
		kind := child.Kind()
		switch kind {
		case "identifier":
			sig = append(sig, Param{Name: ctx.Text(child)})
		case "required_parameter", "optional_parameter":
			name := ctx.ChildFieldText(child, "pattern")
			if name == "" {
				name = ctx.ChildText(child, "identifier")
			}
			if name == "" {
				continue
			}
			hint := strings.TrimSpace(strings.TrimPrefix(ctx.ChildFieldText(child, "type"), ":"))
			sig = append(sig, Param{Name: name, TypeHint: hint})
		}
	}
	return sig
}
