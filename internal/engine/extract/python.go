package extract

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// PythonExtractor handles backend python sources: functions, classes, pydantic
// style schemas, and web-framework route declarations.
type PythonExtractor struct{}

var schemaBaseClasses = map[string]bool{
	"BaseModel":       true,
	"Schema":          true,
	"Model":           true,
	"TypedDict":       true,
	"NamedTuple":      true,
	"DeclarativeBase": true,
}

func (e *PythonExtractor) Extract(root *sitter.Node, source []byte, path string) (*Contribution, error) {
	out := &Contribution{
		Path:     path,
		Language: "python",
		Module:   ModuleName(path),
	}

	ctx := &ExtractionContext{Source: source, Out: out}
	engine := NewExtractorEngine(map[string]NodeHandler{
		"import_statement":      e.extractImport,
		"import_from_statement": e.extractFromImport,
		"function_definition":   e.extractFunction,
		"class_definition":      e.extractClass,
		"call":                  e.extractCall,
	})
	engine.MarkScopeKind("function_definition", "class_definition")
	engine.Walk(ctx, root)

	return out, nil
}

func (e *PythonExtractor) extractImport(ctx *ExtractionContext, node *sitter.Node) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "dotted_name":
			ctx.AddRef(RawRef{Kind: RefImport, Name: ctx.Text(child), Span: ctx.SpanOf(node)})
		case "aliased_import":
			if module := ctx.ChildText(child, "dotted_name"); module != "" {
				ctx.AddRef(RawRef{Kind: RefImport, Name: module, Span: ctx.SpanOf(node)})
			}
		}
	}
	return true
}

func (e *PythonExtractor) extractFromImport(ctx *ExtractionContext, node *sitter.Node) bool {
	// from a.b import c, d — record the source module once; imported names
	// surface later as call references if used.
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		kind := child.Kind()
		if kind == "dotted_name" || kind == "relative_import" {
			ctx.AddRef(RawRef{Kind: RefImport, Name: ctx.Text(child), Span: ctx.SpanOf(node)})
			return true
		}
	}
	return true
}

func (e *PythonExtractor) extractFunction(ctx *ExtractionContext, node *sitter.Node) bool {
	name := ctx.ChildFieldText(node, "name")
	if name == "" {
		return true
	}

	span := ctx.SpanOf(node)
	ctx.AddSymbol(SymbolDecl{
		Name:      name,
		Kind:      SymbolFunction,
		Span:      span,
		Signature: e.signature(ctx, node.ChildByFieldName("parameters")),
	})

	if verb, route, ok := routeFromDecorators(ctx, node); ok {
		endpoint := verb + " " + route
		ctx.AddSymbol(SymbolDecl{
			Name:  endpoint,
			Kind:  SymbolEndpoint,
			Span:  span,
			Verb:  verb,
			Route: route,
		})
		// The endpoint dispatches to its handler; changing the handler
		// reaches the endpoint through this edge.
		ctx.AddRef(RawRef{Kind: RefCall, Name: name, From: endpoint, Span: span})
	}
	return false // continue into body for calls
}

func (e *PythonExtractor) extractClass(ctx *ExtractionContext, node *sitter.Node) bool {
	name := ctx.ChildFieldText(node, "name")
	if name == "" {
		return true
	}

	span := ctx.SpanOf(node)
	kind := SymbolClass
	bases := e.superclasses(ctx, node)
	for _, base := range bases {
		short := base
		if idx := strings.LastIndex(base, "."); idx >= 0 {
			short = base[idx+1:]
		}
		if schemaBaseClasses[short] {
			kind = SymbolSchema
		}
	}
	if kind == SymbolClass && hasDecorator(ctx, node, "dataclass") {
		kind = SymbolSchema
	}

	ctx.AddSymbol(SymbolDecl{
		Name:      name,
		Kind:      kind,
		Span:      span,
		Signature: e.fieldSignature(ctx, node.ChildByFieldName("body")),
	})
	for _, base := range bases {
		ctx.AddRef(RawRef{Kind: RefImplements, Name: base, From: name, Span: span})
	}
	return false
}

func (e *PythonExtractor) extractCall(ctx *ExtractionContext, node *sitter.Node) bool {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return false
	}
	callee := ctx.Text(fn)
	if callee == "" {
		return false
	}

	if verb, route, ok := httpClientCall(ctx, node, callee); ok {
		ctx.AddRef(RawRef{Kind: RefEndpoint, Name: verb + " " + route, Verb: verb, Route: route, Span: ctx.SpanOf(node)})
		return false
	}

	// For attribute calls like svc.handler(), keep the trailing name; bare
	// identifiers pass through unchanged.
	if idx := strings.LastIndex(callee, "."); idx >= 0 {
		callee = callee[idx+1:]
	}
	ctx.AddRef(RawRef{Kind: RefCall, Name: callee, Span: ctx.SpanOf(node)})
	return false
}

func (e *PythonExtractor) signature(ctx *ExtractionContext, params *sitter.Node) []Param {
	if params == nil {
		return nil
	}
	var sig []Param
	for i := uint(0); i < params.ChildCount(); i++ {
		child := params.Child(i)
		switch child.Kind() {
		case "identifier":
			if name := ctx.Text(child); name != "self" && name != "cls" {
				sig = append(sig, Param{Name: name})
			}
		case "typed_parameter", "default_parameter", "typed_default_parameter":
			name := ctx.ChildText(child, "identifier")
			if name == "" {
				name = ctx.ChildFieldText(child, "name")
			}
			if name == "" || name == "self" || name == "cls" {
				continue
			}
			sig = append(sig, Param{Name: name, TypeHint: ctx.ChildFieldText(child, "type")})
		}
	}
	return sig
}

// fieldSignature collects annotated class-level fields, the shape pydantic
// models declare.
func (e *PythonExtractor) fieldSignature(ctx *ExtractionContext, body *sitter.Node) []Param {
	if body == nil {
		return nil
	}
	var sig []Param
	for i := uint(0); i < body.ChildCount(); i++ {
		stmt := body.Child(i)
		if stmt.Kind() != "expression_statement" {
			continue
		}
		for j := uint(0); j < stmt.ChildCount(); j++ {
			assign := stmt.Child(j)
			if assign.Kind() != "assignment" {
				continue
			}
			left := assign.ChildByFieldName("left")
			if left == nil || left.Kind() != "identifier" {
				continue
			}
			sig = append(sig, Param{
				Name:     ctx.Text(left),
				TypeHint: ctx.ChildFieldText(assign, "type"),
			})
		}
	}
	return sig
}

func (e *PythonExtractor) superclasses(ctx *ExtractionContext, node *sitter.Node) []string {
	args := node.ChildByFieldName("superclasses")
	if args == nil {
		return nil
	}
	var bases []string
	for i := uint(0); i < args.ChildCount(); i++ {
		child := args.Child(i)
		kind := child.Kind()
		if kind == "identifier" || kind == "attribute" {
			bases = append(bases, ctx.Text(child))
		}
	}
	return bases
}

var routeVerbs = map[string]string{
	"get": "GET", "post": "POST", "put": "PUT",
	"delete": "DELETE", "patch": "PATCH", "head": "HEAD",
}

// routeFromDecorators inspects decorators on the enclosing
// decorated_definition for flask/fastapi style route registrations.
func routeFromDecorators(ctx *ExtractionContext, node *sitter.Node) (verb, route string, ok bool) {
	parent := node.Parent()
	if parent == nil || parent.Kind() != "decorated_definition" {
		return "", "", false
	}
	for i := uint(0); i < parent.ChildCount(); i++ {
		dec := parent.Child(i)
		if dec.Kind() != "decorator" {
			continue
		}
		text := strings.TrimSpace(strings.TrimPrefix(ctx.Text(dec), "@"))
		if v, r, matched := parseRouteDecorator(text); matched {
			return v, r, true
		}
	}
	return "", "", false
}

func parseRouteDecorator(text string) (verb, route string, ok bool) {
	open := strings.Index(text, "(")
	if open < 0 {
		return "", "", false
	}
	callee := text[:open]
	idx := strings.LastIndex(callee, ".")
	if idx < 0 {
		return "", "", false
	}
	method := callee[idx+1:]

	route = firstQuoted(text[open:])
	if route == "" || !strings.HasPrefix(route, "/") {
		return "", "", false
	}

	if v, known := routeVerbs[method]; known {
		return v, route, true
	}
	if method == "route" {
		verb = "GET"
		if m := quotedAfter(text, "methods"); m != "" {
			verb = strings.ToUpper(m)
		}
		return verb, route, true
	}
	return "", "", false
}

func hasDecorator(ctx *ExtractionContext, node *sitter.Node, name string) bool {
	parent := node.Parent()
	if parent == nil || parent.Kind() != "decorated_definition" {
		return false
	}
	for i := uint(0); i < parent.ChildCount(); i++ {
		dec := parent.Child(i)
		if dec.Kind() != "decorator" {
			continue
		}
		text := strings.TrimPrefix(strings.TrimSpace(ctx.Text(dec)), "@")
		if text == name || strings.HasPrefix(text, name+"(") || strings.HasSuffix(strings.SplitN(text, "(", 2)[0], "."+name) {
			return true
		}
	}
	return false
}

// httpClientCall recognizes outbound HTTP calls made with requests/httpx
// style clients carrying a literal URL.
func httpClientCall(ctx *ExtractionContext, node *sitter.Node, callee string) (verb, route string, ok bool) {
	idx := strings.LastIndex(callee, ".")
	if idx < 0 {
		return "", "", false
	}
	receiver, method := callee[:idx], callee[idx+1:]
	v, known := routeVerbs[method]
	if !known || (receiver != "requests" && receiver != "httpx" && !strings.HasSuffix(receiver, "client")) {
		return "", "", false
	}

	args := node.ChildByFieldName("arguments")
	url := firstQuoted(ctx.Text(args))
	path := urlPath(url)
	if path == "" {
		return "", "", false
	}
	return v, path, true
}

// firstQuoted returns the first single- or double-quoted string in text.
func firstQuoted(text string) string {
	for i := 0; i < len(text); i++ {
		q := text[i]
		if q != '"' && q != '\'' {
			continue
		}
		if end := strings.IndexByte(text[i+1:], q); end >= 0 {
			return text[i+1 : i+1+end]
		}
		return ""
	}
	return ""
}

// quotedAfter returns the first quoted string appearing after a marker.
func quotedAfter(text, marker string) string {
	idx := strings.Index(text, marker)
	if idx < 0 {
		return ""
	}
	return firstQuoted(text[idx+len(marker):])
}

// urlPath strips scheme and host from a URL literal, keeping the path.
func urlPath(url string) string {
	if url == "" {
		return ""
	}
	if strings.HasPrefix(url, "/") {
		return url
	}
	if idx := strings.Index(url, "://"); idx >= 0 {
		rest := url[idx+3:]
		if slash := strings.Index(rest, "/"); slash >= 0 {
			return rest[slash:]
		}
	}
	return ""
}
