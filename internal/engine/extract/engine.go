package extract

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// NodeHandler processes a node for a language-specific extractor.
// Returns true if the handler has processed children and the walker should stop.
type NodeHandler func(ctx *ExtractionContext, node *sitter.Node) bool

// ExtractionContext carries shared state/helpers used by all extractors.
type ExtractionContext struct {
	Source            []byte
	Out               *Contribution
	ProcessedChildren bool // If true, the walker will skip this node's children

	// scope tracks the innermost declared symbol enclosing the walk position,
	// so references can name their origin symbol.
	scope []string
}

func (c *ExtractionContext) ResetProcessedChildren() {
	c.ProcessedChildren = false
}

// EnclosingSymbol returns the name of the innermost declared symbol, or "".
func (c *ExtractionContext) EnclosingSymbol() string {
	if len(c.scope) == 0 {
		return ""
	}
	return c.scope[len(c.scope)-1]
}

func (c *ExtractionContext) PushScope(name string) { c.scope = append(c.scope, name) }

func (c *ExtractionContext) PopScope() {
	if len(c.scope) > 0 {
		c.scope = c.scope[:len(c.scope)-1]
	}
}

// ExtractorEngine walks the syntax tree and dispatches node handlers by kind.
type ExtractorEngine struct {
	handlers map[string]NodeHandler
	// scopeKinds are node kinds that open a symbol scope; the walker pushes
	// the declared name before descending and pops it after.
	scopeKinds map[string]bool
}

func NewExtractorEngine(handlers map[string]NodeHandler) *ExtractorEngine {
	return &ExtractorEngine{handlers: handlers, scopeKinds: map[string]bool{}}
}

// MarkScopeKind registers a node kind whose "name" field scopes its subtree.
func (e *ExtractorEngine) MarkScopeKind(kinds ...string) {
	for _, kind := range kinds {
		e.scopeKinds[kind] = true
	}
}

func (e *ExtractorEngine) Walk(ctx *ExtractionContext, node *sitter.Node) {
	if node == nil {
		return
	}

	kind := node.Kind()
	scoped := false
	if e.scopeKinds[kind] {
		if name := ctx.ChildFieldText(node, "name"); name != "" {
			ctx.PushScope(name)
			scoped = true
		}
	}

	ctx.ResetProcessedChildren()
	stop := false
	if handler, ok := e.handlers[kind]; ok {
		stop = handler(ctx, node)
	}

	if !stop && !ctx.ProcessedChildren {
		for i := uint(0); i < node.ChildCount(); i++ {
			e.Walk(ctx, node.Child(i))
		}
	}

	if scoped {
		ctx.PopScope()
	}
}

func (c *ExtractionContext) Text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if start >= end || end > uint(len(c.Source)) {
		return ""
	}
	return string(c.Source[start:end])
}

func (c *ExtractionContext) SpanOf(node *sitter.Node) Span {
	return Span{
		StartLine: int(node.StartPosition().Row) + 1,
		EndLine:   int(node.EndPosition().Row) + 1,
	}
}

func (c *ExtractionContext) ChildText(node *sitter.Node, kind string) string {
	if node == nil {
		return ""
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == kind {
			return c.Text(child)
		}
	}
	return ""
}

func (c *ExtractionContext) ChildFieldText(node *sitter.Node, field string) string {
	if node == nil {
		return ""
	}
	return c.Text(node.ChildByFieldName(field))
}

// AddSymbol appends a declaration to the contribution.
func (c *ExtractionContext) AddSymbol(decl SymbolDecl) {
	c.Out.Symbols = append(c.Out.Symbols, decl)
}

// AddRef appends a raw reference, filling the origin symbol from scope.
func (c *ExtractionContext) AddRef(ref RawRef) {
	if ref.From == "" {
		ref.From = c.EnclosingSymbol()
	}
	c.Out.Refs = append(c.Out.Refs, ref)
}
