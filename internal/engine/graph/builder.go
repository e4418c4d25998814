package graph

import (
	"context"
	"log/slog"
	"path"
	"sort"
	"strings"

	"devguard/internal/core/errors"
	"devguard/internal/engine/extract"
	"devguard/internal/shared/util"
)

// Confidences holds the heuristic scores attached to non-exact matches.
type Confidences struct {
	VerbPath float64 // endpoint matched on verb + route
	PathOnly float64 // endpoint matched on route only
	OpenAPI  float64 // endpoint seeded from an OpenAPI document
}

func DefaultConfidences() Confidences {
	return Confidences{VerbPath: 0.85, PathOnly: 0.60, OpenAPI: 0.90}
}

const (
	confidenceExact       = 1.0
	confidenceSameSubtree = 0.9
	confidenceSameRoot    = 0.8
)

// EndpointSeed declares an endpoint known from an API document rather than
// from source code.
type EndpointSeed struct {
	Verb  string
	Route string
	Doc   string
}

// Result is one finished merge: the immutable graph plus its diagnostics.
type Result struct {
	Graph      *Graph
	Unparsed   []extract.UnparsedFile
	Unresolved []UnresolvedRef
	Coverage   float64
}

// Builder merges per-file contributions into one graph. Merge is sequential
// and deterministic: contributions are processed in sorted path order, so
// identical inputs always produce identical graphs regardless of the order
// extraction delivered them in.
type Builder struct {
	conf Confidences
}

func NewBuilder(conf Confidences) *Builder {
	def := DefaultConfidences()
	if conf.VerbPath <= 0 {
		conf.VerbPath = def.VerbPath
	}
	if conf.PathOnly <= 0 {
		conf.PathOnly = def.PathOnly
	}
	if conf.OpenAPI <= 0 {
		conf.OpenAPI = def.OpenAPI
	}
	return &Builder{conf: conf}
}

// build-time state, discarded once the snapshot is assembled
type mergeState struct {
	nodes   map[NodeID]Node
	byName  map[string][]NodeID // short symbol name -> declaring nodes
	modules map[string][]NodeID // dotted module name (and suffixes) -> nodes
	// symbol lookup within one file: path -> name -> node id
	fileSymbols map[string]map[string]NodeID
	fileNodes   map[string]NodeID
	endpoints   []NodeID
	seeded      map[NodeID]bool

	edges      map[edgeKey]Edge
	unresolved []UnresolvedRef
}

type edgeKey struct {
	source NodeID
	target NodeID
	kind   EdgeKind
}

func (s *mergeState) addNode(n Node) {
	if _, exists := s.nodes[n.ID]; exists {
		return
	}
	s.nodes[n.ID] = n
}

// addEdge deduplicates on (source, target, kind), keeping the highest
// confidence occurrence.
func (s *mergeState) addEdge(e Edge) {
	key := edgeKey{e.Source, e.Target, e.Kind}
	if existing, ok := s.edges[key]; ok && existing.Confidence >= e.Confidence {
		return
	}
	s.edges[key] = e
}

func (b *Builder) Build(ctx context.Context, contributions []*extract.Contribution, unparsed []extract.UnparsedFile, seeds []EndpointSeed) (*Result, error) {
	ordered := make([]*extract.Contribution, len(contributions))
	copy(ordered, contributions)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Path < ordered[j].Path })

	state := &mergeState{
		nodes:       make(map[NodeID]Node),
		byName:      make(map[string][]NodeID),
		modules:     make(map[string][]NodeID),
		fileSymbols: make(map[string]map[string]NodeID),
		fileNodes:   make(map[string]NodeID),
		seeded:      make(map[NodeID]bool),
		edges:       make(map[edgeKey]Edge),
	}

	// Pass 1: declare every node so resolution sees the full index.
	for _, c := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.CodeCancelled, "merge aborted")
		}
		b.declareFile(state, c)
	}
	b.declarePackages(state, ordered)
	b.applySeeds(state, seeds)

	// Pass 2: resolve references into edges.
	for _, c := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.CodeCancelled, "merge aborted")
		}
		b.resolveRefs(state, c)
	}

	edges := make([]Edge, 0, len(state.edges))
	for _, e := range state.edges {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		if edges[i].Target != edges[j].Target {
			return edges[i].Target < edges[j].Target
		}
		return edges[i].Kind < edges[j].Kind
	})

	coverage := 1.0
	if total := len(ordered) + len(unparsed); total > 0 {
		coverage = float64(len(ordered)) / float64(total)
	}

	if len(state.unresolved) > 0 {
		slog.Debug("merge finished with unresolved references", "count", len(state.unresolved))
	}

	return &Result{
		Graph:      newGraph(state.nodes, edges),
		Unparsed:   unparsed,
		Unresolved: state.unresolved,
		Coverage:   coverage,
	}, nil
}

func (b *Builder) declareFile(state *mergeState, c *extract.Contribution) {
	path := util.NormalizePath(c.Path)

	fileNode := Node{
		ID:       MakeNodeID(path, path),
		Kind:     KindFile,
		Name:     path,
		Language: c.Language,
		Path:     path,
	}
	state.addNode(fileNode)
	state.fileNodes[path] = fileNode.ID
	registerModule(state, c.Module, fileNode.ID)

	symbols := make(map[string]NodeID, len(c.Symbols))
	state.fileSymbols[path] = symbols

	for _, decl := range c.Symbols {
		qualified := decl.Name
		if c.Module != "" {
			qualified = c.Module + "." + decl.Name
		}
		node := Node{
			ID:        MakeNodeID(path, qualified),
			Kind:      NodeKind(decl.Kind),
			Name:      qualified,
			Language:  c.Language,
			Path:      path,
			Signature: decl.Signature,
			Verb:      decl.Verb,
			Route:     normalizeRoute(decl.Route),
		}
		state.addNode(node)
		symbols[decl.Name] = node.ID
		state.byName[decl.Name] = append(state.byName[decl.Name], node.ID)
		if node.Kind == KindEndpoint {
			state.endpoints = append(state.endpoints, node.ID)
		}
	}
}

// declarePackages emits one Module node per directory that contains parsed
// files, so imports of whole packages resolve.
func (b *Builder) declarePackages(state *mergeState, contributions []*extract.Contribution) {
	dirs := make(map[string]bool)
	for _, c := range contributions {
		path := util.NormalizePath(c.Path)
		for {
			idx := strings.LastIndex(path, "/")
			if idx < 0 {
				break
			}
			path = path[:idx]
			dirs[path] = true
		}
	}
	for _, dir := range util.SortedStringKeys(dirs) {
		dotted := strings.ReplaceAll(dir, "/", ".")
		node := Node{
			ID:   MakeNodeID(dir, dotted),
			Kind: KindModule,
			Name: dotted,
			Path: dir,
		}
		state.addNode(node)
		registerModule(state, dotted, node.ID)
	}
}

// registerModule indexes a dotted module name under every dot-suffix, so
// "src.db.session" answers lookups for "db.session" and "session" too.
func registerModule(state *mergeState, module string, id NodeID) {
	if module == "" {
		return
	}
	name := module
	for {
		state.modules[name] = appendUnique(state.modules[name], id)
		idx := strings.Index(name, ".")
		if idx < 0 {
			return
		}
		name = name[idx+1:]
	}
}

func appendUnique(ids []NodeID, id NodeID) []NodeID {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func (b *Builder) applySeeds(state *mergeState, seeds []EndpointSeed) {
	for _, seed := range seeds {
		verb := strings.ToUpper(strings.TrimSpace(seed.Verb))
		route := normalizeRoute(seed.Route)
		if verb == "" || route == "" {
			continue
		}

		// An endpoint already declared in code is marked seeded, raising
		// binding confidence; otherwise the document itself declares it.
		matched := false
		for _, id := range state.endpoints {
			node := state.nodes[id]
			if node.Verb == verb && routesEqual(node.Route, route) {
				state.seeded[id] = true
				matched = true
			}
		}
		if matched {
			continue
		}

		doc := util.NormalizePath(seed.Doc)
		name := verb + " " + route
		node := Node{
			ID:    MakeNodeID(doc, name),
			Kind:  KindEndpoint,
			Name:  name,
			Path:  doc,
			Verb:  verb,
			Route: route,
		}
		state.addNode(node)
		state.endpoints = append(state.endpoints, node.ID)
		state.seeded[node.ID] = true
	}
}

func (b *Builder) resolveRefs(state *mergeState, c *extract.Contribution) {
	path := util.NormalizePath(c.Path)

	for _, ref := range c.Refs {
		source := b.sourceNode(state, path, ref)
		provenance := Provenance{File: path, StartLine: ref.Span.StartLine, EndLine: ref.Span.EndLine}

		switch ref.Kind {
		case extract.RefImport:
			b.resolveImport(state, source, path, ref, provenance)
		case extract.RefCall, extract.RefImplements:
			b.resolveSymbolRef(state, source, path, ref, provenance)
		case extract.RefEndpoint:
			b.resolveEndpointRef(state, source, ref, provenance)
		}
	}
}

// sourceNode finds the node an edge originates from: the enclosing declared
// symbol when known, else the file itself.
func (b *Builder) sourceNode(state *mergeState, path string, ref extract.RawRef) NodeID {
	if ref.From != "" {
		if id, ok := state.fileSymbols[path][ref.From]; ok {
			return id
		}
	}
	return state.fileNodes[path]
}

func (b *Builder) resolveImport(state *mergeState, source NodeID, path string, ref extract.RawRef, prov Provenance) {
	name := importLookupName(path, ref.Name)
	if name == "" {
		b.dropRef(state, path, ref)
		return
	}

	candidates := state.modules[name]
	target, confidence, ok := b.pickCandidate(state, path, candidates)
	if !ok {
		b.dropRef(state, path, ref)
		return
	}
	if target == source {
		return // self-import noise from suffix indexing
	}
	state.addEdge(Edge{Source: source, Target: target, Kind: EdgeImports, Confidence: confidence, Provenance: prov})
}

// importLookupName converts raw import strings into the dotted form used by
// the module index. Relative JS paths resolve against the importing file.
func importLookupName(path, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "." || raw == ".." {
		return ""
	}
	if strings.HasPrefix(raw, "./") || strings.HasPrefix(raw, "../") {
		dir := ""
		if idx := strings.LastIndex(path, "/"); idx >= 0 {
			dir = path[:idx]
		}
		resolved := util.NormalizePath(dir + "/" + raw)
		return strings.ReplaceAll(resolved, "/", ".")
	}
	raw = strings.TrimPrefix(raw, "crate::")
	raw = strings.ReplaceAll(raw, "::", ".")
	return strings.ReplaceAll(raw, "/", ".")
}

func (b *Builder) resolveSymbolRef(state *mergeState, source NodeID, path string, ref extract.RawRef, prov Provenance) {
	name := ref.Name
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}

	candidates := state.byName[name]
	target, confidence, ok := b.pickCandidate(state, path, candidates)
	if !ok {
		b.dropRef(state, path, ref)
		return
	}

	kind := EdgeCalls
	if ref.Kind == extract.RefImplements {
		kind = EdgeImplements
	} else if node, exists := state.nodes[target]; exists && node.Kind == KindSchema {
		kind = EdgeReferencesSchema
	}
	state.addEdge(Edge{Source: source, Target: target, Kind: kind, Confidence: confidence, Provenance: prov})
}

func (b *Builder) resolveEndpointRef(state *mergeState, source NodeID, ref extract.RawRef, prov Provenance) {
	verb := strings.ToUpper(ref.Verb)
	route := normalizeRoute(ref.Route)

	var verbMatch, pathMatch NodeID
	for _, id := range state.endpoints {
		node := state.nodes[id]
		if !routesEqual(node.Route, route) {
			continue
		}
		if node.Verb == verb {
			if verbMatch == "" || state.nodes[verbMatch].Path > node.Path {
				verbMatch = id
			}
		} else if pathMatch == "" || state.nodes[pathMatch].Path > node.Path {
			pathMatch = id
		}
	}

	var target NodeID
	var confidence float64
	switch {
	case verbMatch != "":
		target = verbMatch
		confidence = b.conf.VerbPath
		if state.seeded[target] {
			confidence = b.conf.OpenAPI
		}
	case pathMatch != "":
		target = pathMatch
		confidence = b.conf.PathOnly
	default:
		b.dropRef(state, state.nodes[source].Path, ref)
		return
	}
	state.addEdge(Edge{Source: source, Target: target, Kind: EdgeBindsEndpoint, Confidence: confidence, Provenance: prov})
}

// pickCandidate applies the resolution ladder: a unique match is exact; an
// ambiguous short name is tie-broken by path proximity, preferring the same
// directory subtree, then the same top-level package.
func (b *Builder) pickCandidate(state *mergeState, sourcePath string, candidates []NodeID) (NodeID, float64, bool) {
	switch len(candidates) {
	case 0:
		return "", 0, false
	case 1:
		return candidates[0], confidenceExact, true
	}

	// Declarations in the referring file itself win outright.
	for _, id := range candidates {
		if state.nodes[id].Path == sourcePath {
			return id, confidenceExact, true
		}
	}

	best := candidates[0]
	bestDepth := util.CommonDirDepth(sourcePath, state.nodes[best].Path)
	for _, id := range candidates[1:] {
		depth := util.CommonDirDepth(sourcePath, state.nodes[id].Path)
		if depth > bestDepth || (depth == bestDepth && state.nodes[id].Path < state.nodes[best].Path) {
			best = id
			bestDepth = depth
		}
	}

	confidence := confidenceSameRoot
	if dir := path.Dir(sourcePath); dir != "." && util.HasPathPrefix(state.nodes[best].Path, dir) {
		confidence = confidenceSameSubtree
	}
	return best, confidence, true
}

func (b *Builder) dropRef(state *mergeState, path string, ref extract.RawRef) {
	state.unresolved = append(state.unresolved, UnresolvedRef{
		Name: ref.Name,
		Kind: ref.Kind,
		Path: path,
		Span: ref.Span,
	})
}

// normalizeRoute canonicalizes a route pattern: trailing slash removed and
// path parameters ({id}, :id, <id>) collapsed to a wildcard segment.
func normalizeRoute(route string) string {
	route = strings.TrimSpace(route)
	if route == "" {
		return ""
	}
	if route != "/" {
		route = strings.TrimSuffix(route, "/")
	}
	segments := strings.Split(route, "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if seg[0] == '{' || seg[0] == ':' || seg[0] == '<' {
			segments[i] = "*"
		}
	}
	return strings.Join(segments, "/")
}

// routesEqual matches two normalized routes segment-wise; a wildcard segment
// on either side matches any concrete segment.
func routesEqual(a, b string) bool {
	if a == b {
		return true
	}
	as := strings.Split(a, "/")
	bs := strings.Split(b, "/")
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if as[i] != bs[i] && as[i] != "*" && bs[i] != "*" {
			return false
		}
	}
	return true
}
