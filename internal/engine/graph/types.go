// # internal/engine/graph/types.go
package graph

import (
	"encoding/hex"
	"sort"

	"github.com/cespare/xxhash/v2"

	"devguard/internal/engine/extract"
)

// NodeID is the stable identity of a graph node: the xxhash64 of the
// normalized path and the qualified symbol name. Identical inputs always
// produce identical ids across rebuilds.
type NodeID string

func MakeNodeID(path, qualifiedName string) NodeID {
	h := xxhash.New()
	h.WriteString(path)
	h.Write([]byte{0})
	h.WriteString(qualifiedName)
	return NodeID(hex.EncodeToString(h.Sum(nil)))
}

type NodeKind string

const (
	KindFile      NodeKind = "File"
	KindModule    NodeKind = "Module"
	KindFunction  NodeKind = "Function"
	KindClass     NodeKind = "Class"
	KindEndpoint  NodeKind = "Endpoint"
	KindSchema    NodeKind = "Schema"
	KindComponent NodeKind = "Component"
)

type EdgeKind string

const (
	EdgeImports          EdgeKind = "Imports"
	EdgeCalls            EdgeKind = "Calls"
	EdgeImplements       EdgeKind = "Implements"
	EdgeBindsEndpoint    EdgeKind = "BindsEndpoint"
	EdgeReferencesSchema EdgeKind = "ReferencesSchema"
)

// Node is immutable once placed in a snapshot.
type Node struct {
	ID        NodeID
	Kind      NodeKind
	Name      string // qualified name
	Language  string
	Path      string
	Signature []extract.Param
	// Verb and Route are populated for endpoint nodes only.
	Verb  string
	Route string
}

// Provenance points at the source location that implied an edge.
type Provenance struct {
	File      string
	StartLine int
	EndLine   int
}

// Edge carries a confidence in [0,1]: 1.0 for syntactically exact matches,
// lower for heuristic bindings. Multiple edges between the same pair with
// different kinds are permitted.
type Edge struct {
	Source     NodeID
	Target     NodeID
	Kind       EdgeKind
	Confidence float64
	Provenance Provenance
}

// UnresolvedRef is the non-fatal diagnostic left behind when a reference
// matched no declared node and its edge was dropped.
type UnresolvedRef struct {
	Name string
	Kind extract.RefKind
	Path string
	Span extract.Span
}

// Graph is an immutable directed multigraph. Adjacency is precomputed at
// build time; all accessors are safe for concurrent readers.
type Graph struct {
	nodes   map[NodeID]Node
	edges   []Edge
	forward map[NodeID][]int
	reverse map[NodeID][]int
}

func newGraph(nodes map[NodeID]Node, edges []Edge) *Graph {
	g := &Graph{
		nodes:   nodes,
		edges:   edges,
		forward: make(map[NodeID][]int),
		reverse: make(map[NodeID][]int),
	}
	for i, e := range edges {
		g.forward[e.Source] = append(g.forward[e.Source], i)
		g.reverse[e.Target] = append(g.reverse[e.Target], i)
	}
	return g
}

func (g *Graph) NodeCount() int { return len(g.nodes) }
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Node returns the node for an id.
func (g *Graph) Node(id NodeID) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes sorted by id for deterministic iteration.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns all edges sorted by (source, target, kind).
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		if out[i].Target != out[j].Target {
			return out[i].Target < out[j].Target
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// OutEdges returns the edges leaving a node.
func (g *Graph) OutEdges(id NodeID) []Edge {
	return g.edgesAt(g.forward[id])
}

// InEdges returns the edges arriving at a node.
func (g *Graph) InEdges(id NodeID) []Edge {
	return g.edgesAt(g.reverse[id])
}

func (g *Graph) edgesAt(indices []int) []Edge {
	if len(indices) == 0 {
		return nil
	}
	out := make([]Edge, 0, len(indices))
	for _, idx := range indices {
		out = append(out, g.edges[idx])
	}
	return out
}

// Degree counts in+out edges restricted to the given kinds; with no kinds it
// counts every edge.
func (g *Graph) Degree(id NodeID, kinds ...EdgeKind) int {
	match := func(e Edge) bool {
		if len(kinds) == 0 {
			return true
		}
		for _, k := range kinds {
			if e.Kind == k {
				return true
			}
		}
		return false
	}
	count := 0
	for _, idx := range g.forward[id] {
		if match(g.edges[idx]) {
			count++
		}
	}
	for _, idx := range g.reverse[id] {
		if match(g.edges[idx]) {
			count++
		}
	}
	return count
}
