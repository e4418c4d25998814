package integrity

import (
	"context"
	"fmt"
	"sort"

	"devguard/internal/core/errors"
	"devguard/internal/engine/graph"
)

// detectCycles computes strongly connected components with Tarjan's
// algorithm restricted to Imports and Calls edges. Every SCC of size > 1 is
// a finding; so is a single node with a Calls self-loop.
func (a *Analyzer) detectCycles(ctx context.Context, snap *graph.Snapshot) ([]Finding, error) {
	g := snap.Graph
	nodes := g.Nodes()

	adjacency := make(map[graph.NodeID][]graph.Edge, len(nodes))
	for _, node := range nodes {
		for _, e := range g.OutEdges(node.ID) {
			if e.Kind == graph.EdgeImports || e.Kind == graph.EdgeCalls {
				adjacency[node.ID] = append(adjacency[node.ID], e)
			}
		}
	}

	t := &tarjan{
		adjacency: adjacency,
		index:     make(map[graph.NodeID]int),
		lowlink:   make(map[graph.NodeID]int),
		onStack:   make(map[graph.NodeID]bool),
	}
	for _, node := range nodes {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.CodeCancelled, "cycle detection aborted")
		}
		if _, seen := t.index[node.ID]; !seen {
			t.strongConnect(node.ID)
		}
	}

	var findings []Finding
	for _, component := range t.components {
		if len(component) == 1 && !hasSelfCall(adjacency, component[0]) {
			continue
		}
		sort.Slice(component, func(i, j int) bool { return component[i] < component[j] })

		members := make(map[graph.NodeID]bool, len(component))
		for _, id := range component {
			members[id] = true
		}
		var evidence []string
		for _, id := range component {
			for _, e := range adjacency[id] {
				if members[e.Target] {
					evidence = append(evidence, edgeEvidence(g, e))
				}
			}
		}
		sort.Strings(evidence)

		severity := SeverityMedium
		if len(component) >= 4 {
			severity = SeverityHigh
		}
		findings = append(findings, Finding{
			Kind:     FindingCycle,
			Severity: severity,
			NodeIDs:  component,
			Evidence: evidence,
		})
	}
	sortFindings(findings)
	return findings, nil
}

func hasSelfCall(adjacency map[graph.NodeID][]graph.Edge, id graph.NodeID) bool {
	for _, e := range adjacency[id] {
		if e.Target == id && e.Kind == graph.EdgeCalls {
			return true
		}
	}
	return false
}

func edgeEvidence(g *graph.Graph, e graph.Edge) string {
	source, _ := g.Node(e.Source)
	target, _ := g.Node(e.Target)
	return fmt.Sprintf("%s -%s-> %s (%s:%d)", source.Name, e.Kind, target.Name, e.Provenance.File, e.Provenance.StartLine)
}

type tarjan struct {
	adjacency  map[graph.NodeID][]graph.Edge
	index      map[graph.NodeID]int
	lowlink    map[graph.NodeID]int
	onStack    map[graph.NodeID]bool
	stack      []graph.NodeID
	counter    int
	components [][]graph.NodeID
}

func (t *tarjan) strongConnect(v graph.NodeID) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, e := range t.adjacency[v] {
		w := e.Target
		if _, seen := t.index[w]; !seen {
			t.strongConnect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] && t.index[w] < t.lowlink[v] {
			t.lowlink[v] = t.index[w]
		}
	}

	if t.lowlink[v] != t.index[v] {
		return
	}
	var component []graph.NodeID
	for {
		n := len(t.stack) - 1
		w := t.stack[n]
		t.stack = t.stack[:n]
		t.onStack[w] = false
		component = append(component, w)
		if w == v {
			break
		}
	}
	t.components = append(t.components, component)
}
