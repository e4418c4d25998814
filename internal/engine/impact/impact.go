// # internal/engine/impact/impact.go
package impact

import (
	"context"
	"sort"

	"devguard/internal/core/errors"
	"devguard/internal/engine/graph"
)

type ChangeKind string

const (
	ChangeRename          ChangeKind = "Rename"
	ChangeRemove          ChangeKind = "Remove"
	ChangeSignatureChange ChangeKind = "SignatureChange"
)

// ChangeSpec describes a simulated change to one node.
type ChangeSpec struct {
	TargetID graph.NodeID
	Kind     ChangeKind
}

// Impacted is one node reached by the simulation: its shortest-path distance
// from the target and the minimum edge confidence along that path.
type Impacted struct {
	NodeID     graph.NodeID
	Name       string
	Path       string
	Distance   int
	Confidence float64
}

// Result lists impacted nodes ordered by distance ascending, then
// confidence descending. The changed node itself is not included.
type Result struct {
	Target   graph.NodeID
	Change   ChangeKind
	Coverage float64
	Impacted []Impacted
}

// propagation restricts which edge kinds carry each change kind. A rename
// travels along anything that references the symbol's identity; a removal
// breaks every dependent; a signature change only reaches callers. Imports
// into the renamed node itself are a special case handled in Simulate.
var propagation = map[ChangeKind]map[graph.EdgeKind]bool{
	ChangeRename: {
		graph.EdgeReferencesSchema: true,
		graph.EdgeBindsEndpoint:    true,
		graph.EdgeCalls:            true,
	},
	ChangeRemove: {
		graph.EdgeImports:          true,
		graph.EdgeCalls:            true,
		graph.EdgeImplements:       true,
		graph.EdgeBindsEndpoint:    true,
		graph.EdgeReferencesSchema: true,
	},
	ChangeSignatureChange: {
		graph.EdgeCalls:         true,
		graph.EdgeBindsEndpoint: true,
	},
}

// Simulate performs a reverse breadth-first traversal from the target.
// Cycles are handled by the visited set; querying an unknown target fails
// with NOT_FOUND so "no impact" stays distinguishable from "bad target".
func Simulate(ctx context.Context, snap *graph.Snapshot, spec ChangeSpec) (*Result, error) {
	allowed, ok := propagation[spec.Kind]
	if !ok {
		return nil, errors.Newf(errors.CodeValidationError, "unknown change kind %q", spec.Kind)
	}
	g := snap.Graph
	if _, exists := g.Node(spec.TargetID); !exists {
		return nil, errors.Newf(errors.CodeNotFound, "target node %s not in snapshot", spec.TargetID)
	}

	type visit struct {
		id         graph.NodeID
		distance   int
		confidence float64
	}
	visited := map[graph.NodeID]bool{spec.TargetID: true}
	queue := []visit{{id: spec.TargetID, distance: 0, confidence: 1.0}}
	var impacted []Impacted

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.CodeCancelled, "simulation aborted")
		}
		current := queue[0]
		queue = queue[1:]

		in := g.InEdges(current.id)
		sort.Slice(in, func(i, j int) bool { return in[i].Source < in[j].Source })

		for _, e := range in {
			carries := allowed[e.Kind]
			// Renaming a file or module breaks anything that imports it by
			// name, so the first hop accepts import edges into the target
			// itself; indirect importers keep their old import lines working.
			if !carries && spec.Kind == ChangeRename && e.Kind == graph.EdgeImports && current.id == spec.TargetID {
				carries = true
			}
			if !carries || visited[e.Source] {
				continue
			}
			visited[e.Source] = true

			confidence := current.confidence
			if e.Confidence < confidence {
				confidence = e.Confidence
			}
			node, _ := g.Node(e.Source)
			impacted = append(impacted, Impacted{
				NodeID:     e.Source,
				Name:       node.Name,
				Path:       node.Path,
				Distance:   current.distance + 1,
				Confidence: confidence,
			})
			queue = append(queue, visit{id: e.Source, distance: current.distance + 1, confidence: confidence})
		}
	}

	sort.Slice(impacted, func(i, j int) bool {
		if impacted[i].Distance != impacted[j].Distance {
			return impacted[i].Distance < impacted[j].Distance
		}
		if impacted[i].Confidence != impacted[j].Confidence {
			return impacted[i].Confidence > impacted[j].Confidence
		}
		return impacted[i].NodeID < impacted[j].NodeID
	})

	return &Result{
		Target:   spec.TargetID,
		Change:   spec.Kind,
		Coverage: snap.Coverage,
		Impacted: impacted,
	}, nil
}
