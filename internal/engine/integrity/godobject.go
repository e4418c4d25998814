package integrity

import (
	"context"
	"fmt"

	"devguard/internal/core/errors"
	"devguard/internal/engine/graph"
)

var godObjectKinds = []graph.EdgeKind{
	graph.EdgeImports,
	graph.EdgeCalls,
	graph.EdgeReferencesSchema,
}

// detectGodObjects flags nodes whose coupling degree stands far above the
// graph average. The threshold is the larger of multiplier x mean degree and
// the absolute minimum, so small graphs do not produce noise.
func (a *Analyzer) detectGodObjects(ctx context.Context, snap *graph.Snapshot) ([]Finding, error) {
	g := snap.Graph
	nodes := g.Nodes()
	if len(nodes) == 0 {
		return nil, nil
	}

	degrees := make([]int, len(nodes))
	total := 0
	for i, node := range nodes {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.CodeCancelled, "god object detection aborted")
		}
		degrees[i] = g.Degree(node.ID, godObjectKinds...)
		total += degrees[i]
	}
	mean := float64(total) / float64(len(nodes))

	threshold := a.godMultiplier * mean
	if min := float64(a.godMinDegree); threshold < min {
		threshold = min
	}

	var findings []Finding
	for i, node := range nodes {
		degree := float64(degrees[i])
		if degree <= threshold {
			continue
		}
		severity := SeverityLow
		switch {
		case degree > 2*threshold:
			severity = SeverityHigh
		case degree > 1.5*threshold:
			severity = SeverityMedium
		}
		findings = append(findings, Finding{
			Kind:     FindingGodObject,
			Severity: severity,
			NodeIDs:  []graph.NodeID{node.ID},
			Evidence: []string{
				fmt.Sprintf("%s has degree %d (threshold %.1f, graph mean %.2f)", node.Name, degrees[i], threshold, mean),
			},
		})
	}
	sortFindings(findings)
	return findings, nil
}
