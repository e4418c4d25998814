package integrity

import (
	"context"
	"fmt"

	"devguard/internal/core/errors"
	"devguard/internal/engine/graph"
)

// detectOrphans reports nodes nothing points at. Entry-point patterns
// exclude legitimately unreferenced roots; package Module nodes and
// Endpoint nodes are skipped because they are reached from outside the
// graph by construction.
func (a *Analyzer) detectOrphans(ctx context.Context, snap *graph.Snapshot) ([]Finding, error) {
	g := snap.Graph

	var findings []Finding
	for _, node := range g.Nodes() {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.CodeCancelled, "orphan detection aborted")
		}
		if node.Kind == graph.KindModule || node.Kind == graph.KindEndpoint {
			continue
		}
		if len(g.InEdges(node.ID)) > 0 {
			continue
		}
		if a.isEntryPoint(node) {
			continue
		}

		severity := SeverityLow
		if node.Kind == graph.KindFile {
			severity = SeverityMedium
		}
		findings = append(findings, Finding{
			Kind:     FindingOrphan,
			Severity: severity,
			NodeIDs:  []graph.NodeID{node.ID},
			Evidence: []string{fmt.Sprintf("%s %s has no inbound references (%s)", node.Kind, node.Name, node.Path)},
		})
	}
	sortFindings(findings)
	return findings, nil
}
