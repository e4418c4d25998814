package history

import (
	"devguard/internal/engine/graph"
	"devguard/internal/engine/integrity"
)

// FromAnalysis flattens a published snapshot and its integrity report into
// one run record.
func FromAnalysis(snap *graph.Snapshot, report integrity.Report) Run {
	run := Run{
		BatchID:         snap.BatchID,
		SnapshotVersion: snap.Version,
		NodeCount:       snap.Graph.NodeCount(),
		EdgeCount:       snap.Graph.EdgeCount(),
		UnparsedCount:   len(snap.Unparsed),
		UnresolvedCount: len(snap.Unresolved),
		Coverage:        snap.Coverage,
		Timestamp:       snap.CreatedAt,
	}
	for _, f := range report.Findings {
		switch f.Kind {
		case integrity.FindingCycle:
			run.CycleCount++
		case integrity.FindingGodObject:
			run.GodObjectCount++
		case integrity.FindingOrphan:
			run.OrphanCount++
		case integrity.FindingProductionRisk:
			run.RiskCount++
		}
	}
	return run
}
