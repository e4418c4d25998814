package report

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"devguard/internal/engine/extract"
	"devguard/internal/engine/graph"
	"devguard/internal/engine/impact"
	"devguard/internal/engine/integrity"
)

func sampleSnapshot(t *testing.T) *graph.Snapshot {
	t.Helper()
	a := &extract.Contribution{
		Path: "a.py", Module: "a", Language: "python",
		Refs: []extract.RawRef{{Kind: extract.RefImport, Name: "b"}},
	}
	b := &extract.Contribution{
		Path: "b.py", Module: "b", Language: "python",
		Refs: []extract.RawRef{{Kind: extract.RefImport, Name: "a"}},
	}
	res, err := graph.NewBuilder(graph.Confidences{}).Build(context.Background(), []*extract.Contribution{a, b}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return &graph.Snapshot{Version: 3, BatchID: "batch-3", Graph: res.Graph, Coverage: res.Coverage}
}

func TestBuildGraphDocIsDeterministic(t *testing.T) {
	snap := sampleSnapshot(t)

	first, err := json.Marshal(BuildGraphDoc(snap))
	if err != nil {
		t.Fatal(err)
	}
	second, err := json.Marshal(BuildGraphDoc(snap))
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Error("graph document serialization must be stable")
	}
}

func TestWriteJSONRoundtrip(t *testing.T) {
	snap := sampleSnapshot(t)
	path := filepath.Join(t.TempDir(), "graph.json")

	if err := WriteJSON(BuildGraphDoc(snap), path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc GraphDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.SnapshotVersion != 3 || doc.BatchID != "batch-3" {
		t.Errorf("unexpected document header: %+v", doc)
	}
	if len(doc.Nodes) == 0 || len(doc.Edges) == 0 {
		t.Error("document must carry nodes and edges")
	}
}

func TestDOTGeneratorHighlightsCycles(t *testing.T) {
	snap := sampleSnapshot(t)

	var fileIDs []graph.NodeID
	for _, n := range snap.Graph.Nodes() {
		if n.Kind == graph.KindFile {
			fileIDs = append(fileIDs, n.ID)
		}
	}

	dot, err := NewDOTGenerator(snap.Graph).Generate([][]graph.NodeID{fileIDs})
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(dot, "digraph devguard") {
		t.Error("missing digraph header")
	}
	if !strings.Contains(dot, "color=\"red\"") {
		t.Error("cycle members must be highlighted")
	}
	if !strings.Contains(dot, "imports") {
		t.Error("edges must be labeled with their kind")
	}
}

func TestRenderFindings(t *testing.T) {
	rep := integrity.Report{
		SnapshotVersion: 5,
		Coverage:        0.9,
		Findings: []integrity.Finding{
			{Kind: integrity.FindingCycle, Severity: integrity.SeverityHigh, Evidence: []string{"a.py -imports-> b.py"}},
			{Kind: integrity.FindingOrphan, Severity: integrity.SeverityLow, Evidence: []string{"dead.py has no inbound references"}},
		},
	}

	md := RenderFindings(rep)
	for _, want := range []string{"Dependency Cycles (1)", "Orphans (1)", "a.py -imports-> b.py", "90.0%"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestRenderFindingsEmpty(t *testing.T) {
	md := RenderFindings(integrity.Report{SnapshotVersion: 1, Coverage: 1})
	if !strings.Contains(md, "No findings.") {
		t.Error("empty report must say so")
	}
}

func TestRenderImpactTable(t *testing.T) {
	res := &impact.Result{
		Change:   impact.ChangeRename,
		Coverage: 1,
		Impacted: []impact.Impacted{
			{Name: "svc.run", Path: "svc.py", Distance: 1, Confidence: 0.85},
		},
	}

	md := RenderImpact(res, "lib.util_fn")
	if !strings.Contains(md, "Rename lib.util_fn") {
		t.Error("header must name the change and target")
	}
	if !strings.Contains(md, "| 1 | 0.85 | svc.run | svc.py |") {
		t.Error("impacted rows must be tabulated")
	}
}
