package report

import (
	"fmt"
	"strings"

	"devguard/internal/engine/graph"
)

var kindFillColors = map[graph.NodeKind]string{
	graph.KindFile:      "white",
	graph.KindModule:    "lightsteelblue",
	graph.KindFunction:  "lightyellow",
	graph.KindClass:     "khaki",
	graph.KindEndpoint:  "lightpink",
	graph.KindSchema:    "palegreen",
	graph.KindComponent: "lavender",
}

type DOTGenerator struct {
	graph *graph.Graph
}

func NewDOTGenerator(g *graph.Graph) *DOTGenerator {
	return &DOTGenerator{graph: g}
}

// Generate renders the graph in Graphviz format. Nodes listed in cycles are
// drawn red and their internal edges bold so circular structure stands out.
func (d *DOTGenerator) Generate(cycles [][]graph.NodeID) (string, error) {
	var buf strings.Builder

	buf.WriteString("digraph devguard {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fontname=\"Helvetica\", fontsize=10];\n")
	buf.WriteString("  edge [fontname=\"Helvetica\", fontsize=8];\n")
	buf.WriteString("  splines=polyline;\n")
	buf.WriteString("  overlap=false;\n\n")

	cycleMembers := make(map[graph.NodeID]bool)
	for _, cycle := range cycles {
		for _, id := range cycle {
			cycleMembers[id] = true
		}
	}

	for _, n := range d.graph.Nodes() {
		label := fmt.Sprintf("%s\\n(%s)", escapeDOT(n.Name), strings.ToLower(string(n.Kind)))
		fill := kindFillColors[n.Kind]
		if fill == "" {
			fill = "white"
		}
		attrs := fmt.Sprintf("label=\"%s\", fillcolor=\"%s\"", label, fill)
		if cycleMembers[n.ID] {
			attrs += ", color=\"red\", penwidth=2"
		}
		fmt.Fprintf(&buf, "  \"%s\" [%s];\n", n.ID, attrs)
	}
	buf.WriteString("\n")

	for _, e := range d.graph.Edges() {
		label := strings.ToLower(string(e.Kind))
		attrs := ""
		if e.Confidence < 1.0 {
			attrs = fmt.Sprintf("label=\"%s %.2f\", style=dashed", label, e.Confidence)
		} else {
			attrs = fmt.Sprintf("label=\"%s\"", label)
		}
		if cycleMembers[e.Source] && cycleMembers[e.Target] {
			attrs += ", color=\"red\", penwidth=2"
		}
		fmt.Fprintf(&buf, "  \"%s\" -> \"%s\" [%s];\n", e.Source, e.Target, attrs)
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}

func escapeDOT(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}
