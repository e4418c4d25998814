package report

import (
	"fmt"
	"strings"

	"devguard/internal/engine/impact"
	"devguard/internal/engine/integrity"
)

var findingHeadings = []struct {
	kind  integrity.FindingKind
	title string
}{
	{integrity.FindingCycle, "Dependency Cycles"},
	{integrity.FindingGodObject, "God Objects"},
	{integrity.FindingOrphan, "Orphans"},
	{integrity.FindingProductionRisk, "Production Risks"},
}

// RenderFindings produces the markdown findings summary.
func RenderFindings(rep integrity.Report) string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "# Integrity Report\n\n")
	fmt.Fprintf(&buf, "Snapshot version %d, resolution coverage %.1f%%.\n\n", rep.SnapshotVersion, rep.Coverage*100)

	if len(rep.Findings) == 0 {
		buf.WriteString("No findings.\n")
		return buf.String()
	}

	for _, section := range findingHeadings {
		var matched []integrity.Finding
		for _, f := range rep.Findings {
			if f.Kind == section.kind {
				matched = append(matched, f)
			}
		}
		if len(matched) == 0 {
			continue
		}

		fmt.Fprintf(&buf, "## %s (%d)\n\n", section.title, len(matched))
		for _, f := range matched {
			fmt.Fprintf(&buf, "- **%s**", f.Severity)
			for _, line := range f.Evidence {
				fmt.Fprintf(&buf, "\n  - %s", line)
			}
			buf.WriteString("\n")
		}
		buf.WriteString("\n")
	}

	return buf.String()
}

// RenderImpact produces the markdown blast-radius summary for one simulation.
func RenderImpact(res *impact.Result, targetName string) string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "# Blast Radius: %s %s\n\n", res.Change, targetName)
	fmt.Fprintf(&buf, "Resolution coverage %.1f%%.\n\n", res.Coverage*100)

	if len(res.Impacted) == 0 {
		buf.WriteString("No dependents are affected.\n")
		return buf.String()
	}

	buf.WriteString("| Distance | Confidence | Name | Path |\n")
	buf.WriteString("|---|---|---|---|\n")
	for _, hit := range res.Impacted {
		fmt.Fprintf(&buf, "| %d | %.2f | %s | %s |\n", hit.Distance, hit.Confidence, hit.Name, hit.Path)
	}
	return buf.String()
}

// WriteText writes rendered output (markdown, DOT) atomically.
func WriteText(content, path string) error {
	return writeAtomic(path, []byte(content))
}
