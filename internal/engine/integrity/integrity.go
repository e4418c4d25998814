// # internal/engine/integrity/integrity.go
package integrity

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gobwas/glob"

	"devguard/internal/core/errors"
	"devguard/internal/engine/graph"
	"devguard/internal/shared/observability"
)

type FindingKind string

const (
	FindingCycle          FindingKind = "Cycle"
	FindingGodObject      FindingKind = "GodObject"
	FindingOrphan         FindingKind = "Orphan"
	FindingProductionRisk FindingKind = "ProductionRisk"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type Finding struct {
	Kind     FindingKind
	Severity Severity
	NodeIDs  []graph.NodeID
	Evidence []string
}

// Report always carries the coverage ratio so consumers can weigh findings
// from partially parsed inputs.
type Report struct {
	SnapshotVersion uint64
	Coverage        float64
	Findings        []Finding
}

// Config mirrors the [integrity] config section.
type Config struct {
	GodObjectMultiplier float64
	GodObjectMinDegree  int
	EntryPoints         []string
	Risk                RiskConfig
}

// Analyzer runs the four detectors over one immutable snapshot. All
// detectors are read-only, so they run concurrently.
type Analyzer struct {
	godMultiplier float64
	godMinDegree  int
	entryGlobs    []glob.Glob
	risk          *RiskScanner
}

func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if cfg.GodObjectMultiplier <= 0 {
		cfg.GodObjectMultiplier = 3.0
	}
	if cfg.GodObjectMinDegree <= 0 {
		cfg.GodObjectMinDegree = 10
	}

	globs := make([]glob.Glob, 0, len(cfg.EntryPoints))
	for _, pattern := range cfg.EntryPoints {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeValidationError, "invalid entry point pattern")
		}
		globs = append(globs, g)
	}

	risk, err := NewRiskScanner(cfg.Risk)
	if err != nil {
		return nil, err
	}

	return &Analyzer{
		godMultiplier: cfg.GodObjectMultiplier,
		godMinDegree:  cfg.GodObjectMinDegree,
		entryGlobs:    globs,
		risk:          risk,
	}, nil
}

func (a *Analyzer) Run(ctx context.Context, snap *graph.Snapshot) (Report, error) {
	type task struct {
		name string
		run  func(context.Context, *graph.Snapshot) ([]Finding, error)
	}
	tasks := []task{
		{"cycles", a.detectCycles},
		{"god_objects", a.detectGodObjects},
		{"orphans", a.detectOrphans},
		{"production_risk", a.detectRisks},
	}

	results := make([][]Finding, len(tasks))
	errs := make([]error, len(tasks))

	var wg sync.WaitGroup
	for i, t := range tasks {
		wg.Add(1)
		go func(i int, t task) {
			defer wg.Done()
			start := time.Now()
			results[i], errs[i] = t.run(ctx, snap)
			observability.AnalysisDuration.WithLabelValues(t.name).Observe(time.Since(start).Seconds())
		}(i, t)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return Report{}, err
		}
	}

	var findings []Finding
	for _, r := range results {
		findings = append(findings, r...)
	}
	return Report{
		SnapshotVersion: snap.Version,
		Coverage:        snap.Coverage,
		Findings:        findings,
	}, nil
}

func (a *Analyzer) isEntryPoint(node graph.Node) bool {
	for _, g := range a.entryGlobs {
		if g.Match(node.Path) || g.Match(node.Name) {
			return true
		}
	}
	return false
}

func sortFindings(findings []Finding) {
	sort.Slice(findings, func(i, j int) bool {
		if len(findings[i].NodeIDs) > 0 && len(findings[j].NodeIDs) > 0 &&
			findings[i].NodeIDs[0] != findings[j].NodeIDs[0] {
			return findings[i].NodeIDs[0] < findings[j].NodeIDs[0]
		}
		if len(findings[i].Evidence) > 0 && len(findings[j].Evidence) > 0 {
			return findings[i].Evidence[0] < findings[j].Evidence[0]
		}
		return len(findings[i].NodeIDs) > len(findings[j].NodeIDs)
	})
}
