package integrity

import (
	"context"
	"fmt"
	"math"
	"path"
	"regexp"
	"sort"
	"strings"

	"devguard/internal/core/errors"
	"devguard/internal/engine/graph"
	"devguard/internal/shared/util"
)

// RiskConfig mirrors the [integrity.risk] config section.
type RiskConfig struct {
	Disabled         bool
	TodoThreshold    int
	MinTokenLength   int
	EntropyThreshold float64
	Patterns         []PatternConfig
}

type PatternConfig struct {
	Name     string
	Regex    string
	Severity Severity
}

type compiledPattern struct {
	name     string
	severity Severity
	re       *regexp.Regexp
}

// RiskScanner finds production-readiness problems in raw source text:
// secret-like strings, debug flags left enabled, console logging, TODO
// density, and committed sensitive files.
type RiskScanner struct {
	todoThreshold    int
	minTokenLength   int
	entropyThreshold float64
	patterns         []compiledPattern
	debugFlagRE      *regexp.Regexp
	consoleRE        *regexp.Regexp
	todoRE           *regexp.Regexp
	contextVarRE     *regexp.Regexp
	quotedValueRE    *regexp.Regexp
}

var sensitiveFilenames = []string{
	".env", "id_rsa", "id_dsa", "id_ecdsa", "master.key",
	"credentials.json", "service-account.json", ".npmrc", ".pypirc",
}

func NewRiskScanner(cfg RiskConfig) (*RiskScanner, error) {
	if cfg.Disabled {
		return nil, nil
	}
	if cfg.TodoThreshold <= 0 {
		cfg.TodoThreshold = 10
	}
	if cfg.MinTokenLength <= 0 {
		cfg.MinTokenLength = 20
	}
	if cfg.EntropyThreshold <= 0 {
		cfg.EntropyThreshold = 4.0
	}

	builtIn := []PatternConfig{
		{Name: "aws-access-key-id", Severity: SeverityHigh, Regex: `\bAKIA[0-9A-Z]{16}\b`},
		{Name: "github-pat", Severity: SeverityHigh, Regex: `\bghp_[A-Za-z0-9]{36}\b`},
		{Name: "stripe-live-secret", Severity: SeverityHigh, Regex: `\bsk_live_[A-Za-z0-9]{16,}\b`},
		{Name: "slack-token", Severity: SeverityHigh, Regex: `\bxox[baprs]-[A-Za-z0-9-]{10,}\b`},
		{Name: "private-key-block", Severity: SeverityCritical, Regex: `-----BEGIN (?:RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY-----`},
	}

	patterns := make([]compiledPattern, 0, len(builtIn)+len(cfg.Patterns))
	for _, p := range append(builtIn, cfg.Patterns...) {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, errors.New(errors.CodeValidationError, "risk pattern name must not be empty")
		}
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeValidationError, fmt.Sprintf("compile risk pattern %q", name))
		}
		severity := p.Severity
		if severity == "" {
			severity = SeverityMedium
		}
		patterns = append(patterns, compiledPattern{name: name, severity: severity, re: re})
	}

	return &RiskScanner{
		todoThreshold:    cfg.TodoThreshold,
		minTokenLength:   cfg.MinTokenLength,
		entropyThreshold: cfg.EntropyThreshold,
		patterns:         patterns,
		debugFlagRE:      regexp.MustCompile(`(?i)\bDEBUG\s*=\s*True\b|debug\s*=\s*True|\bALLOWED_HOSTS\s*=\s*\[\s*['"]\*['"]|allow_origins\s*=\s*\[\s*['"]\*['"]|Access-Control-Allow-Origin['"]?\s*[:=]\s*['"]\*`),
		consoleRE:        regexp.MustCompile(`(?m)^\s*(?:print\(|console\.(?:log|debug)\()`),
		todoRE:           regexp.MustCompile(`(?i)\b(TODO|FIXME|HACK|XXX)\b`),
		contextVarRE:     regexp.MustCompile(`(?i)\b(password|passwd|pwd|secret|api[_-]?key|token|auth[_-]?token|access[_-]?key|private[_-]?key|client[_-]?secret)\b`),
		quotedValueRE:    regexp.MustCompile(`"([^"\r\n]{4,})"|'([^'\r\n]{4,})'`),
	}, nil
}

func (a *Analyzer) detectRisks(ctx context.Context, snap *graph.Snapshot) ([]Finding, error) {
	if a.risk == nil {
		return nil, nil
	}

	docs := make([]int, len(snap.Documents))
	for i := range docs {
		docs[i] = i
	}
	sort.Slice(docs, func(i, j int) bool {
		return snap.Documents[docs[i]].Path < snap.Documents[docs[j]].Path
	})

	var findings []Finding
	for _, idx := range docs {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.CodeCancelled, "risk scan aborted")
		}
		doc := snap.Documents[idx]
		findings = append(findings, a.risk.Scan(snap.Graph, doc.Path, doc.Content)...)
	}
	return findings, nil
}

// Scan inspects one document and returns ProductionRisk findings attached
// to its File node.
func (s *RiskScanner) Scan(g *graph.Graph, docPath string, content []byte) []Finding {
	normalized := util.NormalizePath(docPath)
	owner := s.fileNode(g, normalized)
	text := string(content)

	var findings []Finding
	add := func(severity Severity, evidence string) {
		findings = append(findings, Finding{
			Kind:     FindingProductionRisk,
			Severity: severity,
			NodeIDs:  owner,
			Evidence: []string{evidence},
		})
	}

	if base := strings.ToLower(path.Base(normalized)); s.sensitiveName(base) {
		add(SeverityHigh, fmt.Sprintf("%s: sensitive file committed", normalized))
	}

	for _, p := range s.patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			line := lineOf(text, loc[0])
			add(p.severity, fmt.Sprintf("%s:%d: %s", normalized, line, p.name))
		}
	}

	for _, loc := range s.debugFlagRE.FindAllStringIndex(text, -1) {
		add(SeverityMedium, fmt.Sprintf("%s:%d: debug or permissive setting enabled", normalized, lineOf(text, loc[0])))
	}

	if count := len(s.consoleRE.FindAllStringIndex(text, -1)); count > 0 {
		add(SeverityLow, fmt.Sprintf("%s: %d console logging statements", normalized, count))
	}

	if count := len(s.todoRE.FindAllStringIndex(text, -1)); count > s.todoThreshold {
		add(SeverityMedium, fmt.Sprintf("%s: %d TODO/FIXME markers exceed threshold %d", normalized, count, s.todoThreshold))
	}

	findings = append(findings, s.scanSensitiveAssignments(normalized, owner, text)...)
	return findings
}

func (s *RiskScanner) scanSensitiveAssignments(normalized string, owner []graph.NodeID, text string) []Finding {
	var findings []Finding
	for i, line := range strings.Split(text, "\n") {
		if !s.contextVarRE.MatchString(line) {
			continue
		}
		for _, match := range s.quotedValueRE.FindAllStringSubmatch(line, -1) {
			candidate := match[1]
			if candidate == "" {
				candidate = match[2]
			}
			if len(candidate) < s.minTokenLength {
				continue
			}
			if shannonEntropy(candidate) < s.entropyThreshold {
				continue
			}
			findings = append(findings, Finding{
				Kind:     FindingProductionRisk,
				Severity: SeverityMedium,
				NodeIDs:  owner,
				Evidence: []string{fmt.Sprintf("%s:%d: high-entropy value assigned to sensitive variable", normalized, i+1)},
			})
		}
	}
	return findings
}

func (s *RiskScanner) sensitiveName(base string) bool {
	for _, name := range sensitiveFilenames {
		if base == name {
			return true
		}
	}
	return strings.HasSuffix(base, ".pem") || strings.HasSuffix(base, ".p12")
}

func (s *RiskScanner) fileNode(g *graph.Graph, normalized string) []graph.NodeID {
	id := graph.MakeNodeID(normalized, normalized)
	if g != nil {
		if _, ok := g.Node(id); ok {
			return []graph.NodeID{id}
		}
	}
	return nil
}

func lineOf(text string, offset int) int {
	return strings.Count(text[:offset], "\n") + 1
}

func shannonEntropy(value string) float64 {
	if value == "" {
		return 0
	}
	counts := make(map[rune]float64)
	for _, r := range value {
		counts[r]++
	}
	length := float64(len([]rune(value)))
	entropy := 0.0
	for _, count := range counts {
		p := count / length
		entropy -= p * math.Log2(p)
	}
	return entropy
}
