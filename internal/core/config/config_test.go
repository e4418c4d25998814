package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "devguard.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `version = 1`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Extract.Workers < 1 {
		t.Errorf("expected positive worker default, got %d", cfg.Extract.Workers)
	}
	if cfg.Integrity.GodObject.DegreeMultiplier != 3.0 {
		t.Errorf("expected degree multiplier 3.0, got %v", cfg.Integrity.GodObject.DegreeMultiplier)
	}
	if cfg.Integrity.GodObject.MinDegree != 10 {
		t.Errorf("expected min degree 10, got %d", cfg.Integrity.GodObject.MinDegree)
	}
	if cfg.Binding.VerbPathConfidence != 0.85 {
		t.Errorf("expected verb+path confidence 0.85, got %v", cfg.Binding.VerbPathConfidence)
	}
	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("expected 500ms debounce, got %v", cfg.Watch.Debounce)
	}
	if len(cfg.Integrity.EntryPoints) == 0 {
		t.Error("expected default entry point patterns")
	}
	if !cfg.Integrity.Risk.IsEnabled() {
		t.Error("risk scan should default to enabled")
	}
}

func TestLoadRejectsBadVersion(t *testing.T) {
	path := writeConfig(t, `version = 9`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported version")
	}
}

func TestLoadRejectsBadConfidence(t *testing.T) {
	path := writeConfig(t, `
version = 1

[binding]
verb_path_confidence = 1.5
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for confidence outside (0, 1]")
	}
}

func TestLoadRejectsBadEntryPointPattern(t *testing.T) {
	path := writeConfig(t, `
version = 1

[integrity]
entry_points = ["[broken"]
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid glob pattern")
	}
}

func TestLoadRiskPatterns(t *testing.T) {
	path := writeConfig(t, `
version = 1

[integrity.risk]
entropy_threshold = 3.5

[[integrity.risk.patterns]]
name = "internal-service-token"
regex = "svc_[a-f0-9]{32}"
severity = "high"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Integrity.Risk.EntropyThreshold != 3.5 {
		t.Errorf("got entropy threshold %v", cfg.Integrity.Risk.EntropyThreshold)
	}
	if len(cfg.Integrity.Risk.Patterns) != 1 {
		t.Fatalf("got %d patterns", len(cfg.Integrity.Risk.Patterns))
	}
	p := cfg.Integrity.Risk.Patterns[0]
	if p.Name != "internal-service-token" || p.Regex != "svc_[a-f0-9]{32}" || p.Severity != "high" {
		t.Errorf("got pattern %+v", p)
	}
}

func TestLoadDefaultsEntropyThreshold(t *testing.T) {
	path := writeConfig(t, `version = 1`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Integrity.Risk.EntropyThreshold != 4.0 {
		t.Errorf("got entropy threshold %v", cfg.Integrity.Risk.EntropyThreshold)
	}
}

func TestLoadRejectsBadRiskPattern(t *testing.T) {
	cases := map[string]string{
		"empty name": `
version = 1

[[integrity.risk.patterns]]
name = ""
regex = "x"
`,
		"broken regex": `
version = 1

[[integrity.risk.patterns]]
name = "broken"
regex = "svc_["
`,
		"unknown severity": `
version = 1

[[integrity.risk.patterns]]
name = "token"
regex = "x"
severity = "urgent"
`,
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
version = 1

[extract]
workers = 2
exclude_dirs = ["target"]

[integrity.god_object]
degree_multiplier = 4.0
min_degree = 20

[history]
enabled = true
path = "state/history.db"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Extract.Workers != 2 {
		t.Errorf("got workers %d", cfg.Extract.Workers)
	}
	if cfg.Integrity.GodObject.DegreeMultiplier != 4.0 {
		t.Errorf("got multiplier %v", cfg.Integrity.GodObject.DegreeMultiplier)
	}
	if cfg.History.Path != "state/history.db" {
		t.Errorf("got history path %q", cfg.History.Path)
	}
}
