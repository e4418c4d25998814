package config

import (
	"fmt"
	"os"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"
)

type Config struct {
	Version   int       `toml:"version"`
	Extract   Extract   `toml:"extract"`
	Binding   Binding   `toml:"binding"`
	Integrity Integrity `toml:"integrity"`
	History   History   `toml:"history"`
	Watch     Watch     `toml:"watch"`
	Telemetry Telemetry `toml:"telemetry"`
	Output    Output    `toml:"output"`
}

type Extract struct {
	Workers     int      `toml:"workers"`
	ExcludeDirs []string `toml:"exclude_dirs"`
	// MaxFileBytes caps how large a document the extractor will parse.
	MaxFileBytes int64 `toml:"max_file_bytes"`
}

// Binding controls how cross-stack references are matched against
// declarations during graph construction.
type Binding struct {
	// OpenAPIDocs lists OpenAPI documents whose paths seed endpoint nodes.
	OpenAPIDocs []string `toml:"openapi_docs"`

	VerbPathConfidence float64 `toml:"verb_path_confidence"`
	PathOnlyConfidence float64 `toml:"path_only_confidence"`
	OpenAPIConfidence  float64 `toml:"openapi_confidence"`
}

type Integrity struct {
	GodObject GodObject `toml:"god_object"`
	// EntryPoints are glob patterns for files that are legitimately
	// unreferenced (program roots, manifests).
	EntryPoints []string `toml:"entry_points"`
	Risk        Risk     `toml:"risk"`
}

type GodObject struct {
	DegreeMultiplier float64 `toml:"degree_multiplier"`
	MinDegree        int     `toml:"min_degree"`
}

type Risk struct {
	Enabled          *bool   `toml:"enabled"`
	TodoThreshold    int     `toml:"todo_threshold"`
	EntropyMinLength int     `toml:"entropy_min_length"`
	EntropyThreshold float64 `toml:"entropy_threshold"`
	// Patterns extend the built-in secret detectors with project-specific
	// regexes.
	Patterns []RiskPattern `toml:"patterns"`
}

type RiskPattern struct {
	Name     string `toml:"name"`
	Regex    string `toml:"regex"`
	Severity string `toml:"severity"`
}

type History struct {
	Enabled     bool          `toml:"enabled"`
	Path        string        `toml:"path"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
	// MaxRebuildsPerMinute bounds full rebuilds under event storms.
	MaxRebuildsPerMinute float64 `toml:"max_rebuilds_per_minute"`
}

type Telemetry struct {
	MetricsAddr  string `toml:"metrics_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
}

type Output struct {
	GraphJSON string `toml:"graph_json"`
	DOT       string `toml:"dot"`
	Findings  string `toml:"findings"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := validateVersion(&cfg); err != nil {
		return nil, err
	}
	if err := validateExtract(&cfg); err != nil {
		return nil, err
	}
	if err := validateBinding(&cfg); err != nil {
		return nil, err
	}
	if err := validateIntegrity(&cfg); err != nil {
		return nil, err
	}
	if err := validateHistory(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if cfg.Extract.Workers <= 0 {
		cfg.Extract.Workers = runtime.NumCPU()
	}
	if cfg.Extract.MaxFileBytes <= 0 {
		cfg.Extract.MaxFileBytes = 2 << 20
	}
	if len(cfg.Extract.ExcludeDirs) == 0 {
		cfg.Extract.ExcludeDirs = []string{
			"node_modules", "vendor", "dist", "build",
			".git", "__pycache__", ".venv",
		}
	}

	if cfg.Binding.VerbPathConfidence == 0 {
		cfg.Binding.VerbPathConfidence = 0.85
	}
	if cfg.Binding.PathOnlyConfidence == 0 {
		cfg.Binding.PathOnlyConfidence = 0.60
	}
	if cfg.Binding.OpenAPIConfidence == 0 {
		cfg.Binding.OpenAPIConfidence = 0.90
	}

	if cfg.Integrity.GodObject.DegreeMultiplier <= 0 {
		cfg.Integrity.GodObject.DegreeMultiplier = 3.0
	}
	if cfg.Integrity.GodObject.MinDegree <= 0 {
		cfg.Integrity.GodObject.MinDegree = 10
	}
	if len(cfg.Integrity.EntryPoints) == 0 {
		cfg.Integrity.EntryPoints = []string{
			"main.*", "**/main.*", "index.*", "**/index.*",
			"**/__init__.py", "**/conftest.py", "**/settings.*",
		}
	}
	if cfg.Integrity.Risk.TodoThreshold <= 0 {
		cfg.Integrity.Risk.TodoThreshold = 10
	}
	if cfg.Integrity.Risk.EntropyMinLength <= 0 {
		cfg.Integrity.Risk.EntropyMinLength = 20
	}
	if cfg.Integrity.Risk.EntropyThreshold <= 0 {
		cfg.Integrity.Risk.EntropyThreshold = 4.0
	}

	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = "devguard.db"
	}
	if cfg.History.BusyTimeout <= 0 {
		cfg.History.BusyTimeout = 5 * time.Second
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.MaxRebuildsPerMinute <= 0 {
		cfg.Watch.MaxRebuildsPerMinute = 12
	}
}

func (r Risk) IsEnabled() bool {
	if r.Enabled == nil {
		return true
	}
	return *r.Enabled
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateExtract(cfg *Config) error {
	if cfg.Extract.Workers < 1 {
		return fmt.Errorf("extract.workers must be >= 1, got %d", cfg.Extract.Workers)
	}
	for _, dir := range cfg.Extract.ExcludeDirs {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("extract.exclude_dirs must not include empty values")
		}
	}
	return nil
}

func validateBinding(cfg *Config) error {
	for name, v := range map[string]float64{
		"binding.verb_path_confidence": cfg.Binding.VerbPathConfidence,
		"binding.path_only_confidence": cfg.Binding.PathOnlyConfidence,
		"binding.openapi_confidence":   cfg.Binding.OpenAPIConfidence,
	} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("%s must be in (0, 1], got %v", name, v)
		}
	}
	for _, doc := range cfg.Binding.OpenAPIDocs {
		if strings.TrimSpace(doc) == "" {
			return fmt.Errorf("binding.openapi_docs must not include empty values")
		}
	}
	return nil
}

func validateIntegrity(cfg *Config) error {
	if cfg.Integrity.GodObject.DegreeMultiplier < 1 {
		return fmt.Errorf("integrity.god_object.degree_multiplier must be >= 1, got %v", cfg.Integrity.GodObject.DegreeMultiplier)
	}
	for i, pattern := range cfg.Integrity.EntryPoints {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			return fmt.Errorf("integrity.entry_points[%d]: invalid pattern %q: %w", i, pattern, err)
		}
	}
	for i, p := range cfg.Integrity.Risk.Patterns {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("integrity.risk.patterns[%d]: name must not be empty", i)
		}
		if _, err := regexp.Compile(p.Regex); err != nil {
			return fmt.Errorf("integrity.risk.patterns[%d] %q: invalid regex: %w", i, p.Name, err)
		}
		switch p.Severity {
		case "", "low", "medium", "high", "critical":
		default:
			return fmt.Errorf("integrity.risk.patterns[%d] %q: unknown severity %q", i, p.Name, p.Severity)
		}
	}
	return nil
}

func validateHistory(cfg *Config) error {
	if cfg.History.Enabled && strings.TrimSpace(cfg.History.Path) == "" {
		return fmt.Errorf("history.path must not be empty when history.enabled=true")
	}
	return nil
}
