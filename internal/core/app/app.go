// Package app wires configuration, extraction, graph construction, and the
// analyzers into the service exposed through the driving ports.
package app

import (
	"context"
	"log/slog"

	"devguard/internal/core/config"
	"devguard/internal/core/ports"
	"devguard/internal/data/history"
	"devguard/internal/engine/extract"
	"devguard/internal/engine/graph"
	"devguard/internal/engine/integrity"
	"devguard/internal/ingest"
)

type App struct {
	Config *config.Config

	runner    *extract.Runner
	builder   *graph.Builder
	analyzer  *integrity.Analyzer
	snapshots *graph.Store
	seeds     []graph.EndpointSeed

	history    ports.HistoryStore
	historyDB  *history.Store
	projectKey string
}

// New builds the engine from configuration. OpenAPI seeds are loaded once at
// startup; every subsequent batch merges against the same seed set.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	a := &App{
		Config: cfg,
		runner: extract.NewRunner(cfg.Extract.Workers, cfg.Extract.MaxFileBytes),
		builder: graph.NewBuilder(graph.Confidences{
			VerbPath: cfg.Binding.VerbPathConfidence,
			PathOnly: cfg.Binding.PathOnlyConfidence,
			OpenAPI:  cfg.Binding.OpenAPIConfidence,
		}),
		snapshots:  graph.NewStore(),
		projectKey: "default",
	}

	patterns := make([]integrity.PatternConfig, 0, len(cfg.Integrity.Risk.Patterns))
	for _, p := range cfg.Integrity.Risk.Patterns {
		patterns = append(patterns, integrity.PatternConfig{
			Name:     p.Name,
			Regex:    p.Regex,
			Severity: integrity.Severity(p.Severity),
		})
	}

	analyzer, err := integrity.NewAnalyzer(integrity.Config{
		GodObjectMultiplier: cfg.Integrity.GodObject.DegreeMultiplier,
		GodObjectMinDegree:  cfg.Integrity.GodObject.MinDegree,
		EntryPoints:         cfg.Integrity.EntryPoints,
		Risk: integrity.RiskConfig{
			Disabled:         !cfg.Integrity.Risk.IsEnabled(),
			TodoThreshold:    cfg.Integrity.Risk.TodoThreshold,
			MinTokenLength:   cfg.Integrity.Risk.EntropyMinLength,
			EntropyThreshold: cfg.Integrity.Risk.EntropyThreshold,
			Patterns:         patterns,
		},
	})
	if err != nil {
		return nil, err
	}
	a.analyzer = analyzer

	if len(cfg.Binding.OpenAPIDocs) > 0 {
		seeds, err := ingest.LoadEndpointSeeds(ctx, cfg.Binding.OpenAPIDocs)
		if err != nil {
			return nil, err
		}
		a.seeds = seeds
		slog.Info("loaded endpoint seeds", "docs", len(cfg.Binding.OpenAPIDocs), "endpoints", len(seeds))
	}

	if cfg.History.Enabled {
		db, err := history.Open(cfg.History.Path, cfg.History.BusyTimeout)
		if err != nil {
			return nil, err
		}
		a.historyDB = db
		a.history = db
	}

	return a, nil
}

// SetProjectKey scopes persisted runs; empty keeps the default project.
func (a *App) SetProjectKey(key string) {
	if key != "" {
		a.projectKey = key
	}
}

func (a *App) Snapshots() *graph.Store {
	return a.snapshots
}

func (a *App) Close() error {
	if a.historyDB != nil {
		return a.historyDB.Close()
	}
	return nil
}
