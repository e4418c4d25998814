// Package ports defines the driving-port surface between the analysis engine
// and its adapters (CLI, watcher, TUI).
package ports

import (
	"context"
	"time"

	"devguard/internal/data/history"
	"devguard/internal/engine/impact"
	"devguard/internal/engine/integrity"
	"devguard/internal/ingest"
	"devguard/internal/ui/report"
)

// SnapshotInfo summarizes a published snapshot for driving adapters.
type SnapshotInfo struct {
	Version         uint64
	BatchID         string
	CreatedAt       time.Time
	NodeCount       int
	EdgeCount       int
	UnparsedCount   int
	UnresolvedCount int
	Coverage        float64
}

// HistoryStore abstracts run persistence for trend workflows.
type HistoryStore interface {
	SaveRun(projectKey string, run history.Run) error
	LoadRuns(projectKey string, since time.Time) ([]history.Run, error)
}

// AnalysisService exposes the engine's batch-oriented operations. Reads
// always observe a single published snapshot; concurrent ingestion never
// mutates a snapshot a reader already holds.
type AnalysisService interface {
	Ingest(ctx context.Context, batch ingest.Batch) (SnapshotInfo, error)
	GraphExport(ctx context.Context) (report.GraphDoc, error)
	RunIntegrity(ctx context.Context) (integrity.Report, error)
	SimulateChange(ctx context.Context, spec impact.ChangeSpec) (*impact.Result, error)
}

// WatchService exposes watch-mode lifecycle for driving adapters.
type WatchService interface {
	Start(ctx context.Context) error
	Close() error
}
