package app

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"devguard/internal/core/errors"
	"devguard/internal/core/ports"
	"devguard/internal/data/history"
	"devguard/internal/engine/graph"
	"devguard/internal/engine/impact"
	"devguard/internal/engine/integrity"
	"devguard/internal/ingest"
	"devguard/internal/shared/observability"
	"devguard/internal/ui/report"
)

type analysisService struct {
	app *App
}

var _ ports.AnalysisService = (*analysisService)(nil)

func (a *App) AnalysisService() ports.AnalysisService {
	return &analysisService{app: a}
}

// Ingest runs a batch end to end: extraction, merge, publish. The batch is
// atomic; on any error no snapshot is published and readers keep the
// previous version.
func (s *analysisService) Ingest(ctx context.Context, batch ingest.Batch) (ports.SnapshotInfo, error) {
	ctx, span := observability.Tracer.Start(ctx, "analysisService.Ingest")
	defer span.End()
	span.SetAttributes(
		attribute.String("batch.id", batch.ID),
		attribute.Int("batch.documents", len(batch.Documents)),
	)

	if err := ingest.Validate(batch); err != nil {
		observability.IngestBatchesTotal.WithLabelValues("invalid").Inc()
		return ports.SnapshotInfo{}, errors.AddContext(err, errors.CtxBatch, batch.ID)
	}

	start := time.Now()
	contributions, unparsed, err := s.app.runner.ExtractAll(ctx, batch.Documents)
	if err != nil {
		observability.IngestBatchesTotal.WithLabelValues("error").Inc()
		return ports.SnapshotInfo{}, errors.AddContext(err, errors.CtxBatch, batch.ID)
	}

	result, err := s.app.builder.Build(ctx, contributions, unparsed, s.app.seeds)
	if err != nil {
		observability.IngestBatchesTotal.WithLabelValues("error").Inc()
		return ports.SnapshotInfo{}, errors.AddContext(err, errors.CtxBatch, batch.ID)
	}

	snap := s.app.snapshots.Publish(&graph.Snapshot{
		BatchID:    batch.ID,
		Graph:      result.Graph,
		Unparsed:   result.Unparsed,
		Unresolved: result.Unresolved,
		Coverage:   result.Coverage,
		Documents:  batch.Documents,
	})

	observability.IngestBatchesTotal.WithLabelValues("ok").Inc()
	slog.Info("published snapshot",
		"version", snap.Version,
		"batch", batch.ID,
		"nodes", snap.Graph.NodeCount(),
		"edges", snap.Graph.EdgeCount(),
		"unparsed", len(snap.Unparsed),
		"unresolved", len(snap.Unresolved),
		"coverage", snap.Coverage,
		"duration", time.Since(start),
	)

	return snapshotInfo(snap), nil
}

func (s *analysisService) GraphExport(ctx context.Context) (report.GraphDoc, error) {
	ctx, span := observability.Tracer.Start(ctx, "analysisService.GraphExport")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return report.GraphDoc{}, errors.Wrap(err, errors.CodeCancelled, "graph export aborted")
	}

	snap, release, err := s.app.snapshots.Acquire()
	if err != nil {
		return report.GraphDoc{}, err
	}
	defer release()

	return report.BuildGraphDoc(snap), nil
}

func (s *analysisService) RunIntegrity(ctx context.Context) (integrity.Report, error) {
	ctx, span := observability.Tracer.Start(ctx, "analysisService.RunIntegrity")
	defer span.End()

	snap, release, err := s.app.snapshots.Acquire()
	if err != nil {
		return integrity.Report{}, err
	}
	defer release()

	rep, err := s.app.analyzer.Run(ctx, snap)
	if err != nil {
		return integrity.Report{}, err
	}
	span.SetAttributes(attribute.Int("findings", len(rep.Findings)))

	if s.app.history != nil {
		if err := s.app.history.SaveRun(s.app.projectKey, history.FromAnalysis(snap, rep)); err != nil {
			slog.Warn("failed to persist analysis run", "error", err)
		}
	}

	return rep, nil
}

func (s *analysisService) SimulateChange(ctx context.Context, spec impact.ChangeSpec) (*impact.Result, error) {
	ctx, span := observability.Tracer.Start(ctx, "analysisService.SimulateChange")
	defer span.End()
	span.SetAttributes(
		attribute.String("change.kind", string(spec.Kind)),
		attribute.String("change.target", string(spec.TargetID)),
	)

	snap, release, err := s.app.snapshots.Acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := impact.Simulate(ctx, snap, spec)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxNode, string(spec.TargetID))
	}
	return res, nil
}

func snapshotInfo(snap *graph.Snapshot) ports.SnapshotInfo {
	return ports.SnapshotInfo{
		Version:         snap.Version,
		BatchID:         snap.BatchID,
		CreatedAt:       snap.CreatedAt,
		NodeCount:       snap.Graph.NodeCount(),
		EdgeCount:       snap.Graph.EdgeCount(),
		UnparsedCount:   len(snap.Unparsed),
		UnresolvedCount: len(snap.Unresolved),
		Coverage:        snap.Coverage,
	}
}
