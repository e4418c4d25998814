package app

import (
	"context"

	"devguard/internal/core/errors"
	"devguard/internal/engine/graph"
	"devguard/internal/engine/integrity"
	"devguard/internal/ui/report"
)

// SyncOutputs writes every configured output target for the current
// snapshot and returns the paths written.
func (a *App) SyncOutputs(ctx context.Context, rep integrity.Report) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeCancelled, "output sync aborted")
	}

	snap, release, err := a.snapshots.Acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	var written []string

	if path := a.Config.Output.GraphJSON; path != "" {
		if err := report.WriteJSON(report.BuildGraphDoc(snap), path); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if path := a.Config.Output.DOT; path != "" {
		var cycles [][]graph.NodeID
		for _, f := range rep.Findings {
			if f.Kind == integrity.FindingCycle {
				cycles = append(cycles, f.NodeIDs)
			}
		}
		dot, err := report.NewDOTGenerator(snap.Graph).Generate(cycles)
		if err != nil {
			return written, err
		}
		if err := report.WriteText(dot, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if path := a.Config.Output.Findings; path != "" {
		if err := report.WriteText(report.RenderFindings(rep), path); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	return written, nil
}
