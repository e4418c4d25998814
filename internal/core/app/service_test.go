package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devguard/internal/core/config"
	"devguard/internal/core/errors"
	"devguard/internal/core/ports"
	"devguard/internal/data/history"
	"devguard/internal/engine/extract"
	"devguard/internal/engine/graph"
	"devguard/internal/engine/impact"
	"devguard/internal/ingest"
)

const backendSource = `import db

class User(BaseModel):
    id: int
    name: str

def create_user():
    return User()
`

const dbSource = `session = None
`

func newTestService(t *testing.T, mutate func(*config.Config)) (ports.AnalysisService, *App) {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a.AnalysisService(), a
}

func testBatch() ingest.Batch {
	return ingest.NewBatch([]extract.Document{
		{Path: "src/api/users.py", Content: []byte(backendSource)},
		{Path: "src/db.py", Content: []byte(dbSource)},
	})
}

func TestIngestPublishesVersionedSnapshots(t *testing.T) {
	svc, _ := newTestService(t, nil)

	first, err := svc.Ingest(context.Background(), testBatch())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Version)
	assert.Greater(t, first.NodeCount, 0)
	assert.Greater(t, first.EdgeCount, 0)
	assert.Zero(t, first.UnparsedCount)

	second, err := svc.Ingest(context.Background(), testBatch())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.Version)
}

func TestIngestRejectsInvalidBatchWithoutPublishing(t *testing.T) {
	svc, a := newTestService(t, nil)

	_, err := svc.Ingest(context.Background(), ingest.Batch{ID: "bad"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
	assert.Zero(t, a.Snapshots().CurrentVersion())
}

func TestGraphExportBeforeFirstIngest(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.GraphExport(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestGraphExportCarriesSnapshotHeader(t *testing.T) {
	svc, _ := newTestService(t, nil)

	info, err := svc.Ingest(context.Background(), testBatch())
	require.NoError(t, err)

	doc, err := svc.GraphExport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, info.Version, doc.SnapshotVersion)
	assert.Equal(t, info.BatchID, doc.BatchID)
	assert.Len(t, doc.Nodes, info.NodeCount)
	assert.Len(t, doc.Edges, info.EdgeCount)
}

func TestSimulateChangeThroughService(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.Ingest(context.Background(), testBatch())
	require.NoError(t, err)

	doc, err := svc.GraphExport(context.Background())
	require.NoError(t, err)

	var schemaID string
	for _, n := range doc.Nodes {
		if n.Name == "src.api.users.User" {
			schemaID = n.ID
		}
	}
	require.NotEmpty(t, schemaID, "schema node must exist")

	res, err := svc.SimulateChange(context.Background(), impact.ChangeSpec{
		TargetID: graph.NodeID(schemaID),
		Kind:     impact.ChangeRename,
	})
	require.NoError(t, err)

	var names []string
	for _, hit := range res.Impacted {
		names = append(names, hit.Name)
	}
	assert.Contains(t, names, "src.api.users.create_user")
}

func TestRunIntegrityPersistsHistory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	svc, a := newTestService(t, func(cfg *config.Config) {
		cfg.History.Enabled = true
		cfg.History.Path = dbPath
	})

	info, err := svc.Ingest(context.Background(), testBatch())
	require.NoError(t, err)

	rep, err := svc.RunIntegrity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, info.Version, rep.SnapshotVersion)

	require.NoError(t, a.Close())

	store, err := history.Open(dbPath, 0)
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.LoadRuns("default", time.Time{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, info.Version, runs[0].SnapshotVersion)
	assert.Equal(t, info.BatchID, runs[0].BatchID)
}
