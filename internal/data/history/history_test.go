package history

import (
	"path/filepath"
	"testing"
	"time"
)

func TestStoreOpenInitializesSchemaAndSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path, 0)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	first := Run{
		Timestamp:       base,
		BatchID:         "batch-1",
		SnapshotVersion: 1,
		NodeCount:       40,
		EdgeCount:       55,
		CycleCount:      1,
		UnresolvedCount: 3,
		Coverage:        0.9,
	}
	dup := Run{
		Timestamp:       base,
		BatchID:         "batch-1",
		SnapshotVersion: 1,
		NodeCount:       44,
		EdgeCount:       60,
		CycleCount:      2,
		Coverage:        0.95,
	}
	second := Run{
		Timestamp:       base.Add(2 * time.Hour),
		BatchID:         "batch-2",
		SnapshotVersion: 2,
		NodeCount:       41,
		EdgeCount:       56,
		OrphanCount:     2,
		RiskCount:       1,
		Coverage:        1.0,
	}

	if err := store.SaveRun("project-a", first); err != nil {
		t.Fatalf("save first run: %v", err)
	}
	if err := store.SaveRun("project-a", dup); err != nil {
		t.Fatalf("save duplicate run: %v", err)
	}
	if err := store.SaveRun("project-a", second); err != nil {
		t.Fatalf("save second run: %v", err)
	}

	got, err := store.LoadRuns("project-a", base.Add(1*time.Hour))
	if err != nil {
		t.Fatalf("load runs: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 run after since filter, got %d", len(got))
	}
	if got[0].SnapshotVersion != 2 || got[0].OrphanCount != 2 || got[0].Coverage != 1.0 {
		t.Fatalf("second run did not roundtrip: %+v", got[0])
	}

	// Same timestamp and batch upserts instead of inserting a second row.
	all, err := store.LoadRuns("project-a", time.Time{})
	if err != nil {
		t.Fatalf("load all runs: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected deduplicated 2 runs, got %d", len(all))
	}
	if all[0].NodeCount != 44 {
		t.Fatalf("expected upserted node_count=44, got %d", all[0].NodeCount)
	}
}

func TestStoreIsolatesProjects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path, time.Second)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	if err := store.SaveRun("a", Run{BatchID: "b1", SnapshotVersion: 1}); err != nil {
		t.Fatalf("save run: %v", err)
	}
	got, err := store.LoadRuns("b", time.Time{})
	if err != nil {
		t.Fatalf("load runs: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no runs for other project, got %d", len(got))
	}
}

func TestOpenRejectsDirectoryPath(t *testing.T) {
	if _, err := Open(t.TempDir(), 0); err == nil {
		t.Fatal("expected error for directory path")
	}
}
