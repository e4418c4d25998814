package graph

import (
	"testing"
)

func emptySnapshot() *Snapshot {
	return &Snapshot{Graph: newGraph(map[NodeID]Node{}, nil)}
}

func TestStoreVersioning(t *testing.T) {
	store := NewStore()
	if store.CurrentVersion() != 0 {
		t.Fatalf("expected no version before publish")
	}
	if _, _, err := store.Acquire(); err == nil {
		t.Fatal("acquire before publish should fail")
	}

	first := store.Publish(emptySnapshot())
	second := store.Publish(emptySnapshot())
	if first.Version != 1 || second.Version != 2 {
		t.Fatalf("versions should increment: %d, %d", first.Version, second.Version)
	}
	if store.CurrentVersion() != 2 {
		t.Fatalf("current version should be 2, got %d", store.CurrentVersion())
	}
}

func TestStoreRetainsAcquiredSnapshots(t *testing.T) {
	store := NewStore()
	store.Publish(emptySnapshot())

	snap, release, err := store.Acquire()
	if err != nil {
		t.Fatal(err)
	}

	// Superseding the acquired snapshot must not free it while held.
	store.Publish(emptySnapshot())
	if store.Retained() != 2 {
		t.Fatalf("expected old version retained while held, got %d", store.Retained())
	}
	if snap.Version != 1 {
		t.Fatalf("reader should keep observing version 1, got %d", snap.Version)
	}

	release()
	release() // idempotent
	if store.Retained() != 1 {
		t.Fatalf("expected only current retained after release, got %d", store.Retained())
	}
}

func TestStoreReadersSeeConsistentVersion(t *testing.T) {
	store := NewStore()
	store.Publish(emptySnapshot())

	snap, release, err := store.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	store.Publish(emptySnapshot())

	current, releaseCurrent, err := store.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	defer releaseCurrent()

	if snap.Version == current.Version {
		t.Fatal("old reader should not observe the new version")
	}
}
