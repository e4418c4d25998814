package graph

import (
	"sync"
	"time"

	"devguard/internal/core/errors"
	"devguard/internal/engine/extract"
	"devguard/internal/shared/observability"
)

// Snapshot is one published analysis result. Immutable: readers share it
// without locking; lifetime is managed by the store's reference counts.
type Snapshot struct {
	Version    uint64
	BatchID    string
	CreatedAt  time.Time
	Graph      *Graph
	Unparsed   []extract.UnparsedFile
	Unresolved []UnresolvedRef
	Coverage   float64
	// Documents holds the normalized batch inputs so text-based detectors
	// can run against the same immutable snapshot readers see.
	Documents []extract.Document
}

type snapshotEntry struct {
	snap *Snapshot
	refs int
}

// Store holds the current snapshot and retains superseded versions until
// their last reader releases them. Publishing swaps the current pointer
// atomically; in-flight readers keep observing the version they acquired.
type Store struct {
	mu       sync.Mutex
	current  *snapshotEntry
	retained map[uint64]*snapshotEntry
	next     uint64
}

func NewStore() *Store {
	return &Store{retained: make(map[uint64]*snapshotEntry), next: 1}
}

// Publish assigns the next version and makes the snapshot current. The
// previous snapshot stays retained while readers hold it.
func (s *Store) Publish(snap *Snapshot) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap.Version = s.next
	s.next++
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}

	old := s.current
	entry := &snapshotEntry{snap: snap, refs: 1} // the store's own reference
	s.current = entry
	s.retained[snap.Version] = entry
	if old != nil {
		s.releaseLocked(old)
	}

	observability.SnapshotVersion.Set(float64(snap.Version))
	observability.SnapshotsRetained.Set(float64(len(s.retained)))
	observability.GraphNodes.Set(float64(snap.Graph.NodeCount()))
	observability.GraphEdges.Set(float64(snap.Graph.EdgeCount()))
	observability.UnresolvedReferences.Set(float64(len(snap.Unresolved)))
	return snap
}

// Acquire returns the current snapshot and a release function the caller
// must invoke when done reading.
func (s *Store) Acquire() (*Snapshot, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil, nil, errors.New(errors.CodeNotFound, "no snapshot published yet")
	}
	entry := s.current
	entry.refs++

	var once sync.Once
	release := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.releaseLocked(entry)
		})
	}
	return entry.snap, release, nil
}

func (s *Store) releaseLocked(entry *snapshotEntry) {
	entry.refs--
	if entry.refs <= 0 && entry != s.current {
		delete(s.retained, entry.snap.Version)
		observability.SnapshotsRetained.Set(float64(len(s.retained)))
	}
}

// CurrentVersion returns the published version, or 0 when none exists.
func (s *Store) CurrentVersion() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return 0
	}
	return s.current.snap.Version
}

// Retained reports how many snapshot versions are still alive.
func (s *Store) Retained() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.retained)
}
