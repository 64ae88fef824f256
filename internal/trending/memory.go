package trending

import (
	"context"
	"sort"
	"sync"

	"github.com/wanderco/drift/internal/scoring"
)

// InMemorySnapshotStore is an in-memory implementation of SnapshotStore.
// Thread-safe via RWMutex. Used for tests and local development.
type InMemorySnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[scoring.Window][]Snapshot

	// failReplace, when set, makes ReplaceWindow fail for that window.
	failReplace map[scoring.Window]error
}

// NewInMemorySnapshotStore creates a new in-memory snapshot store.
func NewInMemorySnapshotStore() *InMemorySnapshotStore {
	return &InMemorySnapshotStore{
		snapshots:   make(map[scoring.Window][]Snapshot),
		failReplace: make(map[scoring.Window]error),
	}
}

// FailReplaceWith makes ReplaceWindow return err for the given window.
// Pass nil to recover. The failure leaves the window empty, mirroring the
// delete-then-insert semantics of the Postgres store.
func (s *InMemorySnapshotStore) FailReplaceWith(window scoring.Window, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failReplace, window)
		return
	}
	s.failReplace[window] = err
}

// ReplaceWindow replaces all rows for the window.
func (s *InMemorySnapshotStore) ReplaceWindow(ctx context.Context, window scoring.Window, rows []Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failReplace[window]; err != nil {
		// Delete succeeded, insert failed: window left empty
		delete(s.snapshots, window)
		return err
	}

	stored := make([]Snapshot, len(rows))
	copy(stored, rows)
	s.snapshots[window] = stored
	return nil
}

// TopContent returns the current snapshot rows for the window.
func (s *InMemorySnapshotStore) TopContent(ctx context.Context, window scoring.Window, limit int) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.snapshots[window]
	result := make([]Snapshot, len(rows))
	copy(result, rows)

	sort.Slice(result, func(i, j int) bool {
		return result[i].TrendingScore > result[j].TrendingScore
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
