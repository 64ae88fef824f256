package experiment

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// InMemoryStore is an in-memory implementation of Store. It emulates the
// (user_id, experiment_id) uniqueness constraint so assignment races
// behave like the Postgres store. Thread-safe via Mutex.
type InMemoryStore struct {
	mu          sync.Mutex
	experiments map[string]Experiment
	assignments map[string]Assignment // "userID:experimentID" -> Assignment
	events      []Event
}

// NewInMemoryStore creates a new in-memory experiment store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		experiments: make(map[string]Experiment),
		assignments: make(map[string]Assignment),
	}
}

// assignmentKey builds the composite uniqueness key.
func assignmentKey(userID, experimentID string) string {
	return userID + ":" + experimentID
}

// GetExperiment returns an experiment by ID.
func (s *InMemoryStore) GetExperiment(ctx context.Context, id string) (*Experiment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.experiments[id]
	if !ok {
		return nil, ErrNotFound
	}
	expCopy := exp
	return &expCopy, nil
}

// SaveExperiment inserts or updates an experiment definition.
func (s *InMemoryStore) SaveExperiment(ctx context.Context, exp *Experiment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.experiments[exp.ID] = *exp
	return nil
}

// ListExperiments returns experiments with the given status, oldest first.
func (s *InMemoryStore) ListExperiments(ctx context.Context, status Status) ([]*Experiment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*Experiment
	for _, exp := range s.experiments {
		if exp.Status != status {
			continue
		}
		expCopy := exp
		result = append(result, &expCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// DeleteExperiment removes an experiment.
func (s *InMemoryStore) DeleteExperiment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.experiments[id]; !ok {
		return ErrNotFound
	}
	delete(s.experiments, id)
	return nil
}

// GetAssignment returns the sticky assignment for (user, experiment).
func (s *InMemoryStore) GetAssignment(ctx context.Context, userID, experimentID string) (*Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assignments[assignmentKey(userID, experimentID)]
	if !ok {
		return nil, nil
	}
	aCopy := a
	return &aCopy, nil
}

// InsertAssignment persists an assignment exactly once; the first writer
// wins, as with the database uniqueness constraint.
func (s *InMemoryStore) InsertAssignment(ctx context.Context, a Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := assignmentKey(a.UserID, a.ExperimentID)
	if _, exists := s.assignments[key]; exists {
		return ErrAssignmentExists
	}
	s.assignments[key] = a
	return nil
}

// AppendEvent appends one event to the log.
func (s *InMemoryStore) AppendEvent(ctx context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	s.events = append(s.events, ev)
	return nil
}

// QueryEvents returns events for an experiment, optionally filtered by
// variant.
func (s *InMemoryStore) QueryEvents(ctx context.Context, experimentID, variant string) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []Event
	for _, ev := range s.events {
		if ev.ExperimentID != experimentID {
			continue
		}
		if variant != "" && ev.Variant != variant {
			continue
		}
		result = append(result, ev)
	}
	return result, nil
}
