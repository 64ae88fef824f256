package content

import (
	"context"
	"sort"
	"sync"
)

// InMemoryStore is an in-memory implementation of Store.
// Thread-safe via RWMutex. Used for tests and local development.
type InMemoryStore struct {
	mu      sync.RWMutex
	items   map[string]Item
	metrics map[string]Metrics

	// failWith, when set, makes every call return the error.
	failWith error
}

// NewInMemoryStore creates a new in-memory content store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		items:   make(map[string]Item),
		metrics: make(map[string]Metrics),
	}
}

// Add inserts or replaces a content item.
func (s *InMemoryStore) Add(item Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
}

// SetMetrics sets the metrics snapshot for a content item.
func (s *InMemoryStore) SetMetrics(m Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics[m.ContentID] = m
}

// FailWith makes all subsequent calls return err. Pass nil to recover.
func (s *InMemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

// QueryActive returns active items matching the query.
func (s *InMemoryStore) QueryActive(ctx context.Context, q Query) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.failWith != nil {
		return nil, s.failWith
	}

	excluded := make(map[string]struct{}, len(q.ExcludeIDs))
	for _, id := range q.ExcludeIDs {
		excluded[id] = struct{}{}
	}

	var items []Item
	for _, item := range s.items {
		if !item.IsActive {
			continue
		}
		if _, skip := excluded[item.ID]; skip {
			continue
		}
		items = append(items, item)
	}

	switch q.OrderBy {
	case OrderByQuality:
		sort.Slice(items, func(i, j int) bool {
			if items[i].QualityScore != items[j].QualityScore {
				return items[i].QualityScore > items[j].QualityScore
			}
			return items[i].CreatedAt.After(items[j].CreatedAt)
		})
	default:
		sort.Slice(items, func(i, j int) bool {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		})
	}

	if q.Offset > 0 {
		if q.Offset >= len(items) {
			return nil, nil
		}
		items = items[q.Offset:]
	}
	if q.Limit > 0 && len(items) > q.Limit {
		items = items[:q.Limit]
	}

	// Return copies to avoid external modification
	result := make([]Item, len(items))
	copy(result, items)
	return result, nil
}

// GetMetrics returns current metrics for the given content IDs.
func (s *InMemoryStore) GetMetrics(ctx context.Context, ids []string) (map[string]Metrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.failWith != nil {
		return nil, s.failWith
	}

	result := make(map[string]Metrics, len(ids))
	for _, id := range ids {
		if m, ok := s.metrics[id]; ok {
			result[id] = m
		}
	}
	return result, nil
}
