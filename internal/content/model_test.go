package content

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func TestItemAgeDays(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	item := &Item{CreatedAt: now.Add(-36 * time.Hour)}

	if got := item.AgeDays(now); math.Abs(got-1.5) > 0.001 {
		t.Errorf("AgeDays = %v, want 1.5", got)
	}
}

func TestItemHasTopic(t *testing.T) {
	item := &Item{Topics: []string{"tech", "ai"}}

	if !item.HasTopic("tech") {
		t.Error("expected tech to match")
	}
	if item.HasTopic("cooking") {
		t.Error("expected cooking not to match")
	}
}

func TestItemMatchedTopics(t *testing.T) {
	item := &Item{Topics: []string{"tech", "ai"}}

	matched := item.MatchedTopics([]string{"ai", "cooking", "tech"})
	if len(matched) != 2 {
		t.Fatalf("matched = %v, want 2 entries", matched)
	}
	// Order follows the user's preference list
	if matched[0] != "ai" || matched[1] != "tech" {
		t.Errorf("matched = %v, want [ai tech]", matched)
	}

	if got := item.MatchedTopics(nil); got != nil {
		t.Errorf("MatchedTopics(nil) = %v, want nil", got)
	}
}

func TestInMemoryStore_QueryActive(t *testing.T) {
	store := NewInMemoryStore()
	now := time.Now()

	store.Add(Item{ID: "old", QualityScore: 0.9, IsActive: true, CreatedAt: now.Add(-3 * time.Hour)})
	store.Add(Item{ID: "new", QualityScore: 0.3, IsActive: true, CreatedAt: now.Add(-1 * time.Hour)})
	store.Add(Item{ID: "mid", QualityScore: 0.6, IsActive: true, CreatedAt: now.Add(-2 * time.Hour)})
	store.Add(Item{ID: "inactive", QualityScore: 1.0, IsActive: false, CreatedAt: now})

	t.Run("recency ordering skips inactive", func(t *testing.T) {
		items, err := store.QueryActive(context.Background(), Query{OrderBy: OrderByRecency})
		if err != nil {
			t.Fatalf("QueryActive failed: %v", err)
		}
		if len(items) != 3 {
			t.Fatalf("expected 3 items, got %d", len(items))
		}
		if items[0].ID != "new" || items[2].ID != "old" {
			t.Errorf("unexpected order: %s .. %s", items[0].ID, items[2].ID)
		}
	})

	t.Run("quality ordering", func(t *testing.T) {
		items, err := store.QueryActive(context.Background(), Query{OrderBy: OrderByQuality})
		if err != nil {
			t.Fatalf("QueryActive failed: %v", err)
		}
		if items[0].ID != "old" {
			t.Errorf("top quality item = %s, want old", items[0].ID)
		}
	})

	t.Run("exclusion and limit", func(t *testing.T) {
		items, err := store.QueryActive(context.Background(), Query{
			ExcludeIDs: []string{"new"},
			OrderBy:    OrderByRecency,
			Limit:      1,
		})
		if err != nil {
			t.Fatalf("QueryActive failed: %v", err)
		}
		if len(items) != 1 || items[0].ID != "mid" {
			t.Errorf("items = %v, want [mid]", items)
		}
	})

	t.Run("offset beyond corpus", func(t *testing.T) {
		items, err := store.QueryActive(context.Background(), Query{Offset: 10})
		if err != nil {
			t.Fatalf("QueryActive failed: %v", err)
		}
		if len(items) != 0 {
			t.Errorf("expected no items, got %d", len(items))
		}
	})

	t.Run("configured failure", func(t *testing.T) {
		store.FailWith(ErrStoreUnavailable)
		defer store.FailWith(nil)

		if _, err := store.QueryActive(context.Background(), Query{}); !errors.Is(err, ErrStoreUnavailable) {
			t.Errorf("err = %v, want ErrStoreUnavailable", err)
		}
	})
}

func TestInMemoryStore_GetMetrics(t *testing.T) {
	store := NewInMemoryStore()
	store.SetMetrics(Metrics{ContentID: "a", Views: 100, Likes: 10})

	metrics, err := store.GetMetrics(context.Background(), []string{"a", "missing"})
	if err != nil {
		t.Fatalf("GetMetrics failed: %v", err)
	}
	if m, ok := metrics["a"]; !ok || m.Views != 100 {
		t.Errorf("metrics[a] = %+v", m)
	}
	if _, ok := metrics["missing"]; ok {
		t.Error("missing ID should be absent from the result")
	}
}
