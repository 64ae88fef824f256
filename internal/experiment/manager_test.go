package experiment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/wanderco/drift/internal/scoring"
)

func newTestManager(t *testing.T, opts ...ManagerOption) (*Manager, *InMemoryStore) {
	t.Helper()
	store := NewInMemoryStore()
	return NewManager(store, nil, opts...), store
}

func createActive(t *testing.T, m *Manager) *Experiment {
	t.Helper()
	exp := validExperiment()
	if err := m.Create(context.Background(), exp); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := m.Start(context.Background(), exp.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return exp
}

func TestCreate(t *testing.T) {
	m, _ := newTestManager(t)

	exp := validExperiment()
	if err := m.Create(context.Background(), exp); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if exp.ID == "" {
		t.Error("expected a generated ID")
	}
	if exp.Status != StatusDraft {
		t.Errorf("status = %s, want draft", exp.Status)
	}

	invalid := validExperiment()
	invalid.Variants[0].Allocation = 10
	if err := m.Create(context.Background(), invalid); err == nil {
		t.Error("expected validation failure")
	}
}

func TestLifecycle(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	exp := validExperiment()
	if err := m.Create(ctx, exp); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	t.Run("pause requires active", func(t *testing.T) {
		if err := m.Pause(ctx, exp.ID); !errors.Is(err, ErrInvalidState) {
			t.Errorf("Pause from draft err = %v, want ErrInvalidState", err)
		}
	})

	t.Run("complete requires active or paused", func(t *testing.T) {
		if err := m.Complete(ctx, exp.ID); !errors.Is(err, ErrInvalidState) {
			t.Errorf("Complete from draft err = %v, want ErrInvalidState", err)
		}
	})

	t.Run("start pause resume complete", func(t *testing.T) {
		if err := m.Start(ctx, exp.ID); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		if err := m.Pause(ctx, exp.ID); err != nil {
			t.Fatalf("Pause failed: %v", err)
		}
		if err := m.Resume(ctx, exp.ID); err != nil {
			t.Fatalf("Resume failed: %v", err)
		}
		if err := m.Complete(ctx, exp.ID); err != nil {
			t.Fatalf("Complete failed: %v", err)
		}

		got, err := m.Get(ctx, exp.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Status != StatusCompleted {
			t.Errorf("status = %s, want completed", got.Status)
		}
	})

	t.Run("completed is terminal", func(t *testing.T) {
		if err := m.Start(ctx, exp.ID); !errors.Is(err, ErrInvalidState) {
			t.Errorf("Start from completed err = %v, want ErrInvalidState", err)
		}
		if err := m.Resume(ctx, exp.ID); !errors.Is(err, ErrInvalidState) {
			t.Errorf("Resume from completed err = %v, want ErrInvalidState", err)
		}
	})

	t.Run("unknown experiment", func(t *testing.T) {
		if err := m.Start(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestDelete_DraftOnly(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	draft := validExperiment()
	if err := m.Create(ctx, draft); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := m.Delete(ctx, draft.ID); err != nil {
		t.Errorf("Delete of draft failed: %v", err)
	}
	if _, err := m.Get(ctx, draft.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted experiment still present: %v", err)
	}

	active := createActive(t, m)
	if err := m.Delete(ctx, active.ID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Delete of active err = %v, want ErrInvalidState", err)
	}
	if _, err := m.Get(ctx, active.ID); err != nil {
		t.Errorf("active experiment should survive a rejected delete: %v", err)
	}
}

func TestAssignVariant_Sticky(t *testing.T) {
	m, _ := newTestManager(t)
	exp := createActive(t, m)
	ctx := context.Background()

	first, err := m.AssignVariant(ctx, "user-1", exp.ID)
	if err != nil {
		t.Fatalf("AssignVariant failed: %v", err)
	}
	if first == nil {
		t.Fatal("expected an assignment for an active experiment")
	}

	for i := 0; i < 10; i++ {
		again, err := m.AssignVariant(ctx, "user-1", exp.ID)
		if err != nil {
			t.Fatalf("repeat AssignVariant failed: %v", err)
		}
		if again.Variant != first.Variant {
			t.Fatalf("assignment changed: %s -> %s", first.Variant, again.Variant)
		}
	}
}

func TestAssignVariant_InactiveExperiment(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	exp := validExperiment()
	if err := m.Create(ctx, exp); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	a, err := m.AssignVariant(ctx, "user-1", exp.ID)
	if err != nil {
		t.Fatalf("AssignVariant failed: %v", err)
	}
	if a != nil {
		t.Errorf("draft experiment assigned %v, want nil", a)
	}

	if err := m.Start(ctx, exp.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := m.Pause(ctx, exp.ID); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	a, err = m.AssignVariant(ctx, "user-2", exp.ID)
	if err != nil {
		t.Fatalf("AssignVariant failed: %v", err)
	}
	if a != nil {
		t.Errorf("paused experiment assigned %v, want nil", a)
	}
}

func TestAssignVariant_AllocationBalance(t *testing.T) {
	m, _ := newTestManager(t)
	exp := createActive(t, m)
	ctx := context.Background()

	counts := make(map[string]int)
	for i := 0; i < 1000; i++ {
		a, err := m.AssignVariant(ctx, fmt.Sprintf("user-%d", i), exp.ID)
		if err != nil {
			t.Fatalf("AssignVariant failed: %v", err)
		}
		counts[a.Variant]++
	}

	// 50/50 split over 1000 users: imbalance beyond 10 points means the
	// weighted draw is broken, not unlucky.
	diff := math.Abs(float64(counts["control"]-counts["explore"])) / 1000.0
	if diff > 0.1 {
		t.Errorf("allocation imbalance %.3f over 1000 users: %v", diff, counts)
	}
}

func TestAssignVariant_RespectsSkewedAllocation(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	exp := validExperiment()
	exp.Variants[0].Allocation = 90
	exp.Variants[1].Allocation = 10
	if err := m.Create(ctx, exp); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := m.Start(ctx, exp.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	counts := make(map[string]int)
	for i := 0; i < 1000; i++ {
		a, err := m.AssignVariant(ctx, fmt.Sprintf("user-%d", i), exp.ID)
		if err != nil {
			t.Fatalf("AssignVariant failed: %v", err)
		}
		counts[a.Variant]++
	}

	if counts["control"] < 800 {
		t.Errorf("90%% variant got %d of 1000 assignments", counts["control"])
	}
	if counts["explore"] == 0 {
		t.Error("10% variant never assigned over 1000 users")
	}
}

func TestAssignVariant_DeterministicRoll(t *testing.T) {
	// Roll 0.2 * 100 = 20 lands in the first variant's [0, 50) slot.
	m, _ := newTestManager(t, WithRand(scoring.FixedRand{Value: 0.2}))
	exp := createActive(t, m)

	a, err := m.AssignVariant(context.Background(), "user-1", exp.ID)
	if err != nil {
		t.Fatalf("AssignVariant failed: %v", err)
	}
	if a.Variant != "control" {
		t.Errorf("variant = %s, want control for roll 20", a.Variant)
	}
}

func TestAssignVariant_ConcurrentFirstWriterWins(t *testing.T) {
	m, _ := newTestManager(t)
	exp := createActive(t, m)
	ctx := context.Background()

	const goroutines = 32
	results := make([]string, goroutines)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			a, err := m.AssignVariant(ctx, "user-1", exp.ID)
			if err != nil || a == nil {
				t.Errorf("concurrent AssignVariant failed: %v", err)
				return
			}
			results[i] = a.Variant
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		if results[i] != results[0] {
			t.Fatalf("concurrent callers saw different variants: %v", results)
		}
	}
}

func TestStrategyFor(t *testing.T) {
	ctx := context.Background()

	t.Run("no active experiment", func(t *testing.T) {
		m, _ := newTestManager(t)
		exp := validExperiment()
		if err := m.Create(ctx, exp); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		resolved, err := m.StrategyFor(ctx, "user-1", []string{"tech"})
		if err != nil {
			t.Fatalf("StrategyFor failed: %v", err)
		}
		if resolved != nil {
			t.Errorf("draft-only experiment resolved %+v, want nil", resolved)
		}
	})

	t.Run("assigned variant config reaches the caller", func(t *testing.T) {
		// Roll 0.7 * 100 = 70 lands in the second variant's [50, 100) slot.
		m, _ := newTestManager(t, WithRand(scoring.FixedRand{Value: 0.7}))
		exp := createActive(t, m)

		resolved, err := m.StrategyFor(ctx, "user-1", []string{"tech"})
		if err != nil {
			t.Fatalf("StrategyFor failed: %v", err)
		}
		if resolved == nil {
			t.Fatal("expected a resolved strategy for an active experiment")
		}
		if resolved.ExperimentID != exp.ID || resolved.Variant != "explore" {
			t.Errorf("resolved (%s, %s), want (%s, explore)",
				resolved.ExperimentID, resolved.Variant, exp.ID)
		}
		if resolved.Config.Strategy != StrategyExploreHeavy {
			t.Errorf("strategy = %s, want explore_heavy", resolved.Config.Strategy)
		}
		if got := resolved.Config.Wildness(10); got != 40 {
			t.Errorf("wildness = %d, want the variant's floor 40", got)
		}
	})

	t.Run("resolution is sticky", func(t *testing.T) {
		m, _ := newTestManager(t)
		createActive(t, m)

		first, err := m.StrategyFor(ctx, "user-1", nil)
		if err != nil {
			t.Fatalf("StrategyFor failed: %v", err)
		}
		if first == nil {
			t.Fatal("expected a resolved strategy")
		}
		for i := 0; i < 10; i++ {
			again, err := m.StrategyFor(ctx, "user-1", nil)
			if err != nil {
				t.Fatalf("repeat StrategyFor failed: %v", err)
			}
			if again == nil || again.Variant != first.Variant {
				t.Fatalf("resolution changed: %s -> %+v", first.Variant, again)
			}
		}
	})

	t.Run("topic targeting", func(t *testing.T) {
		m, _ := newTestManager(t)
		exp := validExperiment()
		exp.TargetTopics = []string{"jazz"}
		if err := m.Create(ctx, exp); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if err := m.Start(ctx, exp.ID); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		resolved, err := m.StrategyFor(ctx, "user-1", []string{"rock"})
		if err != nil {
			t.Fatalf("StrategyFor failed: %v", err)
		}
		if resolved != nil {
			t.Errorf("off-target user resolved %+v, want nil", resolved)
		}

		resolved, err = m.StrategyFor(ctx, "user-1", []string{"rock", "jazz"})
		if err != nil {
			t.Fatalf("StrategyFor failed: %v", err)
		}
		if resolved == nil {
			t.Error("expected a resolved strategy for an on-target user")
		}
	})

	t.Run("paused experiment does not resolve", func(t *testing.T) {
		m, _ := newTestManager(t)
		exp := createActive(t, m)
		if err := m.Pause(ctx, exp.ID); err != nil {
			t.Fatalf("Pause failed: %v", err)
		}

		resolved, err := m.StrategyFor(ctx, "user-1", nil)
		if err != nil {
			t.Fatalf("StrategyFor failed: %v", err)
		}
		if resolved != nil {
			t.Errorf("paused experiment resolved %+v, want nil", resolved)
		}
	})
}

func TestLogEvent(t *testing.T) {
	m, store := newTestManager(t)
	exp := createActive(t, m)
	ctx := context.Background()

	ev := Event{
		ExperimentID: exp.ID,
		UserID:       "user-1",
		Variant:      "control",
		Action:       ActionShown,
	}
	if err := m.LogEvent(ctx, ev); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	events, err := store.QueryEvents(ctx, exp.ID, "")
	if err != nil {
		t.Fatalf("QueryEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].ID == "" {
		t.Error("expected a generated event ID")
	}
	if events[0].CreatedAt.IsZero() {
		t.Error("expected a populated timestamp")
	}

	bad := ev
	bad.Action = "hovered"
	if err := m.LogEvent(ctx, bad); !errors.Is(err, ErrMalformedEvent) {
		t.Errorf("err = %v, want ErrMalformedEvent", err)
	}
}

// seedEvents logs shown events plus engagements for a variant.
func seedEvents(t *testing.T, m *Manager, expID, variant string, shown, likes, saves int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < shown; i++ {
		ev := Event{
			ExperimentID: expID,
			UserID:       fmt.Sprintf("u-%s-%d", variant, i),
			Variant:      variant,
			Action:       ActionShown,
		}
		if err := m.LogEvent(ctx, ev); err != nil {
			t.Fatalf("LogEvent failed: %v", err)
		}
	}
	for i := 0; i < likes; i++ {
		ev := Event{
			ExperimentID: expID,
			UserID:       fmt.Sprintf("u-%s-%d", variant, i),
			Variant:      variant,
			Action:       ActionLiked,
		}
		if err := m.LogEvent(ctx, ev); err != nil {
			t.Fatalf("LogEvent failed: %v", err)
		}
	}
	for i := 0; i < saves; i++ {
		ev := Event{
			ExperimentID: expID,
			UserID:       fmt.Sprintf("u-%s-%d", variant, i),
			Variant:      variant,
			Action:       ActionSaved,
		}
		if err := m.LogEvent(ctx, ev); err != nil {
			t.Fatalf("LogEvent failed: %v", err)
		}
	}
}

func TestComputeMetrics(t *testing.T) {
	m, _ := newTestManager(t)
	exp := createActive(t, m)
	ctx := context.Background()

	seedEvents(t, m, exp.ID, "control", 200, 40, 20)
	seedEvents(t, m, exp.ID, "explore", 200, 30, 10)

	metrics, err := m.ComputeMetrics(ctx, exp.ID)
	if err != nil {
		t.Fatalf("ComputeMetrics failed: %v", err)
	}

	control := metrics["control"]
	if control.Discoveries != 200 {
		t.Errorf("control discoveries = %d, want 200", control.Discoveries)
	}
	if control.Likes != 40 || control.Saves != 20 {
		t.Errorf("control engagement = %d likes %d saves, want 40/20", control.Likes, control.Saves)
	}
	if math.Abs(control.EngagementRate-0.3) > 0.001 {
		t.Errorf("control rate = %v, want 0.3", control.EngagementRate)
	}
	if control.StdError <= 0 {
		t.Errorf("control std error = %v, want > 0", control.StdError)
	}
	if control.CILow >= control.EngagementRate || control.CIHigh <= control.EngagementRate {
		t.Errorf("CI [%v, %v] should bracket the rate", control.CILow, control.CIHigh)
	}

	explore := metrics["explore"]
	if math.Abs(explore.EngagementRate-0.2) > 0.001 {
		t.Errorf("explore rate = %v, want 0.2", explore.EngagementRate)
	}
}

func TestComputeMetrics_MultiActionUsersCapRate(t *testing.T) {
	m, _ := newTestManager(t)
	exp := createActive(t, m)
	ctx := context.Background()

	// Every user likes and saves the one item they were shown, so the raw
	// positive-action count is double the discovery count.
	for i := 0; i < 120; i++ {
		for _, action := range []Action{ActionShown, ActionLiked, ActionSaved} {
			ev := Event{
				ExperimentID: exp.ID,
				UserID:       fmt.Sprintf("u-control-%d", i),
				Variant:      "control",
				Action:       action,
			}
			if err := m.LogEvent(ctx, ev); err != nil {
				t.Fatalf("LogEvent failed: %v", err)
			}
		}
	}
	seedEvents(t, m, exp.ID, "explore", 120, 30, 0)

	metrics, err := m.ComputeMetrics(ctx, exp.ID)
	if err != nil {
		t.Fatalf("ComputeMetrics failed: %v", err)
	}

	control := metrics["control"]
	if control.EngagementRate != 1 {
		t.Errorf("rate = %v, want capped at 1", control.EngagementRate)
	}
	if math.IsNaN(control.StdError) {
		t.Error("std error is NaN")
	}
	if math.IsNaN(control.CILow) || math.IsNaN(control.CIHigh) {
		t.Errorf("CI [%v, %v] contains NaN", control.CILow, control.CIHigh)
	}
	if control.CILow != 1 || control.CIHigh != 1 {
		t.Errorf("CI [%v, %v], want [1, 1] for a saturated rate", control.CILow, control.CIHigh)
	}

	results, err := m.Results(ctx, exp.ID)
	if err != nil {
		t.Fatalf("Results failed: %v", err)
	}
	if results.Leader != "control" {
		t.Errorf("leader = %s, want control", results.Leader)
	}
	if math.IsNaN(results.LeaderComparison.ZStat) || math.IsNaN(results.LeaderComparison.PValue) {
		t.Errorf("leader comparison z=%v p=%v, want finite values",
			results.LeaderComparison.ZStat, results.LeaderComparison.PValue)
	}
	if strings.Contains(results.Recommendation, "NaN") {
		t.Errorf("recommendation leaked NaN: %s", results.Recommendation)
	}
}

func TestComputeMetrics_Idempotent(t *testing.T) {
	m, _ := newTestManager(t)
	exp := createActive(t, m)
	ctx := context.Background()

	seedEvents(t, m, exp.ID, "control", 150, 30, 0)

	first, err := m.ComputeMetrics(ctx, exp.ID)
	if err != nil {
		t.Fatalf("ComputeMetrics failed: %v", err)
	}
	second, err := m.ComputeMetrics(ctx, exp.ID)
	if err != nil {
		t.Fatalf("ComputeMetrics failed: %v", err)
	}

	if first["control"] != second["control"] {
		t.Errorf("recomputation changed the aggregate: %+v vs %+v", first["control"], second["control"])
	}
}

func TestComputeMetrics_SkipsUnknownVariants(t *testing.T) {
	m, store := newTestManager(t)
	exp := createActive(t, m)
	ctx := context.Background()

	// An event for a variant that is not part of the definition stays in
	// the log but is excluded from the aggregate.
	if err := store.AppendEvent(ctx, Event{
		ID: "orphan", ExperimentID: exp.ID, UserID: "u", Variant: "removed",
		Action: ActionShown,
	}); err != nil {
		t.Fatalf("AppendEvent failed: %v", err)
	}

	metrics, err := m.ComputeMetrics(ctx, exp.ID)
	if err != nil {
		t.Fatalf("ComputeMetrics failed: %v", err)
	}
	if _, ok := metrics["removed"]; ok {
		t.Error("unknown variant leaked into the aggregate")
	}
}

func TestCompareVariants(t *testing.T) {
	m, _ := newTestManager(t)
	exp := createActive(t, m)
	ctx := context.Background()

	seedEvents(t, m, exp.ID, "control", 500, 300, 0) // 60%
	seedEvents(t, m, exp.ID, "explore", 500, 200, 0) // 40%

	cmp, err := m.CompareVariants(ctx, exp.ID, "control", "explore")
	if err != nil {
		t.Fatalf("CompareVariants failed: %v", err)
	}
	if !cmp.IsSignificant {
		t.Errorf("60%% vs 40%% over 500 each should be significant, p = %v", cmp.PValue)
	}
	if cmp.Difference <= 0 {
		t.Errorf("difference = %v, want positive", cmp.Difference)
	}

	if _, err := m.CompareVariants(ctx, exp.ID, "control", "missing"); !errors.Is(err, ErrUnknownVariant) {
		t.Errorf("err = %v, want ErrUnknownVariant", err)
	}
}

func TestResults_InsufficientData(t *testing.T) {
	m, _ := newTestManager(t)
	exp := createActive(t, m)

	// Fewer than 100 discoveries for the leader
	seedEvents(t, m, exp.ID, "control", 50, 30, 0)
	seedEvents(t, m, exp.ID, "explore", 40, 5, 0)

	results, err := m.Results(context.Background(), exp.ID)
	if err != nil {
		t.Fatalf("Results failed: %v", err)
	}
	if results.Kind != RecommendationInsufficientData {
		t.Errorf("kind = %s, want insufficient_data", results.Kind)
	}
	if results.Leader != "control" {
		t.Errorf("leader = %s, want control", results.Leader)
	}
}

func TestResults_SignificantWin(t *testing.T) {
	m, _ := newTestManager(t)
	exp := createActive(t, m)

	seedEvents(t, m, exp.ID, "control", 500, 300, 0) // 60%
	seedEvents(t, m, exp.ID, "explore", 500, 200, 0) // 40%

	results, err := m.Results(context.Background(), exp.ID)
	if err != nil {
		t.Fatalf("Results failed: %v", err)
	}
	if results.Kind != RecommendationSignificantWin {
		t.Errorf("kind = %s, want significant_win", results.Kind)
	}
	if results.Leader != "control" {
		t.Errorf("leader = %s, want control", results.Leader)
	}
	if !results.LeaderComparison.IsSignificant {
		t.Error("leader comparison should be significant")
	}
	if len(results.Comparisons) != 1 {
		t.Errorf("expected 1 pairwise comparison, got %d", len(results.Comparisons))
	}
}

func TestResults_LeadingNotSignificant(t *testing.T) {
	m, _ := newTestManager(t)
	exp := createActive(t, m)

	// 31% vs 30% over 200 each: leading, but far from significance.
	seedEvents(t, m, exp.ID, "control", 200, 62, 0)
	seedEvents(t, m, exp.ID, "explore", 200, 60, 0)

	results, err := m.Results(context.Background(), exp.ID)
	if err != nil {
		t.Fatalf("Results failed: %v", err)
	}
	if results.Kind != RecommendationLeading {
		t.Errorf("kind = %s, want leading_not_significant", results.Kind)
	}
	if results.Leader != "control" {
		t.Errorf("leader = %s, want control", results.Leader)
	}
}

func TestComplete_RecordsWinner(t *testing.T) {
	m, _ := newTestManager(t)
	exp := createActive(t, m)
	ctx := context.Background()

	seedEvents(t, m, exp.ID, "control", 500, 300, 0)
	seedEvents(t, m, exp.ID, "explore", 500, 200, 0)

	if err := m.Complete(ctx, exp.ID); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	got, err := m.Get(ctx, exp.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Winner == nil || *got.Winner != "control" {
		t.Errorf("winner = %v, want control", got.Winner)
	}
	if got.Confidence == nil || *got.Confidence < 0.95 {
		t.Errorf("confidence = %v, want >= 0.95", got.Confidence)
	}
}

func TestComplete_NoWinnerWithoutSignificance(t *testing.T) {
	m, _ := newTestManager(t)
	exp := createActive(t, m)
	ctx := context.Background()

	seedEvents(t, m, exp.ID, "control", 200, 62, 0)
	seedEvents(t, m, exp.ID, "explore", 200, 60, 0)

	if err := m.Complete(ctx, exp.ID); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	got, err := m.Get(ctx, exp.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Winner != nil {
		t.Errorf("winner = %v, want nil without significance", *got.Winner)
	}
}
