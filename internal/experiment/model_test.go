package experiment

import (
	"errors"
	"testing"

	"github.com/wanderco/drift/internal/scoring"
)

func validExperiment() *Experiment {
	return &Experiment{
		Name: "ranking-strategies",
		Variants: []Variant{
			{Name: "control", Allocation: 50, Config: StrategyConfig{Strategy: StrategyDefault}},
			{Name: "explore", Allocation: 50, Config: StrategyConfig{
				Strategy:     StrategyExploreHeavy,
				ExploreHeavy: &ExploreHeavyStrategy{WildnessFloor: 40},
			}},
		},
	}
}

func TestExperimentValidate(t *testing.T) {
	t.Run("valid experiment", func(t *testing.T) {
		if err := validExperiment().Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("missing name", func(t *testing.T) {
		exp := validExperiment()
		exp.Name = ""
		if err := exp.Validate(); err == nil {
			t.Error("expected an error for missing name")
		}
	})

	t.Run("single variant", func(t *testing.T) {
		exp := validExperiment()
		exp.Variants = exp.Variants[:1]
		exp.Variants[0].Allocation = 100
		if err := exp.Validate(); err == nil {
			t.Error("expected an error for fewer than two variants")
		}
	})

	t.Run("duplicate variant names", func(t *testing.T) {
		exp := validExperiment()
		exp.Variants[1].Name = "control"
		if err := exp.Validate(); err == nil {
			t.Error("expected an error for duplicate names")
		}
	})

	t.Run("allocations must sum to 100", func(t *testing.T) {
		exp := validExperiment()
		exp.Variants[1].Allocation = 40
		if err := exp.Validate(); err == nil {
			t.Error("expected an error for allocation sum 90")
		}
	})

	t.Run("sum within tolerance accepted", func(t *testing.T) {
		exp := validExperiment()
		exp.Variants[0].Allocation = 50.005
		exp.Variants[1].Allocation = 50.0
		if err := exp.Validate(); err != nil {
			t.Errorf("sum 100.005 should be within tolerance: %v", err)
		}
	})

	t.Run("negative allocation", func(t *testing.T) {
		exp := validExperiment()
		exp.Variants[0].Allocation = -10
		exp.Variants[1].Allocation = 110
		if err := exp.Validate(); err == nil {
			t.Error("expected an error for negative allocation")
		}
	})

	t.Run("strategy tag without payload", func(t *testing.T) {
		exp := validExperiment()
		exp.Variants[1].Config.ExploreHeavy = nil
		if err := exp.Validate(); err == nil {
			t.Error("expected an error for missing strategy payload")
		}
	})

	t.Run("unknown strategy", func(t *testing.T) {
		exp := validExperiment()
		exp.Variants[0].Config.Strategy = "bandit"
		if err := exp.Validate(); err == nil {
			t.Error("expected an error for unknown strategy")
		}
	})
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusDraft, StatusActive, true},
		{StatusActive, StatusPaused, true},
		{StatusPaused, StatusActive, true},
		{StatusActive, StatusCompleted, true},
		{StatusPaused, StatusCompleted, true},
		{StatusDraft, StatusCompleted, false},
		{StatusDraft, StatusPaused, false},
		{StatusCompleted, StatusActive, false},
		{StatusCompleted, StatusPaused, false},
		{StatusActive, StatusDraft, false},
	}

	for _, tt := range tests {
		if got := canTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("canTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestEventValidate(t *testing.T) {
	valid := Event{
		ExperimentID: "exp-1",
		UserID:       "user-1",
		Variant:      "control",
		Action:       ActionShown,
	}

	t.Run("valid event", func(t *testing.T) {
		ev := valid
		if err := ev.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	cases := []struct {
		name   string
		mutate func(*Event)
	}{
		{"missing experiment id", func(ev *Event) { ev.ExperimentID = "" }},
		{"missing user id", func(ev *Event) { ev.UserID = "" }},
		{"missing variant", func(ev *Event) { ev.Variant = "" }},
		{"unknown action", func(ev *Event) { ev.Action = "clicked" }},
		{"negative time to action", func(ev *Event) { ev.TimeToActionMs = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev := valid
			tc.mutate(&ev)
			err := ev.Validate()
			if !errors.Is(err, ErrMalformedEvent) {
				t.Errorf("err = %v, want ErrMalformedEvent", err)
			}
		})
	}
}

func TestStrategyConfig_ScoringWeights(t *testing.T) {
	t.Run("default strategy copies base", func(t *testing.T) {
		base := scoring.DefaultWeights()
		c := StrategyConfig{Strategy: StrategyDefault}
		w := c.ScoringWeights(base)
		if w == base {
			t.Fatal("expected a copy, got the same pointer")
		}
		if *w != *base {
			t.Errorf("default strategy should not change weights")
		}
	})

	t.Run("explore heavy widens epsilon", func(t *testing.T) {
		c := StrategyConfig{
			Strategy: StrategyExploreHeavy,
			ExploreHeavy: &ExploreHeavyStrategy{
				EpsilonBase:    0.15,
				MaxRandomBonus: 0.5,
			},
		}
		w := c.ScoringWeights(nil)
		if w.Combined.EpsilonBase != 0.15 {
			t.Errorf("EpsilonBase = %v, want 0.15", w.Combined.EpsilonBase)
		}
		if w.Combined.MaxRandomBonus != 0.5 {
			t.Errorf("MaxRandomBonus = %v, want 0.5", w.Combined.MaxRandomBonus)
		}
	})

	t.Run("quality first shifts similarity weights", func(t *testing.T) {
		c := StrategyConfig{
			Strategy: StrategyQualityFirst,
			QualityFirst: &QualityFirstStrategy{
				QualityWeight: 0.4,
				TopicWeight:   0.3,
			},
		}
		w := c.ScoringWeights(nil)
		if w.Similarity.Quality != 0.4 {
			t.Errorf("Similarity.Quality = %v, want 0.4", w.Similarity.Quality)
		}
		if w.Similarity.Topic != 0.3 {
			t.Errorf("Similarity.Topic = %v, want 0.3", w.Similarity.Topic)
		}
	})
}

func TestStrategyConfig_Wildness(t *testing.T) {
	c := StrategyConfig{
		Strategy:     StrategyExploreHeavy,
		ExploreHeavy: &ExploreHeavyStrategy{WildnessFloor: 40},
	}

	if got := c.Wildness(10); got != 40 {
		t.Errorf("Wildness(10) = %d, want floor 40", got)
	}
	if got := c.Wildness(80); got != 80 {
		t.Errorf("Wildness(80) = %d, want 80", got)
	}

	def := StrategyConfig{Strategy: StrategyDefault}
	if got := def.Wildness(10); got != 10 {
		t.Errorf("default Wildness(10) = %d, want 10", got)
	}
}

func TestVariantByName(t *testing.T) {
	exp := validExperiment()
	if v := exp.VariantByName("control"); v == nil || v.Name != "control" {
		t.Errorf("VariantByName(control) = %v", v)
	}
	if v := exp.VariantByName("missing"); v != nil {
		t.Errorf("VariantByName(missing) = %v, want nil", v)
	}
}
