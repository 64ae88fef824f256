// Package experiment provides A/B experiment management for ranking
// strategies: lifecycle control, sticky per-user variant assignment,
// append-only event logging, metric aggregation, and statistical
// comparison between variants.
package experiment

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/wanderco/drift/internal/scoring"
)

// Common errors for experiment operations.
var (
	// ErrNotFound is returned when an experiment does not exist.
	ErrNotFound = errors.New("experiment not found")

	// ErrInvalidState is returned when a lifecycle transition is not
	// allowed from the current status. No mutation is applied.
	ErrInvalidState = errors.New("invalid experiment state transition")

	// ErrMalformedEvent is returned when an event fails validation.
	// Events are never rejected for business reasons, only malformed input.
	ErrMalformedEvent = errors.New("malformed experiment event")

	// ErrAssignmentExists is returned by stores when the unique
	// (user, experiment) constraint is hit. The manager resolves it by
	// re-reading the first persisted row.
	ErrAssignmentExists = errors.New("assignment already exists")

	// ErrUnknownVariant is returned when a variant name does not belong
	// to the experiment.
	ErrUnknownVariant = errors.New("unknown variant")
)

// Status is the experiment lifecycle state.
type Status string

// Lifecycle states. Transitions are monotonic except pause and active:
// draft -> active -> {paused <-> active} -> completed. Draft experiments
// are freely deletable; non-draft are not.
const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// StrategyID identifies a scoring strategy a variant applies.
type StrategyID string

// Known scoring strategies.
const (
	StrategyDefault      StrategyID = "default"
	StrategyExploreHeavy StrategyID = "explore_heavy"
	StrategyQualityFirst StrategyID = "quality_first"
)

// DefaultStrategy is the baseline: calibrated weights, no bias.
type DefaultStrategy struct{}

// ExploreHeavyStrategy biases users toward exploration by enforcing a
// wildness floor and widening the epsilon-greedy bonus.
type ExploreHeavyStrategy struct {
	WildnessFloor  int     `json:"wildness_floor"`
	EpsilonBase    float64 `json:"epsilon_base"`
	MaxRandomBonus float64 `json:"max_random_bonus"`
}

// QualityFirstStrategy shifts multi-factor similarity weight from topics
// toward quality closeness.
type QualityFirstStrategy struct {
	QualityWeight float64 `json:"quality_weight"`
	TopicWeight   float64 `json:"topic_weight"`
}

// StrategyConfig is a tagged union of per-variant scoring configuration.
// Exactly the field matching Strategy is set; the others are nil.
type StrategyConfig struct {
	Strategy StrategyID `json:"strategy"`

	Default      *DefaultStrategy      `json:"default,omitempty"`
	ExploreHeavy *ExploreHeavyStrategy `json:"explore_heavy,omitempty"`
	QualityFirst *QualityFirstStrategy `json:"quality_first,omitempty"`
}

// Validate checks that the tag matches the populated payload.
func (c StrategyConfig) Validate() error {
	switch c.Strategy {
	case StrategyDefault:
		return nil
	case StrategyExploreHeavy:
		if c.ExploreHeavy == nil {
			return fmt.Errorf("strategy %s requires explore_heavy config", c.Strategy)
		}
		return nil
	case StrategyQualityFirst:
		if c.QualityFirst == nil {
			return fmt.Errorf("strategy %s requires quality_first config", c.Strategy)
		}
		return nil
	default:
		return fmt.Errorf("unknown strategy %q", c.Strategy)
	}
}

// ScoringWeights maps the strategy onto concrete scoring weights, starting
// from the given base calibration. Pass nil to start from defaults.
func (c StrategyConfig) ScoringWeights(base *scoring.Weights) *scoring.Weights {
	w := scoring.MergeCalibration(base, nil) // copy

	switch c.Strategy {
	case StrategyExploreHeavy:
		if c.ExploreHeavy != nil {
			if c.ExploreHeavy.EpsilonBase > 0 {
				w.Combined.EpsilonBase = c.ExploreHeavy.EpsilonBase
			}
			if c.ExploreHeavy.MaxRandomBonus > 0 {
				w.Combined.MaxRandomBonus = c.ExploreHeavy.MaxRandomBonus
			}
		}
	case StrategyQualityFirst:
		if c.QualityFirst != nil {
			if c.QualityFirst.QualityWeight > 0 {
				w.Similarity.Quality = c.QualityFirst.QualityWeight
			}
			if c.QualityFirst.TopicWeight > 0 {
				w.Similarity.Topic = c.QualityFirst.TopicWeight
			}
		}
	}
	return w
}

// Wildness applies the strategy's wildness bias to a user's setting.
func (c StrategyConfig) Wildness(userWildness int) int {
	if c.Strategy == StrategyExploreHeavy && c.ExploreHeavy != nil {
		if userWildness < c.ExploreHeavy.WildnessFloor {
			return c.ExploreHeavy.WildnessFloor
		}
	}
	return userWildness
}

// Variant is one arm of an experiment.
type Variant struct {
	Name string `json:"name"`

	// Allocation is the traffic percentage for this variant. All
	// allocations in an experiment must sum to 100 within 0.01.
	Allocation float64 `json:"allocation"`

	Config StrategyConfig `json:"config"`
}

// allocationTolerance is the permitted deviation of the allocation sum
// from 100.
const allocationTolerance = 0.01

// Experiment is an A/B comparison of ranking strategies.
type Experiment struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Variants []Variant `json:"variants"`

	// TargetTopics optionally restricts the experiment population to
	// users preferring at least one of the topics. Empty means everyone.
	TargetTopics []string `json:"target_topics,omitempty"`

	Status Status `json:"status"`

	// Winner and Confidence are set when the experiment completes with a
	// significant result.
	Winner     *string  `json:"winner,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks structural invariants: at least two variants, unique
// names, valid strategy configs, and allocations summing to 100 +-0.01.
func (e *Experiment) Validate() error {
	if e.Name == "" {
		return errors.New("experiment name is required")
	}
	if len(e.Variants) < 2 {
		return errors.New("experiment requires at least two variants")
	}

	seen := make(map[string]struct{}, len(e.Variants))
	var sum float64
	for _, v := range e.Variants {
		if v.Name == "" {
			return errors.New("variant name is required")
		}
		if _, dup := seen[v.Name]; dup {
			return fmt.Errorf("duplicate variant name %q", v.Name)
		}
		seen[v.Name] = struct{}{}
		if v.Allocation < 0 {
			return fmt.Errorf("variant %q has negative allocation", v.Name)
		}
		if err := v.Config.Validate(); err != nil {
			return fmt.Errorf("variant %q: %w", v.Name, err)
		}
		sum += v.Allocation
	}

	if math.Abs(sum-100) > allocationTolerance {
		return fmt.Errorf("variant allocations sum to %.4f, expected 100", sum)
	}
	return nil
}

// Targets reports whether a user with the given preferred topics falls
// in the experiment population. An empty target list matches everyone.
func (e *Experiment) Targets(preferredTopics []string) bool {
	if len(e.TargetTopics) == 0 {
		return true
	}
	for _, target := range e.TargetTopics {
		for _, topic := range preferredTopics {
			if topic == target {
				return true
			}
		}
	}
	return false
}

// VariantByName returns the named variant, or nil.
func (e *Experiment) VariantByName(name string) *Variant {
	for i := range e.Variants {
		if e.Variants[i].Name == name {
			return &e.Variants[i]
		}
	}
	return nil
}

// canTransition reports whether the lifecycle transition is allowed.
func canTransition(from, to Status) bool {
	switch to {
	case StatusActive:
		return from == StatusDraft || from == StatusPaused
	case StatusPaused:
		return from == StatusActive
	case StatusCompleted:
		return from == StatusActive || from == StatusPaused
	default:
		return false
	}
}

// Assignment is a sticky (user, experiment) -> variant mapping, created
// once and immutable thereafter.
type Assignment struct {
	UserID       string    `json:"user_id"`
	ExperimentID string    `json:"experiment_id"`
	Variant      string    `json:"variant"`
	CreatedAt    time.Time `json:"created_at"`
}

// Action is an experiment outcome event type.
type Action string

// Supported event actions.
const (
	ActionShown   Action = "shown"
	ActionLiked   Action = "liked"
	ActionSaved   Action = "saved"
	ActionShared  Action = "shared"
	ActionSkipped Action = "skipped"
)

// validAction reports whether a is a known action.
func validAction(a Action) bool {
	switch a {
	case ActionShown, ActionLiked, ActionSaved, ActionShared, ActionSkipped:
		return true
	}
	return false
}

// Event is one append-only experiment log row. Events are never mutated
// or deleted.
type Event struct {
	ID           string  `json:"id"`
	ExperimentID string  `json:"experiment_id"`
	UserID       string  `json:"user_id"`
	Variant      string  `json:"variant"`
	Action       Action  `json:"action"`
	ContentID    string  `json:"content_id,omitempty"`
	Score        float64 `json:"score,omitempty"`

	// TimeToActionMs is the optional delay between shown and the action.
	TimeToActionMs int64  `json:"time_to_action_ms,omitempty"`
	SessionID      string `json:"session_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the event for schema violations.
func (ev *Event) Validate() error {
	if ev.ExperimentID == "" {
		return fmt.Errorf("%w: experiment_id is required", ErrMalformedEvent)
	}
	if ev.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrMalformedEvent)
	}
	if ev.Variant == "" {
		return fmt.Errorf("%w: variant is required", ErrMalformedEvent)
	}
	if !validAction(ev.Action) {
		return fmt.Errorf("%w: unknown action %q", ErrMalformedEvent, ev.Action)
	}
	if ev.TimeToActionMs < 0 {
		return fmt.Errorf("%w: negative time_to_action_ms", ErrMalformedEvent)
	}
	return nil
}

// VariantMetrics is the per-variant aggregate derived from the event log.
// Recomputed on demand; recomputation over the same events is idempotent.
type VariantMetrics struct {
	Variant     string `json:"variant"`
	Discoveries int64  `json:"discoveries"` // shown events
	Likes       int64  `json:"likes"`
	Saves       int64  `json:"saves"`
	Shares      int64  `json:"shares"`
	Skips       int64  `json:"skips"`

	// EngagementRate is (likes+saves+shares) / discoveries, capped at 1
	// since one user can take several positive actions on a single
	// discovery.
	EngagementRate float64 `json:"engagement_rate"`

	// StdError and the 95% confidence interval use the normal
	// approximation to a binomial proportion.
	StdError float64 `json:"std_error"`
	CILow    float64 `json:"ci_low"`
	CIHigh   float64 `json:"ci_high"`
}
