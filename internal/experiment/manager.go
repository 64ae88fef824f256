package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/wanderco/drift/internal/scoring"
)

// minSampleSize is the discovery count below which results are reported
// as insufficient data regardless of observed rates.
const minSampleSize = 100

// Manager coordinates experiment lifecycle, sticky variant assignment,
// event logging, and statistical analysis.
type Manager struct {
	store  Store
	rng    scoring.Rand
	logger *slog.Logger
	now    func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithRand sets the random source used for weighted assignment.
func WithRand(rng scoring.Rand) ManagerOption {
	return func(m *Manager) { m.rng = rng }
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a new experiment manager.
func NewManager(store Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		store:  store,
		rng:    scoring.SystemRand{},
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create validates and persists a new draft experiment.
func (m *Manager) Create(ctx context.Context, exp *Experiment) error {
	if err := exp.Validate(); err != nil {
		return fmt.Errorf("invalid experiment: %w", err)
	}
	if exp.ID == "" {
		exp.ID = uuid.New().String()
	}
	exp.Status = StatusDraft
	exp.CreatedAt = m.now()
	exp.UpdatedAt = exp.CreatedAt

	if err := m.store.SaveExperiment(ctx, exp); err != nil {
		return err
	}
	m.logger.Info("experiment created",
		"experiment_id", exp.ID,
		"name", exp.Name,
		"variants", len(exp.Variants))
	return nil
}

// Get returns an experiment by ID.
func (m *Manager) Get(ctx context.Context, id string) (*Experiment, error) {
	return m.store.GetExperiment(ctx, id)
}

// Start transitions a draft experiment to active.
func (m *Manager) Start(ctx context.Context, id string) error {
	return m.transition(ctx, id, StatusActive, StatusDraft)
}

// Pause transitions an active experiment to paused.
func (m *Manager) Pause(ctx context.Context, id string) error {
	return m.transition(ctx, id, StatusPaused, StatusActive)
}

// Resume transitions a paused experiment back to active.
func (m *Manager) Resume(ctx context.Context, id string) error {
	return m.transition(ctx, id, StatusActive, StatusPaused)
}

// Complete finishes an active or paused experiment, recording the winner
// when the results are significant.
func (m *Manager) Complete(ctx context.Context, id string) error {
	exp, err := m.store.GetExperiment(ctx, id)
	if err != nil {
		return err
	}
	if !canTransition(exp.Status, StatusCompleted) {
		return fmt.Errorf("%w: cannot complete from %s", ErrInvalidState, exp.Status)
	}

	// Capture the final analysis before freezing the experiment
	if results, err := m.Results(ctx, id); err == nil && results.Kind == RecommendationSignificantWin {
		exp.Winner = &results.Leader
		confidence := 1 - results.LeaderComparison.PValue
		exp.Confidence = &confidence
	} else if err != nil {
		m.logger.Warn("failed to compute final results on completion",
			"experiment_id", id,
			"error", err)
	}

	exp.Status = StatusCompleted
	exp.UpdatedAt = m.now()
	if err := m.store.SaveExperiment(ctx, exp); err != nil {
		return err
	}
	m.logger.Info("experiment completed",
		"experiment_id", id,
		"winner", exp.Winner)
	return nil
}

// Delete removes a draft experiment. Non-draft experiments cannot be
// deleted.
func (m *Manager) Delete(ctx context.Context, id string) error {
	exp, err := m.store.GetExperiment(ctx, id)
	if err != nil {
		return err
	}
	if exp.Status != StatusDraft {
		return fmt.Errorf("%w: only draft experiments can be deleted (status %s)", ErrInvalidState, exp.Status)
	}
	return m.store.DeleteExperiment(ctx, id)
}

// transition applies a guarded status change.
func (m *Manager) transition(ctx context.Context, id string, to Status, allowedFrom ...Status) error {
	exp, err := m.store.GetExperiment(ctx, id)
	if err != nil {
		return err
	}

	allowed := false
	for _, from := range allowedFrom {
		if exp.Status == from {
			allowed = true
			break
		}
	}
	if !allowed || !canTransition(exp.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, exp.Status, to)
	}

	exp.Status = to
	exp.UpdatedAt = m.now()
	if err := m.store.SaveExperiment(ctx, exp); err != nil {
		return err
	}
	m.logger.Info("experiment transitioned",
		"experiment_id", id,
		"status", to)
	return nil
}

// AssignVariant returns the user's sticky variant for an experiment,
// creating it on first request via weighted-random selection over the
// traffic allocation. Returns nil with no error when the experiment is
// not active.
//
// Concurrent first-time requests for the same (user, experiment) resolve
// to the first persisted row: the insert hits the store's uniqueness
// constraint and the winner is re-read.
func (m *Manager) AssignVariant(ctx context.Context, userID, experimentID string) (*Assignment, error) {
	exp, err := m.store.GetExperiment(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	if exp.Status != StatusActive {
		return nil, nil
	}

	existing, err := m.store.GetAssignment(ctx, userID, experimentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	assignment := Assignment{
		UserID:       userID,
		ExperimentID: experimentID,
		Variant:      m.pickVariant(exp),
		CreatedAt:    m.now(),
	}

	err = m.store.InsertAssignment(ctx, assignment)
	if err == ErrAssignmentExists {
		// Lost the race: the first writer wins, re-read it
		return m.store.GetAssignment(ctx, userID, experimentID)
	}
	if err != nil {
		return nil, err
	}

	m.logger.Debug("variant assigned",
		"experiment_id", experimentID,
		"user_id", userID,
		"variant", assignment.Variant)
	return &assignment, nil
}

// pickVariant draws a variant weighted by traffic allocation.
func (m *Manager) pickVariant(exp *Experiment) string {
	roll := m.rng.Float64() * 100.0
	var cumulative float64
	for _, v := range exp.Variants {
		cumulative += v.Allocation
		if roll < cumulative {
			return v.Name
		}
	}
	// Floating point slack lands on the last variant
	return exp.Variants[len(exp.Variants)-1].Name
}

// ResolvedStrategy is the scoring configuration selected by a user's
// assignment in an active experiment.
type ResolvedStrategy struct {
	ExperimentID string
	Variant      string
	Config       StrategyConfig
}

// StrategyFor resolves the scoring strategy for a user by assigning them
// to the oldest active experiment that targets their preferred topics.
// Returns nil with no error when no active experiment applies; callers
// then rank with the default configuration.
func (m *Manager) StrategyFor(ctx context.Context, userID string, preferredTopics []string) (*ResolvedStrategy, error) {
	exps, err := m.store.ListExperiments(ctx, StatusActive)
	if err != nil {
		return nil, err
	}

	for _, exp := range exps {
		if !exp.Targets(preferredTopics) {
			continue
		}
		a, err := m.AssignVariant(ctx, userID, exp.ID)
		if err != nil {
			return nil, err
		}
		if a == nil {
			continue
		}
		v := exp.VariantByName(a.Variant)
		if v == nil {
			// The definition changed after the assignment was written.
			// Skip rather than apply a stale config.
			m.logger.Warn("assignment references a removed variant",
				"experiment_id", exp.ID,
				"user_id", userID,
				"variant", a.Variant)
			continue
		}
		return &ResolvedStrategy{
			ExperimentID: exp.ID,
			Variant:      a.Variant,
			Config:       v.Config,
		}, nil
	}
	return nil, nil
}

// LogEvent appends an outcome event to the experiment log. Events are
// validated for shape only and never rejected for business reasons.
func (m *Manager) LogEvent(ctx context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = m.now()
	}
	return m.store.AppendEvent(ctx, ev)
}

// ComputeMetrics aggregates per-variant metrics from the event log.
// Recomputation over an unchanged log is idempotent.
func (m *Manager) ComputeMetrics(ctx context.Context, experimentID string) (map[string]VariantMetrics, error) {
	exp, err := m.store.GetExperiment(ctx, experimentID)
	if err != nil {
		return nil, err
	}

	events, err := m.store.QueryEvents(ctx, experimentID, "")
	if err != nil {
		return nil, err
	}

	metrics := make(map[string]VariantMetrics, len(exp.Variants))
	for _, v := range exp.Variants {
		metrics[v.Name] = VariantMetrics{Variant: v.Name}
	}

	for _, ev := range events {
		vm, ok := metrics[ev.Variant]
		if !ok {
			// Events for removed variants are kept in the log but
			// excluded from the aggregate
			continue
		}
		switch ev.Action {
		case ActionShown:
			vm.Discoveries++
		case ActionLiked:
			vm.Likes++
		case ActionSaved:
			vm.Saves++
		case ActionShared:
			vm.Shares++
		case ActionSkipped:
			vm.Skips++
		}
		metrics[ev.Variant] = vm
	}

	for name, vm := range metrics {
		if vm.Discoveries > 0 {
			// A user can like, save, and share the same shown item, so
			// the positive-action count can exceed discoveries. Cap the
			// rate at 1 to keep it a valid proportion.
			vm.EngagementRate = float64(vm.Likes+vm.Saves+vm.Shares) / float64(vm.Discoveries)
			if vm.EngagementRate > 1 {
				vm.EngagementRate = 1
			}
		}
		vm.StdError = StandardError(vm.EngagementRate, vm.Discoveries)
		vm.CILow, vm.CIHigh = ConfidenceInterval95(vm.EngagementRate, vm.Discoveries)
		metrics[name] = vm
	}

	return metrics, nil
}

// CompareVariants runs a two-proportion comparison of engagement rates
// between two variants of an experiment.
func (m *Manager) CompareVariants(ctx context.Context, experimentID, variantA, variantB string) (*Comparison, error) {
	metrics, err := m.ComputeMetrics(ctx, experimentID)
	if err != nil {
		return nil, err
	}

	a, ok := metrics[variantA]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVariant, variantA)
	}
	b, ok := metrics[variantB]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVariant, variantB)
	}

	z, p := TwoProportionTest(a.EngagementRate, a.Discoveries, b.EngagementRate, b.Discoveries)
	return &Comparison{
		VariantA:      variantA,
		VariantB:      variantB,
		RateA:         a.EngagementRate,
		RateB:         b.EngagementRate,
		Difference:    a.EngagementRate - b.EngagementRate,
		ZStat:         z,
		PValue:        p,
		IsSignificant: p < significanceLevel,
	}, nil
}

// RecommendationKind distinguishes the three result branches.
type RecommendationKind string

// Recommendation branches.
const (
	RecommendationSignificantWin   RecommendationKind = "significant_win"
	RecommendationLeading          RecommendationKind = "leading_not_significant"
	RecommendationInsufficientData RecommendationKind = "insufficient_data"
)

// ExperimentResults is the full analysis of an experiment.
type ExperimentResults struct {
	ExperimentID string                    `json:"experiment_id"`
	Metrics      map[string]VariantMetrics `json:"metrics"`
	Comparisons  []Comparison              `json:"comparisons"`

	// Leader is the variant with the highest engagement rate.
	Leader string `json:"leader"`

	// LeaderComparison is the leader's pairwise comparison against the
	// runner-up.
	LeaderComparison Comparison `json:"leader_comparison"`

	Kind           RecommendationKind `json:"kind"`
	Recommendation string             `json:"recommendation"`
}

// Results pairwise-compares all variants and recommends a winner. The
// recommendation distinguishes a significant win, a lead that has not yet
// reached significance, and insufficient data (fewer than 100 discoveries
// for the leading variant).
func (m *Manager) Results(ctx context.Context, experimentID string) (*ExperimentResults, error) {
	metrics, err := m.ComputeMetrics(ctx, experimentID)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	var comparisons []Comparison
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			a, b := metrics[names[i]], metrics[names[j]]
			z, p := TwoProportionTest(a.EngagementRate, a.Discoveries, b.EngagementRate, b.Discoveries)
			comparisons = append(comparisons, Comparison{
				VariantA:      a.Variant,
				VariantB:      b.Variant,
				RateA:         a.EngagementRate,
				RateB:         b.EngagementRate,
				Difference:    a.EngagementRate - b.EngagementRate,
				ZStat:         z,
				PValue:        p,
				IsSignificant: p < significanceLevel,
			})
		}
	}

	// Leader by engagement rate, runner-up next
	sort.SliceStable(names, func(i, j int) bool {
		return metrics[names[i]].EngagementRate > metrics[names[j]].EngagementRate
	})
	leader := metrics[names[0]]

	results := &ExperimentResults{
		ExperimentID: experimentID,
		Metrics:      metrics,
		Comparisons:  comparisons,
		Leader:       leader.Variant,
	}

	if len(names) > 1 {
		runnerUp := metrics[names[1]]
		z, p := TwoProportionTest(leader.EngagementRate, leader.Discoveries, runnerUp.EngagementRate, runnerUp.Discoveries)
		results.LeaderComparison = Comparison{
			VariantA:      leader.Variant,
			VariantB:      runnerUp.Variant,
			RateA:         leader.EngagementRate,
			RateB:         runnerUp.EngagementRate,
			Difference:    leader.EngagementRate - runnerUp.EngagementRate,
			ZStat:         z,
			PValue:        p,
			IsSignificant: p < significanceLevel,
		}
	}

	switch {
	case leader.Discoveries < minSampleSize:
		results.Kind = RecommendationInsufficientData
		results.Recommendation = fmt.Sprintf(
			"Insufficient data: %q leads with %.1f%% engagement but has only %d discoveries (need %d). Keep the experiment running.",
			leader.Variant, leader.EngagementRate*100, leader.Discoveries, minSampleSize)

	case results.LeaderComparison.IsSignificant:
		results.Kind = RecommendationSignificantWin
		results.Recommendation = fmt.Sprintf(
			"Significant win: %q outperforms %q (%.1f%% vs %.1f%% engagement, p=%.4f). Recommend adopting %q.",
			leader.Variant, results.LeaderComparison.VariantB,
			results.LeaderComparison.RateA*100, results.LeaderComparison.RateB*100,
			results.LeaderComparison.PValue, leader.Variant)

	default:
		results.Kind = RecommendationLeading
		results.Recommendation = fmt.Sprintf(
			"%q is leading with %.1f%% engagement but the difference is not yet statistically significant (p=%.4f). Keep collecting data.",
			leader.Variant, leader.EngagementRate*100, results.LeaderComparison.PValue)
	}

	return results, nil
}
