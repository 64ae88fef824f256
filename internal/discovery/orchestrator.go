// Package discovery composes candidate retrieval and scoring into the
// externally callable ranking entry point.
package discovery

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wanderco/drift/internal/candidate"
	"github.com/wanderco/drift/internal/content"
	"github.com/wanderco/drift/internal/scoring"
	"github.com/wanderco/drift/internal/telemetry"
)

// ErrNoCandidates is returned when the candidate pool is empty after
// diversity filtering. Callers may relax their exclusion filters and
// retry once; the engine itself never retries.
var ErrNoCandidates = errors.New("no candidates available")

// Discovery is the ranked result returned to the boundary layer.
type Discovery struct {
	Item       content.Item       `json:"item"`
	Score      float64            `json:"score"`
	Reason     string             `json:"reason"`
	ReasonCode scoring.ReasonCode `json:"reason_code"`

	// Components is the per-factor score breakdown for explainability.
	Components Components `json:"components"`
}

// Components breaks a final score into its factors.
type Components struct {
	Freshness   float64 `json:"freshness"`
	Popularity  float64 `json:"popularity"`
	Similarity  float64 `json:"similarity"`
	Exploration float64 `json:"exploration"`
}

// Orchestrator picks and ranks the next discovery for a user.
// The ranking path is stateless and request-scoped; any number of Next
// calls may run concurrently.
type Orchestrator struct {
	retriever *candidate.Retriever
	metricsOf content.Store
	recorder  telemetry.Recorder
	weights   *scoring.Weights
	rng       scoring.Rand
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time

	// algorithm identifies the scoring configuration variant in
	// telemetry, typically set per-user by the experiment layer.
	algorithm string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWeights sets the calibrated scoring weights.
func WithWeights(w *scoring.Weights) Option {
	return func(o *Orchestrator) { o.weights = w }
}

// WithRand sets the random source used for exploration.
func WithRand(rng scoring.Rand) Option {
	return func(o *Orchestrator) { o.rng = rng }
}

// WithMetrics sets the Prometheus metrics instance.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithAlgorithm sets the scoring variant identifier recorded in telemetry.
func WithAlgorithm(name string) Option {
	return func(o *Orchestrator) { o.algorithm = name }
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates a new ranking orchestrator. The store is used
// for metrics lookups on the candidate pool; the recorder receives one
// telemetry event per successful ranking.
func NewOrchestrator(
	retriever *candidate.Retriever,
	store content.Store,
	recorder telemetry.Recorder,
	logger *slog.Logger,
	opts ...Option,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		retriever: retriever,
		metricsOf: store,
		recorder:  recorder,
		weights:   scoring.DefaultWeights(),
		rng:       scoring.SystemRand{},
		logger:    logger,
		now:       time.Now,
		algorithm: "default",
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Strategy is a per-call scoring override, typically resolved from the
// user's experiment assignment. Zero-value fields fall back to the
// orchestrator's configured defaults.
type Strategy struct {
	// Weights replaces the calibrated scoring weights for this call.
	Weights *scoring.Weights

	// Algorithm names the scoring variant recorded in telemetry.
	Algorithm string
}

// Next returns the highest-scoring discovery for the user, excluding the
// given content IDs. Ties on score break toward the most recently created
// item. Returns ErrNoCandidates when the diverse pool is empty.
//
// Telemetry recording is fire-and-forget: a failure is logged and counted
// but never fails the ranking call.
func (o *Orchestrator) Next(ctx context.Context, userID string, uctx content.UserContext, excludeIDs []string) (*Discovery, error) {
	return o.NextWithStrategy(ctx, userID, uctx, excludeIDs, Strategy{})
}

// NextWithStrategy ranks like Next but applies a per-call scoring
// strategy, so one orchestrator can serve every experiment variant.
func (o *Orchestrator) NextWithStrategy(ctx context.Context, userID string, uctx content.UserContext, excludeIDs []string, strat Strategy) (*Discovery, error) {
	weights := o.weights
	if strat.Weights != nil {
		weights = strat.Weights
	}
	algorithm := o.algorithm
	if strat.Algorithm != "" {
		algorithm = strat.Algorithm
	}

	tracer := otel.Tracer("drift/discovery")
	ctx, span := tracer.Start(ctx, "discovery.next",
		trace.WithAttributes(
			attribute.String("discovery.algorithm", algorithm),
			attribute.Int("discovery.wildness", uctx.Wildness),
			attribute.Int("discovery.exclude_count", len(excludeIDs)),
		),
	)
	defer span.End()

	start := o.now()
	if o.metrics != nil {
		o.metrics.IncRequests()
	}

	pool := o.retriever.Candidates(ctx, excludeIDs, uctx.PreferredTopics)
	if len(pool) == 0 {
		if o.metrics != nil {
			o.metrics.IncNoCandidates()
		}
		span.SetStatus(codes.Error, ErrNoCandidates.Error())
		return nil, ErrNoCandidates
	}
	span.SetAttributes(attribute.Int("discovery.pool_size", len(pool)))

	metrics := o.poolMetrics(ctx, pool)

	best, bestComponents, bestScore := o.scorePool(pool, metrics, uctx, weights)

	reasonCode, reason := scoring.Reason(scoring.ReasonInput{
		Item:       best,
		UserTopics: uctx.PreferredTopics,
		Score:      bestScore,
		Popularity: bestComponents.Popularity,
		AgeDays:    best.AgeDays(o.now()),
		Wildness:   uctx.Wildness,
	})

	result := &Discovery{
		Item:       *best,
		Score:      bestScore,
		Reason:     reason,
		ReasonCode: reasonCode,
		Components: bestComponents,
	}

	o.record(ctx, userID, uctx, result, algorithm)

	if o.metrics != nil {
		o.metrics.ObserveScore(bestScore)
		o.metrics.ObserveDuration(o.now().Sub(start).Seconds())
	}

	return result, nil
}

// poolMetrics fetches metrics for the pool; a metrics lookup failure is
// tolerated, scoring proceeds with zero-value metrics.
func (o *Orchestrator) poolMetrics(ctx context.Context, pool []content.Item) map[string]content.Metrics {
	ids := make([]string, len(pool))
	for i := range pool {
		ids[i] = pool[i].ID
	}
	metrics, err := o.metricsOf.GetMetrics(ctx, ids)
	if err != nil {
		o.logger.Warn("failed to fetch pool metrics, scoring without them",
			"error", err)
		return map[string]content.Metrics{}
	}
	return metrics
}

// scorePool scores every candidate and returns the arg-max, breaking ties
// by most recent creation time.
func (o *Orchestrator) scorePool(
	pool []content.Item,
	metrics map[string]content.Metrics,
	uctx content.UserContext,
	weights *scoring.Weights,
) (*content.Item, Components, float64) {
	now := o.now()

	var best *content.Item
	var bestComponents Components
	bestScore := -1.0

	for i := range pool {
		item := &pool[i]
		ageDays := item.AgeDays(now)
		m := metrics[item.ID]

		freshness := scoring.Freshness(ageDays, scoring.DefaultHalfLifeDays)
		popularity := scoring.PopularityScore(m, ageDays, scoring.DefaultGlobalAvgEngagement)
		similarity := scoring.SimilarityToUser(uctx.PreferredTopics, item)
		exploration := scoring.ExplorationBoost(uctx.Wildness, similarity, popularity, o.rng)

		score := scoring.CombinedScore(scoring.CombinedInput{
			Base:       item.BaseScore,
			Quality:    item.QualityScore,
			Freshness:  freshness,
			Popularity: popularity,
			Similarity: exploration,
			Wildness:   uctx.Wildness,
			Engagement: uctx.Engagement,
			Hour:       uctx.Hour,
		}, o.rng, weights)

		better := score > bestScore ||
			(score == bestScore && best != nil && item.CreatedAt.After(best.CreatedAt))
		if better {
			best = item
			bestScore = score
			bestComponents = Components{
				Freshness:   freshness,
				Popularity:  popularity,
				Similarity:  similarity,
				Exploration: exploration,
			}
		}
	}

	return best, bestComponents, bestScore
}

// record emits the telemetry event for a ranked discovery.
func (o *Orchestrator) record(ctx context.Context, userID string, uctx content.UserContext, d *Discovery, algorithm string) {
	event := telemetry.Event{
		UserID:    userID,
		ContentID: d.Item.ID,
		Algorithm: algorithm,
		Wildness:  uctx.Wildness,
		BaseScore: d.Item.BaseScore,
		Score:     d.Score,
		Rank:      1,
		CreatedAt: o.now(),
		Context: &telemetry.EventContext{
			PreferredTopics: uctx.PreferredTopics,
			Hour:            uctx.Hour,
			Weekday:         int(uctx.Weekday),
			ReasonCode:      string(d.ReasonCode),
		},
	}

	if err := o.recorder.Record(ctx, event); err != nil {
		o.logger.Warn("failed to record discovery telemetry",
			"user_id", userID,
			"content_id", d.Item.ID,
			"error", err)
		if o.metrics != nil {
			o.metrics.IncTelemetryDrops()
		}
	}
}
