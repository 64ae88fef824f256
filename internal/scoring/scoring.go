// Package scoring provides the pure ranking calculations for discovery:
// freshness decay, Bayesian-smoothed engagement, personalization,
// exploration boosting, the combined ranking score, and windowed trending
// velocity. All functions are side-effect free; randomness is isolated
// behind the Rand interface.
package scoring

import (
	"math"

	"github.com/wanderco/drift/internal/content"
)

// Fixed design constants. Implementations elsewhere depend on these exact
// values for score parity.
const (
	// DefaultHalfLifeDays is the freshness half-life.
	DefaultHalfLifeDays = 14.0

	// DefaultPrior and DefaultPriorWeight parameterize Bayesian smoothing.
	DefaultPrior       = 0.5
	DefaultPriorWeight = 10.0

	// DefaultGlobalAvgEngagement normalizes popularity scores.
	DefaultGlobalAvgEngagement = 0.3

	// saveWeight and shareWeight scale saves and shares relative to likes
	// when computing engagement positives.
	saveWeight  = 1.2
	shareWeight = 0.8

	// recencyBonusHalfLifeDays and recencyBonusScale control the
	// engagement-independent bonus recent items receive in popularity.
	recencyBonusHalfLifeDays = 7.0
	recencyBonusScale        = 0.3

	// trendingVolumeSaturation is the view count at which the trending
	// volume factor saturates at 1.
	trendingVolumeSaturation = 100.0
)

// Freshness returns the exponential-decay recency score for an item of the
// given age: exp(-ln2 * ageDays / halfLifeDays). Equals 1 at age 0 and 0.5
// at age == halfLifeDays. Pass halfLifeDays <= 0 to use the default.
func Freshness(ageDays, halfLifeDays float64) float64 {
	if halfLifeDays <= 0 {
		halfLifeDays = DefaultHalfLifeDays
	}
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Exp(-math.Ln2 * ageDays / halfLifeDays)
}

// BayesianSmooth blends an observed positive rate with a prior to
// stabilize low-sample estimates:
//
//	(positive + prior*priorWeight) / (total + priorWeight)
//
// Returns prior when total is 0. This is the only mechanism that keeps
// near-zero-interaction items scoreable without extreme variance.
func BayesianSmooth(positive, total, prior, priorWeight float64) float64 {
	if total <= 0 {
		return prior
	}
	return (positive + prior*priorWeight) / (total + priorWeight)
}

// EngagementScore computes the Bayesian-smoothed engagement rate for an
// item's metrics. Saves count 1.2x and shares 0.8x relative to likes;
// skips count against. The result is clamped to [0.1, 1.0].
func EngagementScore(m content.Metrics) float64 {
	positives := float64(m.Likes) + saveWeight*float64(m.Saves) + shareWeight*float64(m.Shares)
	total := float64(m.Likes + m.Saves + m.Shares + m.Skips)

	score := BayesianSmooth(positives, total, DefaultPrior, DefaultPriorWeight)
	return clamp(score, 0.1, 1.0)
}

// PopularityScore computes a normalized popularity score from engagement
// and a recency bonus that is independent of engagement:
//
//	min(1, engagement/max(0.1, globalAvg) + exp(-ageDays/7) * 0.3)
//
// Pass globalAvgEngagement <= 0 to use the default.
func PopularityScore(m content.Metrics, ageDays, globalAvgEngagement float64) float64 {
	if globalAvgEngagement <= 0 {
		globalAvgEngagement = DefaultGlobalAvgEngagement
	}
	if ageDays < 0 {
		ageDays = 0
	}

	engagement := EngagementScore(m)
	normalized := engagement / math.Max(0.1, globalAvgEngagement)
	recencyBonus := math.Exp(-ageDays/recencyBonusHalfLifeDays) * recencyBonusScale

	return math.Min(1.0, normalized+recencyBonus)
}

// SimilarityToUser scores how well an item's topics match a user's
// preferences: 0.3 + 0.7 * confidence-weighted match ratio. Users with no
// preferences get a flat 0.3; uncategorized content gets 0.2. When the
// item carries per-topic confidence weights, matches are weighted by
// confidence; otherwise each match counts fully.
func SimilarityToUser(userTopics []string, item *content.Item) float64 {
	if len(userTopics) == 0 {
		return 0.3
	}
	if len(item.Topics) == 0 {
		return 0.2
	}

	var matched float64
	for _, t := range userTopics {
		if !item.HasTopic(t) {
			continue
		}
		if w, ok := item.TopicWeights[t]; ok {
			matched += w
		} else {
			matched += 1.0
		}
	}

	ratio := matched / float64(len(userTopics))
	return 0.3 + 0.7*clamp(ratio, 0, 1)
}

// Wildness regime boundaries for exploration.
const (
	wildnessBlendMin     = 20
	wildnessDiversityMin = 70
)

// ExplorationBoost adjusts a base similarity score toward exploration
// according to the user's wildness setting. Three regimes:
//
//   - 0-19: exploit-heavy, similarity dominates with a small popularity blend
//   - 20-69: linear blend between similarity and popularity
//   - 70-100: diversity-favoring, popularity is replaced by an injected
//     random term so high-wildness users escape their similarity bubble
//
// The result is clamped to [0, 1].
func ExplorationBoost(wildness int, baseSimilarity, popularity float64, rng Rand) float64 {
	if wildness < 0 {
		wildness = 0
	}
	if wildness > 100 {
		wildness = 100
	}

	var score float64
	switch {
	case wildness < wildnessBlendMin:
		score = 0.9*baseSimilarity + 0.1*popularity
	case wildness < wildnessDiversityMin:
		t := float64(wildness) / 100.0
		score = (1-t)*baseSimilarity + t*popularity
	default:
		t := float64(wildness) / 100.0
		serendipity := 0.5 + 0.5*rng.Float64()
		score = (1-t)*baseSimilarity + t*serendipity
	}

	return clamp(score, 0, 1)
}

// CombinedInput carries all signals feeding the combined ranking score.
type CombinedInput struct {
	Base       float64 // item base score [0, 1]
	Quality    float64 // item quality score [0, 1]
	Freshness  float64 // freshness component [0, 1]
	Popularity float64 // popularity component [0, 1]
	Similarity float64 // personalization component [0, 1]

	Wildness int // user wildness [0, 100]

	// Engagement is the optional user history summary.
	Engagement *content.EngagementSummary

	// Hour is the local hour of day, or -1 when unknown.
	Hour int
}

// Contextual multiplier thresholds.
const (
	eveningStartHour = 18
	eveningEndHour   = 22

	highSkipRate = 0.5
	highLikeRate = 0.6
)

// CombinedScore computes the final ranking score for a candidate:
//
//	base * quality * (0.5 + 0.5*similarity) * (0.6 + 0.4*freshness) * popularity
//
// then, with probability 0.05 + 0.05*(wildness/100), adds a uniform random
// bonus in [0, 0.3] (epsilon-greedy exploration), applies contextual
// multipliers (evening hours and high-skip users nudge toward diversity,
// high-like users toward similarity), and clamps to [0, 1].
//
// Pass nil weights to use DefaultWeights.
func CombinedScore(in CombinedInput, rng Rand, weights *Weights) float64 {
	w := weights
	if w == nil {
		w = DefaultWeights()
	}

	score := in.Base * in.Quality *
		(w.Combined.SimilarityFloor + (1-w.Combined.SimilarityFloor)*in.Similarity) *
		(w.Combined.FreshnessFloor + (1-w.Combined.FreshnessFloor)*in.Freshness) *
		in.Popularity

	// Epsilon-greedy exploration bonus
	epsilon := w.Combined.EpsilonBase + w.Combined.EpsilonWildnessScale*(float64(in.Wildness)/100.0)
	if rng.Float64() < epsilon {
		score += rng.Float64() * w.Combined.MaxRandomBonus
	}

	// Contextual multipliers
	if in.Hour >= eveningStartHour && in.Hour <= eveningEndHour {
		// Evening sessions lean toward variety
		score *= 1.05 - 0.1*in.Similarity
	}
	if in.Engagement != nil {
		if in.Engagement.SkipRate > highSkipRate {
			// Users skipping a lot get more diversity
			score *= 1.1 - 0.2*in.Similarity
		}
		if in.Engagement.LikeRate > highLikeRate {
			// Users liking a lot get more of what matches
			score *= 0.9 + 0.2*in.Similarity
		}
	}

	return clamp(score, 0, 1)
}

// Window is a trending time horizon.
type Window string

// Supported trending windows.
const (
	WindowHour Window = "hour"
	WindowDay  Window = "day"
	WindowWeek Window = "week"
)

// Windows lists all trending windows in processing order.
func Windows() []Window {
	return []Window{WindowHour, WindowDay, WindowWeek}
}

// HalfLife returns the decay half-life for the window: 2h for hour,
// 1d for day, 3d for week. Unknown windows fall back to the day horizon.
func (w Window) HalfLife() float64 {
	switch w {
	case WindowHour:
		return 2.0
	case WindowWeek:
		return 72.0
	default:
		return 24.0
	}
}

// TrendingScore computes the windowed trending velocity score for an item:
// engagement velocity (positives per view) decayed by the window half-life
// and damped by a volume factor that saturates at 100 views. An item with
// zero views has velocity 0 and therefore score 0.
func TrendingScore(m content.Metrics, ageDays float64, window Window) float64 {
	positives := float64(m.Likes + m.Saves + m.Shares)
	velocity := positives / math.Max(1, float64(m.Views))

	if ageDays < 0 {
		ageDays = 0
	}
	ageHours := ageDays * 24.0
	decay := math.Exp(-math.Ln2 * ageHours / window.HalfLife())

	volume := math.Min(1.0, float64(m.Views)/trendingVolumeSaturation)

	return velocity * decay * volume
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
