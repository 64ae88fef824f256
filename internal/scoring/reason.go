package scoring

import (
	"fmt"
	"strings"

	"github.com/wanderco/drift/internal/content"
)

// ReasonCode identifies which explanation rule fired for a discovery.
type ReasonCode string

// Reason codes in priority order.
const (
	ReasonBreakingTrending ReasonCode = "breaking_trending"
	ReasonMultiTopicRecent ReasonCode = "multi_topic_recent"
	ReasonTrendingTopic    ReasonCode = "trending_topic"
	ReasonPopularQuality   ReasonCode = "popular_quality_topic"
	ReasonTopicQuality     ReasonCode = "topic_quality"
	ReasonRecentQuality    ReasonCode = "recent_quality"
	ReasonSerendipity      ReasonCode = "serendipity"
	ReasonTopicMatch       ReasonCode = "topic_match"
	ReasonHighQuality      ReasonCode = "high_quality"
	ReasonWildness         ReasonCode = "wildness"
	ReasonGeneric          ReasonCode = "generic"
)

// ReasonInput carries the signals the reason rules inspect.
type ReasonInput struct {
	Item       *content.Item
	UserTopics []string
	Score      float64
	Popularity float64
	AgeDays    float64
	Wildness   int
}

// Reason selects a human-readable explanation for why an item was chosen.
// Rules are evaluated in strict priority order; the first match wins, so
// the output is deterministic given the inputs.
func Reason(in ReasonInput) (ReasonCode, string) {
	matched := in.Item.MatchedTopics(in.UserTopics)
	quality := in.Item.QualityScore

	switch {
	case in.Popularity >= 0.8 && in.AgeDays <= 1:
		return ReasonBreakingTrending,
			"Breaking: this is trending right now"

	case len(matched) >= 2 && in.AgeDays <= 2:
		return ReasonMultiTopicRecent,
			fmt.Sprintf("Fresh pick covering %s", joinTopics(matched))

	case in.Popularity >= 0.7 && len(matched) >= 1:
		return ReasonTrendingTopic,
			fmt.Sprintf("Trending in %s", matched[0])

	case in.Popularity >= 0.6 && quality >= 0.7 && len(matched) >= 1:
		return ReasonPopularQuality,
			fmt.Sprintf("Popular, well-made content about %s", matched[0])

	case len(matched) >= 1 && quality >= 0.8:
		return ReasonTopicQuality,
			fmt.Sprintf("High-quality match for your interest in %s", matched[0])

	case in.AgeDays <= 3 && quality >= 0.8:
		return ReasonRecentQuality,
			"A recent find with standout quality"

	case in.Wildness >= 70:
		return ReasonSerendipity,
			"A wildcard pick to stretch your horizons"

	case len(matched) >= 1:
		return ReasonTopicMatch,
			fmt.Sprintf("Matches your interest in %s", matched[0])

	case quality >= 0.8:
		return ReasonHighQuality,
			"Picked for its quality"

	case in.Wildness >= 40:
		return ReasonWildness,
			"Something a little different, per your wildness setting"

	default:
		return ReasonGeneric,
			"Something new to explore"
	}
}

// joinTopics renders a topic list as "a and b" or "a, b and c".
func joinTopics(topics []string) string {
	switch len(topics) {
	case 0:
		return ""
	case 1:
		return topics[0]
	case 2:
		return topics[0] + " and " + topics[1]
	default:
		return strings.Join(topics[:len(topics)-1], ", ") + " and " + topics[len(topics)-1]
	}
}
