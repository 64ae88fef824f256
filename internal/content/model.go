// Package content provides the data model and store access for discoverable
// content items and their interaction metrics.
package content

import (
	"context"
	"errors"
	"time"
)

// Common errors for content store operations.
var (
	// ErrStoreUnavailable is returned when the content store cannot be reached.
	ErrStoreUnavailable = errors.New("content store unavailable")

	// ErrItemNotFound is returned when a content item does not exist.
	ErrItemNotFound = errors.New("content item not found")
)

// Item represents a single piece of discoverable content.
// Score fields are recomputed out-of-band and overwritten; everything else
// is immutable once ingested. The ranking engine treats items as read-only.
type Item struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Domain string `json:"domain"`

	// Topics is an unordered set of topic tags.
	Topics []string `json:"topics"`

	// TopicWeights holds optional per-topic confidence in [0, 1].
	// Nil when the categorizer did not emit confidences.
	TopicWeights map[string]float64 `json:"topic_weights,omitempty"`

	QualityScore    float64 `json:"quality_score"`    // [0, 1]
	BaseScore       float64 `json:"base_score"`       // [0, 1]
	PopularityScore float64 `json:"popularity_score"` // [0, 1]

	// ReadingTimeMinutes is the estimated time to consume the content.
	ReadingTimeMinutes int `json:"reading_time_minutes"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// AgeDays returns the item age in days relative to now.
func (i *Item) AgeDays(now time.Time) float64 {
	return now.Sub(i.CreatedAt).Hours() / 24.0
}

// HasTopic reports whether the item carries the given topic tag.
func (i *Item) HasTopic(topic string) bool {
	for _, t := range i.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// MatchedTopics returns the subset of userTopics present on the item.
func (i *Item) MatchedTopics(userTopics []string) []string {
	var matched []string
	for _, t := range userTopics {
		if i.HasTopic(t) {
			matched = append(matched, t)
		}
	}
	return matched
}

// Metrics holds per-item interaction counters. Counters are mutated
// incrementally by interaction events outside the engine; the engine
// consumes read-only snapshots.
type Metrics struct {
	ContentID      string  `json:"content_id"`
	Views          int64   `json:"views"`
	Likes          int64   `json:"likes"`
	Saves          int64   `json:"saves"`
	Shares         int64   `json:"shares"`
	Skips          int64   `json:"skips"`
	EngagementRate float64 `json:"engagement_rate"`
}

// EngagementSummary summarizes a user's historical interaction rates.
type EngagementSummary struct {
	LikeRate float64 `json:"like_rate"`
	SaveRate float64 `json:"save_rate"`
	SkipRate float64 `json:"skip_rate"`
}

// UserContext carries the per-request user signals that drive
// personalization. It is supplied by the boundary layer per request and
// never persisted by the engine.
type UserContext struct {
	// PreferredTopics is the set of topics the user opted into.
	PreferredTopics []string `json:"preferred_topics"`

	// Wildness in [0, 100] trades relevance (low) for serendipity (high).
	Wildness int `json:"wildness"`

	// Engagement is an optional summary of historical behavior.
	Engagement *EngagementSummary `json:"engagement,omitempty"`

	// Hour is the local hour of day in [0, 23], or -1 when not supplied.
	Hour int `json:"hour"`

	// Weekday is only meaningful when Hour >= 0.
	Weekday time.Weekday `json:"weekday"`
}

// OrderBy selects the store-level base ordering for active content queries.
type OrderBy string

// Supported base orderings.
const (
	OrderByRecency OrderBy = "recency"
	OrderByQuality OrderBy = "quality"
)

// Query describes a filtered read of active content.
type Query struct {
	// ExcludeIDs filters out already-seen items. May be empty.
	ExcludeIDs []string
	OrderBy    OrderBy
	Limit      int
	Offset     int
}

// Store is the read-side interface the ranking engine consumes.
// Implementations must provide per-row consistency but no cross-call
// coordination.
type Store interface {
	// QueryActive returns active items matching the query.
	QueryActive(ctx context.Context, q Query) ([]Item, error)

	// GetMetrics returns current metrics for the given content IDs.
	// IDs without metrics rows are simply absent from the result map.
	GetMetrics(ctx context.Context, ids []string) (map[string]Metrics, error)
}
