// Package candidate provides diversity-constrained candidate retrieval for
// the discovery ranking path.
package candidate

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/wanderco/drift/internal/content"
)

// Default retrieval parameters.
const (
	// DefaultPoolSize is the over-fetched candidate pool size.
	DefaultPoolSize = 500

	// DefaultTargetSize is the diverse pool size the retriever aims for.
	DefaultTargetSize = 300

	// DefaultDomainCap is the maximum number of candidates admitted per
	// source domain.
	DefaultDomainCap = 20

	// DefaultMaxExcludeIDs bounds the exclusion set. Larger sets skip
	// exclusion filtering rather than fail the request.
	DefaultMaxExcludeIDs = 200
)

// Config holds retrieval tuning parameters. Zero values fall back to the
// package defaults.
type Config struct {
	PoolSize      int
	TargetSize    int
	DomainCap     int
	MaxExcludeIDs int
}

// withDefaults fills unset fields with package defaults.
func (c Config) withDefaults() Config {
	if c.PoolSize <= 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.TargetSize <= 0 {
		c.TargetSize = DefaultTargetSize
	}
	if c.DomainCap <= 0 {
		c.DomainCap = DefaultDomainCap
	}
	if c.MaxExcludeIDs <= 0 {
		c.MaxExcludeIDs = DefaultMaxExcludeIDs
	}
	return c
}

// Retriever pulls an over-fetched candidate pool from the content store
// and applies a per-domain diversity cap.
type Retriever struct {
	store  content.Store
	config Config
	logger *slog.Logger
	now    func() time.Time
}

// NewRetriever creates a new candidate retriever.
func NewRetriever(store content.Store, config Config, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		store:  store,
		config: config.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
}

// Candidates returns a diverse candidate pool for ranking.
//
// The exclusion set is honored only up to MaxExcludeIDs entries; beyond
// that, exclusion filtering is skipped for the call (availability over
// strict correctness, logged). Store errors surface as an empty pool:
// the caller treats an empty pool as "no discovery available", never as a
// retryable engine error.
//
// The returned pool orders items with more user-topic matches first
// (stable on ties) and admits at most DomainCap items per domain until
// TargetSize is reached or candidates run out. When the corpus itself
// cannot fill the target, whatever is available is returned.
func (r *Retriever) Candidates(ctx context.Context, excludeIDs []string, userTopics []string) []content.Item {
	excluded := excludeIDs
	if len(excludeIDs) > r.config.MaxExcludeIDs {
		r.logger.Warn("exclusion set too large, skipping exclusion filtering",
			"exclude_count", len(excludeIDs),
			"max", r.config.MaxExcludeIDs)
		excluded = nil
	}

	items, err := r.store.QueryActive(ctx, content.Query{
		ExcludeIDs: excluded,
		OrderBy:    r.baseOrdering(),
		Limit:      r.config.PoolSize,
	})
	if err != nil {
		r.logger.Error("failed to fetch candidate pool",
			"error", err)
		return nil
	}
	if len(items) == 0 {
		return nil
	}

	return r.diversify(items, userTopics)
}

// baseOrdering alternates the store-level ordering hourly between recency
// and quality. Under a fixed pool-size limit this varies which half of an
// oversized corpus gets sampled; it is a variety trade-off, not a
// correctness requirement.
func (r *Retriever) baseOrdering() content.OrderBy {
	if r.now().Hour()%2 == 0 {
		return content.OrderByRecency
	}
	return content.OrderByQuality
}

// diversify orders items topic-match-first and greedily admits them under
// the per-domain cap.
func (r *Retriever) diversify(items []content.Item, userTopics []string) []content.Item {
	// Topic-match-then-original order, stable on ties
	matches := make([]int, len(items))
	for i := range items {
		matches[i] = len(items[i].MatchedTopics(userTopics))
	}
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return matches[order[a]] > matches[order[b]]
	})

	perDomain := make(map[string]int)
	pool := make([]content.Item, 0, r.config.TargetSize)

	for _, idx := range order {
		item := items[idx]
		if perDomain[item.Domain] >= r.config.DomainCap {
			continue
		}
		perDomain[item.Domain]++
		pool = append(pool, item)
		if len(pool) >= r.config.TargetSize {
			break
		}
	}

	return pool
}
