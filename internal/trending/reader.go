package trending

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wanderco/drift/internal/scoring"
)

// DefaultCacheTTL bounds how stale a cached trending list may be. The
// calculator rewrites snapshots every run, so a short TTL is enough.
const DefaultCacheTTL = 60 * time.Second

// Reader serves trending lists from the snapshot store with an optional
// Redis cache in front. Cache failures fall through to the store; the
// cache is an optimization, never a source of truth.
type Reader struct {
	store  SnapshotStore
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewReader creates a new trending reader. Pass a nil cache client to
// read directly from the store.
func NewReader(store SnapshotStore, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Reader {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		store:  store,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

// cacheKey returns the Redis key for a (window, limit) pair.
func cacheKey(window scoring.Window, limit int) string {
	return fmt.Sprintf("trending:%s:%d", window, limit)
}

// TopContent returns the current trending rows for the window, most
// trending first.
func (r *Reader) TopContent(ctx context.Context, window scoring.Window, limit int) ([]Snapshot, error) {
	if r.cache != nil {
		if rows, ok := r.fromCache(ctx, window, limit); ok {
			return rows, nil
		}
	}

	rows, err := r.store.TopContent(ctx, window, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read trending snapshot: %w", err)
	}

	if r.cache != nil {
		r.toCache(ctx, window, limit, rows)
	}
	return rows, nil
}

// fromCache attempts a cache read. Any failure is logged and treated as
// a miss.
func (r *Reader) fromCache(ctx context.Context, window scoring.Window, limit int) ([]Snapshot, bool) {
	data, err := r.cache.Get(ctx, cacheKey(window, limit)).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warn("trending cache read failed",
				"window", window,
				"error", err)
		}
		return nil, false
	}

	var rows []Snapshot
	if err := json.Unmarshal(data, &rows); err != nil {
		r.logger.Warn("trending cache entry corrupt, ignoring",
			"window", window,
			"error", err)
		return nil, false
	}
	return rows, true
}

// toCache writes rows to the cache. Failures are logged and ignored.
func (r *Reader) toCache(ctx context.Context, window scoring.Window, limit int, rows []Snapshot) {
	data, err := json.Marshal(rows)
	if err != nil {
		r.logger.Warn("failed to encode trending cache entry",
			"window", window,
			"error", err)
		return
	}
	if err := r.cache.Set(ctx, cacheKey(window, limit), data, r.ttl).Err(); err != nil {
		r.logger.Warn("trending cache write failed",
			"window", window,
			"error", err)
	}
}
