package trending

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wanderco/drift/internal/content"
	"github.com/wanderco/drift/internal/scoring"
)

// Default calculator parameters.
const (
	// DefaultInterval is the duration between recompute cycles.
	DefaultInterval = 15 * time.Minute

	// DefaultTimeout bounds a single recompute cycle.
	DefaultTimeout = 2 * time.Minute

	// DefaultTopK is the number of rows kept per window.
	DefaultTopK = 100

	// DefaultMinScore is the trending score below which items are dropped.
	DefaultMinScore = 0.05

	// loadBatchSize bounds the active-content working set per run.
	loadBatchSize = 5000
)

// Config configures the trending calculator.
type Config struct {
	// Interval is the duration between recompute cycles.
	Interval time.Duration
	// Timeout for each recompute cycle.
	Timeout time.Duration
	// TopK rows kept per window.
	TopK int
	// MinScore below which items are dropped from the snapshot.
	MinScore float64
	// Logger for job activity.
	Logger *slog.Logger
	// Metrics for performance tracking.
	Metrics *Metrics
}

// Calculator periodically recomputes windowed trending scores for all
// active content and replaces the snapshot per window. Only one run may
// be in flight process-wide; a concurrent trigger is a logged no-op.
type Calculator struct {
	config    Config
	store     content.Store
	snapshots SnapshotStore
	now       func() time.Time

	mu       sync.Mutex
	running  bool
	inFlight bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewCalculator creates a new trending calculator.
func NewCalculator(config Config, store content.Store, snapshots SnapshotStore) *Calculator {
	if config.Interval == 0 {
		config.Interval = DefaultInterval
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.TopK == 0 {
		config.TopK = DefaultTopK
	}
	if config.MinScore == 0 {
		config.MinScore = DefaultMinScore
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Calculator{
		config:    config,
		store:     store,
		snapshots: snapshots,
		now:       time.Now,
	}
}

// Start begins the periodic recompute loop.
// Returns immediately; the job runs in a background goroutine.
func (c *Calculator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	c.mu.Unlock()

	go c.run(ctx)
	return nil
}

// Stop signals the loop to stop and waits for it to finish.
func (c *Calculator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	stopCh := c.stopCh
	doneCh := c.doneCh
	c.mu.Unlock()

	close(stopCh)
	<-doneCh

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

// IsRunning returns whether the periodic loop is active.
func (c *Calculator) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// run is the main loop for the calculator.
func (c *Calculator) run(ctx context.Context) {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.config.Logger.Info("trending calculator stopping due to context cancellation")
			return
		case <-c.stopCh:
			c.config.Logger.Info("trending calculator stopping due to stop signal")
			return
		case <-ticker.C:
			if err := c.RunOnce(ctx); err != nil && err != ErrRunInFlight {
				c.config.Logger.Error("trending run failed",
					"error", err)
			}
		}
	}
}

// RunOnce performs one full recompute across all windows. It is safe to
// invoke from an external scheduler or an administrative trigger. If a
// run is already in flight the call is skipped and ErrRunInFlight is
// returned; skipped runs are never queued.
//
// Errors in one window do not abort the others; each window is processed
// independently with errors logged and counted. A nil return means every
// window either succeeded or was logged.
func (c *Calculator) RunOnce(parentCtx context.Context) error {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		c.config.Logger.Warn("trending run requested while another is in flight, skipping")
		if c.config.Metrics != nil {
			c.config.Metrics.IncSkipped()
		}
		return ErrRunInFlight
	}
	c.inFlight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	tracer := otel.Tracer("drift/trending")
	ctx, span := tracer.Start(parentCtx, "trending.run")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := c.now()

	items, metrics, err := c.loadWorkingSet(ctx)
	if err != nil {
		c.config.Logger.Error("failed to load trending working set",
			"error", err)
		for _, w := range scoring.Windows() {
			if c.config.Metrics != nil {
				c.config.Metrics.IncWindowErrors(string(w))
			}
		}
		return err
	}
	span.SetAttributes(attribute.Int("trending.item_count", len(items)))

	for _, window := range scoring.Windows() {
		if err := c.recomputeWindow(ctx, window, items, metrics); err != nil {
			c.config.Logger.Error("failed to recompute trending window",
				"window", window,
				"error", err)
			if c.config.Metrics != nil {
				c.config.Metrics.IncWindowErrors(string(window))
			}
			// Sibling windows proceed regardless
			continue
		}
	}

	duration := c.now().Sub(start).Seconds()
	if c.config.Metrics != nil {
		c.config.Metrics.IncRuns()
		c.config.Metrics.ObserveRunDuration(duration)
		c.config.Metrics.SetLastRunTimestamp(float64(c.now().Unix()))
	}

	c.config.Logger.Info("trending recompute completed",
		"duration_seconds", duration,
		"item_count", len(items))
	return nil
}

// loadWorkingSet loads all active items with their current metrics.
func (c *Calculator) loadWorkingSet(ctx context.Context) ([]content.Item, map[string]content.Metrics, error) {
	items, err := c.store.QueryActive(ctx, content.Query{
		OrderBy: content.OrderByRecency,
		Limit:   loadBatchSize,
	})
	if err != nil {
		return nil, nil, err
	}
	if len(items) == 0 {
		return nil, map[string]content.Metrics{}, nil
	}

	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	metrics, err := c.store.GetMetrics(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	return items, metrics, nil
}

// recomputeWindow scores one window, keeps the top-K above the threshold,
// and replaces the window's snapshot.
func (c *Calculator) recomputeWindow(
	ctx context.Context,
	window scoring.Window,
	items []content.Item,
	metrics map[string]content.Metrics,
) error {
	now := c.now()

	var rows []Snapshot
	for i := range items {
		item := &items[i]
		m := metrics[item.ID]

		score := scoring.TrendingScore(m, item.AgeDays(now), window)
		if score <= c.config.MinScore {
			continue
		}

		rows = append(rows, Snapshot{
			ContentID:        item.ID,
			Window:           window,
			InteractionCount: m.Views + m.Likes + m.Saves + m.Shares + m.Skips,
			Likes:            m.Likes,
			Saves:            m.Saves,
			Shares:           m.Shares,
			TrendingScore:    score,
			CalculatedAt:     now,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].TrendingScore > rows[j].TrendingScore
	})
	if len(rows) > c.config.TopK {
		rows = rows[:c.config.TopK]
	}

	if err := c.snapshots.ReplaceWindow(ctx, window, rows); err != nil {
		return err
	}

	if c.config.Metrics != nil {
		c.config.Metrics.SetSnapshotRows(string(window), float64(len(rows)))
	}
	c.config.Logger.Debug("trending window replaced",
		"window", window,
		"rows", len(rows))
	return nil
}
