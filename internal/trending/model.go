// Package trending provides the periodically-triggered batch job that
// recomputes windowed trending scores and replaces the trending snapshot,
// plus a cache-backed reader over the snapshots.
package trending

import (
	"context"
	"errors"
	"time"

	"github.com/wanderco/drift/internal/scoring"
)

// Common errors for trending operations.
var (
	// ErrRunInFlight is returned when a run is requested while another
	// run is already active. The trigger is a no-op, not queued.
	ErrRunInFlight = errors.New("trending run already in flight")
)

// Snapshot is one trending row for a (content, window) pair. At most one
// live snapshot row exists per (content_id, window); each calculator run
// fully replaces the window's rows.
type Snapshot struct {
	ContentID        string         `json:"content_id"`
	Window           scoring.Window `json:"window"`
	InteractionCount int64          `json:"interaction_count"`
	Likes            int64          `json:"likes"`
	Saves            int64          `json:"saves"`
	Shares           int64          `json:"shares"`
	TrendingScore    float64        `json:"trending_score"`
	CalculatedAt     time.Time      `json:"calculated_at"`
}

// SnapshotStore persists trending snapshots with delete-then-insert
// replace semantics per window.
type SnapshotStore interface {
	// ReplaceWindow atomically replaces all rows for the window with the
	// given set. If the delete succeeds but the insert fails, the window
	// is left empty until the next run; a half-written mixed state is
	// never produced.
	ReplaceWindow(ctx context.Context, window scoring.Window, rows []Snapshot) error

	// TopContent returns the current snapshot rows for the window,
	// ordered by trending score descending.
	TopContent(ctx context.Context, window scoring.Window, limit int) ([]Snapshot, error)
}
