// Package telemetry records discovery ranking outcomes for offline
// analysis. Recording is fire-and-forget: failures are logged by callers
// and never block the user-facing ranking result.
package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/wanderco/drift/internal/tracing"
)

// Event is one ranked-discovery outcome.
type Event struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ContentID string    `json:"content_id"`
	Algorithm string    `json:"algorithm"` // scoring variant identifier
	Wildness  int       `json:"wildness"`
	BaseScore float64   `json:"base_score"`
	Score     float64   `json:"score"`
	Rank      int       `json:"rank"`
	CreatedAt time.Time `json:"created_at"`

	// Context is the optional request context snapshot, stored as a
	// compact CBOR payload.
	Context *EventContext `json:"context,omitempty"`
}

// EventContext snapshots the user signals active at ranking time.
type EventContext struct {
	PreferredTopics []string `cbor:"1,keyasint,omitempty"`
	Hour            int      `cbor:"2,keyasint"`
	Weekday         int      `cbor:"3,keyasint"`
	ReasonCode      string   `cbor:"4,keyasint,omitempty"`
}

// Recorder persists discovery telemetry events.
type Recorder interface {
	// Record appends one telemetry event.
	Record(ctx context.Context, event Event) error
}

// PostgresRecorder implements Recorder using PostgreSQL.
type PostgresRecorder struct {
	db *sql.DB
}

// NewPostgresRecorder creates a new PostgresRecorder.
func NewPostgresRecorder(db *sql.DB) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

// Record appends one telemetry event.
func (r *PostgresRecorder) Record(ctx context.Context, event Event) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "discovery_events", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var payload []byte
	if event.Context != nil {
		payload, err = cbor.Marshal(event.Context)
		if err != nil {
			return fmt.Errorf("failed to encode telemetry context: %w", err)
		}
	}

	query := `
		INSERT INTO discovery_events (
			id, user_id, content_id, algorithm, wildness,
			base_score, score, rank, context, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		event.ID,
		event.UserID,
		event.ContentID,
		event.Algorithm,
		event.Wildness,
		event.BaseScore,
		event.Score,
		event.Rank,
		payload,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record discovery event: %w", err)
	}
	return nil
}

// DecodeContext decodes a stored CBOR context payload.
func DecodeContext(payload []byte) (*EventContext, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	var ec EventContext
	if err := cbor.Unmarshal(payload, &ec); err != nil {
		return nil, fmt.Errorf("failed to decode telemetry context: %w", err)
	}
	return &ec, nil
}

// InMemoryRecorder is an in-memory Recorder for tests.
type InMemoryRecorder struct {
	mu     sync.Mutex
	events []Event

	// FailWith, when set, makes Record return the error.
	FailWith error
}

// NewInMemoryRecorder creates a new in-memory recorder.
func NewInMemoryRecorder() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Record appends one telemetry event.
func (r *InMemoryRecorder) Record(ctx context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of all recorded events.
func (r *InMemoryRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]Event, len(r.events))
	copy(result, r.events)
	return result
}
