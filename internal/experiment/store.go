package experiment

import "context"

// Store persists experiments, assignments, and events.
//
// InsertAssignment must be backed by a uniqueness constraint on
// (user_id, experiment_id) and return ErrAssignmentExists on conflict so
// that concurrent first-time assignments resolve to the first persisted
// row. In-process locking is not sufficient: multiple process instances
// may race.
type Store interface {
	// GetExperiment returns an experiment by ID, or ErrNotFound.
	GetExperiment(ctx context.Context, id string) (*Experiment, error)

	// SaveExperiment inserts or updates an experiment definition.
	SaveExperiment(ctx context.Context, exp *Experiment) error

	// ListExperiments returns experiments with the given status, oldest
	// first.
	ListExperiments(ctx context.Context, status Status) ([]*Experiment, error)

	// DeleteExperiment removes an experiment. Callers enforce the
	// draft-only rule before deleting.
	DeleteExperiment(ctx context.Context, id string) error

	// GetAssignment returns the sticky assignment for (user, experiment),
	// or nil when none exists.
	GetAssignment(ctx context.Context, userID, experimentID string) (*Assignment, error)

	// InsertAssignment persists an assignment exactly once, returning
	// ErrAssignmentExists when a row already exists.
	InsertAssignment(ctx context.Context, a Assignment) error

	// AppendEvent appends one event to the log.
	AppendEvent(ctx context.Context, ev Event) error

	// QueryEvents returns events for an experiment, optionally filtered
	// by variant (empty string means all variants).
	QueryEvents(ctx context.Context, experimentID, variant string) ([]Event, error)
}
