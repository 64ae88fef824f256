package experiment

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/wanderco/drift/internal/tracing"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations, used to detect assignment races.
const uniqueViolation = "23505"

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

// GetExperiment returns an experiment by ID.
func (s *PostgresStore) GetExperiment(ctx context.Context, id string) (*Experiment, error) {
	query := `
		SELECT id, name, variants, target_topics, status,
		       winner, confidence, created_at, updated_at
		FROM experiments
		WHERE id = $1
	`

	var exp Experiment
	var variantsRaw []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&exp.ID,
		&exp.Name,
		&variantsRaw,
		pq.Array(&exp.TargetTopics),
		&exp.Status,
		&exp.Winner,
		&exp.Confidence,
		&exp.CreatedAt,
		&exp.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get experiment: %w", err)
	}

	if err := json.Unmarshal(variantsRaw, &exp.Variants); err != nil {
		return nil, fmt.Errorf("failed to decode experiment variants: %w", err)
	}
	return &exp, nil
}

// SaveExperiment inserts or updates an experiment definition.
func (s *PostgresStore) SaveExperiment(ctx context.Context, exp *Experiment) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "experiments", tracing.DBOperationUpsert)
	defer func() { endSpan(err) }()

	variantsRaw, err := json.Marshal(exp.Variants)
	if err != nil {
		return fmt.Errorf("failed to encode experiment variants: %w", err)
	}

	topics := exp.TargetTopics
	if topics == nil {
		topics = []string{}
	}

	query := `
		INSERT INTO experiments (
			id, name, variants, target_topics, status,
			winner, confidence, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			variants = EXCLUDED.variants,
			target_topics = EXCLUDED.target_topics,
			status = EXCLUDED.status,
			winner = EXCLUDED.winner,
			confidence = EXCLUDED.confidence,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		exp.ID,
		exp.Name,
		variantsRaw,
		pq.Array(topics),
		exp.Status,
		exp.Winner,
		exp.Confidence,
		exp.CreatedAt,
		exp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save experiment: %w", err)
	}
	return nil
}

// ListExperiments returns experiments with the given status, oldest first.
func (s *PostgresStore) ListExperiments(ctx context.Context, status Status) ([]*Experiment, error) {
	query := `
		SELECT id, name, variants, target_topics, status,
		       winner, confidence, created_at, updated_at
		FROM experiments
		WHERE status = $1
		ORDER BY created_at, id
	`

	rows, err := s.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Warn("failed to close experiment rows", "error", err)
		}
	}()

	var exps []*Experiment
	for rows.Next() {
		var exp Experiment
		var variantsRaw []byte
		if err := rows.Scan(
			&exp.ID,
			&exp.Name,
			&variantsRaw,
			pq.Array(&exp.TargetTopics),
			&exp.Status,
			&exp.Winner,
			&exp.Confidence,
			&exp.CreatedAt,
			&exp.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan experiment: %w", err)
		}
		if err := json.Unmarshal(variantsRaw, &exp.Variants); err != nil {
			return nil, fmt.Errorf("failed to decode experiment variants: %w", err)
		}
		exps = append(exps, &exp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate experiment rows: %w", err)
	}

	return exps, nil
}

// DeleteExperiment removes an experiment.
func (s *PostgresStore) DeleteExperiment(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM experiments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete experiment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAssignment returns the sticky assignment for (user, experiment).
func (s *PostgresStore) GetAssignment(ctx context.Context, userID, experimentID string) (*Assignment, error) {
	query := `
		SELECT user_id, experiment_id, variant, created_at
		FROM experiment_assignments
		WHERE user_id = $1 AND experiment_id = $2
	`

	var a Assignment
	err := s.db.QueryRowContext(ctx, query, userID, experimentID).Scan(
		&a.UserID,
		&a.ExperimentID,
		&a.Variant,
		&a.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return &a, nil
}

// InsertAssignment persists an assignment exactly once. The primary key
// on (user_id, experiment_id) makes the first writer win.
func (s *PostgresStore) InsertAssignment(ctx context.Context, a Assignment) error {
	query := `
		INSERT INTO experiment_assignments (user_id, experiment_id, variant, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.db.ExecContext(ctx, query, a.UserID, a.ExperimentID, a.Variant, a.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return ErrAssignmentExists
		}
		return fmt.Errorf("failed to insert assignment: %w", err)
	}
	return nil
}

// AppendEvent appends one event to the log.
func (s *PostgresStore) AppendEvent(ctx context.Context, ev Event) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "experiment_events", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}

	query := `
		INSERT INTO experiment_events (
			id, experiment_id, user_id, variant, action,
			content_id, score, time_to_action_ms, session_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.db.ExecContext(ctx, query,
		ev.ID,
		ev.ExperimentID,
		ev.UserID,
		ev.Variant,
		ev.Action,
		nullable(ev.ContentID),
		ev.Score,
		ev.TimeToActionMs,
		nullable(ev.SessionID),
		ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append experiment event: %w", err)
	}
	return nil
}

// QueryEvents returns events for an experiment, optionally filtered by
// variant.
func (s *PostgresStore) QueryEvents(ctx context.Context, experimentID, variant string) ([]Event, error) {
	query := `
		SELECT id, experiment_id, user_id, variant, action,
		       COALESCE(content_id, ''), score, time_to_action_ms,
		       COALESCE(session_id, ''), created_at
		FROM experiment_events
		WHERE experiment_id = $1
		  AND ($2 = '' OR variant = $2)
		ORDER BY created_at
	`

	rows, err := s.db.QueryContext(ctx, query, experimentID, variant)
	if err != nil {
		return nil, fmt.Errorf("failed to query experiment events: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Warn("failed to close event rows", "error", err)
		}
	}()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(
			&ev.ID,
			&ev.ExperimentID,
			&ev.UserID,
			&ev.Variant,
			&ev.Action,
			&ev.ContentID,
			&ev.Score,
			&ev.TimeToActionMs,
			&ev.SessionID,
			&ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan experiment event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate event rows: %w", err)
	}

	return events, nil
}

// nullable maps empty strings to SQL NULL.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
