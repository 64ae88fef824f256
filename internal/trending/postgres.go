package trending

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/wanderco/drift/internal/scoring"
	"github.com/wanderco/drift/internal/tracing"
)

// PostgresSnapshotStore implements SnapshotStore using PostgreSQL.
type PostgresSnapshotStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresSnapshotStore creates a new PostgresSnapshotStore.
func NewPostgresSnapshotStore(db *sql.DB, logger *slog.Logger) *PostgresSnapshotStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSnapshotStore{db: db, logger: logger}
}

// ReplaceWindow atomically replaces all rows for the window.
func (s *PostgresSnapshotStore) ReplaceWindow(ctx context.Context, window scoring.Window, rows []Snapshot) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "trending_snapshots", tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			s.logger.Warn("failed to rollback snapshot transaction",
				"error", err)
		}
	}()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM trending_snapshots WHERE time_window = $1`, string(window),
	); err != nil {
		return fmt.Errorf("failed to clear %s snapshot: %w", window, err)
	}

	insert := `
		INSERT INTO trending_snapshots (
			content_id, time_window, interaction_count,
			likes, saves, shares, trending_score, calculated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, insert,
			row.ContentID,
			string(row.Window),
			row.InteractionCount,
			row.Likes,
			row.Saves,
			row.Shares,
			row.TrendingScore,
			row.CalculatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert %s snapshot row: %w", window, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s snapshot: %w", window, err)
	}
	return nil
}

// TopContent returns the current snapshot rows for the window.
func (s *PostgresSnapshotStore) TopContent(ctx context.Context, window scoring.Window, limit int) (_ []Snapshot, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "trending_snapshots", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT content_id, time_window, interaction_count,
		       likes, saves, shares, trending_score, calculated_at
		FROM trending_snapshots
		WHERE time_window = $1
		ORDER BY trending_score DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, string(window), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trending snapshot: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Warn("failed to close snapshot rows", "error", err)
		}
	}()

	var result []Snapshot
	for rows.Next() {
		var snap Snapshot
		var w string
		if err := rows.Scan(
			&snap.ContentID,
			&w,
			&snap.InteractionCount,
			&snap.Likes,
			&snap.Saves,
			&snap.Shares,
			&snap.TrendingScore,
			&snap.CalculatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		snap.Window = scoring.Window(w)
		result = append(result, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshot rows: %w", err)
	}

	return result, nil
}
