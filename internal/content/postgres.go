package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/wanderco/drift/internal/tracing"
)

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

// QueryActive returns active items matching the query.
func (s *PostgresStore) QueryActive(ctx context.Context, q Query) (_ []Item, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "content_items", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	orderClause := "created_at DESC"
	if q.OrderBy == OrderByQuality {
		orderClause = "quality_score DESC, created_at DESC"
	}

	query := fmt.Sprintf(`
		SELECT id, url, domain, topics, topic_weights,
		       quality_score, base_score, popularity_score,
		       reading_time_minutes, is_active, created_at
		FROM content_items
		WHERE is_active = TRUE
		  AND (cardinality($1::text[]) = 0 OR id <> ALL($1::text[]))
		ORDER BY %s
		LIMIT $2 OFFSET $3
	`, orderClause)

	exclude := q.ExcludeIDs
	if exclude == nil {
		exclude = []string{}
	}

	rows, err := s.db.QueryContext(ctx, query, pq.Array(exclude), q.Limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query active content: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Warn("failed to close content rows", "error", err)
		}
	}()

	var items []Item
	for rows.Next() {
		var item Item
		var weightsRaw []byte
		if err := rows.Scan(
			&item.ID,
			&item.URL,
			&item.Domain,
			pq.Array(&item.Topics),
			&weightsRaw,
			&item.QualityScore,
			&item.BaseScore,
			&item.PopularityScore,
			&item.ReadingTimeMinutes,
			&item.IsActive,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan content item: %w", err)
		}
		if len(weightsRaw) > 0 {
			if err := json.Unmarshal(weightsRaw, &item.TopicWeights); err != nil {
				return nil, fmt.Errorf("failed to decode topic weights for %s: %w", item.ID, err)
			}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate content rows: %w", err)
	}

	return items, nil
}

// GetMetrics returns current metrics for the given content IDs.
func (s *PostgresStore) GetMetrics(ctx context.Context, ids []string) (_ map[string]Metrics, err error) {
	if len(ids) == 0 {
		return map[string]Metrics{}, nil
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "content_metrics", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT content_id, views, likes, saves, shares, skips, engagement_rate
		FROM content_metrics
		WHERE content_id = ANY($1::text[])
	`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query content metrics: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Warn("failed to close metrics rows", "error", err)
		}
	}()

	result := make(map[string]Metrics, len(ids))
	for rows.Next() {
		var m Metrics
		if err := rows.Scan(
			&m.ContentID,
			&m.Views,
			&m.Likes,
			&m.Saves,
			&m.Shares,
			&m.Skips,
			&m.EngagementRate,
		); err != nil {
			return nil, fmt.Errorf("failed to scan content metrics: %w", err)
		}
		result[m.ContentID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate metrics rows: %w", err)
	}

	return result, nil
}
