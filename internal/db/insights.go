package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/allocai/backend/internal/models"
)

// SaveInsights stores the insight batch atomically.
func (s *Store) SaveInsights(ctx context.Context, insights []models.AIInsight) error {
	if len(insights) == 0 {
		return nil
	}
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		for _, in := range insights {
			prediction, err := json.Marshal(in.Prediction)
			if err != nil {
				return err
			}
			recommendation, err := json.Marshal(in.Recommendation)
			if err != nil {
				return err
			}
			factors, err := json.Marshal(nonNil(in.Factors))
			if err != nil {
				return err
			}
			_, err = tx.Exec(ctx, `INSERT INTO ai_insights
				(id, type, target_id, target_type, prediction, recommendation, factors, status, applied_by, applied_at, expires_at, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
				in.ID, in.Type, in.TargetID, in.TargetType, prediction, recommendation, factors,
				in.Status, in.AppliedBy, in.AppliedAt, in.ExpiresAt, in.CreatedAt, in.UpdatedAt)
			if err != nil {
				return translateError(err)
			}
		}
		return nil
	})
}

const conflictColumns = `id, type, severity, status, affected_allocations, affected_employees, affected_projects, detected_at, detected_by, ai_suggestions, resolution, created_at, updated_at`

func (s *Store) SaveConflicts(ctx context.Context, conflicts []models.Conflict) error {
	if len(conflicts) == 0 {
		return nil
	}
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		for _, c := range conflicts {
			suggestions, err := json.Marshal(nonNil(c.AISuggestions))
			if err != nil {
				return err
			}
			var resolution []byte
			if c.Resolution != nil {
				if resolution, err = json.Marshal(c.Resolution); err != nil {
					return err
				}
			}
			_, err = tx.Exec(ctx, `INSERT INTO conflicts (`+conflictColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
				c.ID, c.Type, c.Severity, c.Status, nonNil(c.AffectedAllocations), nonNil(c.AffectedEmployees),
				nonNil(c.AffectedProjects), c.DetectedAt, c.DetectedBy, suggestions, resolution, c.CreatedAt, c.UpdatedAt)
			if err != nil {
				return translateError(err)
			}
		}
		return nil
	})
}

// ListConflicts returns the most recently detected conflicts first.
func (s *Store) ListConflicts(ctx context.Context, limit int) ([]models.Conflict, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+conflictColumns+` FROM conflicts ORDER BY detected_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	out := []models.Conflict{}
	for rows.Next() {
		var (
			c                       models.Conflict
			suggestions, resolution []byte
		)
		if err := rows.Scan(&c.ID, &c.Type, &c.Severity, &c.Status, &c.AffectedAllocations, &c.AffectedEmployees,
			&c.AffectedProjects, &c.DetectedAt, &c.DetectedBy, &suggestions, &resolution, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(suggestions, &c.AISuggestions); err != nil {
			return nil, fmt.Errorf("conflict %s suggestions: %w", c.ID, err)
		}
		if len(resolution) > 0 {
			c.Resolution = &models.ConflictResolution{}
			if err := json.Unmarshal(resolution, c.Resolution); err != nil {
				return nil, fmt.Errorf("conflict %s resolution: %w", c.ID, err)
			}
		}
		c.AISuggestions = nonNil(c.AISuggestions)
		out = append(out, c)
	}
	return out, rows.Err()
}
