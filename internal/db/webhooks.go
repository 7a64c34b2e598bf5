package db

import (
	"context"
	"time"

	"github.com/allocai/backend/internal/models"
	"github.com/allocai/backend/internal/sentinel"
)

const webhookColumns = `id, url, events, secret, is_active, description, last_triggered, success_count, failure_count, created_at, updated_at`

func (s *Store) queryWebhooks(ctx context.Context, sql string, args ...any) ([]models.Webhook, error) {
	rows, err := s.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	out := []models.Webhook{}
	for rows.Next() {
		var w models.Webhook
		if err := rows.Scan(&w.ID, &w.URL, &w.Events, &w.Secret, &w.IsActive, &w.Description,
			&w.LastTriggered, &w.SuccessCount, &w.FailureCount, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		w.Events = nonNil(w.Events)
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) ListWebhooks(ctx context.Context) ([]models.Webhook, error) {
	return s.queryWebhooks(ctx, `SELECT `+webhookColumns+` FROM webhooks ORDER BY created_at, id`)
}

func (s *Store) ListActiveWebhooksForEvent(ctx context.Context, event string) ([]models.Webhook, error) {
	return s.queryWebhooks(ctx, `SELECT `+webhookColumns+` FROM webhooks
		WHERE is_active AND $1 = ANY(events)
		ORDER BY created_at, id`, event)
}

func (s *Store) CreateWebhook(ctx context.Context, w *models.Webhook) error {
	_, err := s.Pool.Exec(ctx, `INSERT INTO webhooks (`+webhookColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		w.ID, w.URL, nonNil(w.Events), w.Secret, w.IsActive, w.Description,
		w.LastTriggered, w.SuccessCount, w.FailureCount, w.CreatedAt, w.UpdatedAt)
	return translateError(err)
}

func (s *Store) DeleteWebhook(ctx context.Context, id string) error {
	if !validID(id) {
		return sentinel.ErrNotFound
	}
	return expectOne(s.Pool.Exec(ctx, `DELETE FROM webhooks WHERE id = $1`, id))
}

func (s *Store) RecordWebhookSuccess(ctx context.Context, id string, at time.Time) error {
	return expectOne(s.Pool.Exec(ctx,
		`UPDATE webhooks SET success_count = success_count + 1, last_triggered = $2, updated_at = $2 WHERE id = $1`,
		id, at))
}

func (s *Store) RecordWebhookFailure(ctx context.Context, id string) error {
	return expectOne(s.Pool.Exec(ctx,
		`UPDATE webhooks SET failure_count = failure_count + 1 WHERE id = $1`, id))
}
