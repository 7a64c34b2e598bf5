package service

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/allocai/backend/internal/models"
	"github.com/allocai/backend/internal/webhook"
)

type WebhookInput struct {
	URL         string   `json:"url" validate:"required,url"`
	Events      []string `json:"events" validate:"required,min=1"`
	Secret      string   `json:"secret" validate:"required"`
	Description string   `json:"description"`
	IsActive    *bool    `json:"isActive"`
}

type WebhookService struct {
	Store WebhookStore
	Now   func() time.Time
}

func NewWebhookService(store WebhookStore) *WebhookService {
	return &WebhookService{Store: store, Now: time.Now}
}

func (s *WebhookService) List(ctx context.Context) ([]models.Webhook, error) {
	return s.Store.ListWebhooks(ctx)
}

func (s *WebhookService) Create(ctx context.Context, in WebhookInput) (models.Webhook, error) {
	for _, evt := range in.Events {
		if !slices.Contains(webhook.KnownEvents, evt) {
			return models.Webhook{}, invalid("unknown webhook event %q", evt)
		}
	}
	now := s.Now().UTC()
	w := models.Webhook{
		ID:          uuid.NewString(),
		URL:         in.URL,
		Events:      in.Events,
		Secret:      in.Secret,
		IsActive:    true,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.IsActive != nil {
		w.IsActive = *in.IsActive
	}
	if err := s.Store.CreateWebhook(ctx, &w); err != nil {
		return models.Webhook{}, err
	}
	return w, nil
}

func (s *WebhookService) Delete(ctx context.Context, id string) error {
	return s.Store.DeleteWebhook(ctx, id)
}
