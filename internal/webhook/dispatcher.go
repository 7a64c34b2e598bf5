package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/allocai/backend/internal/events"
	"github.com/allocai/backend/internal/metrics"
	"github.com/allocai/backend/internal/models"
)

const (
	defaultTimeout = 5 * time.Second
	// maxInFlight bounds concurrent deliveries of one event.
	maxInFlight    = 8
	SecretHeader   = "X-Webhook-Secret"
)

// Webhook event names as subscribers register them.
const (
	AllocationCreated = "allocation.created"
	AllocationUpdated = "allocation.updated"
	ProjectCreated    = "project.created"
	EmployeeJoined    = "employee.joined"
)

var KnownEvents = []string{AllocationCreated, AllocationUpdated, ProjectCreated, EmployeeJoined}

var busEvents = map[string]string{
	events.AllocationCreated: AllocationCreated,
	events.AllocationUpdated: AllocationUpdated,
	events.ProjectCreated:    ProjectCreated,
	events.EmployeeJoined:    EmployeeJoined,
}

type Store interface {
	ListActiveWebhooksForEvent(ctx context.Context, event string) ([]models.Webhook, error)
	RecordWebhookSuccess(ctx context.Context, id string, at time.Time) error
	RecordWebhookFailure(ctx context.Context, id string) error
}

type Dispatcher struct {
	store  Store
	client *http.Client
	logger zerolog.Logger
	now    func() time.Time
	limit  int
	wg     sync.WaitGroup
}

func NewDispatcher(store Store, timeout time.Duration, logger zerolog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Dispatcher{
		store:  store,
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "webhook_dispatcher").Logger(),
		now:    time.Now,
		limit:  maxInFlight,
	}
}

type delivery struct {
	Event     string    `json:"event"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Dispatch posts the event to every active webhook subscribed to it, at most
// limit at a time, and waits for all deliveries. A failed delivery is counted
// on its webhook and never fails the others, so Dispatch only errors when the
// webhooks cannot be listed or the payload cannot be encoded.
func (d *Dispatcher) Dispatch(ctx context.Context, event string, data any) error {
	hooks, err := d.store.ListActiveWebhooksForEvent(ctx, event)
	if err != nil {
		return fmt.Errorf("list webhooks for %s: %w", event, err)
	}
	if len(hooks) == 0 {
		return nil
	}

	body, err := json.Marshal(delivery{Event: event, Data: data, Timestamp: d.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}

	var g errgroup.Group
	g.SetLimit(d.limit)
	for _, hook := range hooks {
		hook := hook
		g.Go(func() error {
			d.deliver(ctx, event, hook, body)
			return nil
		})
	}
	return g.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, event string, hook models.Webhook, body []byte) {
	log := d.logger.With().Str("webhook_id", hook.ID).Str("event", event).Logger()
	if err := d.post(ctx, hook, body); err != nil {
		metrics.WebhookDeliveries.WithLabelValues(event, "failure").Inc()
		log.Warn().Err(err).Str("url", hook.URL).Msg("webhook delivery failed")
		if err := d.store.RecordWebhookFailure(ctx, hook.ID); err != nil {
			log.Error().Err(err).Msg("record webhook failure")
		}
		return
	}
	metrics.WebhookDeliveries.WithLabelValues(event, "success").Inc()
	if err := d.store.RecordWebhookSuccess(ctx, hook.ID, d.now().UTC()); err != nil {
		log.Error().Err(err).Msg("record webhook success")
	}
}

func (d *Dispatcher) post(ctx context.Context, hook models.Webhook, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SecretHeader, hook.Secret)

	res, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}

// Subscribe maps bus events to webhook events. Deliveries run detached from
// the publisher so request latency never includes receiver latency.
func (d *Dispatcher) Subscribe(bus *events.Bus) {
	for busName, hookName := range busEvents {
		hookName := hookName
		bus.Subscribe(busName, func(ctx context.Context, evt events.Event) error {
			d.wg.Add(1)
			go func() {
				defer d.wg.Done()
				if err := d.Dispatch(context.WithoutCancel(ctx), hookName, evt.Payload); err != nil {
					d.logger.Error().Err(err).Str("event", hookName).Msg("webhook dispatch failed")
				}
			}()
			return nil
		})
	}
}

// Wait blocks until in-flight deliveries started from the bus have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
