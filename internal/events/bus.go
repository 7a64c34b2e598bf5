package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/allocai/backend/internal/metrics"
)

const (
	AllocationCreated = "allocation:created"
	AllocationUpdated = "allocation:updated"
	AllocationDeleted = "allocation:deleted"
	ProjectCreated    = "project:created"
	EmployeeJoined    = "employee:joined"
	InsightsGenerated = "ai:insights_generated"
)

type Event struct {
	Name       string
	Payload    any
	OccurredAt time.Time
}

type Handler func(ctx context.Context, evt Event) error

// ErrorHandler receives subscriber failures. It never sees publisher errors
// because Publish has none.
type ErrorHandler func(evt Event, err error)

// Bus is an in-process publish/subscribe relay. Handlers run synchronously
// in registration order on the publisher's goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	onError  ErrorHandler
	now      func() time.Time
}

type Option func(*Bus)

func WithErrorHandler(fn ErrorHandler) Option {
	return func(b *Bus) {
		if fn != nil {
			b.onError = fn
		}
	}
}

func New(logger zerolog.Logger, opts ...Option) *Bus {
	l := logger.With().Str("component", "event_bus").Logger()
	b := &Bus{
		handlers: map[string][]Handler{},
		now:      time.Now,
		onError: func(evt Event, err error) {
			l.Error().Err(err).Str("event", evt.Name).Msg("subscriber failed")
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

func (b *Bus) Publish(ctx context.Context, name string, payload any) {
	b.mu.RLock()
	hs := append([]Handler(nil), b.handlers[name]...)
	b.mu.RUnlock()

	metrics.EventsPublished.WithLabelValues(name).Inc()
	evt := Event{Name: name, Payload: payload, OccurredAt: b.now().UTC()}
	for _, h := range hs {
		b.invoke(ctx, evt, h)
	}
}

func (b *Bus) invoke(ctx context.Context, evt Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.onError(evt, fmt.Errorf("subscriber panic: %v", r))
		}
	}()
	if err := h(ctx, evt); err != nil {
		b.onError(evt, err)
	}
}
