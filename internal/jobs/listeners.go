package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/allocai/backend/internal/events"
	"github.com/allocai/backend/internal/models"
)

// RegisterListeners enqueues one delayed analysis job per allocation
// create or update. Queue errors are logged and never reach the publisher.
func RegisterListeners(bus *events.Bus, q Queue, delay time.Duration, logger zerolog.Logger) {
	log := logger.With().Str("component", "job_listeners").Logger()
	handler := func(ctx context.Context, evt events.Event) error {
		data := map[string]any{"trigger": evt.Name}
		if id := allocationID(evt.Payload); id != "" {
			data["allocationId"] = id
		}
		job, err := q.Enqueue(ctx, KindAnalysis, data, Options{Delay: delay, RemoveOnComplete: true})
		if err != nil {
			log.Error().Err(err).Str("event", evt.Name).Msg("enqueue analysis job")
			return nil
		}
		log.Debug().Str("job_id", job.ID).Str("event", evt.Name).Msg("analysis job enqueued")
		return nil
	}
	bus.Subscribe(events.AllocationCreated, handler)
	bus.Subscribe(events.AllocationUpdated, handler)
}

func allocationID(payload any) string {
	switch p := payload.(type) {
	case models.Allocation:
		return p.ID
	case *models.Allocation:
		if p != nil {
			return p.ID
		}
	}
	return ""
}
