package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Scheduler owns the recurring schedule: a nightly deep analysis and a
// weekly health check.
type Scheduler struct {
	cron   *cron.Cron
	queue  Queue
	store  Pinger
	logger zerolog.Logger
}

func NewScheduler(q Queue, store Pinger, daily, weekly string, logger zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		queue:  q,
		store:  store,
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
	if _, err := s.cron.AddFunc(daily, func() { s.RunDaily(context.Background()) }); err != nil {
		return nil, fmt.Errorf("daily schedule %q: %w", daily, err)
	}
	if _, err := s.cron.AddFunc(weekly, func() { s.RunWeekly(context.Background()) }); err != nil {
		return nil, fmt.Errorf("weekly schedule %q: %w", weekly, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("entries", len(s.cron.Entries())).Msg("scheduler started")
}

// Stop halts the schedule and waits for running entries.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) RunDaily(ctx context.Context) {
	job, err := s.queue.Enqueue(ctx, KindDeepAnalysis, map[string]any{"trigger": "cron:daily"}, Options{})
	if err != nil {
		s.logger.Error().Err(err).Msg("enqueue deep analysis")
		return
	}
	s.logger.Info().Str("job_id", job.ID).Msg("deep analysis scheduled")
}

func (s *Scheduler) RunWeekly(ctx context.Context) {
	var evt *zerolog.Event
	if err := s.store.Ping(ctx); err != nil {
		evt = s.logger.Error().Err(err)
	} else {
		evt = s.logger.Info()
	}
	if stats, err := s.queue.Stats(ctx); err == nil {
		evt = evt.Int64("pending", stats.Pending).Int64("completed", stats.Completed).Int64("failed", stats.Failed)
	}
	evt.Msg("weekly health check")
}
