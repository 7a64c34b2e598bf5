package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/allocai/backend/internal/metrics"
)

// Analyzer recomputes insights from the current state. deep additionally
// persists conflict and insight records.
type Analyzer interface {
	RunAnalysis(ctx context.Context, deep bool) error
}

const defaultBatch = 100

type Runner struct {
	queue    Queue
	analyzer Analyzer
	interval time.Duration
	batch    int
	logger   zerolog.Logger
	now      func() time.Time
}

func NewRunner(q Queue, a Analyzer, interval time.Duration, logger zerolog.Logger) *Runner {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Runner{
		queue:    q,
		analyzer: a,
		interval: interval,
		batch:    defaultBatch,
		logger:   logger.With().Str("component", "job_runner").Logger(),
		now:      time.Now,
	}
}

// Run polls the queue until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info().Dur("interval", r.interval).Msg("job runner started")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		if _, err := r.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error().Err(err).Msg("job tick failed")
		}
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("job runner stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick claims every due job and runs them as a single analysis pass. It
// returns the number of jobs claimed. Jobs claimed before a claim error are
// still run and settled; the claim error is returned afterwards.
func (r *Runner) Tick(ctx context.Context) (int, error) {
	due, claimErr := r.queue.Claim(ctx, r.now(), r.batch)
	if len(due) == 0 {
		return 0, claimErr
	}

	deep := false
	for _, j := range due {
		if j.Kind == KindDeepAnalysis {
			deep = true
		}
	}

	start := time.Now()
	runErr := r.analyzer.RunAnalysis(ctx, deep)
	log := r.logger.With().Int("jobs", len(due)).Bool("deep", deep).Dur("took", time.Since(start)).Logger()
	if runErr != nil {
		log.Error().Err(runErr).Msg("analysis job failed")
	} else {
		log.Debug().Msg("analysis job completed")
	}

	for _, j := range due {
		if runErr != nil {
			metrics.JobsProcessed.WithLabelValues(j.Kind, "failed").Inc()
			if err := r.queue.Fail(ctx, j, runErr); err != nil {
				r.logger.Error().Err(err).Str("job_id", j.ID).Msg("mark job failed")
			}
			continue
		}
		metrics.JobsProcessed.WithLabelValues(j.Kind, "completed").Inc()
		if err := r.queue.Complete(ctx, j); err != nil {
			r.logger.Error().Err(err).Str("job_id", j.ID).Msg("mark job completed")
		}
	}
	return len(due), claimErr
}
