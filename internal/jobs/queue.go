package jobs

import (
	"context"
	"time"
)

const (
	KindAnalysis     = "analysis"
	KindDeepAnalysis = "deep_analysis"
)

// Job is one unit of background work. Data carries the triggering payload
// for logging only; execution always recomputes from the full snapshot.
type Job struct {
	ID               string         `json:"id"`
	Kind             string         `json:"kind"`
	Data             map[string]any `json:"data,omitempty"`
	RunAt            time.Time      `json:"runAt"`
	EnqueuedAt       time.Time      `json:"enqueuedAt"`
	RemoveOnComplete bool           `json:"removeOnComplete"`
	FinishedAt       *time.Time     `json:"finishedAt,omitempty"`
	Error            string         `json:"error,omitempty"`
}

type Options struct {
	Delay            time.Duration
	RemoveOnComplete bool
}

type Stats struct {
	Pending   int64 `json:"pending"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Queue is a delayed job queue. Claim hands each due job to exactly one
// caller. It may return jobs together with an error; those jobs are already
// claimed and must be completed or failed by the caller.
type Queue interface {
	Enqueue(ctx context.Context, kind string, data map[string]any, opts Options) (Job, error)
	Claim(ctx context.Context, now time.Time, limit int) ([]Job, error)
	Complete(ctx context.Context, job Job) error
	Fail(ctx context.Context, job Job, cause error) error
	Stats(ctx context.Context) (Stats, error)
}

// historyLimit bounds the completed and failed lists.
const historyLimit = 1000
