package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/allocai/backend/internal/metrics"
)

type MemoryQueue struct {
	mu        sync.Mutex
	pending   []Job
	completed []Job
	failed    []Job
	now       func() time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{now: time.Now}
}

func (q *MemoryQueue) Enqueue(_ context.Context, kind string, data map[string]any, opts Options) (Job, error) {
	now := q.now().UTC()
	job := Job{
		ID:               uuid.NewString(),
		Kind:             kind,
		Data:             data,
		RunAt:            now.Add(opts.Delay),
		EnqueuedAt:       now,
		RemoveOnComplete: opts.RemoveOnComplete,
	}
	q.mu.Lock()
	q.pending = append(q.pending, job)
	q.mu.Unlock()
	metrics.JobsEnqueued.WithLabelValues(kind).Inc()
	return job, nil
}

func (q *MemoryQueue) Claim(_ context.Context, now time.Time, limit int) ([]Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	sort.SliceStable(q.pending, func(i, j int) bool { return q.pending[i].RunAt.Before(q.pending[j].RunAt) })

	var due []Job
	rest := q.pending[:0]
	for _, j := range q.pending {
		if !j.RunAt.After(now) && (limit <= 0 || len(due) < limit) {
			due = append(due, j)
			continue
		}
		rest = append(rest, j)
	}
	q.pending = rest
	return due, nil
}

func (q *MemoryQueue) Complete(_ context.Context, job Job) error {
	if job.RemoveOnComplete {
		return nil
	}
	now := q.now().UTC()
	job.FinishedAt = &now
	q.mu.Lock()
	q.completed = appendBounded(q.completed, job)
	q.mu.Unlock()
	return nil
}

func (q *MemoryQueue) Fail(_ context.Context, job Job, cause error) error {
	now := q.now().UTC()
	job.FinishedAt = &now
	if cause != nil {
		job.Error = cause.Error()
	}
	q.mu.Lock()
	q.failed = appendBounded(q.failed, job)
	q.mu.Unlock()
	return nil
}

func (q *MemoryQueue) Stats(context.Context) (Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Pending:   int64(len(q.pending)),
		Completed: int64(len(q.completed)),
		Failed:    int64(len(q.failed)),
	}, nil
}

// Pending returns a copy of the jobs not yet claimed.
func (q *MemoryQueue) Pending() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Job(nil), q.pending...)
}

func appendBounded(list []Job, job Job) []Job {
	list = append([]Job{job}, list...)
	if len(list) > historyLimit {
		list = list[:historyLimit]
	}
	return list
}
