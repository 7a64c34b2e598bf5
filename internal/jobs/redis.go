package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/allocai/backend/internal/metrics"
)

const (
	pendingKey   = "allocai:jobs:pending"
	completedKey = "allocai:jobs:completed"
	failedKey    = "allocai:jobs:failed"
)

// RedisQueue keeps pending jobs in a sorted set scored by run-at time in
// milliseconds, so several worker processes can share one queue.
type RedisQueue struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedisQueue(client redis.Cmdable) *RedisQueue {
	return &RedisQueue{client: client, now: time.Now}
}

func (q *RedisQueue) Enqueue(ctx context.Context, kind string, data map[string]any, opts Options) (Job, error) {
	now := q.now().UTC()
	job := Job{
		ID:               uuid.NewString(),
		Kind:             kind,
		Data:             data,
		RunAt:            now.Add(opts.Delay),
		EnqueuedAt:       now,
		RemoveOnComplete: opts.RemoveOnComplete,
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return Job{}, err
	}
	if err := q.client.ZAdd(ctx, pendingKey, redis.Z{Score: float64(job.RunAt.UnixMilli()), Member: string(raw)}).Err(); err != nil {
		return Job{}, fmt.Errorf("enqueue %s: %w", kind, err)
	}
	metrics.JobsEnqueued.WithLabelValues(kind).Inc()
	return job, nil
}

// Claim removes due members one by one; only the caller whose ZREM
// succeeds owns the job.
func (q *RedisQueue) Claim(ctx context.Context, now time.Time, limit int) ([]Job, error) {
	rng := &redis.ZRangeBy{Min: "-inf", Max: strconv.FormatInt(now.UnixMilli(), 10)}
	if limit > 0 {
		rng.Count = int64(limit)
	}
	members, err := q.client.ZRangeByScore(ctx, pendingKey, rng).Result()
	if err != nil {
		return nil, fmt.Errorf("read due jobs: %w", err)
	}

	var out []Job
	for _, m := range members {
		removed, err := q.client.ZRem(ctx, pendingKey, m).Result()
		if err != nil {
			return out, fmt.Errorf("claim job: %w", err)
		}
		if removed == 0 {
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(m), &job); err != nil {
			continue
		}
		out = append(out, job)
	}
	return out, nil
}

func (q *RedisQueue) Complete(ctx context.Context, job Job) error {
	if job.RemoveOnComplete {
		return nil
	}
	now := q.now().UTC()
	job.FinishedAt = &now
	return q.record(ctx, completedKey, job)
}

func (q *RedisQueue) Fail(ctx context.Context, job Job, cause error) error {
	now := q.now().UTC()
	job.FinishedAt = &now
	if cause != nil {
		job.Error = cause.Error()
	}
	return q.record(ctx, failedKey, job)
}

func (q *RedisQueue) record(ctx context.Context, key string, job Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	pipe := q.client.TxPipeline()
	pipe.LPush(ctx, key, string(raw))
	pipe.LTrim(ctx, key, 0, historyLimit-1)
	_, err = pipe.Exec(ctx)
	return err
}

func (q *RedisQueue) Stats(ctx context.Context) (Stats, error) {
	pipe := q.client.Pipeline()
	pending := pipe.ZCard(ctx, pendingKey)
	completed := pipe.LLen(ctx, completedKey)
	failed := pipe.LLen(ctx, failedKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Stats{}, err
	}
	return Stats{Pending: pending.Val(), Completed: completed.Val(), Failed: failed.Val()}, nil
}
