package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allocai/backend/internal/events"
	"github.com/allocai/backend/internal/models"
)

type fakeAnalyzer struct {
	mu    sync.Mutex
	calls []bool
	err   error
}

func (f *fakeAnalyzer) RunAnalysis(_ context.Context, deep bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, deep)
	return f.err
}

type brokenQueue struct{ *MemoryQueue }

func (brokenQueue) Enqueue(context.Context, string, map[string]any, Options) (Job, error) {
	return Job{}, errors.New("redis: connection refused")
}

// interruptedQueue claims one job and then fails, like a Redis ZREM error
// in the middle of a claim.
type interruptedQueue struct{ *MemoryQueue }

func (q interruptedQueue) Claim(ctx context.Context, now time.Time, _ int) ([]Job, error) {
	due, _ := q.MemoryQueue.Claim(ctx, now, 1)
	return due, errors.New("claim job: connection reset")
}

func clockAt(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestMemoryQueueHonoursDelay(t *testing.T) {
	base := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	q := NewMemoryQueue()
	q.now = clockAt(base)

	job, err := q.Enqueue(context.Background(), KindAnalysis, nil, Options{Delay: time.Second})
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Second), job.RunAt)

	due, err := q.Claim(context.Background(), base.Add(500*time.Millisecond), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = q.Claim(context.Background(), base.Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, job.ID, due[0].ID)

	due, err = q.Claim(context.Background(), base.Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due, "a job is claimed only once")
}

func TestMemoryQueueHistory(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()
	kept, _ := q.Enqueue(ctx, KindDeepAnalysis, nil, Options{})
	removed, _ := q.Enqueue(ctx, KindAnalysis, nil, Options{RemoveOnComplete: true})
	failed, _ := q.Enqueue(ctx, KindAnalysis, nil, Options{})

	require.NoError(t, q.Complete(ctx, kept))
	require.NoError(t, q.Complete(ctx, removed))
	require.NoError(t, q.Fail(ctx, failed, errors.New("boom")))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Pending: 3, Completed: 1, Failed: 1}, stats)
	assert.Equal(t, "boom", q.failed[0].Error)
}

func TestListenersEnqueueOneJobPerEvent(t *testing.T) {
	bus := events.New(zerolog.Nop())
	q := NewMemoryQueue()
	RegisterListeners(bus, q, time.Second, zerolog.Nop())

	ctx := context.Background()
	const n = 5
	for i := 0; i < n; i++ {
		bus.Publish(ctx, events.AllocationCreated, models.Allocation{ID: "a1"})
	}
	bus.Publish(ctx, events.AllocationUpdated, &models.Allocation{ID: "a2"})
	bus.Publish(ctx, events.ProjectCreated, models.Project{ID: "p1"})

	pending := q.Pending()
	require.Len(t, pending, n+1)
	for _, j := range pending {
		assert.Equal(t, KindAnalysis, j.Kind)
		assert.True(t, j.RemoveOnComplete)
		assert.Equal(t, time.Second, j.RunAt.Sub(j.EnqueuedAt))
	}
	assert.Equal(t, "a2", pending[n].Data["allocationId"])
}

func TestListenersSwallowQueueErrors(t *testing.T) {
	var busErrors int
	bus := events.New(zerolog.Nop(), events.WithErrorHandler(func(events.Event, error) { busErrors++ }))
	RegisterListeners(bus, brokenQueue{NewMemoryQueue()}, time.Second, zerolog.Nop())

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), events.AllocationCreated, models.Allocation{ID: "a1"})
	})
	assert.Zero(t, busErrors)
}

func TestRunnerCoalescesDueJobs(t *testing.T) {
	base := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	q := NewMemoryQueue()
	q.now = clockAt(base)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, _ = q.Enqueue(ctx, KindAnalysis, nil, Options{Delay: time.Second, RemoveOnComplete: true})
	}

	analyzer := &fakeAnalyzer{}
	r := NewRunner(q, analyzer, time.Millisecond, zerolog.Nop())
	r.now = clockAt(base)

	n, err := r.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "jobs are not due before the debounce delay")

	r.now = clockAt(base.Add(2 * time.Second))
	n, err = r.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []bool{false}, analyzer.calls, "due jobs run as one analysis pass")

	stats, _ := q.Stats(ctx)
	assert.Equal(t, Stats{}, stats)
}

func TestRunnerDeepJobAndFailure(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()
	_, _ = q.Enqueue(ctx, KindAnalysis, nil, Options{})
	_, _ = q.Enqueue(ctx, KindDeepAnalysis, nil, Options{})

	analyzer := &fakeAnalyzer{err: errors.New("store unavailable")}
	r := NewRunner(q, analyzer, time.Millisecond, zerolog.Nop())
	r.now = func() time.Time { return time.Now().Add(time.Minute) }

	n, err := r.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []bool{true}, analyzer.calls)

	stats, _ := q.Stats(ctx)
	assert.Equal(t, int64(2), stats.Failed)
	assert.Equal(t, int64(0), stats.Pending)
}

func TestRunnerStopsOnCancel(t *testing.T) {
	r := NewRunner(NewMemoryQueue(), &fakeAnalyzer{}, time.Millisecond, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestSchedulerEntries(t *testing.T) {
	q := NewMemoryQueue()
	s, err := NewScheduler(q, pinger{}, "0 0 * * *", "0 1 * * 1", zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 2)

	s.RunDaily(context.Background())
	pending := q.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, KindDeepAnalysis, pending[0].Kind)
	assert.False(t, pending[0].RemoveOnComplete)

	assert.NotPanics(t, func() { s.RunWeekly(context.Background()) })
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	_, err := NewScheduler(NewMemoryQueue(), pinger{}, "every day", "0 1 * * 1", zerolog.Nop())
	assert.Error(t, err)
}

func TestRunnerSettlesJobsClaimedBeforeError(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryQueue()
	_, _ = mem.Enqueue(ctx, KindAnalysis, nil, Options{})
	_, _ = mem.Enqueue(ctx, KindAnalysis, nil, Options{})

	analyzer := &fakeAnalyzer{}
	r := NewRunner(interruptedQueue{mem}, analyzer, time.Millisecond, zerolog.Nop())
	r.now = func() time.Time { return time.Now().Add(time.Minute) }

	n, err := r.Tick(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []bool{false}, analyzer.calls)

	stats, _ := mem.Stats(ctx)
	assert.Equal(t, int64(1), stats.Completed)
	assert.Equal(t, int64(1), stats.Pending)
}

func TestWeeklyHealthCheckLogLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	s, err := NewScheduler(NewMemoryQueue(), pinger{err: errors.New("db down")}, "0 0 * * *", "0 1 * * 1", logger)
	require.NoError(t, err)

	s.RunWeekly(context.Background())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1, buf.String())
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "db down", entry["error"])
	assert.Equal(t, float64(0), entry["pending"])
	assert.Equal(t, "weekly health check", entry["message"])
}
