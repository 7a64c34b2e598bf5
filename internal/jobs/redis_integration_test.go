//go:build integration

package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

type RedisQueueSuite struct {
	suite.Suite
	container *tcredis.RedisContainer
	client    *redis.Client
	queue     *RedisQueue
}

func TestRedisQueueSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisQueueSuite))
}

func (s *RedisQueueSuite) SetupSuite() {
	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	s.Require().NoError(err)
	s.container = container

	addr, err := container.ConnectionString(ctx)
	s.Require().NoError(err)
	opts, err := redis.ParseURL(addr)
	s.Require().NoError(err)
	s.client = redis.NewClient(opts)
	s.Require().NoError(s.client.Ping(ctx).Err())
}

func (s *RedisQueueSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *RedisQueueSuite) SetupTest() {
	s.Require().NoError(s.client.FlushAll(context.Background()).Err())
	s.queue = NewRedisQueue(s.client)
}

func (s *RedisQueueSuite) TestDelayedClaim() {
	ctx := context.Background()
	base := time.Now().UTC()
	s.queue.now = func() time.Time { return base }

	job, err := s.queue.Enqueue(ctx, KindAnalysis, map[string]any{"trigger": "allocation:created"}, Options{Delay: time.Second, RemoveOnComplete: true})
	s.Require().NoError(err)

	due, err := s.queue.Claim(ctx, base, 10)
	s.Require().NoError(err)
	s.Empty(due)

	due, err = s.queue.Claim(ctx, base.Add(time.Second), 10)
	s.Require().NoError(err)
	s.Require().Len(due, 1)
	s.Equal(job.ID, due[0].ID)
	s.Equal("allocation:created", due[0].Data["trigger"])

	due, err = s.queue.Claim(ctx, base.Add(time.Minute), 10)
	s.Require().NoError(err)
	s.Empty(due)
}

func (s *RedisQueueSuite) TestHistoryAndStats() {
	ctx := context.Background()
	a, _ := s.queue.Enqueue(ctx, KindDeepAnalysis, nil, Options{})
	b, _ := s.queue.Enqueue(ctx, KindAnalysis, nil, Options{})
	_, _ = s.queue.Enqueue(ctx, KindAnalysis, nil, Options{Delay: time.Hour})

	claimed, err := s.queue.Claim(ctx, time.Now().Add(time.Second), 0)
	s.Require().NoError(err)
	s.Require().Len(claimed, 2)

	s.Require().NoError(s.queue.Complete(ctx, a))
	s.Require().NoError(s.queue.Fail(ctx, b, errors.New("boom")))

	stats, err := s.queue.Stats(ctx)
	s.Require().NoError(err)
	s.Equal(Stats{Pending: 1, Completed: 1, Failed: 1}, stats)
}
