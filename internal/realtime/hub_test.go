package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allocai/backend/internal/events"
	"github.com/allocai/backend/internal/models"
)

func receive(t *testing.T, s *Subscription) Message {
	t.Helper()
	select {
	case m := <-s.C:
		return m
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func assertSilent(t *testing.T, s *Subscription) {
	t.Helper()
	select {
	case m := <-s.C:
		t.Fatalf("unexpected message %q", m.Event)
	default:
	}
}

func TestHubRoutesAllocationEventsToProjectRooms(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	bus := events.New(zerolog.Nop())
	hub.Subscribe(bus)

	p1 := hub.Join("p1")
	defer p1.Close()
	p2 := hub.Join("p2")
	defer p2.Close()

	bus.Publish(context.Background(), events.AllocationCreated, models.Allocation{ID: "a1", ProjectID: "p1"})
	m := receive(t, p1)
	assert.Equal(t, events.AllocationCreated, m.Event)
	assertSilent(t, p2)

	bus.Publish(context.Background(), events.InsightsGenerated, models.InsightReport{Source: "ai"})
	assert.Equal(t, events.InsightsGenerated, receive(t, p1).Event)
	assert.Equal(t, events.InsightsGenerated, receive(t, p2).Event)
}

func TestHubCloseUnregisters(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	s := hub.Join()
	require.Equal(t, 1, hub.Clients())
	s.Close()
	s.Close()
	assert.Equal(t, 0, hub.Clients())

	_, open := <-s.C
	assert.False(t, open)
	hub.Broadcast("x", nil)
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hub.buffer = 1
	s := hub.Join()
	defer s.Close()

	hub.Broadcast("first", 1)
	hub.Broadcast("second", 2)
	assert.Equal(t, "first", receive(t, s).Event)
	assertSilent(t, s)
}
