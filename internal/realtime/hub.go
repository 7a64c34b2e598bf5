package realtime

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/allocai/backend/internal/events"
	"github.com/allocai/backend/internal/models"
)

const defaultBuffer = 16

// Message is one server-sent event.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Subscription receives the messages for the rooms it joined plus every
// broadcast. Close must be called when the client goes away.
type Subscription struct {
	C <-chan Message

	hub   *Hub
	ch    chan Message
	rooms map[string]bool
	once  sync.Once
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		s.hub.mu.Unlock()
		close(s.ch)
	})
}

// Hub fans domain events out to connected clients grouped by project room.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	logger zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		subs:   map[*Subscription]struct{}{},
		buffer: defaultBuffer,
		logger: logger.With().Str("component", "realtime").Logger(),
	}
}

func ProjectRoom(projectID string) string { return "project:" + projectID }

func (h *Hub) Join(projectIDs ...string) *Subscription {
	ch := make(chan Message, h.buffer)
	s := &Subscription{C: ch, hub: h, ch: ch, rooms: map[string]bool{}}
	for _, id := range projectIDs {
		if id != "" {
			s.rooms[ProjectRoom(id)] = true
		}
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Broadcast(event string, data any) {
	h.send(Message{Event: event, Data: data}, func(*Subscription) bool { return true })
}

func (h *Hub) ToRoom(room, event string, data any) {
	h.send(Message{Event: event, Data: data}, func(s *Subscription) bool { return s.rooms[room] })
}

// send never blocks: a client whose buffer is full misses the message.
func (h *Hub) send(msg Message, match func(*Subscription) bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if !match(s) {
			continue
		}
		select {
		case s.ch <- msg:
		default:
			h.logger.Debug().Str("event", msg.Event).Msg("client buffer full, dropping message")
		}
	}
}

// Subscribe relays bus events. Allocation changes go to the room of the
// allocation's project, everything else to all clients.
func (h *Hub) Subscribe(bus *events.Bus) {
	toProject := func(_ context.Context, evt events.Event) error {
		if id := projectOf(evt.Payload); id != "" {
			h.ToRoom(ProjectRoom(id), evt.Name, evt.Payload)
		}
		return nil
	}
	broadcast := func(_ context.Context, evt events.Event) error {
		h.Broadcast(evt.Name, evt.Payload)
		return nil
	}
	bus.Subscribe(events.AllocationCreated, toProject)
	bus.Subscribe(events.AllocationUpdated, toProject)
	bus.Subscribe(events.AllocationDeleted, broadcast)
	bus.Subscribe(events.ProjectCreated, broadcast)
	bus.Subscribe(events.InsightsGenerated, broadcast)
}

func projectOf(payload any) string {
	switch a := payload.(type) {
	case models.Allocation:
		return a.ProjectID
	case *models.Allocation:
		if a != nil {
			return a.ProjectID
		}
	}
	return ""
}
