package app

import (
	"sync"

	"github.com/dkeye/Membership/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type SubscriptionID string

// Subscriber receives events appended to a room. TrySend must not block;
// it returns an error when the event cannot be queued.
// Owned by the adapter; the hub only calls Close on Disconnect.
type Subscriber interface {
	TrySend(domain.MembershipEvent) error
	Close()
}

// PublishResult reports delivery stats for one event.
type PublishResult struct {
	SentTo  int
	Dropped []SubscriptionID
}

// Hub fans appended events out to the subscribers of their room.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[domain.RoomID]map[SubscriptionID]Subscriber
	policy Policy
}

func NewHub(policy Policy) *Hub {
	if policy == nil {
		policy = SimplePolicy{}
	}
	return &Hub{
		rooms:  make(map[domain.RoomID]map[SubscriptionID]Subscriber),
		policy: policy,
	}
}

func (h *Hub) Subscribe(room domain.RoomID, sub Subscriber) SubscriptionID {
	id := SubscriptionID(uuid.NewString())
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.rooms[room]
	if !ok {
		subs = make(map[SubscriptionID]Subscriber)
		h.rooms[room] = subs
	}
	subs[id] = sub
	log.Info().Str("module", "app.hub").Str("room", string(room)).Str("sub", string(id)).Msg("subscribed")
	return id
}

// Unsubscribe reports whether id was still registered.
func (h *Hub) Unsubscribe(room domain.RoomID, id SubscriptionID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.rooms[room]
	if !ok {
		return false
	}
	if _, ok := subs[id]; !ok {
		return false
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(h.rooms, room)
	}
	log.Info().Str("module", "app.hub").Str("room", string(room)).Str("sub", string(id)).Msg("unsubscribed")
	return true
}

func (h *Hub) SubscriberCount(room domain.RoomID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) Publish(e domain.MembershipEvent) PublishResult {
	type target struct {
		id  SubscriptionID
		sub Subscriber
	}
	h.mu.RLock()
	targets := make([]target, 0, len(h.rooms[e.RoomID]))
	for id, sub := range h.rooms[e.RoomID] {
		targets = append(targets, target{id: id, sub: sub})
	}
	h.mu.RUnlock()

	res := PublishResult{}
	for _, t := range targets {
		if err := t.sub.TrySend(e); err != nil {
			res.Dropped = append(res.Dropped, t.id)
			if h.policy.OnBackPressure(e.RoomID, t.id) == Disconnect && h.Unsubscribe(e.RoomID, t.id) {
				t.sub.Close()
			}
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "app.hub").Str("room", string(e.RoomID)).Uint64("seq", e.SequenceID).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("publish result")
	return res
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	rooms := h.rooms
	h.rooms = make(map[domain.RoomID]map[SubscriptionID]Subscriber)
	h.mu.Unlock()
	for _, subs := range rooms {
		for _, sub := range subs {
			sub.Close()
		}
	}
	log.Info().Str("module", "app.hub").Msg("closed all subscriptions")
}
