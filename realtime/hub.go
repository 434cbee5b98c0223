// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Topic identifies which table a change event belongs to. Each event
// session has three logical channels: questions, polls, and the session
// record itself.
type Topic string

const (
	TopicQuestions Topic = "questions"
	TopicPolls     Topic = "polls"
	TopicSession   Topic = "session"
)

// EventType mirrors the database operation that produced the event.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Event is a single change notification scoped to an event session.
// Payload is the JSON encoding of the changed row.
type Event struct {
	Topic       Topic           `json:"topic"`
	Type        EventType       `json:"type"`
	SessionCode string          `json:"session_code"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// subscriber buffers events per connection. Delivery is best-effort: a
// full buffer drops the event rather than blocking the publisher, and
// clients compensate with periodic full refreshes.
type subscriber struct {
	ch     chan Event
	topics map[Topic]bool
}

// Hub fans change events out to subscribers grouped by session code.
// A single Hub serves one process; the optional Redis bridge (see
// bridge.go) relays events between processes.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}

	// publishRemote, when set, forwards locally published events to
	// other instances. Set by the Redis bridge.
	publishRemote func(Event)
}

const subscriberBuffer = 16

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[*subscriber]struct{}),
	}
}

// Subscribe registers interest in the given topics for one session code.
// The returned cancel func must be called when the consumer goes away;
// it closes the event channel.
func (h *Hub) Subscribe(sessionCode string, topics ...Topic) (<-chan Event, func()) {
	sub := &subscriber{
		ch:     make(chan Event, subscriberBuffer),
		topics: make(map[Topic]bool, len(topics)),
	}
	for _, t := range topics {
		sub.topics[t] = true
	}

	h.mu.Lock()
	if h.subs[sessionCode] == nil {
		h.subs[sessionCode] = make(map[*subscriber]struct{})
	}
	h.subs[sessionCode][sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[sessionCode]; ok {
			if _, ok := set[sub]; ok {
				delete(set, sub)
				close(sub.ch)
			}
			if len(set) == 0 {
				delete(h.subs, sessionCode)
			}
		}
		h.mu.Unlock()
	}

	return sub.ch, cancel
}

// Publish delivers an event to local subscribers and, when bridged, to
// other instances. Never blocks: slow subscribers lose events.
func (h *Hub) Publish(ev Event) {
	h.fanOut(ev)

	h.mu.RLock()
	remote := h.publishRemote
	h.mu.RUnlock()
	if remote != nil {
		remote(ev)
	}
}

// fanOut delivers to local subscribers only. The Redis bridge calls this
// directly for events arriving from other instances, so they are not
// re-published remotely.
func (h *Hub) fanOut(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[ev.SessionCode] {
		if !sub.topics[ev.Topic] {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Best-effort delivery; clients poll as a fallback
			slog.Warn("realtime subscriber buffer full, dropping event",
				"session_code", ev.SessionCode,
				"topic", ev.Topic,
			)
		}
	}
}

// SubscriberCount reports how many subscribers a session code has.
func (h *Hub) SubscriberCount(sessionCode string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionCode])
}
