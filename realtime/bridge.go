// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package realtime

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const bridgeChannel = "crowdcue:events"

// envelope wraps an event with the publishing instance's id so an
// instance can ignore its own messages coming back from Redis.
type envelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// Bridge relays hub events across server instances through Redis
// pub/sub. Each instance publishes its local events to one channel and
// re-fans incoming events to its own subscribers.
type Bridge struct {
	rdb      *redis.Client
	hub      *Hub
	instance string
	cancel   context.CancelFunc
}

// NewBridge wires the hub to Redis and starts the relay goroutine.
func NewBridge(rdb *redis.Client, hub *Hub) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		rdb:      rdb,
		hub:      hub,
		instance: uuid.NewString(),
		cancel:   cancel,
	}

	hub.mu.Lock()
	hub.publishRemote = b.publish
	hub.mu.Unlock()

	go b.relay(ctx)
	return b
}

// Close stops the relay and detaches from the hub.
func (b *Bridge) Close() {
	b.hub.mu.Lock()
	b.hub.publishRemote = nil
	b.hub.mu.Unlock()
	b.cancel()
}

func (b *Bridge) publish(ev Event) {
	data, err := json.Marshal(envelope{Origin: b.instance, Event: ev})
	if err != nil {
		slog.Error("failed to marshal realtime event", "error", err)
		return
	}
	// Fire and forget; delivery is best-effort by contract
	if err := b.rdb.Publish(context.Background(), bridgeChannel, data).Err(); err != nil {
		slog.Warn("failed to publish realtime event to redis", "error", err)
	}
}

func (b *Bridge) relay(ctx context.Context) {
	pubsub := b.rdb.Subscribe(ctx, bridgeChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				slog.Warn("dropping malformed realtime event from redis", "error", err)
				continue
			}
			if env.Origin == b.instance {
				continue
			}
			// Local fan-out only; re-publishing would loop
			b.hub.fanOut(env.Event)
		}
	}
}
