// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package realtime implements change-notification fan-out for live event
sessions.

# Hub

One Hub per process. Handlers publish a change event after every
committed write; SSE connections subscribe per session code and topic:

	ch, cancel := hub.Subscribe(code, realtime.TopicQuestions)
	defer cancel()

	hub.Publish(realtime.Event{
		Topic:       realtime.TopicQuestions,
		Type:        realtime.EventInsert,
		SessionCode: code,
		Payload:     payload,
	})

# Delivery Contract

Delivery is best-effort, at most once. A subscriber whose buffer is full
loses the event. Clients are built for this: every notification triggers
a full re-list rather than an incremental patch, and a fixed-interval
poll runs alongside the subscription as a second trigger.

# Topics

Each session has three logical channels - questions, polls, and the
session record itself - so a presenter view can watch session status
without receiving every like.

# Redis Bridge

With multiple server instances behind a load balancer, a Bridge relays
events between instances over a Redis pub/sub channel:

	bridge := realtime.NewBridge(rdb, hub)
	defer bridge.Close()

Instances tag events with an origin id and skip their own messages.
Without Redis configured the hub works standalone.
*/
package realtime
