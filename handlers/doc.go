// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the CrowdCue API.

# Handler Types

Each handler is a struct with its dependencies injected:

  - SessionHandler: Event-session lifecycle (create, start, end)
  - QuestionHandler: Audience Q&A (submit, list, like toggle)
  - ModerationHandler: Status transitions, display list, broadcast toggle
  - PollHandler: Poll lifecycle and voting
  - AuthHandler: Login governor, audit events, device sessions
  - EventsHandler: SSE change feed

Handlers are created via constructor functions:

	questionHandler := handlers.NewQuestionHandler(db, cfg, hub, sessions)

# Question Lifecycle

Questions progress pending → approved → answered (or rejected). Only
approved and (by configuration) answered questions reach the audience
list:

	POST /sessions/{code}/questions   → Submit (always pending)
	GET  /sessions/{code}/questions   → List (sort=popular|newest|oldest)
	POST /questions/{id}/like         → ToggleLike
	PATCH /questions/{id}/moderate    → Moderate (moderator)
	POST /questions/{id}/broadcast    → ToggleBroadcast (moderator)

Audience identity comes from the X-Device-UUID header; authenticated
requests without one fall back to the user id behind the Bearer token,
so likes and votes work from logged-in clients too.

# Atomicity

The operations concurrency can corrupt run as single transactions:
like toggles (count clamped at zero), poll votes (re-vote moves the
vote), and broadcast toggles (at most one question on air per session).
The response body of each is the state the client must adopt.

# Login Governor

Consecutive failures per (email, ip) lock the account out with an
exponentially growing window. Locked requests get 423 with
remaining_seconds. Every attempt, success or not, lands in the
login_event audit table with a coarse device fingerprint. A successful
login registers a device session and kicks any prior one; the old
token's next heartbeat returns 401.
*/
package handlers
