// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the CrowdCue API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(db, cfg, hub, sessions)

# Endpoints

Health:

	GET /health

Session lifecycle (requires Bearer token):

	POST /sessions              - Create session (partner/admin)
	POST /sessions/{code}/start - Go live
	POST /sessions/{code}/end   - End session (terminal)

Audience Q&A (public, X-Device-UUID for identity):

	GET  /sessions/{code}           - Session metadata
	POST /sessions/{code}/questions - Submit question
	GET  /sessions/{code}/questions - List approved questions
	POST /questions/{id}/like       - Toggle like

Moderation (requires Bearer token with session rights):

	GET   /sessions/{code}/questions/displayed - Displayed list
	PATCH /questions/{id}/moderate             - Status/pin/highlight/display
	POST  /questions/{id}/broadcast            - On-air toggle

Polls:

	POST /sessions/{code}/polls - Create (moderator)
	GET  /sessions/{code}/polls - List open/closed polls
	POST /polls/{id}/open       - Open for voting (moderator)
	POST /polls/{id}/close      - Close (moderator)
	POST /polls/{id}/vote       - Cast/move vote (device)

Realtime:

	GET /sessions/{code}/events?topic=questions,polls,session - SSE feed

Auth:

	POST /auth/check-attempt
	POST /auth/login
	POST /auth/record-failure
	POST /auth/clear-attempts
	POST /auth/log-event
	POST /auth/sessions/heartbeat
	POST /auth/logout

# Handler Initialization

The router creates handler instances with dependency injection:

	sessionHandler := handlers.NewSessionHandler(db, cfg, hub, sessions)
	questionHandler := handlers.NewQuestionHandler(db, cfg, hub, sessions)

The SSE endpoint skips the logging middleware; long-lived streams would
otherwise log a duration only when the client disconnects.
*/
package router
