// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the CrowdCue API server.

CrowdCue is a live-event audience engagement service: anonymous Q&A with
like-based ranking, quick polls, moderation with an on-air broadcast
selection, and a realtime change feed keeping every screen in sync.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=postgres://... JWT_SECRET=... IP_HASH_SALT=... go run main.go

Or with flags:

	go run main.go -p 3410 -t postgres -d "postgres://..." -jwt-secret ... -ip-salt ...

# Configuration

Required settings:

  - DATABASE_URL (-d): database connection string (or file path for sqlite)
  - JWT_SECRET (-jwt-secret): secret for signing device-session tokens
  - IP_HASH_SALT (-ip-salt): secret for IP address HMAC

Optional settings:

  - PORT (-p): server port (default: 3410)
  - DATABASE_TYPE (-t): "sqlite" (default) or "postgres"
  - REDIS_URI (-redis): enables cross-instance realtime events and
    Redis-backed device sessions
  - LOCKOUT_THRESHOLD / LOCKOUT_BASE_WINDOW / LOCKOUT_MAX_WINDOW:
    login-attempt governor tuning
  - ANSWERED_VISIBLE: whether answered questions stay in the audience
    list (default: true)

# Architecture

The server uses a handler-based architecture with dependency injection:

  - handlers: HTTP request handlers (sessions, questions, moderation, polls, auth)
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers
  - models: Request/response types
  - auth: Tokens, password hashing, fingerprinting
  - db: Schema creation
  - cliparse: Configuration parsing
  - realtime: Change-event hub, SSE fan-out, optional Redis bridge
  - sessionstore: Single-active-session device registry (SQL or Redis)
  - client: Go client with store adapters, broadcast selector, and the
    login governor

See package documentation for each component.
*/
package main
