// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/danielhkuo/crowdcue/cliparse"
	"github.com/danielhkuo/crowdcue/handlers"
	"github.com/danielhkuo/crowdcue/middleware"
	"github.com/danielhkuo/crowdcue/realtime"
	"github.com/danielhkuo/crowdcue/sessionstore"
)

func NewRouter(db *sql.DB, cfg cliparse.Config, hub *realtime.Hub, sessions sessionstore.Store) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(db, cfg, hub, sessions)
	questionHandler := handlers.NewQuestionHandler(db, cfg, hub, sessions)
	moderationHandler := handlers.NewModerationHandler(db, cfg, hub, sessions)
	pollHandler := handlers.NewPollHandler(db, cfg, hub, sessions)
	authHandler := handlers.NewAuthHandler(db, cfg, sessions)
	eventsHandler := handlers.NewEventsHandler(db, hub)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Session lifecycle (partner/moderator operations)
	mux.HandleFunc("POST /sessions", middleware.WithLogging(sessionHandler.Create))
	mux.HandleFunc("GET /sessions/{code}", middleware.WithLogging(sessionHandler.Get))
	mux.HandleFunc("POST /sessions/{code}/start", middleware.WithLogging(sessionHandler.Start))
	mux.HandleFunc("POST /sessions/{code}/end", middleware.WithLogging(sessionHandler.End))

	// Audience Q&A (public, X-Device-UUID for identity)
	mux.HandleFunc("POST /sessions/{code}/questions", middleware.WithLogging(questionHandler.Submit))
	mux.HandleFunc("GET /sessions/{code}/questions", middleware.WithLogging(questionHandler.List))
	mux.HandleFunc("POST /questions/{id}/like", middleware.WithLogging(questionHandler.ToggleLike))

	// Moderation and presentation
	mux.HandleFunc("GET /sessions/{code}/questions/displayed", middleware.WithLogging(moderationHandler.DisplayedList))
	mux.HandleFunc("POST /questions/{id}/broadcast", middleware.WithLogging(moderationHandler.ToggleBroadcast))
	mux.HandleFunc("PATCH /questions/{id}/moderate", middleware.WithLogging(moderationHandler.Moderate))

	// Polls
	mux.HandleFunc("POST /sessions/{code}/polls", middleware.WithLogging(pollHandler.Create))
	mux.HandleFunc("GET /sessions/{code}/polls", middleware.WithLogging(pollHandler.List))
	mux.HandleFunc("POST /polls/{id}/open", middleware.WithLogging(pollHandler.Open))
	mux.HandleFunc("POST /polls/{id}/close", middleware.WithLogging(pollHandler.Close))
	mux.HandleFunc("POST /polls/{id}/vote", middleware.WithLogging(pollHandler.Vote))

	// Realtime change feed (SSE)
	mux.HandleFunc("GET /sessions/{code}/events", eventsHandler.Stream)

	// Auth and the login governor
	mux.HandleFunc("POST /auth/check-attempt", middleware.WithLogging(authHandler.CheckAttempt))
	mux.HandleFunc("POST /auth/login", middleware.WithLogging(authHandler.Login))
	mux.HandleFunc("POST /auth/record-failure", middleware.WithLogging(authHandler.RecordFailure))
	mux.HandleFunc("POST /auth/clear-attempts", middleware.WithLogging(authHandler.ClearAttempts))
	mux.HandleFunc("POST /auth/log-event", middleware.WithLogging(authHandler.LogEvent))
	mux.HandleFunc("POST /auth/sessions/heartbeat", middleware.WithLogging(authHandler.Heartbeat))
	mux.HandleFunc("POST /auth/logout", middleware.WithLogging(authHandler.Logout))

	// Root endpoint. The {$} anchor keeps this from swallowing GETs to
	// every unmatched path, which would turn 405s into 200s.
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("crowdcue API v1"))
	})

	return mux
}
