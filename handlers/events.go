// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielhkuo/crowdcue/middleware"
	"github.com/danielhkuo/crowdcue/realtime"
)

// heartbeatInterval keeps idle SSE connections alive through proxies.
const heartbeatInterval = 25 * time.Second

type EventsHandler struct {
	db  *sql.DB
	hub *realtime.Hub
}

func NewEventsHandler(db *sql.DB, hub *realtime.Hub) *EventsHandler {
	return &EventsHandler{db: db, hub: hub}
}

// Stream handles GET /sessions/{code}/events?topic=questions,polls,session
//
// A plain SSE stream of change events for the session. Delivery is
// best-effort: a slow consumer loses events rather than stalling the
// hub, and clients are expected to re-list on reconnect.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	if _, err := getSessionByCode(h.db, code); err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Session not found")
		return
	} else if err != nil {
		slog.Error("failed to query session", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	topics := parseTopics(r.URL.Query().Get("topic"))
	if len(topics) == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid topic")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	events, cancel := h.hub.Subscribe(code, topics...)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	slog.Info("sse stream opened", "session_code", code, "topics", topics)

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			slog.Info("sse stream closed", "session_code", code)
			return
		case <-ticker.C:
			// Comment line: ignored by clients, defeats idle timeouts
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case ev, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				slog.Error("failed to marshal event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Topic, data)
			flusher.Flush()
		}
	}
}

// parseTopics maps the comma-separated topic parameter to hub topics.
// An empty parameter subscribes to everything; any unknown name makes
// the whole parameter invalid.
func parseTopics(param string) []realtime.Topic {
	if param == "" {
		return []realtime.Topic{realtime.TopicQuestions, realtime.TopicPolls, realtime.TopicSession}
	}

	topics := []realtime.Topic{}
	for _, name := range strings.Split(param, ",") {
		switch strings.TrimSpace(name) {
		case string(realtime.TopicQuestions):
			topics = append(topics, realtime.TopicQuestions)
		case string(realtime.TopicPolls):
			topics = append(topics, realtime.TopicPolls)
		case string(realtime.TopicSession):
			topics = append(topics, realtime.TopicSession)
		default:
			return nil
		}
	}
	return topics
}
