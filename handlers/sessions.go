// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielhkuo/crowdcue/auth"
	"github.com/danielhkuo/crowdcue/cliparse"
	"github.com/danielhkuo/crowdcue/middleware"
	"github.com/danielhkuo/crowdcue/models"
	"github.com/danielhkuo/crowdcue/realtime"
	"github.com/danielhkuo/crowdcue/sessionstore"
)

type SessionHandler struct {
	db       *sql.DB
	cfg      cliparse.Config
	hub      *realtime.Hub
	sessions sessionstore.Store
}

func NewSessionHandler(db *sql.DB, cfg cliparse.Config, hub *realtime.Hub, sessions sessionstore.Store) *SessionHandler {
	return &SessionHandler{db: db, cfg: cfg, hub: hub, sessions: sessions}
}

// Create handles POST /sessions
//
// Partners and admins only. The generated code is what the audience
// types in, so collisions get one retry before giving up.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := authenticateRequest(r, h.cfg, h.sessions, h.db)
	if err == errUnauthorized || err == errSessionRevoked {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	if err != nil {
		slog.Error("failed to authenticate request", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Authentication error")
		return
	}

	if user.Role != models.RolePartner && user.Role != models.RoleAdmin {
		middleware.ErrorResponse(w, http.StatusForbidden, "Only partners may create sessions")
		return
	}
	if !user.Approved {
		middleware.ErrorResponse(w, http.StatusForbidden, "Account pending approval")
		return
	}

	var req models.CreateSessionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "title is required")
		return
	}

	sessionID, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate session ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	var code string
	for attempt := 0; attempt < 2; attempt++ {
		code, err = auth.GenerateSessionCode()
		if err != nil {
			slog.Error("failed to generate session code", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create session")
			return
		}

		_, err = h.db.Exec(`
			INSERT INTO event_session (id, code, title, partner_id, status, qa_enabled, poll_enabled, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, sessionID, code, title, user.ID, models.SessionScheduled, req.QAEnabled, req.PollEnabled, time.Now())
		if err == nil {
			break
		}
		if !isUniqueViolation(err) {
			slog.Error("failed to insert session", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create session")
			return
		}
	}
	if err != nil {
		slog.Error("failed to allocate unique session code", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	slog.Info("session created", "session_id", sessionID, "code", code, "partner_id", user.ID)

	middleware.JSONResponse(w, http.StatusCreated, models.CreateSessionResponse{
		SessionID: sessionID,
		Code:      code,
	})
}

// Get handles GET /sessions/{code}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	session, err := getSessionByCode(h.db, code)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		slog.Error("failed to query session", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, session)
}

// Start handles POST /sessions/{code}/start
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.SessionActive)
}

// End handles POST /sessions/{code}/end
//
// Ending is terminal: submissions and votes are rejected afterwards,
// while reads keep working. A session-topic event tells connected
// clients to flip into their ended state.
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.SessionEnded)
}

func (h *SessionHandler) transition(w http.ResponseWriter, r *http.Request, target string) {
	code := r.PathValue("code")

	session, err := getSessionByCode(h.db, code)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		slog.Error("failed to query session", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	user, err := authenticateRequest(r, h.cfg, h.sessions, h.db)
	if err == errUnauthorized || err == errSessionRevoked {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	if err != nil {
		slog.Error("failed to authenticate request", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Authentication error")
		return
	}
	allowed, err := canModerate(h.db, user, session)
	if err != nil {
		slog.Error("failed to check moderation rights", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !allowed {
		middleware.ErrorResponse(w, http.StatusForbidden, "Not a moderator of this session")
		return
	}

	if session.Status == models.SessionEnded {
		middleware.ErrorResponse(w, http.StatusConflict, "Session has already ended")
		return
	}
	if session.Status == target {
		middleware.ErrorResponse(w, http.StatusConflict, "Session is already "+target)
		return
	}

	if target == models.SessionEnded {
		now := time.Now()
		_, err = h.db.Exec(`UPDATE event_session SET status = $1, ended_at = $2 WHERE id = $3`,
			target, now, session.ID)
	} else {
		_, err = h.db.Exec(`UPDATE event_session SET status = $1 WHERE id = $2`, target, session.ID)
	}
	if err != nil {
		slog.Error("failed to update session status", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update session")
		return
	}

	slog.Info("session status changed", "code", code, "status", target, "by", user.ID)

	updated, err := getSessionByCode(h.db, code)
	if err != nil {
		slog.Error("failed to reload session", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if payload, err := json.Marshal(updated); err == nil {
		h.hub.Publish(realtime.Event{
			Topic:       realtime.TopicSession,
			Type:        realtime.EventUpdate,
			SessionCode: code,
			Payload:     payload,
		})
	}

	middleware.JSONResponse(w, http.StatusOK, updated)
}
