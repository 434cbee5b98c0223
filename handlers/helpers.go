// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielhkuo/crowdcue/auth"
	"github.com/danielhkuo/crowdcue/cliparse"
	"github.com/danielhkuo/crowdcue/models"
	"github.com/danielhkuo/crowdcue/realtime"
	"github.com/danielhkuo/crowdcue/sessionstore"
)

var (
	errUnauthorized     = errors.New("invalid or expired session token")
	errSessionRevoked   = errors.New("session is no longer active")
	errNotBroadcastable = errors.New("question is not eligible for broadcast")
)

// getSessionByCode loads an event session by its audience-facing code.
// Returns sql.ErrNoRows when the code is unknown.
func getSessionByCode(db *sql.DB, code string) (*models.EventSession, error) {
	var s models.EventSession
	err := db.QueryRow(`
		SELECT id, code, title, partner_id, status, qa_enabled, poll_enabled, ended_at, created_at
		FROM event_session
		WHERE code = $1
	`, code).Scan(
		&s.ID, &s.Code, &s.Title, &s.PartnerID, &s.Status,
		&s.QAEnabled, &s.PollEnabled, &s.EndedAt, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// getQuestion loads a single question row. Returns sql.ErrNoRows when
// the id is unknown.
func getQuestion(db *sql.DB, id string) (*models.Question, error) {
	var q models.Question
	err := db.QueryRow(`
		SELECT id, session_id, content, author_name, is_anonymous, status,
		       is_pinned, is_highlighted, is_displayed, display_order,
		       is_broadcasting, likes_count, created_at
		FROM question
		WHERE id = $1
	`, id).Scan(
		&q.ID, &q.SessionID, &q.Content, &q.AuthorName, &q.IsAnonymous, &q.Status,
		&q.IsPinned, &q.IsHighlighted, &q.IsDisplayed, &q.DisplayOrder,
		&q.IsBroadcasting, &q.LikesCount, &q.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// getSessionCodeByID is the reverse lookup needed when an operation is
// addressed by question/poll id but realtime events are keyed by code.
func getSessionCodeByID(db *sql.DB, sessionID string) (string, error) {
	var code string
	err := db.QueryRow(`SELECT code FROM event_session WHERE id = $1`, sessionID).Scan(&code)
	return code, err
}

// viewerKey derives the like/vote identity for a request: the anonymous
// device UUID when the header is present, otherwise the authenticated
// user behind a valid bearer token. Empty means neither was supplied.
// The two namespaces are kept distinct so a device key can never collide
// with a user id.
func viewerKey(r *http.Request, cfg cliparse.Config, sessions sessionstore.Store, db *sql.DB) string {
	if uuid := r.Header.Get("X-Device-UUID"); uuid != "" {
		return "device:" + uuid
	}
	if user, err := authenticateRequest(r, cfg, sessions, db); err == nil {
		return "user:" + user.ID
	}
	return ""
}

// authenticateRequest resolves the current user from the Authorization
// header. The JWT signature alone is not enough: the device session must
// still be active in the store, which is what makes a kicked session's
// token stop working.
func authenticateRequest(r *http.Request, cfg cliparse.Config, sessions sessionstore.Store, db *sql.DB) (*models.User, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, errUnauthorized
	}

	userID, _, err := auth.ParseSessionToken(token, cfg.JWTSecret)
	if err != nil {
		return nil, errUnauthorized
	}

	valid, err := sessions.Touch(r.Context(), auth.HashToken(token), time.Now())
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, errSessionRevoked
	}

	var u models.User
	err = db.QueryRow(`
		SELECT id, email, display_name, role, approved, confirmed, created_at
		FROM app_user
		WHERE id = $1
	`, userID).Scan(&u.ID, &u.Email, &u.DisplayName, &u.Role, &u.Approved, &u.Confirmed, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errUnauthorized
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// canModerate reports whether the user may run moderation/broadcast
// operations on the session: platform admin, owning partner, accepted
// collaborator, or confirmed presenter. Re-derived from the database on
// every call; moderation rights are never cached across sessions.
func canModerate(db *sql.DB, user *models.User, session *models.EventSession) (bool, error) {
	if user.Role == models.RoleAdmin {
		return true, nil
	}
	if session.PartnerID == user.ID {
		return true, nil
	}

	var role string
	var accepted bool
	err := db.QueryRow(`
		SELECT role, accepted FROM session_access
		WHERE session_id = $1 AND user_id = $2
	`, session.ID, user.ID).Scan(&role, &accepted)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return accepted, nil
}

// publishQuestionEvent emits a realtime change event carrying the full
// question row. Failures to marshal are logged and dropped; realtime
// delivery is best-effort by contract.
func publishQuestionEvent(hub *realtime.Hub, code string, typ realtime.EventType, q *models.Question) {
	payload, err := json.Marshal(q)
	if err != nil {
		slog.Error("failed to marshal question event", "error", err)
		return
	}
	hub.Publish(realtime.Event{
		Topic:       realtime.TopicQuestions,
		Type:        typ,
		SessionCode: code,
		Payload:     payload,
	})
}

// isUniqueViolation matches the duplicate-key errors of both drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}
