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
	"unicode/utf8"

	"github.com/danielhkuo/crowdcue/auth"
	"github.com/danielhkuo/crowdcue/cliparse"
	"github.com/danielhkuo/crowdcue/middleware"
	"github.com/danielhkuo/crowdcue/models"
	"github.com/danielhkuo/crowdcue/realtime"
	"github.com/danielhkuo/crowdcue/sessionstore"
)

type PollHandler struct {
	db       *sql.DB
	cfg      cliparse.Config
	hub      *realtime.Hub
	sessions sessionstore.Store
}

func NewPollHandler(db *sql.DB, cfg cliparse.Config, hub *realtime.Hub, sessions sessionstore.Store) *PollHandler {
	return &PollHandler{db: db, cfg: cfg, hub: hub, sessions: sessions}
}

// Create handles POST /sessions/{code}/polls
//
// Moderator only. Polls start in draft and are invisible to the
// audience until opened.
func (h *PollHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	user := h.requireModerator(w, r, session)
	if user == nil {
		return
	}

	var req models.CreatePollRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "question is required")
		return
	}
	if utf8.RuneCountInString(question) > models.MaxContentLen {
		middleware.ErrorResponse(w, http.StatusBadRequest, "question must be at most 500 characters")
		return
	}
	if len(req.Options) < 2 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "At least 2 options are required")
		return
	}

	pollID, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate poll ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO poll (id, session_id, question, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, pollID, session.ID, question, models.PollDraft, time.Now())
	if err != nil {
		slog.Error("failed to insert poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
		return
	}

	for _, label := range req.Options {
		label = strings.TrimSpace(label)
		if label == "" {
			middleware.ErrorResponse(w, http.StatusBadRequest, "Option labels cannot be empty")
			return
		}
		optionID, err := auth.GenerateID(12)
		if err != nil {
			slog.Error("failed to generate option ID", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
			return
		}
		if _, err := tx.Exec(`
			INSERT INTO poll_option (id, poll_id, label) VALUES ($1, $2, $3)
		`, optionID, pollID, label); err != nil {
			slog.Error("failed to insert poll option", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
		return
	}

	slog.Info("poll created", "poll_id", pollID, "session_code", code, "by", user.ID)

	poll, err := h.getPoll(pollID)
	if err != nil {
		slog.Error("failed to reload poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, poll)
}

// List handles GET /sessions/{code}/polls
//
// Audience view: open and closed polls with option vote counts. Drafts
// are only visible through the moderator tooling.
func (h *PollHandler) List(w http.ResponseWriter, r *http.Request) {
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

	rows, err := h.db.Query(`
		SELECT id, session_id, question, status, created_at
		FROM poll
		WHERE session_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC
	`, session.ID, models.PollOpen, models.PollClosed)
	if err != nil {
		slog.Error("failed to list polls", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	polls := []models.Poll{}
	for rows.Next() {
		var p models.Poll
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Question, &p.Status, &p.CreatedAt); err != nil {
			slog.Error("failed to scan poll", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		polls = append(polls, p)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to iterate polls", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	for i := range polls {
		options, err := h.getOptions(polls[i].ID)
		if err != nil {
			slog.Error("failed to load poll options", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		polls[i].Options = options
	}

	middleware.JSONResponse(w, http.StatusOK, polls)
}

// Open handles POST /polls/{id}/open
func (h *PollHandler) Open(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.PollOpen)
}

// Close handles POST /polls/{id}/close
func (h *PollHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.PollClosed)
}

func (h *PollHandler) transition(w http.ResponseWriter, r *http.Request, target string) {
	pollID := r.PathValue("id")

	poll, err := h.getPoll(pollID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to query poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	code, err := getSessionCodeByID(h.db, poll.SessionID)
	if err != nil {
		slog.Error("failed to resolve session", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	session, err := getSessionByCode(h.db, code)
	if err != nil {
		slog.Error("failed to query session", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	user := h.requireModerator(w, r, session)
	if user == nil {
		return
	}

	// draft -> open -> closed, no way back
	valid := (target == models.PollOpen && poll.Status == models.PollDraft) ||
		(target == models.PollClosed && poll.Status == models.PollOpen)
	if !valid {
		middleware.ErrorResponse(w, http.StatusConflict, "Poll cannot transition to "+target)
		return
	}

	if _, err := h.db.Exec(`UPDATE poll SET status = $1 WHERE id = $2`, target, pollID); err != nil {
		slog.Error("failed to update poll status", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update poll")
		return
	}

	slog.Info("poll status changed", "poll_id", pollID, "status", target, "by", user.ID)

	updated, err := h.getPoll(pollID)
	if err != nil {
		slog.Error("failed to reload poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	h.publishPollEvent(code, realtime.EventUpdate, updated)
	middleware.JSONResponse(w, http.StatusOK, updated)
}

// Vote handles POST /polls/{id}/vote
//
// One vote per device per poll. Re-voting moves the existing vote to
// the new option in the same transaction, so counts never drift.
func (h *PollHandler) Vote(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")

	key := viewerKey(r, h.cfg, h.sessions, h.db)
	if key == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "X-Device-UUID header or authentication required")
		return
	}

	var req models.VotePollRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.OptionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "option_id is required")
		return
	}

	poll, err := h.getPoll(pollID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to query poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	code, err := getSessionCodeByID(h.db, poll.SessionID)
	if err != nil {
		slog.Error("failed to resolve session", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	session, err := getSessionByCode(h.db, code)
	if err != nil {
		slog.Error("failed to query session", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if session.Status == models.SessionEnded {
		middleware.ErrorResponse(w, http.StatusConflict, "Session has ended")
		return
	}

	if poll.Status != models.PollOpen {
		middleware.ErrorResponse(w, http.StatusConflict, "Poll is not open for voting")
		return
	}

	if err := h.castVote(pollID, req.OptionID, key); err != nil {
		if err == sql.ErrNoRows {
			middleware.ErrorResponse(w, http.StatusBadRequest, "Option does not belong to this poll")
			return
		}
		slog.Error("failed to cast vote", "error", err, "poll_id", pollID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to cast vote")
		return
	}

	options, err := h.getOptions(pollID)
	if err != nil {
		slog.Error("failed to load poll options", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	poll.Options = options
	h.publishPollEvent(code, realtime.EventUpdate, poll)

	middleware.JSONResponse(w, http.StatusOK, models.VotePollResponse{
		OptionID: req.OptionID,
		Options:  options,
	})
}

func (h *PollHandler) castVote(pollID, optionID, voterKey string) error {
	tx, err := h.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var belongs bool
	err = tx.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM poll_option WHERE id = $1 AND poll_id = $2)
	`, optionID, pollID).Scan(&belongs)
	if err != nil {
		return err
	}
	if !belongs {
		return sql.ErrNoRows
	}

	// Move, don't stack: clearing any previous vote first makes re-votes
	// idempotent
	if _, err := tx.Exec(`
		DELETE FROM poll_vote WHERE poll_id = $1 AND voter_key = $2
	`, pollID, voterKey); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		INSERT INTO poll_vote (poll_id, option_id, voter_key, created_at)
		VALUES ($1, $2, $3, $4)
	`, pollID, optionID, voterKey, time.Now()); err != nil {
		return err
	}

	return tx.Commit()
}

func (h *PollHandler) getPoll(id string) (*models.Poll, error) {
	var p models.Poll
	err := h.db.QueryRow(`
		SELECT id, session_id, question, status, created_at FROM poll WHERE id = $1
	`, id).Scan(&p.ID, &p.SessionID, &p.Question, &p.Status, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	options, err := h.getOptions(id)
	if err != nil {
		return nil, err
	}
	p.Options = options
	return &p, nil
}

func (h *PollHandler) getOptions(pollID string) ([]models.PollOption, error) {
	rows, err := h.db.Query(`
		SELECT po.id, po.poll_id, po.label,
		       (SELECT COUNT(*) FROM poll_vote pv WHERE pv.option_id = po.id) AS votes_count
		FROM poll_option po
		WHERE po.poll_id = $1
		ORDER BY po.id
	`, pollID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	options := []models.PollOption{}
	for rows.Next() {
		var o models.PollOption
		if err := rows.Scan(&o.ID, &o.PollID, &o.Label, &o.VotesCount); err != nil {
			return nil, err
		}
		options = append(options, o)
	}
	return options, rows.Err()
}

func (h *PollHandler) requireModerator(w http.ResponseWriter, r *http.Request, session *models.EventSession) *models.User {
	user, err := authenticateRequest(r, h.cfg, h.sessions, h.db)
	if err == errUnauthorized || err == errSessionRevoked {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Authentication required")
		return nil
	}
	if err != nil {
		slog.Error("failed to authenticate request", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Authentication error")
		return nil
	}

	allowed, err := canModerate(h.db, user, session)
	if err != nil {
		slog.Error("failed to check moderation rights", "error", err, "user_id", user.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return nil
	}
	if !allowed {
		middleware.ErrorResponse(w, http.StatusForbidden, "Not a moderator of this session")
		return nil
	}
	return user
}

func (h *PollHandler) publishPollEvent(code string, typ realtime.EventType, p *models.Poll) {
	payload, err := json.Marshal(p)
	if err != nil {
		slog.Error("failed to marshal poll event", "error", err)
		return
	}
	h.hub.Publish(realtime.Event{
		Topic:       realtime.TopicPolls,
		Type:        typ,
		SessionCode: code,
		Payload:     payload,
	})
}
