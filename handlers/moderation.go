// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/crowdcue/cliparse"
	"github.com/danielhkuo/crowdcue/middleware"
	"github.com/danielhkuo/crowdcue/models"
	"github.com/danielhkuo/crowdcue/realtime"
	"github.com/danielhkuo/crowdcue/sessionstore"
)

type ModerationHandler struct {
	db       *sql.DB
	cfg      cliparse.Config
	hub      *realtime.Hub
	sessions sessionstore.Store
}

func NewModerationHandler(db *sql.DB, cfg cliparse.Config, hub *realtime.Hub, sessions sessionstore.Store) *ModerationHandler {
	return &ModerationHandler{db: db, cfg: cfg, hub: hub, sessions: sessions}
}

// requireModerator authenticates the request and checks moderation
// rights on the session. Writes the error response itself and returns
// nil when the caller should bail out.
func (h *ModerationHandler) requireModerator(w http.ResponseWriter, r *http.Request, session *models.EventSession) *models.User {
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

// DisplayedList handles GET /sessions/{code}/questions/displayed
//
// The moderator's selection view: every displayed question regardless
// of status, ordered by display_order.
func (h *ModerationHandler) DisplayedList(w http.ResponseWriter, r *http.Request) {
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

	if h.requireModerator(w, r, session) == nil {
		return
	}

	rows, err := h.db.Query(`
		SELECT id, session_id, content, author_name, is_anonymous, status,
		       is_pinned, is_highlighted, is_displayed, display_order,
		       is_broadcasting, likes_count, created_at
		FROM question
		WHERE session_id = $1 AND is_displayed = TRUE
		ORDER BY display_order ASC, created_at ASC
	`, session.ID)
	if err != nil {
		slog.Error("failed to list displayed questions", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	questions := []models.Question{}
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(
			&q.ID, &q.SessionID, &q.Content, &q.AuthorName, &q.IsAnonymous, &q.Status,
			&q.IsPinned, &q.IsHighlighted, &q.IsDisplayed, &q.DisplayOrder,
			&q.IsBroadcasting, &q.LikesCount, &q.CreatedAt,
		); err != nil {
			slog.Error("failed to scan question", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		questions = append(questions, q)
	}

	middleware.JSONResponse(w, http.StatusOK, models.QuestionListResponse{
		Questions: questions,
		LikedIDs:  []string{},
	})
}

// ToggleBroadcast handles POST /questions/{id}/broadcast
//
// One transaction enforces the at-most-one-on-air rule: any other
// broadcasting question in the session is turned off before the target
// flips. The response is the only state the caller may trust.
func (h *ModerationHandler) ToggleBroadcast(w http.ResponseWriter, r *http.Request) {
	questionID := r.PathValue("id")

	question, err := getQuestion(h.db, questionID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Question not found")
		return
	}
	if err != nil {
		slog.Error("failed to query question", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	code, err := getSessionCodeByID(h.db, question.SessionID)
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

	result, previousID, err := h.toggleBroadcast(question)
	if err == errNotBroadcastable {
		middleware.ErrorResponse(w, http.StatusConflict, "Question must be displayed and approved or answered to broadcast")
		return
	}
	if err != nil {
		slog.Error("failed to toggle broadcast", "error", err, "question_id", questionID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to toggle broadcast")
		return
	}

	slog.Info("broadcast toggled", "question_id", questionID, "on_air", result, "by", user.ID)

	// Tell every moderator tab and the presentation surface
	if q, err := getQuestion(h.db, questionID); err == nil {
		publishQuestionEvent(h.hub, code, realtime.EventUpdate, q)
	}
	if previousID != "" {
		if prev, err := getQuestion(h.db, previousID); err == nil {
			publishQuestionEvent(h.hub, code, realtime.EventUpdate, prev)
		}
	}

	middleware.JSONResponse(w, http.StatusOK, models.ToggleBroadcastResponse{
		QuestionID:      questionID,
		IsBroadcasting:  result,
		PreviousOnAirID: previousID,
	})
}

func (h *ModerationHandler) toggleBroadcast(question *models.Question) (bool, string, error) {
	tx, err := h.db.Begin()
	if err != nil {
		return false, "", err
	}
	defer tx.Rollback()

	// Re-read inside the transaction; the row may have changed since the
	// handler loaded it
	var current bool
	var status string
	var displayed bool
	err = tx.QueryRow(`
		SELECT is_broadcasting, status, is_displayed FROM question WHERE id = $1
	`, question.ID).Scan(&current, &status, &displayed)
	if err != nil {
		return false, "", err
	}

	if current {
		// Turning off is always allowed
		if _, err := tx.Exec(`UPDATE question SET is_broadcasting = FALSE WHERE id = $1`, question.ID); err != nil {
			return false, "", err
		}
		return false, "", tx.Commit()
	}

	if !displayed || (status != models.QuestionApproved && status != models.QuestionAnswered) {
		return false, "", errNotBroadcastable
	}

	var previousID string
	err = tx.QueryRow(`
		SELECT id FROM question WHERE session_id = $1 AND is_broadcasting = TRUE
	`, question.SessionID).Scan(&previousID)
	if err != nil && err != sql.ErrNoRows {
		return false, "", err
	}

	if _, err := tx.Exec(`
		UPDATE question SET is_broadcasting = FALSE WHERE session_id = $1 AND is_broadcasting = TRUE
	`, question.SessionID); err != nil {
		return false, "", err
	}
	if _, err := tx.Exec(`UPDATE question SET is_broadcasting = TRUE WHERE id = $1`, question.ID); err != nil {
		return false, "", err
	}

	return true, previousID, tx.Commit()
}

// Moderate handles PATCH /questions/{id}/moderate
//
// Partial update: only the fields present in the body change. Setting
// status to anything but approved/answered also clears the broadcast
// flag, keeping the on-air invariant intact.
func (h *ModerationHandler) Moderate(w http.ResponseWriter, r *http.Request) {
	questionID := r.PathValue("id")

	var req models.ModerateQuestionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Status != nil {
		switch *req.Status {
		case models.QuestionPending, models.QuestionApproved, models.QuestionAnswered, models.QuestionRejected:
		default:
			middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid status")
			return
		}
	}

	question, err := getQuestion(h.db, questionID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Question not found")
		return
	}
	if err != nil {
		slog.Error("failed to query question", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	code, err := getSessionCodeByID(h.db, question.SessionID)
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

	if err := h.applyModeration(question, req); err != nil {
		slog.Error("failed to moderate question", "error", err, "question_id", questionID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update question")
		return
	}

	slog.Info("question moderated", "question_id", questionID, "by", user.ID)

	updated, err := getQuestion(h.db, questionID)
	if err != nil {
		slog.Error("failed to reload question", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	publishQuestionEvent(h.hub, code, realtime.EventUpdate, updated)

	middleware.JSONResponse(w, http.StatusOK, updated)
}

func (h *ModerationHandler) applyModeration(question *models.Question, req models.ModerateQuestionRequest) error {
	tx, err := h.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if req.Status != nil {
		if _, err := tx.Exec(`UPDATE question SET status = $1 WHERE id = $2`, *req.Status, question.ID); err != nil {
			return err
		}
		if *req.Status != models.QuestionApproved && *req.Status != models.QuestionAnswered {
			if _, err := tx.Exec(`UPDATE question SET is_broadcasting = FALSE WHERE id = $1`, question.ID); err != nil {
				return err
			}
		}
	}
	if req.IsPinned != nil {
		if _, err := tx.Exec(`UPDATE question SET is_pinned = $1 WHERE id = $2`, *req.IsPinned, question.ID); err != nil {
			return err
		}
	}
	if req.IsHighlighted != nil {
		if _, err := tx.Exec(`UPDATE question SET is_highlighted = $1 WHERE id = $2`, *req.IsHighlighted, question.ID); err != nil {
			return err
		}
	}
	if req.IsDisplayed != nil {
		if _, err := tx.Exec(`UPDATE question SET is_displayed = $1 WHERE id = $2`, *req.IsDisplayed, question.ID); err != nil {
			return err
		}
		// A question pulled off the display can no longer be on air
		if !*req.IsDisplayed {
			if _, err := tx.Exec(`UPDATE question SET is_broadcasting = FALSE WHERE id = $1`, question.ID); err != nil {
				return err
			}
		}
	}
	if req.DisplayOrder != nil {
		if _, err := tx.Exec(`UPDATE question SET display_order = $1 WHERE id = $2`, *req.DisplayOrder, question.ID); err != nil {
			return err
		}
	}

	return tx.Commit()
}
