// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"
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

type QuestionHandler struct {
	db       *sql.DB
	cfg      cliparse.Config
	hub      *realtime.Hub
	sessions sessionstore.Store
}

func NewQuestionHandler(db *sql.DB, cfg cliparse.Config, hub *realtime.Hub, sessions sessionstore.Store) *QuestionHandler {
	return &QuestionHandler{db: db, cfg: cfg, hub: hub, sessions: sessions}
}

// Submit handles POST /sessions/{code}/questions
//
// New questions always start in pending status and stay invisible to the
// audience list until moderation approves them.
func (h *QuestionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "session code is required")
		return
	}

	var req models.SubmitQuestionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// Validation happens before any database work; empty and over-length
	// content never get further than this.
	content := strings.TrimSpace(req.Content)
	if content == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "content is required")
		return
	}
	if utf8.RuneCountInString(content) > models.MaxContentLen {
		middleware.ErrorResponse(w, http.StatusBadRequest, "content must be at most 500 characters")
		return
	}

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

	if session.Status == models.SessionEnded {
		middleware.ErrorResponse(w, http.StatusConflict, "Session has ended")
		return
	}
	if !session.QAEnabled {
		middleware.ErrorResponse(w, http.StatusConflict, "Q&A is disabled for this session")
		return
	}

	questionID, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate question ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to submit question")
		return
	}

	// Anonymous questions carry no author name, whatever the client sent
	var authorName *string
	if !req.IsAnonymous && req.AuthorName != "" {
		authorName = &req.AuthorName
	}

	now := time.Now()
	_, err = h.db.Exec(`
		INSERT INTO question (id, session_id, content, author_name, is_anonymous, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, questionID, session.ID, content, authorName, req.IsAnonymous, models.QuestionPending, now)

	if err != nil {
		slog.Error("failed to insert question", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to submit question")
		return
	}

	slog.Info("question submitted", "session_code", code, "question_id", questionID, "anonymous", req.IsAnonymous)

	q := &models.Question{
		ID:          questionID,
		SessionID:   session.ID,
		Content:     content,
		AuthorName:  authorName,
		IsAnonymous: req.IsAnonymous,
		Status:      models.QuestionPending,
		CreatedAt:   now,
	}
	publishQuestionEvent(h.hub, code, realtime.EventInsert, q)

	middleware.JSONResponse(w, http.StatusCreated, models.SubmitQuestionResponse{
		QuestionID: questionID,
		Status:     models.QuestionPending,
	})
}

// List handles GET /sessions/{code}/questions?sort=popular|newest|oldest
//
// Only approved (and, by configuration, answered) questions are
// returned. The popular ordering is a four-key contract; see
// models.LessPopular.
func (h *QuestionHandler) List(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "session code is required")
		return
	}

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

	sortMode := models.ParseSortMode(r.URL.Query().Get("sort"))

	statuses := []string{models.QuestionApproved}
	if h.cfg.AnsweredVisible {
		statuses = append(statuses, models.QuestionAnswered)
	}

	questions, err := h.listQuestions(session.ID, statuses, sortMode)
	if err != nil {
		slog.Error("failed to list questions", "error", err, "session_code", code)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	likedIDs := []string{}
	if key := viewerKey(r, h.cfg, h.sessions, h.db); key != "" {
		likedIDs, err = h.listLikedIDs(session.ID, key)
		if err != nil {
			slog.Error("failed to list liked questions", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
	}

	middleware.JSONResponse(w, http.StatusOK, models.QuestionListResponse{
		Questions: questions,
		LikedIDs:  likedIDs,
	})
}

func (h *QuestionHandler) listQuestions(sessionID string, statuses []string, sortMode models.SortMode) ([]models.Question, error) {
	var order string
	switch sortMode {
	case models.SortNewest:
		order = "created_at DESC"
	case models.SortOldest:
		order = "created_at ASC"
	default:
		order = "is_pinned DESC, is_highlighted DESC, likes_count DESC, created_at DESC"
	}

	query := `
		SELECT id, session_id, content, author_name, is_anonymous, status,
		       is_pinned, is_highlighted, is_displayed, display_order,
		       is_broadcasting, likes_count, created_at
		FROM question
		WHERE session_id = $1 AND status IN ($2`
	args := []interface{}{sessionID, statuses[0]}
	for i := 1; i < len(statuses); i++ {
		query += ", $" + strconv.Itoa(2+i)
		args = append(args, statuses[i])
	}
	query += ") ORDER BY " + order

	rows, err := h.db.Query(query, args...)
	if err != nil {
		return nil, err
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
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (h *QuestionHandler) listLikedIDs(sessionID, voterKey string) ([]string, error) {
	rows, err := h.db.Query(`
		SELECT ql.question_id
		FROM question_like ql
		JOIN question q ON q.id = ql.question_id
		WHERE q.session_id = $1 AND ql.voter_key = $2
	`, sessionID, voterKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ToggleLike handles POST /questions/{id}/like
//
// The whole toggle runs in one transaction so concurrent toggles from
// many devices cannot drive likes_count negative or double-count. The
// response carries the ground truth the client must reconcile against.
func (h *QuestionHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	questionID := r.PathValue("id")
	if questionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "question id is required")
		return
	}

	key := viewerKey(r, h.cfg, h.sessions, h.db)
	if key == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "X-Device-UUID header or authentication required")
		return
	}

	liked, likesCount, err := h.toggleLike(questionID, key)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Question not found")
		return
	}
	if err != nil {
		slog.Error("failed to toggle like", "error", err, "question_id", questionID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to toggle like")
		return
	}

	// Notify subscribers so every audience list converges on the new count
	if q, err := getQuestion(h.db, questionID); err == nil {
		if code, err := getSessionCodeByID(h.db, q.SessionID); err == nil {
			publishQuestionEvent(h.hub, code, realtime.EventUpdate, q)
		}
	}

	middleware.JSONResponse(w, http.StatusOK, models.ToggleLikeResponse{
		Liked:      liked,
		LikesCount: likesCount,
	})
}

func (h *QuestionHandler) toggleLike(questionID, voterKey string) (bool, int, error) {
	tx, err := h.db.Begin()
	if err != nil {
		return false, 0, err
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM question WHERE id = $1)`, questionID).Scan(&exists)
	if err != nil {
		return false, 0, err
	}
	if !exists {
		return false, 0, sql.ErrNoRows
	}

	var hasLike bool
	err = tx.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM question_like WHERE question_id = $1 AND voter_key = $2)
	`, questionID, voterKey).Scan(&hasLike)
	if err != nil {
		return false, 0, err
	}

	liked := !hasLike
	if hasLike {
		if _, err := tx.Exec(`
			DELETE FROM question_like WHERE question_id = $1 AND voter_key = $2
		`, questionID, voterKey); err != nil {
			return false, 0, err
		}
		// Clamp at zero; the count must never go negative even if a
		// like row went missing
		if _, err := tx.Exec(`
			UPDATE question
			SET likes_count = CASE WHEN likes_count > 0 THEN likes_count - 1 ELSE 0 END
			WHERE id = $1
		`, questionID); err != nil {
			return false, 0, err
		}
	} else {
		if _, err := tx.Exec(`
			INSERT INTO question_like (question_id, voter_key, created_at)
			VALUES ($1, $2, $3)
		`, questionID, voterKey, time.Now()); err != nil {
			if isUniqueViolation(err) {
				// Lost a race with an identical toggle; report the
				// state that won
				tx.Rollback()
				return h.currentLikeState(questionID, voterKey)
			}
			return false, 0, err
		}
		if _, err := tx.Exec(`
			UPDATE question SET likes_count = likes_count + 1 WHERE id = $1
		`, questionID); err != nil {
			return false, 0, err
		}
	}

	var likesCount int
	if err := tx.QueryRow(`SELECT likes_count FROM question WHERE id = $1`, questionID).Scan(&likesCount); err != nil {
		return false, 0, err
	}

	if err := tx.Commit(); err != nil {
		return false, 0, err
	}
	return liked, likesCount, nil
}

func (h *QuestionHandler) currentLikeState(questionID, voterKey string) (bool, int, error) {
	var liked bool
	var likesCount int
	err := h.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM question_like WHERE question_id = $1 AND voter_key = $2),
		       (SELECT likes_count FROM question WHERE id = $1)
	`, questionID, voterKey).Scan(&liked, &likesCount)
	if err != nil {
		return false, 0, err
	}
	return liked, likesCount, nil
}
