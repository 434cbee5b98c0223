// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielhkuo/crowdcue/auth"
	"github.com/danielhkuo/crowdcue/cliparse"
	"github.com/danielhkuo/crowdcue/middleware"
	"github.com/danielhkuo/crowdcue/models"
	"github.com/danielhkuo/crowdcue/sessionstore"
)

// AuthHandler owns the login flow and its guard rails: per-(email, ip)
// failure counting with exponential lockout, an immutable audit trail,
// and the single-active-session registry.
type AuthHandler struct {
	db       *sql.DB
	cfg      cliparse.Config
	sessions sessionstore.Store
}

func NewAuthHandler(db *sql.DB, cfg cliparse.Config, sessions sessionstore.Store) *AuthHandler {
	return &AuthHandler{db: db, cfg: cfg, sessions: sessions}
}

// lockoutWindow computes how long a lock lasts at the given failure
// count: the base window doubles for every failure past the threshold,
// capped by configuration.
func (h *AuthHandler) lockoutWindow(attemptCount int) time.Duration {
	if attemptCount < h.cfg.LockoutThreshold {
		return 0
	}
	window := h.cfg.LockoutBaseWindow
	for i := h.cfg.LockoutThreshold; i < attemptCount; i++ {
		window *= 2
		if window >= h.cfg.LockoutMaxWindow {
			return h.cfg.LockoutMaxWindow
		}
	}
	return window
}

func (h *AuthHandler) ipKey(r *http.Request) string {
	return auth.HashIP(middleware.GetClientIP(r), h.cfg.IPHashSalt)
}

// getAttempt loads the failure counter for (email, ip). A missing row
// means zero failures.
func (h *AuthHandler) getAttempt(email, ipKey string) (*models.LoginAttempt, error) {
	var a models.LoginAttempt
	err := h.db.QueryRow(`
		SELECT email, ip_address, attempt_count, locked_until, updated_at
		FROM login_attempt
		WHERE email = $1 AND ip_address = $2
	`, email, ipKey).Scan(&a.Email, &a.IPAddress, &a.AttemptCount, &a.LockedUntil, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return &models.LoginAttempt{Email: email, IPAddress: ipKey}, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// remainingLockSeconds rounds up so a lock with any time left reports
// at least one second.
func remainingLockSeconds(a *models.LoginAttempt, now time.Time) int {
	if a.LockedUntil == nil || !a.LockedUntil.After(now) {
		return 0
	}
	return int(a.LockedUntil.Sub(now).Seconds()) + 1
}

// recordFailure bumps the counter and locks once the threshold is
// crossed. Returns the state after the increment. The increment runs
// inside the database, not as a read-then-write pair: two concurrent
// failures for the same (email, ip) must both count.
func (h *AuthHandler) recordFailure(email, ipKey string) (*models.LoginAttempt, error) {
	tx, err := h.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now()
	attempt := &models.LoginAttempt{Email: email, IPAddress: ipKey, UpdatedAt: now}
	err = tx.QueryRow(`
		INSERT INTO login_attempt (email, ip_address, attempt_count, locked_until, updated_at)
		VALUES ($1, $2, 1, NULL, $3)
		ON CONFLICT (email, ip_address)
		DO UPDATE SET attempt_count = login_attempt.attempt_count + 1, updated_at = $3
		RETURNING attempt_count
	`, email, ipKey, now).Scan(&attempt.AttemptCount)
	if err != nil {
		return nil, err
	}

	// The upsert holds the row lock until commit, so the lock window is
	// derived from the count this transaction wrote.
	if window := h.lockoutWindow(attempt.AttemptCount); window > 0 {
		until := now.Add(window)
		attempt.LockedUntil = &until
		if _, err := tx.Exec(`
			UPDATE login_attempt SET locked_until = $1
			WHERE email = $2 AND ip_address = $3
		`, until, email, ipKey); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return attempt, nil
}

func (h *AuthHandler) clearAttempts(email, ipKey string) error {
	_, err := h.db.Exec(`
		DELETE FROM login_attempt WHERE email = $1 AND ip_address = $2
	`, email, ipKey)
	return err
}

// logEvent writes one immutable audit row. Audit failures are logged
// and swallowed; they never fail the login itself.
func (h *AuthHandler) logEvent(email string, success bool, reason, ip, userAgent string) {
	id, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate login event ID", "error", err)
		return
	}
	fp := auth.ParseUserAgent(userAgent)
	_, err = h.db.Exec(`
		INSERT INTO login_event (id, email, success, failure_reason, ip_address, browser, os, device_class, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, id, email, success, reason, ip, fp.Browser, fp.OS, fp.DeviceClass, time.Now())
	if err != nil {
		slog.Error("failed to record login event", "error", err, "email", email)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CheckAttempt handles POST /auth/check-attempt
//
// The pre-flight the login form runs before even trying credentials.
func (h *AuthHandler) CheckAttempt(w http.ResponseWriter, r *http.Request) {
	var req models.CheckAttemptRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	email := normalizeEmail(req.Email)
	if email == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "email is required")
		return
	}

	attempt, err := h.getAttempt(email, h.ipKey(r))
	if err != nil {
		slog.Error("failed to check login attempt", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	now := time.Now()
	remaining := remainingLockSeconds(attempt, now)
	middleware.JSONResponse(w, http.StatusOK, models.CheckAttemptResponse{
		IsLocked:         remaining > 0,
		AttemptCount:     attempt.AttemptCount,
		LockedUntil:      attempt.LockedUntil,
		RemainingSeconds: remaining,
	})
}

// Login handles POST /auth/login
//
// The full governed flow: lock pre-flight, credential check, failure
// accounting, audit, session registration with kick, token issue.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "email and password are required")
		return
	}

	ipKey := h.ipKey(r)
	userAgent := r.UserAgent()

	attempt, err := h.getAttempt(email, ipKey)
	if err != nil {
		slog.Error("failed to check login attempt", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if remaining := remainingLockSeconds(attempt, time.Now()); remaining > 0 {
		h.logEvent(email, false, models.ReasonTooManyRequests, ipKey, userAgent)
		middleware.LockedResponse(w, remaining)
		return
	}

	var user models.User
	var passwordHash string
	err = h.db.QueryRow(`
		SELECT id, email, password_hash, display_name, role, approved, confirmed, created_at
		FROM app_user
		WHERE email = $1
	`, email).Scan(&user.ID, &user.Email, &passwordHash, &user.DisplayName,
		&user.Role, &user.Approved, &user.Confirmed, &user.CreatedAt)
	if err == sql.ErrNoRows {
		h.loginFailure(w, email, ipKey, userAgent, models.ReasonUserNotFound)
		return
	}
	if err != nil {
		slog.Error("failed to query user", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if !auth.CheckPassword(passwordHash, req.Password) {
		h.loginFailure(w, email, ipKey, userAgent, models.ReasonInvalidPassword)
		return
	}
	if !user.Confirmed {
		h.loginFailure(w, email, ipKey, userAgent, models.ReasonEmailNotConfirmed)
		return
	}
	if !user.Approved {
		h.loginFailure(w, email, ipKey, userAgent, models.ReasonAccountDisabled)
		return
	}

	if err := h.clearAttempts(email, ipKey); err != nil {
		slog.Error("failed to clear login attempts", "error", err, "email", email)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	sessionID, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate session ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to log in")
		return
	}
	token, err := auth.GenerateSessionToken(user.ID, sessionID, h.cfg.JWTSecret)
	if err != nil {
		slog.Error("failed to issue session token", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to log in")
		return
	}

	fp := auth.ParseUserAgent(userAgent)
	now := time.Now()
	kicked, err := h.sessions.Register(r.Context(), sessionstore.Session{
		ID:             sessionID,
		UserID:         user.ID,
		TokenHash:      auth.HashToken(token),
		DeviceInfo:     fp.Browser + "/" + fp.OS + "/" + fp.DeviceClass,
		IPAddress:      ipKey,
		CreatedAt:      now,
		LastActivityAt: now,
	})
	if err != nil {
		slog.Error("failed to register device session", "error", err, "user_id", user.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to log in")
		return
	}

	h.logEvent(email, true, "", ipKey, userAgent)
	slog.Info("user logged in", "user_id", user.ID, "kicked_sessions", kicked)

	middleware.JSONResponse(w, http.StatusOK, models.LoginResponse{
		Token:          token,
		SessionID:      sessionID,
		KickedSessions: kicked,
		User:           user,
	})
}

// loginFailure is the shared failure path: count, audit, respond. The
// HTTP message never distinguishes unknown email from bad password; the
// audit row keeps the real reason.
func (h *AuthHandler) loginFailure(w http.ResponseWriter, email, ipKey, userAgent, reason string) {
	if _, err := h.recordFailure(email, ipKey); err != nil {
		slog.Error("failed to record login failure", "error", err, "email", email)
	}
	h.logEvent(email, false, reason, ipKey, userAgent)

	switch reason {
	case models.ReasonEmailNotConfirmed:
		middleware.ErrorResponse(w, http.StatusForbidden, "Email address not confirmed")
	case models.ReasonAccountDisabled:
		middleware.ErrorResponse(w, http.StatusForbidden, "Account is not active")
	default:
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid email or password")
	}
}

// RecordFailure handles POST /auth/record-failure — the raw RPC for
// clients running credential checks against an external identity
// provider.
func (h *AuthHandler) RecordFailure(w http.ResponseWriter, r *http.Request) {
	var req models.CheckAttemptRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	email := normalizeEmail(req.Email)
	if email == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "email is required")
		return
	}

	attempt, err := h.recordFailure(email, h.ipKey(r))
	if err != nil {
		slog.Error("failed to record login failure", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.RecordFailureResponse{
		AttemptCount: attempt.AttemptCount,
		IsLocked:     attempt.LockedUntil != nil,
		LockedUntil:  attempt.LockedUntil,
	})
}

// ClearAttempts handles POST /auth/clear-attempts
func (h *AuthHandler) ClearAttempts(w http.ResponseWriter, r *http.Request) {
	var req models.CheckAttemptRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	email := normalizeEmail(req.Email)
	if email == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "email is required")
		return
	}

	if err := h.clearAttempts(email, h.ipKey(r)); err != nil {
		slog.Error("failed to clear login attempts", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LogEvent handles POST /auth/log-event — audit rows for attempts the
// server never saw. The client-reported IP is stored as given;
// "unknown" is a legitimate value.
func (h *AuthHandler) LogEvent(w http.ResponseWriter, r *http.Request) {
	var req models.LogLoginEventRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	email := normalizeEmail(req.Email)
	if email == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "email is required")
		return
	}
	if !req.Success && req.FailureReason == "" {
		req.FailureReason = models.ReasonUnknown
	}
	ip := req.IPAddress
	if ip == "" {
		ip = "unknown"
	}

	h.logEvent(email, req.Success, req.FailureReason, ip, r.UserAgent())
	w.WriteHeader(http.StatusNoContent)
}

// Heartbeat handles POST /auth/sessions/heartbeat
//
// The liveness probe behind the kicked-session signal: once another
// login revokes this session, the heartbeat turns 401 and the client
// knows to drop its token.
func (h *AuthHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	if _, _, err := auth.ParseSessionToken(token, h.cfg.JWTSecret); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid session token")
		return
	}

	valid, err := h.sessions.Touch(r.Context(), auth.HashToken(token), time.Now())
	if err != nil {
		slog.Error("failed to touch device session", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Session store error")
		return
	}
	if !valid {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Session is no longer active")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.HeartbeatResponse{Valid: true})
}

// Logout handles POST /auth/logout. Always succeeds; ending a session
// that is already gone is not an error.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	if err := h.sessions.End(r.Context(), auth.HashToken(token)); err != nil {
		slog.Error("failed to end device session", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Session store error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func bearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return token, ok && token != ""
}
