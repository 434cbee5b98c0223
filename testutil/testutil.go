// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielhkuo/crowdcue/auth"
	"github.com/danielhkuo/crowdcue/cliparse"
	"github.com/danielhkuo/crowdcue/db"
	"github.com/danielhkuo/crowdcue/models"
	"github.com/danielhkuo/crowdcue/sessionstore"
)

// SetupTestDB creates a fresh in-memory SQLite database with the full
// schema. One connection only: in-memory SQLite databases are
// per-connection, and a single connection also serializes the
// concurrency tests the same way a real deployment's transactions would.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	conn.SetMaxOpenConns(1)

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:              3410,
		DatabaseURL:       ":memory:",
		DatabaseType:      "sqlite",
		JWTSecret:         "test-jwt-secret",
		IPHashSalt:        "test-ip-salt",
		LockoutThreshold:  5,
		LockoutBaseWindow: time.Minute,
		LockoutMaxWindow:  15 * time.Minute,
		AnsweredVisible:   true,
	}
}

// CreateTestUser inserts a user and returns its ID. The password is
// always "password123".
func CreateTestUser(t *testing.T, conn *sql.DB, email, role string, approved bool) string {
	t.Helper()

	userID, _ := auth.GenerateID(16)
	hash, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("Failed to hash test password: %v", err)
	}

	_, err = conn.Exec(`
		INSERT INTO app_user (id, email, password_hash, display_name, role, approved, confirmed, created_at)
		VALUES ($1, $2, $3, 'Test User', $4, $5, TRUE, $6)
	`, userID, email, hash, role, approved, time.Now())
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return userID
}

// CreateTestEventSession inserts an event session owned by partnerID and
// returns (sessionID, code). status should be "scheduled", "active", or
// "ended".
func CreateTestEventSession(t *testing.T, conn *sql.DB, partnerID, status string) (string, string) {
	t.Helper()

	sessionID, _ := auth.GenerateID(16)
	code, _ := auth.GenerateSessionCode()

	var endedAt *time.Time
	if status == models.SessionEnded {
		now := time.Now()
		endedAt = &now
	}

	_, err := conn.Exec(`
		INSERT INTO event_session (id, code, title, partner_id, status, qa_enabled, poll_enabled, ended_at, created_at)
		VALUES ($1, $2, 'Test Session', $3, $4, TRUE, TRUE, $5, $6)
	`, sessionID, code, partnerID, status, endedAt, time.Now())
	if err != nil {
		t.Fatalf("Failed to create test event session: %v", err)
	}

	return sessionID, code
}

// GrantSessionAccess links a user to a session as collaborator or
// presenter.
func GrantSessionAccess(t *testing.T, conn *sql.DB, sessionID, userID, role string, accepted bool) {
	t.Helper()

	_, err := conn.Exec(`
		INSERT INTO session_access (session_id, user_id, role, accepted, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, sessionID, userID, role, accepted, time.Now())
	if err != nil {
		t.Fatalf("Failed to grant session access: %v", err)
	}
}

// CreateTestQuestion inserts a question and returns its ID.
func CreateTestQuestion(t *testing.T, conn *sql.DB, sessionID, content, status string, displayed bool) string {
	t.Helper()

	questionID, _ := auth.GenerateID(16)
	_, err := conn.Exec(`
		INSERT INTO question (id, session_id, content, is_anonymous, status, is_displayed, created_at)
		VALUES ($1, $2, $3, TRUE, $4, $5, $6)
	`, questionID, sessionID, content, status, displayed, time.Now())
	if err != nil {
		t.Fatalf("Failed to create test question: %v", err)
	}

	return questionID
}

// SeedQuestion inserts a fully specified question for sorting tests.
func SeedQuestion(t *testing.T, conn *sql.DB, q models.Question) {
	t.Helper()

	if q.ID == "" {
		q.ID, _ = auth.GenerateID(16)
	}
	_, err := conn.Exec(`
		INSERT INTO question (id, session_id, content, author_name, is_anonymous, status,
			is_pinned, is_highlighted, is_displayed, display_order, is_broadcasting, likes_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, q.ID, q.SessionID, q.Content, q.AuthorName, q.IsAnonymous, q.Status,
		q.IsPinned, q.IsHighlighted, q.IsDisplayed, q.DisplayOrder, q.IsBroadcasting, q.LikesCount, q.CreatedAt)
	if err != nil {
		t.Fatalf("Failed to seed question: %v", err)
	}
}

// CreateTestPoll inserts a poll with options and returns (pollID, optionIDs).
func CreateTestPoll(t *testing.T, conn *sql.DB, sessionID, status string, labels ...string) (string, []string) {
	t.Helper()

	pollID, _ := auth.GenerateID(16)
	_, err := conn.Exec(`
		INSERT INTO poll (id, session_id, question, status, created_at)
		VALUES ($1, $2, 'Test Poll?', $3, $4)
	`, pollID, sessionID, status, time.Now())
	if err != nil {
		t.Fatalf("Failed to create test poll: %v", err)
	}

	optionIDs := make([]string, 0, len(labels))
	for _, label := range labels {
		optionID, _ := auth.GenerateID(12)
		_, err := conn.Exec(`
			INSERT INTO poll_option (id, poll_id, label)
			VALUES ($1, $2, $3)
		`, optionID, pollID, label)
		if err != nil {
			t.Fatalf("Failed to create test poll option: %v", err)
		}
		optionIDs = append(optionIDs, optionID)
	}

	return pollID, optionIDs
}

// LoginTestUser registers a device session for the user and returns a
// bearer token the handlers will accept.
func LoginTestUser(t *testing.T, conn *sql.DB, cfg cliparse.Config, userID string) string {
	t.Helper()

	store := sessionstore.NewSQLStore(conn)
	sessionID, _ := auth.GenerateID(16)
	token, err := auth.GenerateSessionToken(userID, sessionID, cfg.JWTSecret)
	if err != nil {
		t.Fatalf("Failed to generate session token: %v", err)
	}

	now := time.Now()
	_, err = store.Register(context.Background(), sessionstore.Session{
		ID:             sessionID,
		UserID:         userID,
		TokenHash:      auth.HashToken(token),
		DeviceInfo:     "test",
		IPAddress:      "127.0.0.1",
		CreatedAt:      now,
		LastActivityAt: now,
	})
	if err != nil {
		t.Fatalf("Failed to register test session: %v", err)
	}

	return token
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
