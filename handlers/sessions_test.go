// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielhkuo/crowdcue/models"
	"github.com/danielhkuo/crowdcue/realtime"
	"github.com/danielhkuo/crowdcue/sessionstore"
	"github.com/danielhkuo/crowdcue/testutil"
)

func TestCreateSession(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	store := sessionstore.NewSQLStore(db)
	handler := NewSessionHandler(db, cfg, realtime.NewHub(), store)

	partnerID := testutil.CreateTestUser(t, db, "partner@example.com", models.RolePartner, true)
	audienceID := testutil.CreateTestUser(t, db, "audience@example.com", models.RoleAudience, true)
	unapprovedID := testutil.CreateTestUser(t, db, "waiting@example.com", models.RolePartner, false)

	tests := []struct {
		name           string
		userID         string
		noToken        bool
		requestBody    interface{}
		expectedStatus int
	}{
		{
			name:           "partner creates session",
			userID:         partnerID,
			requestBody:    models.CreateSessionRequest{Title: "All Hands", QAEnabled: true, PollEnabled: true},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "audience role rejected",
			userID:         audienceID,
			requestBody:    models.CreateSessionRequest{Title: "Nope"},
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "unapproved partner rejected",
			userID:         unapprovedID,
			requestBody:    models.CreateSessionRequest{Title: "Not yet"},
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "missing title",
			userID:         partnerID,
			requestBody:    models.CreateSessionRequest{Title: "  "},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "no token",
			noToken:        true,
			requestBody:    models.CreateSessionRequest{Title: "Anonymous"},
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if !tt.noToken {
				headers["Authorization"] = "Bearer " + testutil.LoginTestUser(t, db, cfg, tt.userID)
			}

			req := testutil.MakeRequest("POST", "/sessions", tt.requestBody, headers)
			w := httptest.NewRecorder()

			handler.Create(w, req)
			testutil.AssertStatus(t, w, tt.expectedStatus)

			if tt.expectedStatus == http.StatusCreated {
				var resp models.CreateSessionResponse
				testutil.AssertJSON(t, w, &resp)
				if resp.SessionID == "" {
					t.Error("Expected non-empty session_id")
				}
				if len(resp.Code) != 6 {
					t.Errorf("Expected 6-character code, got %q", resp.Code)
				}
			}
		})
	}
}

func TestGetSession(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	store := sessionstore.NewSQLStore(db)
	handler := NewSessionHandler(db, cfg, realtime.NewHub(), store)

	partnerID := testutil.CreateTestUser(t, db, "partner@example.com", models.RolePartner, true)
	sessionID, code := testutil.CreateTestEventSession(t, db, partnerID, models.SessionActive)

	req := testutil.MakeRequest("GET", "/sessions/"+code, nil, nil)
	req.SetPathValue("code", code)
	w := httptest.NewRecorder()

	handler.Get(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.EventSession
	testutil.AssertJSON(t, w, &resp)
	if resp.ID != sessionID || resp.Status != models.SessionActive {
		t.Errorf("Unexpected session payload: %+v", resp)
	}

	req = testutil.MakeRequest("GET", "/sessions/ZZZZZZ", nil, nil)
	req.SetPathValue("code", "ZZZZZZ")
	w = httptest.NewRecorder()

	handler.Get(w, req)
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestEndSession(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	store := sessionstore.NewSQLStore(db)
	hub := realtime.NewHub()
	handler := NewSessionHandler(db, cfg, hub, store)

	partnerID := testutil.CreateTestUser(t, db, "partner@example.com", models.RolePartner, true)
	_, code := testutil.CreateTestEventSession(t, db, partnerID, models.SessionActive)

	token := testutil.LoginTestUser(t, db, cfg, partnerID)
	headers := map[string]string{"Authorization": "Bearer " + token}

	events, cancel := hub.Subscribe(code, realtime.TopicSession)
	defer cancel()

	req := testutil.MakeRequest("POST", "/sessions/"+code+"/end", nil, headers)
	req.SetPathValue("code", code)
	w := httptest.NewRecorder()

	handler.End(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.EventSession
	testutil.AssertJSON(t, w, &resp)
	if resp.Status != models.SessionEnded || resp.EndedAt == nil {
		t.Errorf("Expected ended session with timestamp, got %+v", resp)
	}

	select {
	case ev := <-events:
		if ev.Topic != realtime.TopicSession || ev.Type != realtime.EventUpdate {
			t.Errorf("Unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Error("Expected a session-status realtime event")
	}

	// Ending twice is a conflict
	req = testutil.MakeRequest("POST", "/sessions/"+code+"/end", nil, headers)
	req.SetPathValue("code", code)
	w = httptest.NewRecorder()

	handler.End(w, req)
	testutil.AssertStatus(t, w, http.StatusConflict)

	// And the ended session rejects new questions
	questionHandler := NewQuestionHandler(db, cfg, hub, sessionstore.NewSQLStore(db))
	qreq := testutil.MakeRequest("POST", "/sessions/"+code+"/questions",
		models.SubmitQuestionRequest{Content: "too late"}, nil)
	qreq.SetPathValue("code", code)
	w = httptest.NewRecorder()

	questionHandler.Submit(w, qreq)
	testutil.AssertStatus(t, w, http.StatusConflict)
}

func TestStartSession(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	store := sessionstore.NewSQLStore(db)
	handler := NewSessionHandler(db, cfg, realtime.NewHub(), store)

	partnerID := testutil.CreateTestUser(t, db, "partner@example.com", models.RolePartner, true)
	_, code := testutil.CreateTestEventSession(t, db, partnerID, models.SessionScheduled)

	token := testutil.LoginTestUser(t, db, cfg, partnerID)
	headers := map[string]string{"Authorization": "Bearer " + token}

	req := testutil.MakeRequest("POST", "/sessions/"+code+"/start", nil, headers)
	req.SetPathValue("code", code)
	w := httptest.NewRecorder()

	handler.Start(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.EventSession
	testutil.AssertJSON(t, w, &resp)
	if resp.Status != models.SessionActive {
		t.Errorf("Expected active session, got %s", resp.Status)
	}
}
