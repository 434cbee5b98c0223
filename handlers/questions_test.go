// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielhkuo/crowdcue/models"
	"github.com/danielhkuo/crowdcue/realtime"
	"github.com/danielhkuo/crowdcue/sessionstore"
	"github.com/danielhkuo/crowdcue/testutil"
)

func TestSubmitQuestion(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewQuestionHandler(db, cfg, realtime.NewHub(), sessionstore.NewSQLStore(db))

	partnerID := testutil.CreateTestUser(t, db, "partner@example.com", models.RolePartner, true)
	_, activeCode := testutil.CreateTestEventSession(t, db, partnerID, models.SessionActive)
	_, endedCode := testutil.CreateTestEventSession(t, db, partnerID, models.SessionEnded)

	tests := []struct {
		name           string
		code           string
		requestBody    interface{}
		expectedStatus int
		checkResponse  func(t *testing.T, resp *models.SubmitQuestionResponse)
	}{
		{
			name: "valid anonymous question",
			code: activeCode,
			requestBody: models.SubmitQuestionRequest{
				Content:     "What is the roadmap for next year?",
				IsAnonymous: true,
			},
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, resp *models.SubmitQuestionResponse) {
				if resp.QuestionID == "" {
					t.Error("Expected non-empty question_id")
				}
				if resp.Status != models.QuestionPending {
					t.Errorf("Expected pending status, got %s", resp.Status)
				}

				var authorName *string
				err := db.QueryRow(`SELECT author_name FROM question WHERE id = $1`, resp.QuestionID).Scan(&authorName)
				if err != nil {
					t.Fatalf("Failed to query question: %v", err)
				}
				if authorName != nil {
					t.Error("Anonymous question should have no author name")
				}
			},
		},
		{
			name: "named question keeps author",
			code: activeCode,
			requestBody: models.SubmitQuestionRequest{
				Content:    "Will there be a recording?",
				AuthorName: "Dana",
			},
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, resp *models.SubmitQuestionResponse) {
				var authorName *string
				err := db.QueryRow(`SELECT author_name FROM question WHERE id = $1`, resp.QuestionID).Scan(&authorName)
				if err != nil {
					t.Fatalf("Failed to query question: %v", err)
				}
				if authorName == nil || *authorName != "Dana" {
					t.Errorf("Expected author Dana, got %v", authorName)
				}
			},
		},
		{
			name:           "empty content",
			code:           activeCode,
			requestBody:    models.SubmitQuestionRequest{Content: "   "},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "content at 500 runes is accepted",
			code:           activeCode,
			requestBody:    models.SubmitQuestionRequest{Content: strings.Repeat("ä", 500)},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "content over 500 runes is rejected",
			code:           activeCode,
			requestBody:    models.SubmitQuestionRequest{Content: strings.Repeat("ä", 501)},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown session",
			code:           "ZZZZZZ",
			requestBody:    models.SubmitQuestionRequest{Content: "hello?"},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "ended session",
			code:           endedCode,
			requestBody:    models.SubmitQuestionRequest{Content: "too late?"},
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.MakeRequest("POST", "/sessions/"+tt.code+"/questions", tt.requestBody, nil)
			req.SetPathValue("code", tt.code)
			w := httptest.NewRecorder()

			handler.Submit(w, req)

			testutil.AssertStatus(t, w, tt.expectedStatus)

			if tt.checkResponse != nil {
				var resp models.SubmitQuestionResponse
				testutil.AssertJSON(t, w, &resp)
				tt.checkResponse(t, &resp)
			}
		})
	}
}

func TestSubmitQuestionRealtimeEvent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	hub := realtime.NewHub()
	handler := NewQuestionHandler(db, cfg, hub, sessionstore.NewSQLStore(db))

	partnerID := testutil.CreateTestUser(t, db, "partner@example.com", models.RolePartner, true)
	_, code := testutil.CreateTestEventSession(t, db, partnerID, models.SessionActive)

	events, cancel := hub.Subscribe(code, realtime.TopicQuestions)
	defer cancel()

	req := testutil.MakeRequest("POST", "/sessions/"+code+"/questions",
		models.SubmitQuestionRequest{Content: "Do moderators see this immediately?"}, nil)
	req.SetPathValue("code", code)
	w := httptest.NewRecorder()

	handler.Submit(w, req)
	testutil.AssertStatus(t, w, http.StatusCreated)

	select {
	case ev := <-events:
		if ev.Type != realtime.EventInsert {
			t.Errorf("Expected insert event, got %s", ev.Type)
		}
		if ev.SessionCode != code {
			t.Errorf("Expected event for %s, got %s", code, ev.SessionCode)
		}
	case <-time.After(time.Second):
		t.Error("Expected a realtime event for the submission")
	}
}

func TestListQuestionsVisibility(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewQuestionHandler(db, cfg, realtime.NewHub(), sessionstore.NewSQLStore(db))

	partnerID := testutil.CreateTestUser(t, db, "partner@example.com", models.RolePartner, true)
	sessionID, code := testutil.CreateTestEventSession(t, db, partnerID, models.SessionActive)

	testutil.CreateTestQuestion(t, db, sessionID, "pending one", models.QuestionPending, false)
	approvedID := testutil.CreateTestQuestion(t, db, sessionID, "approved one", models.QuestionApproved, false)
	answeredID := testutil.CreateTestQuestion(t, db, sessionID, "answered one", models.QuestionAnswered, false)
	testutil.CreateTestQuestion(t, db, sessionID, "rejected one", models.QuestionRejected, false)

	req := testutil.MakeRequest("GET", "/sessions/"+code+"/questions", nil, nil)
	req.SetPathValue("code", code)
	w := httptest.NewRecorder()

	handler.List(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.QuestionListResponse
	testutil.AssertJSON(t, w, &resp)

	if len(resp.Questions) != 2 {
		t.Fatalf("Expected 2 visible questions, got %d", len(resp.Questions))
	}
	seen := map[string]bool{}
	for _, q := range resp.Questions {
		seen[q.ID] = true
	}
	if !seen[approvedID] || !seen[answeredID] {
		t.Error("Expected approved and answered questions to be visible")
	}

	// With answered hidden by config, only the approved one remains
	hiddenCfg := cfg
	hiddenCfg.AnsweredVisible = false
	hiddenHandler := NewQuestionHandler(db, hiddenCfg, realtime.NewHub(), sessionstore.NewSQLStore(db))

	req = testutil.MakeRequest("GET", "/sessions/"+code+"/questions", nil, nil)
	req.SetPathValue("code", code)
	w = httptest.NewRecorder()

	hiddenHandler.List(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSON(t, w, &resp)

	if len(resp.Questions) != 1 || resp.Questions[0].ID != approvedID {
		t.Errorf("Expected only the approved question, got %d items", len(resp.Questions))
	}
}

func TestListQuestionsPopularOrder(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewQuestionHandler(db, cfg, realtime.NewHub(), sessionstore.NewSQLStore(db))

	partnerID := testutil.CreateTestUser(t, db, "partner@example.com", models.RolePartner, true)
	sessionID, code := testutil.CreateTestEventSession(t, db, partnerID, models.SessionActive)

	base := time.Now().Add(-time.Hour)
	seed := func(id string, pinned, highlighted bool, likes int, offset time.Duration) {
		testutil.SeedQuestion(t, db, models.Question{
			ID:            id,
			SessionID:     sessionID,
			Content:       "q " + id,
			IsAnonymous:   true,
			Status:        models.QuestionApproved,
			IsPinned:      pinned,
			IsHighlighted: highlighted,
			LikesCount:    likes,
			CreatedAt:     base.Add(offset),
		})
	}

	// Expected order: pinned first, then highlighted, then likes, then
	// newest
	seed("q-old-few", false, false, 1, 0)
	seed("q-new-few", false, false, 1, 10*time.Minute)
	seed("q-many-likes", false, false, 9, 5*time.Minute)
	seed("q-highlighted", false, true, 0, 1*time.Minute)
	seed("q-pinned", true, false, 0, 2*time.Minute)

	req := testutil.MakeRequest("GET", "/sessions/"+code+"/questions?sort=popular", nil, nil)
	req.SetPathValue("code", code)
	w := httptest.NewRecorder()

	handler.List(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.QuestionListResponse
	testutil.AssertJSON(t, w, &resp)

	want := []string{"q-pinned", "q-highlighted", "q-many-likes", "q-new-few", "q-old-few"}
	if len(resp.Questions) != len(want) {
		t.Fatalf("Expected %d questions, got %d", len(want), len(resp.Questions))
	}
	for i, id := range want {
		if resp.Questions[i].ID != id {
			t.Errorf("Position %d: expected %s, got %s", i, id, resp.Questions[i].ID)
		}
	}
}

func TestListQuestionsLikedIDs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewQuestionHandler(db, cfg, realtime.NewHub(), sessionstore.NewSQLStore(db))

	partnerID := testutil.CreateTestUser(t, db, "partner@example.com", models.RolePartner, true)
	sessionID, code := testutil.CreateTestEventSession(t, db, partnerID, models.SessionActive)
	questionID := testutil.CreateTestQuestion(t, db, sessionID, "liked?", models.QuestionApproved, false)

	deviceUUID := "11111111-2222-3333-4444-555555555555"

	// Like it first
	likeReq := testutil.MakeRequest("POST", "/questions/"+questionID+"/like", nil,
		map[string]string{"X-Device-UUID": deviceUUID})
	likeReq.SetPathValue("id", questionID)
	w := httptest.NewRecorder()
	handler.ToggleLike(w, likeReq)
	testutil.AssertStatus(t, w, http.StatusOK)

	req := testutil.MakeRequest("GET", "/sessions/"+code+"/questions", nil,
		map[string]string{"X-Device-UUID": deviceUUID})
	req.SetPathValue("code", code)
	w = httptest.NewRecorder()

	handler.List(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.QuestionListResponse
	testutil.AssertJSON(t, w, &resp)

	if len(resp.LikedIDs) != 1 || resp.LikedIDs[0] != questionID {
		t.Errorf("Expected liked_ids to contain %s, got %v", questionID, resp.LikedIDs)
	}

	// A different device has liked nothing
	req = testutil.MakeRequest("GET", "/sessions/"+code+"/questions", nil,
		map[string]string{"X-Device-UUID": "99999999-8888-7777-6666-555555555555"})
	req.SetPathValue("code", code)
	w = httptest.NewRecorder()

	handler.List(w, req)
	testutil.AssertJSON(t, w, &resp)

	if len(resp.LikedIDs) != 0 {
		t.Errorf("Expected empty liked_ids, got %v", resp.LikedIDs)
	}
}

func TestToggleLikeAlternates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewQuestionHandler(db, cfg, realtime.NewHub(), sessionstore.NewSQLStore(db))

	partnerID := testutil.CreateTestUser(t, db, "partner@example.com", models.RolePartner, true)
	sessionID, _ := testutil.CreateTestEventSession(t, db, partnerID, models.SessionActive)
	questionID := testutil.CreateTestQuestion(t, db, sessionID, "toggle me", models.QuestionApproved, false)

	headers := map[string]string{"X-Device-UUID": "aaaa-bbbb-cccc"}

	toggle := func() models.ToggleLikeResponse {
		req := testutil.MakeRequest("POST", "/questions/"+questionID+"/like", nil, headers)
		req.SetPathValue("id", questionID)
		w := httptest.NewRecorder()
		handler.ToggleLike(w, req)
		testutil.AssertStatus(t, w, http.StatusOK)
		var resp models.ToggleLikeResponse
		testutil.AssertJSON(t, w, &resp)
		return resp
	}

	// Rapid alternation must end exactly where it started
	for i := 0; i < 3; i++ {
		on := toggle()
		if !on.Liked || on.LikesCount != 1 {
			t.Fatalf("Toggle on %d: expected liked=true count=1, got %+v", i, on)
		}
		off := toggle()
		if off.Liked || off.LikesCount != 0 {
			t.Fatalf("Toggle off %d: expected liked=false count=0, got %+v", i, off)
		}
	}

	var count int
	if err := db.QueryRow(`SELECT likes_count FROM question WHERE id = $1`, questionID).Scan(&count); err != nil {
		t.Fatalf("Failed to query likes_count: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected likes_count 0 after even toggles, got %d", count)
	}
}

func TestToggleLikeRequiresDevice(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewQuestionHandler(db, cfg, realtime.NewHub(), sessionstore.NewSQLStore(db))

	partnerID := testutil.CreateTestUser(t, db, "partner@example.com", models.RolePartner, true)
	sessionID, _ := testutil.CreateTestEventSession(t, db, partnerID, models.SessionActive)
	questionID := testutil.CreateTestQuestion(t, db, sessionID, "needs identity", models.QuestionApproved, false)

	req := testutil.MakeRequest("POST", "/questions/"+questionID+"/like", nil, nil)
	req.SetPathValue("id", questionID)
	w := httptest.NewRecorder()

	handler.ToggleLike(w, req)
	testutil.AssertStatus(t, w, http.StatusBadRequest)
}

func TestToggleLikeBearerIdentity(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewQuestionHandler(db, cfg, realtime.NewHub(), sessionstore.NewSQLStore(db))

	partnerID := testutil.CreateTestUser(t, db, "partner@example.com", models.RolePartner, true)
	likerID := testutil.CreateTestUser(t, db, "liker@example.com", models.RoleAudience, true)
	sessionID, code := testutil.CreateTestEventSession(t, db, partnerID, models.SessionActive)
	questionID := testutil.CreateTestQuestion(t, db, sessionID, "logged in like", models.QuestionApproved, false)

	token := testutil.LoginTestUser(t, db, cfg, likerID)
	headers := map[string]string{"Authorization": "Bearer " + token}

	// No device header: the user behind the token is the like identity
	req := testutil.MakeRequest("POST", "/questions/"+questionID+"/like", nil, headers)
	req.SetPathValue("id", questionID)
	w := httptest.NewRecorder()
	handler.ToggleLike(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.ToggleLikeResponse
	testutil.AssertJSON(t, w, &resp)
	if !resp.Liked || resp.LikesCount != 1 {
		t.Fatalf("Expected liked=true count=1, got %+v", resp)
	}

	var voterKey string
	if err := db.QueryRow(`SELECT voter_key FROM question_like WHERE question_id = $1`, questionID).Scan(&voterKey); err != nil {
		t.Fatalf("Failed to read like row: %v", err)
	}
	if voterKey != "user:"+likerID {
		t.Errorf("Expected the user identity as voter key, got %q", voterKey)
	}

	// The list marks the item liked for the same bearer
	listReq := testutil.MakeRequest("GET", "/sessions/"+code+"/questions", nil, headers)
	listReq.SetPathValue("code", code)
	w = httptest.NewRecorder()
	handler.List(w, listReq)
	testutil.AssertStatus(t, w, http.StatusOK)

	var list models.QuestionListResponse
	testutil.AssertJSON(t, w, &list)
	if len(list.LikedIDs) != 1 || list.LikedIDs[0] != questionID {
		t.Errorf("Expected liked_ids [%s], got %v", questionID, list.LikedIDs)
	}
}

func TestToggleLikeUnknownQuestion(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewQuestionHandler(db, cfg, realtime.NewHub(), sessionstore.NewSQLStore(db))

	req := testutil.MakeRequest("POST", "/questions/nope/like", nil,
		map[string]string{"X-Device-UUID": "aaaa-bbbb"})
	req.SetPathValue("id", "nope")
	w := httptest.NewRecorder()

	handler.ToggleLike(w, req)
	testutil.AssertStatus(t, w, http.StatusNotFound)
}
