// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/danielhkuo/crowdcue/models"
	"github.com/danielhkuo/crowdcue/realtime"
)

// ItemState is a displayed question's standing in the broadcast flow.
type ItemState int

const (
	// StateNeverShown: not currently on air and never shown from this tab.
	StateNeverShown ItemState = iota
	// StateShownNow: on air right now.
	StateShownNow
	// StateShownBefore: previously on air from this tab, per the local
	// history. Advisory only; other tabs' history is invisible here.
	StateShownBefore
)

// History records which questions this tab has broadcast, keyed by
// session code. It is deliberately tab-scoped and advisory: the server
// carries no memory of past broadcasts, only the current one.
type History struct {
	mu    sync.RWMutex
	shown map[string]map[string]time.Time
}

func NewHistory() *History {
	return &History{shown: make(map[string]map[string]time.Time)}
}

// Record marks a question as shown for the session.
func (h *History) Record(code, questionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.shown[code] == nil {
		h.shown[code] = make(map[string]time.Time)
	}
	h.shown[code][questionID] = time.Now()
}

// Shown reports whether this tab has ever broadcast the question.
func (h *History) Shown(code, questionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.shown[code][questionID]
	return ok
}

// Selector is the moderator's broadcast picker: the displayed list, the
// current on-air question, and per-item never/now/before states.
type Selector struct {
	client       *Client
	code         string
	history      *History
	pollInterval time.Duration

	mu        sync.RWMutex
	displayed []models.Question
	onAirID   string

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSelector creates a selector for the session. The history may be
// shared across selectors in the same tab.
func NewSelector(c *Client, code string, history *History) *Selector {
	if history == nil {
		history = NewHistory()
	}
	return &Selector{
		client:       c,
		code:         code,
		history:      history,
		pollInterval: defaultPollInterval,
	}
}

// Start verifies moderation rights, loads the displayed list, and keeps
// it synced through the subscription and a poll ticker. Users without
// rights get ErrPermissionDenied before any controls appear.
func (s *Selector) Start(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	events := s.client.Subscribe(runCtx, s.code, realtime.TopicQuestions)
	ticker := time.NewTicker(s.pollInterval)

	go func() {
		defer close(s.done)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				if err := s.Refresh(runCtx); err != nil && !IsTransient(err) {
					slog.Error("selector refresh failed", "error", err)
				}
			case <-ticker.C:
				if err := s.Refresh(runCtx); err != nil && !IsTransient(err) {
					slog.Error("selector refresh failed", "error", err)
				}
			}
		}
	}()

	return nil
}

// Close stops the sync loop. Safe to call more than once.
func (s *Selector) Close() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
		s.cancel = nil
	}
}

// Refresh reloads the displayed list and derives the on-air question
// from it.
func (s *Selector) Refresh(ctx context.Context) error {
	var resp models.QuestionListResponse
	err := s.client.do(ctx, "GET", "/sessions/"+s.code+"/questions/displayed", nil, &resp)
	if err != nil {
		return err
	}

	onAir := ""
	for _, q := range resp.Questions {
		if q.IsBroadcasting {
			onAir = q.ID
			break
		}
	}

	s.mu.Lock()
	s.displayed = resp.Questions
	s.onAirID = onAir
	s.mu.Unlock()
	return nil
}

// Displayed returns a copy of the current displayed list.
func (s *Selector) Displayed() []models.Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Question, len(s.displayed))
	copy(out, s.displayed)
	return out
}

// OnAirID returns the id of the broadcasting question, empty when
// nothing is on air.
func (s *Selector) OnAirID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.onAirID
}

// State classifies a question for the picker UI.
func (s *Selector) State(questionID string) ItemState {
	s.mu.RLock()
	onAir := s.onAirID
	s.mu.RUnlock()

	if questionID == onAir {
		return StateShownNow
	}
	if s.history.Shown(s.code, questionID) {
		return StateShownBefore
	}
	return StateNeverShown
}

// ToggleBroadcast flips the question's on-air state. Only the backend
// response determines the resulting state; concurrent moderators may
// have changed it since the button was drawn.
func (s *Selector) ToggleBroadcast(ctx context.Context, questionID string) (bool, error) {
	var resp models.ToggleBroadcastResponse
	err := s.client.do(ctx, "POST", "/questions/"+questionID+"/broadcast", nil, &resp)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	if resp.IsBroadcasting {
		s.onAirID = questionID
	} else if s.onAirID == questionID {
		s.onAirID = ""
	}
	s.mu.Unlock()

	if resp.IsBroadcasting {
		s.history.Record(s.code, questionID)
	}
	return resp.IsBroadcasting, nil
}
