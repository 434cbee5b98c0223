// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package client

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/danielhkuo/crowdcue/models"
	"github.com/danielhkuo/crowdcue/realtime"
)

// defaultPollInterval is the fallback refresh cadence alongside the
// realtime subscription. Both triggers are first-class: push keeps the
// list prompt, the poll keeps it complete.
const defaultPollInterval = 2 * time.Second

// Feed is the audience-side question list for one session: a sorted
// local snapshot kept in sync with the backend through push events and
// periodic refresh, with optimistic like toggling.
type Feed struct {
	client       *Client
	code         string
	sort         models.SortMode
	pollInterval time.Duration

	// generation implements latest-request-wins for Refresh: a response
	// only lands if no newer Refresh has started since it was issued.
	generation atomic.Uint64

	mu        sync.RWMutex
	questions []models.Question
	liked     map[string]bool
	known     map[string]bool
	primed    bool
	onNewItem func(models.Question)

	cancel context.CancelFunc
	done   chan struct{}
}

// FeedOption configures a Feed.
type FeedOption func(*Feed)

// WithSort sets the list ordering (default popular).
func WithSort(mode models.SortMode) FeedOption {
	return func(f *Feed) { f.sort = mode }
}

// WithPollInterval overrides the fallback refresh cadence.
func WithPollInterval(d time.Duration) FeedOption {
	return func(f *Feed) { f.pollInterval = d }
}

// OnNewItem registers a hook fired once per question the first time it
// appears in the visible list (i.e. when it is approved), never for
// updates to items already seen. The initial load is silent; items
// present on mount are not new arrivals.
func OnNewItem(fn func(models.Question)) FeedOption {
	return func(f *Feed) { f.onNewItem = fn }
}

// NewFeed creates a feed for the given session code. Call Start to
// begin syncing and Close to tear down.
func NewFeed(c *Client, code string, opts ...FeedOption) *Feed {
	f := &Feed{
		client:       c,
		code:         code,
		sort:         models.SortPopular,
		pollInterval: defaultPollInterval,
		liked:        make(map[string]bool),
		known:        make(map[string]bool),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Start performs the initial load and launches the two refresh
// triggers: the realtime subscription and the poll ticker.
func (f *Feed) Start(ctx context.Context) error {
	if err := f.Refresh(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.done = make(chan struct{})

	events := f.client.Subscribe(runCtx, f.code, realtime.TopicQuestions)
	ticker := time.NewTicker(f.pollInterval)

	go func() {
		defer close(f.done)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				// Events are change hints, not state: always re-list
				if err := f.Refresh(runCtx); err != nil && !IsTransient(err) {
					slog.Error("feed refresh failed", "error", err)
				}
			case <-ticker.C:
				if err := f.Refresh(runCtx); err != nil && !IsTransient(err) {
					slog.Error("feed refresh failed", "error", err)
				}
			}
		}
	}()

	return nil
}

// Close stops both refresh triggers. Safe to call more than once.
func (f *Feed) Close() {
	if f.cancel != nil {
		f.cancel()
		<-f.done
		f.cancel = nil
	}
}

// Refresh re-lists the whole feed from the backend. Safe to call
// concurrently: when invocations overlap, only the most recently
// started one updates the snapshot.
func (f *Feed) Refresh(ctx context.Context) error {
	gen := f.generation.Add(1)

	var resp models.QuestionListResponse
	path := "/sessions/" + f.code + "/questions?sort=" + url.QueryEscape(string(f.sort))
	if err := f.client.do(ctx, "GET", path, nil, &resp); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// A newer Refresh started while this one was in flight; its result
	// supersedes ours even if it completes first.
	if f.generation.Load() != gen {
		return nil
	}

	var fresh []models.Question
	for _, q := range resp.Questions {
		if !f.known[q.ID] {
			f.known[q.ID] = true
			fresh = append(fresh, q)
		}
	}

	f.questions = resp.Questions
	f.liked = make(map[string]bool, len(resp.LikedIDs))
	for _, id := range resp.LikedIDs {
		f.liked[id] = true
	}

	// The first load seeds the known set without firing the hook
	if !f.primed {
		f.primed = true
		return nil
	}
	if f.onNewItem != nil {
		for _, q := range fresh {
			f.onNewItem(q)
		}
	}
	return nil
}

// Questions returns a copy of the current snapshot in backend order.
func (f *Feed) Questions() []models.Question {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]models.Question, len(f.questions))
	copy(out, f.questions)
	return out
}

// Liked reports whether this device has liked the question, per the
// local cache last reconciled with the backend.
func (f *Feed) Liked(questionID string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.liked[questionID]
}

// Submit validates and submits a new question. Invalid content fails
// with a ValidationError before any network traffic.
func (f *Feed) Submit(ctx context.Context, content, authorName string, anonymous bool) (*models.SubmitQuestionResponse, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, &ValidationError{Field: "content", Message: "cannot be empty"}
	}
	if utf8.RuneCountInString(trimmed) > models.MaxContentLen {
		return nil, &ValidationError{Field: "content", Message: "must be at most 500 characters"}
	}

	var resp models.SubmitQuestionResponse
	err := f.client.do(ctx, "POST", "/sessions/"+f.code+"/questions", models.SubmitQuestionRequest{
		Content:     trimmed,
		AuthorName:  authorName,
		IsAnonymous: anonymous,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ToggleLike flips the like optimistically, then reconciles with the
// backend response. On failure the optimistic change is rolled back;
// either way the backend's answer is final.
func (f *Feed) ToggleLike(ctx context.Context, questionID string) (bool, error) {
	f.mu.Lock()
	wasLiked := f.liked[questionID]
	f.applyLikeLocked(questionID, !wasLiked, delta(!wasLiked))
	f.mu.Unlock()

	var resp models.ToggleLikeResponse
	err := f.client.do(ctx, "POST", "/questions/"+questionID+"/like", nil, &resp)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		// Roll back to the pre-toggle state
		f.applyLikeLocked(questionID, wasLiked, delta(wasLiked))
		return wasLiked, err
	}

	f.liked[questionID] = resp.Liked
	for i := range f.questions {
		if f.questions[i].ID == questionID {
			f.questions[i].LikesCount = resp.LikesCount
			break
		}
	}
	return resp.Liked, nil
}

func delta(liked bool) int {
	if liked {
		return 1
	}
	return -1
}

// applyLikeLocked sets the liked flag and nudges the local count,
// clamping at zero. Caller holds f.mu.
func (f *Feed) applyLikeLocked(questionID string, liked bool, d int) {
	f.liked[questionID] = liked
	if !liked {
		delete(f.liked, questionID)
	}
	for i := range f.questions {
		if f.questions[i].ID == questionID {
			f.questions[i].LikesCount += d
			if f.questions[i].LikesCount < 0 {
				f.questions[i].LikesCount = 0
			}
			break
		}
	}
}
