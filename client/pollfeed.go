// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package client

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danielhkuo/crowdcue/models"
	"github.com/danielhkuo/crowdcue/realtime"
)

// PollFeed is the poll sibling of Feed: the session's open and closed
// polls with option counts, kept in sync through push events and a poll
// ticker, plus vote casting. The device's own votes are remembered
// locally; the backend response after a vote is the count ground truth.
type PollFeed struct {
	client       *Client
	code         string
	pollInterval time.Duration

	// generation implements latest-request-wins for Refresh, same as Feed.
	generation atomic.Uint64

	mu    sync.RWMutex
	polls []models.Poll
	// voted maps poll id to the option this device last voted for. Local
	// memory only: the list endpoint does not report per-viewer votes.
	voted map[string]string

	cancel context.CancelFunc
	done   chan struct{}
}

// PollFeedOption configures a PollFeed.
type PollFeedOption func(*PollFeed)

// WithPollFeedInterval overrides the fallback refresh cadence.
func WithPollFeedInterval(d time.Duration) PollFeedOption {
	return func(p *PollFeed) { p.pollInterval = d }
}

// NewPollFeed creates a poll feed for the session code. Call Start to
// begin syncing and Close to tear down.
func NewPollFeed(c *Client, code string, opts ...PollFeedOption) *PollFeed {
	p := &PollFeed{
		client:       c,
		code:         code,
		pollInterval: defaultPollInterval,
		voted:        make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start performs the initial load and launches the two refresh
// triggers: the realtime subscription and the poll ticker.
func (p *PollFeed) Start(ctx context.Context) error {
	if err := p.Refresh(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	events := p.client.Subscribe(runCtx, p.code, realtime.TopicPolls)
	ticker := time.NewTicker(p.pollInterval)

	go func() {
		defer close(p.done)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				if err := p.Refresh(runCtx); err != nil && !IsTransient(err) {
					slog.Error("poll feed refresh failed", "error", err)
				}
			case <-ticker.C:
				if err := p.Refresh(runCtx); err != nil && !IsTransient(err) {
					slog.Error("poll feed refresh failed", "error", err)
				}
			}
		}
	}()

	return nil
}

// Close stops both refresh triggers. Safe to call more than once.
func (p *PollFeed) Close() {
	if p.cancel != nil {
		p.cancel()
		<-p.done
		p.cancel = nil
	}
}

// Refresh re-lists the session's polls. Safe under concurrent
// invocation: when calls overlap, only the most recently started one
// updates the snapshot.
func (p *PollFeed) Refresh(ctx context.Context) error {
	gen := p.generation.Add(1)

	var polls []models.Poll
	if err := p.client.do(ctx, "GET", "/sessions/"+p.code+"/polls", nil, &polls); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.generation.Load() != gen {
		return nil
	}
	p.polls = polls
	return nil
}

// Polls returns a copy of the current snapshot, newest first.
func (p *PollFeed) Polls() []models.Poll {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]models.Poll, len(p.polls))
	copy(out, p.polls)
	return out
}

// VotedOption returns the option this device voted for in the poll,
// empty if it has not voted through this feed.
func (p *PollFeed) VotedOption(pollID string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.voted[pollID]
}

// Vote casts or moves this device's vote. The response's option counts
// are adopted as ground truth; a re-vote never stacks.
func (p *PollFeed) Vote(ctx context.Context, pollID, optionID string) (*models.VotePollResponse, error) {
	if pollID == "" || optionID == "" {
		return nil, &ValidationError{Message: "poll and option are required"}
	}

	var resp models.VotePollResponse
	err := p.client.do(ctx, "POST", "/polls/"+pollID+"/vote", models.VotePollRequest{OptionID: optionID}, &resp)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.voted[pollID] = resp.OptionID
	for i := range p.polls {
		if p.polls[i].ID == pollID {
			p.polls[i].Options = resp.Options
			break
		}
	}
	p.mu.Unlock()

	return &resp, nil
}
