// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/danielhkuo/crowdcue/models"
	"github.com/danielhkuo/crowdcue/realtime"
)

// ShellState is the presentation shell's lifecycle phase.
type ShellState int

const (
	ShellLoading ShellState = iota
	ShellReady
	ShellError
)

// Shell composes everything one live-session screen needs: session
// metadata, the question and poll feeds, and a status subscription that
// flips the screen into its ended mode when the host closes the
// session.
type Shell struct {
	client *Client
	code   string

	mu      sync.RWMutex
	state   ShellState
	session *models.EventSession
	lastErr error

	Feed  *Feed
	Polls *PollFeed

	onEnded func()
	cancel  context.CancelFunc
	done    chan struct{}
}

// ShellOption configures a Shell.
type ShellOption func(*Shell)

// OnEnded registers a callback fired once when the session ends.
func OnEnded(fn func()) ShellOption {
	return func(s *Shell) { s.onEnded = fn }
}

// NewShell creates a shell for the session code.
func NewShell(c *Client, code string, opts ...ShellOption) *Shell {
	s := &Shell{
		client: c,
		code:   code,
		state:  ShellLoading,
		Feed:   NewFeed(c, code),
		Polls:  NewPollFeed(c, code),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the session and brings the feed up. The shell ends in
// ShellReady or ShellError; a load failure leaves children untouched.
func (s *Shell) Start(ctx context.Context) error {
	session, err := s.client.Session(ctx, s.code)
	if err != nil {
		s.mu.Lock()
		s.state = ShellError
		s.lastErr = err
		s.mu.Unlock()
		return err
	}

	if err := s.Feed.Start(ctx); err != nil {
		s.mu.Lock()
		s.state = ShellError
		s.lastErr = err
		s.mu.Unlock()
		return err
	}
	if err := s.Polls.Start(ctx); err != nil {
		s.Feed.Close()
		s.mu.Lock()
		s.state = ShellError
		s.lastErr = err
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.session = session
	s.state = ShellReady
	s.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	events := s.client.Subscribe(runCtx, s.code, realtime.TopicSession)
	go func() {
		defer close(s.done)
		for {
			select {
			case <-runCtx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				s.applySessionEvent(ev)
			}
		}
	}()

	return nil
}

// Close tears down the shell and its feeds.
func (s *Shell) Close() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
		s.cancel = nil
	}
	s.Feed.Close()
	s.Polls.Close()
}

func (s *Shell) applySessionEvent(ev realtime.Event) {
	var session models.EventSession
	if err := json.Unmarshal(ev.Payload, &session); err != nil {
		slog.Error("failed to decode session event", "error", err)
		return
	}

	s.mu.Lock()
	wasEnded := s.session != nil && s.session.Status == models.SessionEnded
	s.session = &session
	nowEnded := session.Status == models.SessionEnded
	s.mu.Unlock()

	if nowEnded && !wasEnded {
		slog.Info("session ended", "code", s.code)
		if s.onEnded != nil {
			s.onEnded()
		}
	}
}

// State returns the shell lifecycle phase.
func (s *Shell) State() ShellState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the error that put the shell into ShellError, if any.
func (s *Shell) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Session returns the last known session metadata, nil before Start.
func (s *Shell) Session() *models.EventSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Ended reports whether the session is over. Reads keep working after
// the end; writes are refused locally.
func (s *Shell) Ended() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session != nil && s.session.Status == models.SessionEnded
}

// Submit forwards to the feed unless the session has ended, in which
// case it refuses locally without a network call.
func (s *Shell) Submit(ctx context.Context, content, authorName string, anonymous bool) (*models.SubmitQuestionResponse, error) {
	if s.Ended() {
		return nil, ErrSessionEnded
	}
	return s.Feed.Submit(ctx, content, authorName, anonymous)
}

// Vote forwards to the poll feed under the same ended-session rule:
// reads keep working after the end, writes refuse locally.
func (s *Shell) Vote(ctx context.Context, pollID, optionID string) (*models.VotePollResponse, error) {
	if s.Ended() {
		return nil, ErrSessionEnded
	}
	return s.Polls.Vote(ctx, pollID, optionID)
}
