// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/crowdcue/models"
)

const (
	defaultHeartbeatInterval = 30 * time.Second
	defaultPublicIPURL       = "https://api.ipify.org"
	tokenStorageKey          = "session_token"
)

// Governor runs the login flow with all its guard rails: the lockout
// pre-flight, failure classification, audit logging, the persisted
// session token, and the heartbeat that detects a kicked session.
type Governor struct {
	client            *Client
	storage           Storage
	heartbeatInterval time.Duration
	publicIPURL       string

	mu       sync.Mutex
	onKicked func()
	cancel   context.CancelFunc
	done     chan struct{}
}

// GovernorOption configures a Governor.
type GovernorOption func(*Governor)

// WithHeartbeatInterval overrides the session liveness cadence.
func WithHeartbeatInterval(d time.Duration) GovernorOption {
	return func(g *Governor) { g.heartbeatInterval = d }
}

// WithPublicIPURL overrides the public-IP lookup endpoint.
func WithPublicIPURL(url string) GovernorOption {
	return func(g *Governor) { g.publicIPURL = url }
}

// OnKicked registers a callback fired when the heartbeat discovers the
// session was revoked by a newer login elsewhere.
func OnKicked(fn func()) GovernorOption {
	return func(g *Governor) { g.onKicked = fn }
}

// NewGovernor creates a governor. A previously persisted token, if any,
// is restored into the client so the app resumes logged in, and the
// heartbeat starts immediately: a resumed session must keep updating
// its activity and must still notice being kicked.
func NewGovernor(c *Client, storage Storage, opts ...GovernorOption) *Governor {
	g := &Governor{
		client:            c,
		storage:           storage,
		heartbeatInterval: defaultHeartbeatInterval,
		publicIPURL:       defaultPublicIPURL,
	}
	for _, opt := range opts {
		opt(g)
	}

	if token, err := storage.Get(tokenStorageKey); err == nil && token != "" {
		c.SetToken(token)
		g.startHeartbeat()
	}
	return g
}

// CheckAttempt asks whether the email is locked out before the form
// even tries credentials.
func (g *Governor) CheckAttempt(ctx context.Context, email string) (*models.CheckAttemptResponse, error) {
	var resp models.CheckAttemptResponse
	err := g.client.do(ctx, "POST", "/auth/check-attempt", models.CheckAttemptRequest{Email: email}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login runs the full governed login. Failures come back classified:
// LockedOutError with a countdown, or AuthError with a closed-set
// reason. On success the token is persisted and the heartbeat starts.
func (g *Governor) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, &ValidationError{Message: "email and password are required"}
	}

	var resp models.LoginResponse
	err := g.client.do(ctx, "POST", "/auth/login", models.LoginRequest{
		Email:    email,
		Password: password,
	}, &resp)
	if err != nil {
		var locked *LockedOutError
		if errors.As(err, &locked) {
			return nil, locked
		}
		var api *apiError
		if errors.As(err, &api) {
			return nil, &AuthError{Reason: ClassifyAuthError(api.Message), Message: api.Message}
		}
		if errors.Is(err, ErrPermissionDenied) {
			// 403 on login means the account itself is blocked
			return nil, &AuthError{Reason: ReasonAccountDisabled, Message: "account is not active"}
		}
		return nil, err
	}

	g.client.SetToken(resp.Token)
	if err := g.storage.Set(tokenStorageKey, resp.Token); err != nil {
		slog.Warn("failed to persist session token", "error", err)
	}

	g.startHeartbeat()
	return &resp, nil
}

// Logout ends the session server-side and clears the local token
// either way.
func (g *Governor) Logout(ctx context.Context) error {
	err := g.client.do(ctx, "POST", "/auth/logout", nil, nil)

	g.stopHeartbeat()
	g.client.SetToken("")
	if serr := g.storage.Set(tokenStorageKey, ""); serr != nil {
		slog.Warn("failed to clear persisted token", "error", serr)
	}
	return err
}

// LoggedIn reports whether a session token is present locally. Only the
// heartbeat can tell whether it is still honored.
func (g *Governor) LoggedIn() bool {
	return g.client.Token() != ""
}

// startHeartbeat launches the liveness ticker. A 401 means the session
// was revoked (kicked or logged out elsewhere): the token is dropped
// and the OnKicked callback fires.
func (g *Governor) startHeartbeat() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	g.done = make(chan struct{})

	go func() {
		defer close(g.done)
		ticker := time.NewTicker(g.heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if revoked := g.beat(ctx); revoked {
					return
				}
			}
		}
	}()
}

// beat runs one heartbeat. Returns true when the session is gone.
func (g *Governor) beat(ctx context.Context) bool {
	var resp models.HeartbeatResponse
	err := g.client.do(ctx, "POST", "/auth/sessions/heartbeat", nil, &resp)
	if err == nil {
		return false
	}
	if IsTransient(err) {
		// Network blip, not a revocation; keep the token and retry
		return false
	}

	var api *apiError
	if errors.As(err, &api) && api.StatusCode == http.StatusUnauthorized {
		slog.Info("session revoked, logging out locally")
		g.client.SetToken("")
		if serr := g.storage.Set(tokenStorageKey, ""); serr != nil {
			slog.Warn("failed to clear persisted token", "error", serr)
		}
		if g.onKicked != nil {
			g.onKicked()
		}
		return true
	}
	return false
}

func (g *Governor) stopHeartbeat() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
		<-g.done
		g.cancel = nil
	}
}

// Close stops the heartbeat without logging out.
func (g *Governor) Close() {
	g.stopHeartbeat()
}

// PublicIP looks up the device's public address for audit rows.
// Best-effort by contract: any failure degrades to "unknown".
func (g *Governor) PublicIP(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", g.publicIPURL, nil)
	if err != nil {
		return "unknown"
	}
	resp, err := g.client.httpClient.Do(req)
	if err != nil {
		return "unknown"
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "unknown"
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return "unknown"
	}
	ip := strings.TrimSpace(string(data))
	if ip == "" {
		return "unknown"
	}
	return ip
}

// LogEvent reports a login attempt that happened against an external
// identity provider, so the audit trail stays complete.
func (g *Governor) LogEvent(ctx context.Context, email string, success bool, reason AuthFailureReason) error {
	return g.client.do(ctx, "POST", "/auth/log-event", models.LogLoginEventRequest{
		Email:         email,
		Success:       success,
		FailureReason: string(reason),
		IPAddress:     g.PublicIP(ctx),
	}, nil)
}

// RecordFailure and ClearAttempts are the raw counter RPCs for login
// flows that validate credentials elsewhere.
func (g *Governor) RecordFailure(ctx context.Context, email string) (*models.RecordFailureResponse, error) {
	var resp models.RecordFailureResponse
	err := g.client.do(ctx, "POST", "/auth/record-failure", models.CheckAttemptRequest{Email: email}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (g *Governor) ClearAttempts(ctx context.Context, email string) error {
	return g.client.do(ctx, "POST", "/auth/clear-attempts", models.CheckAttemptRequest{Email: email}, nil)
}

// FormatCountdown renders a lockout countdown for the login form,
// e.g. "4 minutes" or "59 seconds".
func FormatCountdown(seconds int) string {
	if seconds <= 0 {
		return "now"
	}
	target := time.Now().Add(time.Duration(seconds) * time.Second)
	return strings.TrimSuffix(humanize.RelTime(time.Now(), target, "", ""), " ")
}
