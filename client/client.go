// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/danielhkuo/crowdcue/models"
)

// Client is the HTTP backend client the adapters share. Safe for
// concurrent use; the token may change at any time (login, logout,
// kicked session).
type Client struct {
	baseURL    string
	httpClient *http.Client
	deviceUUID string

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithDeviceUUID sets the anonymous device identity sent on every
// request.
func WithDeviceUUID(uuid string) Option {
	return func(c *Client) { c.deviceUUID = uuid }
}

// New creates a backend client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken stores the session token used for authenticated calls.
// An empty string clears it.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current session token, empty when logged out.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// DeviceUUID returns the device identity this client sends.
func (c *Client) DeviceUUID() string { return c.deviceUUID }

// apiError is a decoded non-2xx response.
type apiError struct {
	StatusCode       int
	Message          string
	RemainingSeconds int
}

func (e *apiError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// do runs one request. Non-2xx responses come back as typed errors per
// the taxonomy: 423 is LockedOutError, 403 is ErrPermissionDenied, 5xx
// and transport failures are TransientBackendError. 400/401/404/409 are
// returned as *apiError for the caller to interpret in context.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.deviceUUID != "" {
		req.Header.Set("X-Device-UUID", c.deviceUUID)
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransientBackendError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &TransientBackendError{Op: method + " " + path, Err: err}
		}
		return nil
	}

	var errResp models.ErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&errResp)
	message := errResp.Message
	if message == "" {
		message = errResp.Error
	}

	switch {
	case resp.StatusCode == http.StatusLocked:
		return &LockedOutError{RemainingSeconds: errResp.RemainingSeconds}
	case resp.StatusCode == http.StatusForbidden:
		return ErrPermissionDenied
	case resp.StatusCode >= 500:
		return &TransientBackendError{Op: method + " " + path, Err: fmt.Errorf("status %d: %s", resp.StatusCode, message)}
	default:
		return &apiError{StatusCode: resp.StatusCode, Message: message, RemainingSeconds: errResp.RemainingSeconds}
	}
}

// Session fetches session metadata by code.
func (c *Client) Session(ctx context.Context, code string) (*models.EventSession, error) {
	var session models.EventSession
	if err := c.do(ctx, "GET", "/sessions/"+code, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}
