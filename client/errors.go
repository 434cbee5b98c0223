// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package client

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPermissionDenied blocks moderation controls for users who lack
// rights on the session. Unlike transient errors it is not retryable.
var ErrPermissionDenied = errors.New("permission denied")

// ErrSessionEnded is returned for write operations after the live
// session has ended. Reads keep working.
var ErrSessionEnded = errors.New("session has ended")

// ValidationError is a pre-network rejection: the input was invalid and
// no request was made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// TransientBackendError wraps network failures and 5xx responses. The
// caller keeps its current state and may retry.
type TransientBackendError struct {
	Op  string
	Err error
}

func (e *TransientBackendError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientBackendError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var t *TransientBackendError
	return errors.As(err, &t)
}

// AuthFailureReason is the closed classification set for failed logins.
type AuthFailureReason string

const (
	ReasonInvalidPassword   AuthFailureReason = "invalid_password"
	ReasonUserNotFound      AuthFailureReason = "user_not_found"
	ReasonEmailNotConfirmed AuthFailureReason = "email_not_confirmed"
	ReasonAccountDisabled   AuthFailureReason = "account_disabled"
	ReasonTooManyRequests   AuthFailureReason = "too_many_requests"
	ReasonUnknown           AuthFailureReason = "unknown_error"
)

// AuthError is a classified login failure.
type AuthError struct {
	Reason  AuthFailureReason
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("login failed (%s): %s", e.Reason, e.Message)
}

// ClassifyAuthError maps normalized backend error text to a reason.
// Anything unmatched falls through to unknown_error rather than
// guessing.
func ClassifyAuthError(message string) AuthFailureReason {
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "invalid email or password"),
		strings.Contains(msg, "invalid password"),
		strings.Contains(msg, "invalid credentials"):
		return ReasonInvalidPassword
	case strings.Contains(msg, "not found"),
		strings.Contains(msg, "no user"):
		return ReasonUserNotFound
	case strings.Contains(msg, "not confirmed"),
		strings.Contains(msg, "confirm your email"):
		return ReasonEmailNotConfirmed
	case strings.Contains(msg, "not active"),
		strings.Contains(msg, "disabled"),
		strings.Contains(msg, "pending approval"):
		return ReasonAccountDisabled
	case strings.Contains(msg, "too many"),
		strings.Contains(msg, "locked"):
		return ReasonTooManyRequests
	default:
		return ReasonUnknown
	}
}

// LockedOutError carries the countdown the login form must show.
type LockedOutError struct {
	RemainingSeconds int
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("account locked, try again in %s", FormatCountdown(e.RemainingSeconds))
}
