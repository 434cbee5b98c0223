// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package sessionstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a token hash has no session, which
// includes sessions that were kicked by a newer login.
var ErrNotFound = errors.New("session not found")

// Session is one device's authenticated session. TokenHash is the
// SHA-256 of the issued token; the raw token is never stored.
type Session struct {
	ID             string
	UserID         string
	TokenHash      string
	DeviceInfo     string
	IPAddress      string
	CreatedAt      time.Time
	LastActivityAt time.Time
	RevokedAt      *time.Time
}

// Store is the device-session registry. Implementations enforce the
// single-active-session policy server-side: Register revokes every
// other session of the same user and reports how many were kicked.
// A client cannot be trusted to self-police concurrent logins, so both
// the kick decision and its execution live here.
type Store interface {
	// Register records a new session, revoking the user's prior active
	// sessions. Returns the number of sessions kicked.
	Register(ctx context.Context, s Session) (int, error)

	// Touch updates last-activity for the session and reports whether
	// it is still valid. A kicked or ended session returns false.
	Touch(ctx context.Context, tokenHash string, at time.Time) (bool, error)

	// End revokes the session. Ending an unknown session is not an error.
	End(ctx context.Context, tokenHash string) error

	// Get returns the session for a token hash, or ErrNotFound.
	Get(ctx context.Context, tokenHash string) (*Session, error)
}
