// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
//
// The SQL is kept portable between SQLite (dev, tests) and PostgreSQL
// (production): no server-side defaults like NOW(), no JSONB. Rows are
// always inserted with explicit timestamps.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const schema = `
-- Users (partners, admins, audience accounts)
CREATE TABLE IF NOT EXISTS app_user (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    display_name TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'audience' CHECK (role IN ('admin', 'partner', 'audience')),
    approved BOOLEAN NOT NULL DEFAULT FALSE,
    confirmed BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_app_user_email ON app_user(email);

-- Event sessions (live events, not auth sessions)
CREATE TABLE IF NOT EXISTS event_session (
    id TEXT PRIMARY KEY,
    code TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL,
    partner_id TEXT NOT NULL REFERENCES app_user(id),
    status TEXT NOT NULL DEFAULT 'scheduled' CHECK (status IN ('scheduled', 'active', 'ended')),
    qa_enabled BOOLEAN NOT NULL DEFAULT TRUE,
    poll_enabled BOOLEAN NOT NULL DEFAULT TRUE,
    ended_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_event_session_code ON event_session(code);
CREATE INDEX IF NOT EXISTS idx_event_session_partner ON event_session(partner_id);

-- Collaborators and presenters granted moderation access on a session
CREATE TABLE IF NOT EXISTS session_access (
    session_id TEXT NOT NULL REFERENCES event_session(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL REFERENCES app_user(id) ON DELETE CASCADE,
    role TEXT NOT NULL CHECK (role IN ('collaborator', 'presenter')),
    accepted BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (session_id, user_id)
);

-- Audience questions
CREATE TABLE IF NOT EXISTS question (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES event_session(id) ON DELETE CASCADE,
    content TEXT NOT NULL,
    author_name TEXT,
    is_anonymous BOOLEAN NOT NULL DEFAULT FALSE,
    status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'answered', 'rejected')),
    is_pinned BOOLEAN NOT NULL DEFAULT FALSE,
    is_highlighted BOOLEAN NOT NULL DEFAULT FALSE,
    is_displayed BOOLEAN NOT NULL DEFAULT FALSE,
    display_order INTEGER NOT NULL DEFAULT 0,
    is_broadcasting BOOLEAN NOT NULL DEFAULT FALSE,
    likes_count INTEGER NOT NULL DEFAULT 0 CHECK (likes_count >= 0),
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_question_session ON question(session_id);
CREATE INDEX IF NOT EXISTS idx_question_session_status ON question(session_id, status);

-- Likes: one per (question, viewer identity)
CREATE TABLE IF NOT EXISTS question_like (
    question_id TEXT NOT NULL REFERENCES question(id) ON DELETE CASCADE,
    voter_key TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (question_id, voter_key)
);

-- Polls
CREATE TABLE IF NOT EXISTS poll (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES event_session(id) ON DELETE CASCADE,
    question TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'open', 'closed')),
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_poll_session ON poll(session_id);

-- Option vote counts are derived from poll_vote
CREATE TABLE IF NOT EXISTS poll_option (
    id TEXT PRIMARY KEY,
    poll_id TEXT NOT NULL REFERENCES poll(id) ON DELETE CASCADE,
    label TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_poll_option_poll ON poll_option(poll_id);

-- One vote per (poll, voter identity); re-voting moves the vote
CREATE TABLE IF NOT EXISTS poll_vote (
    poll_id TEXT NOT NULL REFERENCES poll(id) ON DELETE CASCADE,
    voter_key TEXT NOT NULL,
    option_id TEXT NOT NULL REFERENCES poll_option(id) ON DELETE CASCADE,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (poll_id, voter_key)
);

-- Login attempt counters per (email, ip)
CREATE TABLE IF NOT EXISTS login_attempt (
    email TEXT NOT NULL,
    ip_address TEXT NOT NULL,
    attempt_count INTEGER NOT NULL DEFAULT 0,
    locked_until TIMESTAMP,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (email, ip_address)
);

-- Immutable login audit trail
CREATE TABLE IF NOT EXISTS login_event (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL,
    success BOOLEAN NOT NULL,
    failure_reason TEXT,
    ip_address TEXT NOT NULL,
    browser TEXT NOT NULL,
    os TEXT NOT NULL,
    device_class TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_login_event_email ON login_event(email);

-- Device sessions (auth sessions; at most one non-revoked row per user)
CREATE TABLE IF NOT EXISTS device_session (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES app_user(id) ON DELETE CASCADE,
    token_hash TEXT NOT NULL UNIQUE,
    device_info TEXT NOT NULL,
    ip_address TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    last_activity_at TIMESTAMP NOT NULL,
    revoked_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_device_session_user ON device_session(user_id);
CREATE INDEX IF NOT EXISTS idx_device_session_token ON device_session(token_hash);
`
