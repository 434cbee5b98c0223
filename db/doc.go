// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database schema creation.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

  - app_user: accounts with role and approval state
  - event_session: live events identified by a short code
  - session_access: collaborator/presenter grants per session
  - question: audience Q&A with moderation and broadcast flags
  - question_like: one like per (question, viewer identity)
  - poll / poll_option / poll_vote: audience polls
  - login_attempt: failure counters per (email, ip)
  - login_event: immutable login audit trail
  - device_session: auth sessions (single active per user)

# Relationships

	app_user 1──* event_session
	event_session 1──* question
	event_session 1──* poll
	question 1──* question_like
	poll 1──* poll_option
	poll 1──* poll_vote
	app_user 1──* device_session
	event_session *──* app_user (via session_access)

# Portability

The SQL runs unchanged on SQLite (dev/tests, modernc.org/sqlite) and
PostgreSQL (production, lib/pq). No NOW() defaults; callers bind
timestamps explicitly. Queries throughout the codebase use $N
placeholders, which both drivers accept.
*/
package db
