// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Domain Types

  - EventSession: a scheduled live event identified by a short code
  - Question: audience Q&A item with moderation and broadcast flags
  - Poll, PollOption: multiple-choice audience polls
  - User: account with role and approval state
  - LoginAttempt: failure counter per (email, ip) for lockout
  - LoginEvent: immutable login audit record

# Invariants carried by these types

  - Question.LikesCount never goes below zero
  - At most one Question per session has IsBroadcasting set
  - A Question broadcasts only while IsDisplayed and approved/answered
  - Anonymous questions carry no AuthorName
  - Question content is at most MaxContentLen (500) characters

The database layer enforces these; the types only mirror them.

# Sorting

SortQuestions orders a question list by one of three modes. The popular
mode's four-key composite ordering (LessPopular) is a hard contract:
pinned desc, highlighted desc, likes desc, created_at desc.

# Constants

Session status: scheduled, active, ended.
Question status: pending, approved, answered, rejected.
Poll status: draft, open, closed.
Login failure reasons: invalid_password, user_not_found,
email_not_confirmed, account_disabled, too_many_requests, unknown_error.
*/
package models
