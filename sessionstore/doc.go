// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package sessionstore is the device-session registry behind the
single-active-session policy.

# Policy

Registering a session for a user revokes every other active session of
that user ("kick") and reports how many were kicked. The decision and
execution are entirely server-side; clients only observe that a token
stopped being valid on their next heartbeat.

# Implementations

SQLStore uses the device_session table (SQLite or PostgreSQL) and keeps
revoked rows for audit. RedisStore uses one hash per session plus a
per-user set, deletes on kick, and renews a TTL on every Touch.

The server picks one at startup: Redis when REDIS_URI is configured,
SQL otherwise. Handlers only see the Store interface.

# Usage

	kicked, err := store.Register(ctx, sessionstore.Session{...})
	ok, err := store.Touch(ctx, auth.HashToken(token), time.Now())
	err = store.End(ctx, auth.HashToken(token))
*/
package sessionstore
