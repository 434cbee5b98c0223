// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides authentication and token generation utilities.

# Session Tokens

Device-session tokens are HS256 JWTs carrying the user id (subject) and
the device_session row id:

	token, err := auth.GenerateSessionToken(userID, sessionID, secret)
	userID, sessionID, err := auth.ParseSessionToken(token, secret)

A valid signature alone does not make a session valid: the server also
checks the session store for revocation, which is how a login on a second
device kicks the first.

Only a SHA-256 hash of the token is stored:

	key := auth.HashToken(token)

# Passwords

bcrypt at default cost:

	hash, err := auth.HashPassword(password)
	ok := auth.CheckPassword(hash, password)

# Session Codes

Short human-enterable codes for live events:

	code, err := auth.GenerateSessionCode()

Codes are 6 base62 characters, random (not derived), so they can be typed
from a projected slide.

# ID Generation

Random hex IDs for database records:

	id, err := auth.GenerateID(16)  // 32 hex characters

# IP Hashing

For privacy-preserving audit records:

	hash := auth.HashIP(ipAddress, salt)

Returns first 8 bytes (16 hex chars) of HMAC-SHA256.

# User-Agent Fingerprinting

Coarse browser/OS/device-class classification for login audit events:

	fp := auth.ParseUserAgent(r.UserAgent())
*/
package auth
