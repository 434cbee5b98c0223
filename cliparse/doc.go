// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

A .env file in the working directory is loaded first (godotenv); real
environment variables and CLI flags both override it.

# Config Fields

  - Port: Server listen port (default: 3410)
  - DatabaseURL: Connection string (required)
  - DatabaseType: sqlite or postgres (default: sqlite)
  - RedisURI: Optional Redis address for realtime/session fan-out
  - JWTSecret: Session token signing secret (required)
  - IPHashSalt: Salt for privacy-preserving IP hashing (required)
  - LockoutThreshold / LockoutBaseWindow / LockoutMaxWindow: login
    lockout policy (defaults: 5 failures, 1 minute base, 15 minute cap)
  - AnsweredVisible: whether answered questions stay in the audience
    list (default: true)

# CLI Flags

	-p                 Server port
	-d                 Database URL
	-t                 Database type
	-redis             Redis address
	-jwt-secret        Token signing secret
	-ip-salt           IP hashing salt
	-lockout-threshold Failures before lockout
	-lockout-base      Base lockout window (seconds)
	-lockout-max       Max lockout window (seconds)
	-answered-visible  true/false

# Environment Variables

	PORT, DATABASE_URL, DATABASE_TYPE, REDIS_URI, JWT_SECRET,
	IP_HASH_SALT, LOCKOUT_THRESHOLD, LOCKOUT_BASE_SECONDS,
	LOCKOUT_MAX_SECONDS, ANSWERED_VISIBLE

CLI flags take precedence over environment variables.

# Validation

ParseFlags returns an error if required values are missing:

  - DATABASE_URL must be provided
  - JWT_SECRET must be provided
  - IP_HASH_SALT must be provided
*/
package cliparse
