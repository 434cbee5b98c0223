// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package sessionstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLStore keeps device sessions in the device_session table. Works on
// both SQLite and PostgreSQL; see the db package for the schema.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Register revokes all of the user's active sessions and inserts the new
// one in a single transaction, so two concurrent logins cannot both end
// up active.
func (s *SQLStore) Register(ctx context.Context, sess Session) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE device_session
		SET revoked_at = $1
		WHERE user_id = $2 AND revoked_at IS NULL
	`, sess.CreatedAt, sess.UserID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke prior sessions: %w", err)
	}

	kicked, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count kicked sessions: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO device_session (id, user_id, token_hash, device_info, ip_address, created_at, last_activity_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, sess.ID, sess.UserID, sess.TokenHash, sess.DeviceInfo, sess.IPAddress, sess.CreatedAt, sess.LastActivityAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit session registration: %w", err)
	}

	return int(kicked), nil
}

func (s *SQLStore) Touch(ctx context.Context, tokenHash string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE device_session
		SET last_activity_at = $1
		WHERE token_hash = $2 AND revoked_at IS NULL
	`, at, tokenHash)
	if err != nil {
		return false, fmt.Errorf("failed to touch session: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check touch result: %w", err)
	}
	return n > 0, nil
}

func (s *SQLStore) End(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE device_session
		SET revoked_at = $1
		WHERE token_hash = $2 AND revoked_at IS NULL
	`, time.Now(), tokenHash)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, tokenHash string) (*Session, error) {
	var sess Session
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, device_info, ip_address, created_at, last_activity_at, revoked_at
		FROM device_session
		WHERE token_hash = $1
	`, tokenHash).Scan(
		&sess.ID, &sess.UserID, &sess.TokenHash, &sess.DeviceInfo,
		&sess.IPAddress, &sess.CreatedAt, &sess.LastActivityAt, &sess.RevokedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return &sess, nil
}
