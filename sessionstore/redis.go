// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package sessionstore

import (
	"context"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps device sessions in Redis hashes, one per token hash,
// with a per-user set for the kick scan. Kicked sessions are deleted
// outright; a missing hash and a revoked session look the same to the
// client, which only needs "no longer valid".
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func sessionKey(tokenHash string) string { return "devsess:" + tokenHash }
func userKey(userID string) string       { return "devsess:user:" + userID }

// redisSession is the hash representation; timestamps are RFC 3339
// strings because Redis hash values are strings.
type redisSession struct {
	ID             string `mapstructure:"id"`
	UserID         string `mapstructure:"user_id"`
	TokenHash      string `mapstructure:"token_hash"`
	DeviceInfo     string `mapstructure:"device_info"`
	IPAddress      string `mapstructure:"ip_address"`
	CreatedAt      string `mapstructure:"created_at"`
	LastActivityAt string `mapstructure:"last_activity_at"`
}

// NewRedisStore creates a store whose sessions expire after ttl of
// inactivity (each Touch renews the TTL). ttl <= 0 disables expiry.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Register(ctx context.Context, sess Session) (int, error) {
	// Kick: delete every session currently registered for the user
	members, err := s.rdb.SMembers(ctx, userKey(sess.UserID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list user sessions: %w", err)
	}

	kicked := 0
	for _, m := range members {
		n, err := s.rdb.Del(ctx, sessionKey(m)).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to kick session: %w", err)
		}
		kicked += int(n)
	}
	if len(members) > 0 {
		if err := s.rdb.Del(ctx, userKey(sess.UserID)).Err(); err != nil {
			return 0, fmt.Errorf("failed to clear user session set: %w", err)
		}
	}

	fields := map[string]interface{}{
		"id":               sess.ID,
		"user_id":          sess.UserID,
		"token_hash":       sess.TokenHash,
		"device_info":      sess.DeviceInfo,
		"ip_address":       sess.IPAddress,
		"created_at":       sess.CreatedAt.Format(time.RFC3339Nano),
		"last_activity_at": sess.LastActivityAt.Format(time.RFC3339Nano),
	}
	if err := s.rdb.HSet(ctx, sessionKey(sess.TokenHash), fields).Err(); err != nil {
		return 0, fmt.Errorf("failed to store session: %w", err)
	}
	if err := s.rdb.SAdd(ctx, userKey(sess.UserID), sess.TokenHash).Err(); err != nil {
		return 0, fmt.Errorf("failed to index session: %w", err)
	}
	s.expire(ctx, sess.TokenHash, sess.UserID)

	return kicked, nil
}

func (s *RedisStore) Touch(ctx context.Context, tokenHash string, at time.Time) (bool, error) {
	exists, err := s.rdb.Exists(ctx, sessionKey(tokenHash)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	if exists == 0 {
		return false, nil
	}

	err = s.rdb.HSet(ctx, sessionKey(tokenHash), "last_activity_at", at.Format(time.RFC3339Nano)).Err()
	if err != nil {
		return false, fmt.Errorf("failed to touch session: %w", err)
	}

	sess, err := s.Get(ctx, tokenHash)
	if err == nil {
		s.expire(ctx, tokenHash, sess.UserID)
	}
	return true, nil
}

func (s *RedisStore) End(ctx context.Context, tokenHash string) error {
	sess, err := s.Get(ctx, tokenHash)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.rdb.Del(ctx, sessionKey(tokenHash)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if err := s.rdb.SRem(ctx, userKey(sess.UserID), tokenHash).Err(); err != nil {
		return fmt.Errorf("failed to unindex session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, tokenHash string) (*Session, error) {
	data, err := s.rdb.HGetAll(ctx, sessionKey(tokenHash)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}

	var raw redisSession
	if err := mapstructure.Decode(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode session hash: %w", err)
	}

	sess := Session{
		ID:         raw.ID,
		UserID:     raw.UserID,
		TokenHash:  raw.TokenHash,
		DeviceInfo: raw.DeviceInfo,
		IPAddress:  raw.IPAddress,
	}
	if sess.CreatedAt, err = time.Parse(time.RFC3339Nano, raw.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse session created_at: %w", err)
	}
	if sess.LastActivityAt, err = time.Parse(time.RFC3339Nano, raw.LastActivityAt); err != nil {
		return nil, fmt.Errorf("failed to parse session last_activity_at: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) expire(ctx context.Context, tokenHash, userID string) {
	if s.ttl <= 0 {
		return
	}
	s.rdb.Expire(ctx, sessionKey(tokenHash), s.ttl)
	s.rdb.Expire(ctx, userKey(userID), s.ttl)
}
