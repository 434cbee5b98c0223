// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Storage persists small key/value pairs across restarts. Implemented
// by MemoryStorage for tests and FileStorage for real deployments.
type Storage interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// ErrKeyNotFound is returned by Storage.Get for missing keys.
var ErrKeyNotFound = errors.New("key not found")

const deviceUUIDKey = "device_uuid"

// DeviceUUID returns the stable anonymous identity for this install,
// creating and persisting one on first use.
func DeviceUUID(s Storage) (string, error) {
	existing, err := s.Get(deviceUUIDKey)
	if err == nil && existing != "" {
		return existing, nil
	}
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		return "", fmt.Errorf("failed to read device uuid: %w", err)
	}

	id := uuid.NewString()
	if err := s.Set(deviceUUIDKey, id); err != nil {
		return "", fmt.Errorf("failed to persist device uuid: %w", err)
	}
	return id, nil
}

// MemoryStorage keeps values in memory only.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// FileStorage writes one file per key under a directory.
type FileStorage struct {
	dir string
}

func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &FileStorage{dir: dir}, nil
}

func (f *FileStorage) path(key string) string {
	// Keys are internal names, but keep them filesystem-safe anyway
	safe := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, key)
	return filepath.Join(f.dir, safe)
}

func (f *FileStorage) Get(key string) (string, error) {
	data, err := os.ReadFile(f.path(key))
	if os.IsNotExist(err) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (f *FileStorage) Set(key, value string) error {
	return os.WriteFile(f.path(key), []byte(value), 0o600)
}
