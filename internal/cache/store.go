// Package cache provides the durable key/value store used for resolution
// entries, feature records and the shared rate-limit state. The store is
// best effort: every consumer treats a store error as a cache miss, and
// the service runs unchanged with the no-op backend.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Store defines the capability interface for the durable cache.
type Store interface {
	// Get returns the raw value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes value under key with the given TTL.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// Delete removes key.
	Delete(ctx context.Context, key string) error
	// Close releases the underlying resources.
	Close() error
}

// GetJSON reads key and unmarshals it into dest. Returns false on miss.
func GetJSON(ctx context.Context, s Store, key string, dest interface{}) (bool, error) {
	raw, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals value and writes it under key with the given TTL.
func SetJSON(ctx context.Context, s Store, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, string(data), ttl)
}

// NoopStore is an always-miss store used when no cache backend is
// configured or the configured backend is unreachable.
type NoopStore struct{}

// NewNoopStore creates a new no-op store.
func NewNoopStore() *NoopStore {
	return &NoopStore{}
}

func (n *NoopStore) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, nil
}

func (n *NoopStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return nil
}

func (n *NoopStore) Delete(ctx context.Context, key string) error {
	return nil
}

func (n *NoopStore) Close() error {
	return nil
}
