// Package storage defines the string-keyed snapshot store used for carts,
// catalog caches, accounts and receipts. Values are JSON text.
package storage

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned by Get when no value is stored under the key.
var ErrNotFound = errors.New("key not found")

// Store is a durable or session-scoped key-value store.
type Store interface {
	// Get returns the raw value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set overwrites the value stored under key.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}

// GetJSON loads key and decodes it into v. A decode failure is returned
// wrapped as *DecodeError so callers can tell corrupt data from an outage.
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &DecodeError{Key: key, Err: err}
	}
	return nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %q", key)
	}
	return s.Set(ctx, key, raw)
}

// DecodeError indicates a stored value that could not be decoded.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return "decode " + e.Key + ": " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }
