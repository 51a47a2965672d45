// Package kv provides the string-keyed persistence used by the notification
// index. The index treats this as dumb storage: values are opaque blobs, and
// a missing key is an expected condition, not an error.
package kv

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get for keys that were never written or
// have been deleted.
var ErrKeyNotFound = errors.New("kv: key not found")

// Store is a minimal string-keyed blob store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys returns all keys matching a glob-style pattern (e.g. "prefix_*").
	Keys(ctx context.Context, pattern string) ([]string, error)
}
