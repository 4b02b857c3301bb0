// Package kv is the durable key-value layer shared by the job store and the
// profile cache. Callers keep their records in distinct key namespaces
// ("job:", "user:") of a single Store.
package kv

import (
	"context"
	"time"
)

// Store is a byte-oriented key-value store.
//
// Get reports a missing key with ok=false and a nil error; err is reserved for
// I/O or connectivity failures.
type Store interface {
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte) error
	SetWithExpiry(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Close() error
}
