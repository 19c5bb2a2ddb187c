// Package tokenstore is an expiring key/value store holding JSON values.
//
// A value that cannot be decoded is reported as a miss, not as an error.
package tokenstore

import (
	"context"
	"time"
)

type Store interface {
	// Set overwrites key. A zero ttl stores the value without expiry.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Get decodes the value into dest and reports whether it was found.
	Get(ctx context.Context, key string, dest any) (bool, error)
	// Expire resets the expiry of an existing key; false when the key is absent.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) (int64, error)
}
