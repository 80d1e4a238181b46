// File: trustpay/database/store.go
package database

import (
	"context"
	"time"
)

// KVStore is the persistence seam every service depends on: string keys to
// string values. Absence is reported through the boolean, not an error.
type KVStore interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key with no expiry.
	Set(ctx context.Context, key, value string) error
	// SetTTL stores value under key, expiring after ttl.
	SetTTL(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error
}
