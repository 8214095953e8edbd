// Package cache provides the byte-oriented TTL store behind recommendation
// response caching. Two implementations exist: Redis for deployments and an
// in-memory map for tests and single-node setups.
package cache

import (
	"context"
	"time"
)

// Store is a TTL key-value store. A miss is not an error: Get returns
// found=false. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
