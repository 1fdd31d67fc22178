package providers

import (
	"context"
	"errors"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// CacheProvider is a byte-oriented key/value cache with per-key TTLs.
type CacheProvider interface {
	Get(ctx context.Context, key string) ([]byte, error)

	// GetMulti returns the keys that were present; misses are simply absent.
	GetMulti(ctx context.Context, keys []string) (map[string][]byte, error)

	Set(ctx context.Context, key string, value []byte, expirationSeconds int) error

	Delete(ctx context.Context, key string) error
}
