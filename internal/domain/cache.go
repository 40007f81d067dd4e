package domain

import (
	"context"
	"time"
)

// Cache defines the probability memo store shared by all concurrent
// decision requests. Implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetProbability retrieves a memoized delay probability percentage
	// for a journey fingerprint. ok is false on miss or expiry.
	GetProbability(ctx context.Context, fingerprint string) (pct float64, ok bool, err error)

	// SetProbability memoizes a delay probability percentage.
	SetProbability(ctx context.Context, fingerprint string, pct float64, ttl time.Duration) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
