package domain

import (
	"context"
	"time"
)

// CounterStore keeps fixed-window request counters for rate limiting.
// Supports a bounded in-memory store (Community) or Redis (Pro).
type CounterStore interface {
	// IncrementCounter atomically increments a counter and returns the new value.
	// The counter resets once window has elapsed since its first increment.
	IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// LimiterConfig holds configuration for the rate limiter.
type LimiterConfig struct {
	// Type is the store type: "memory" or "redis"
	Type string

	// RequestsPerMin is the per tenant and client budget; 0 disables limiting
	RequestsPerMin int

	// In-memory store settings (Community tier)
	LocalMaxKeys int

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}
