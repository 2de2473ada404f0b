// Package limiter provides fixed-window rate limiting for the HTTP API.
package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/harpia/internal/domain"
)

// NewStore creates a counter store based on configuration.
func NewStore(cfg domain.LimiterConfig) (domain.CounterStore, error) {
	switch cfg.Type {
	case "memory", "":
		return NewMemoryStore(cfg.LocalMaxKeys), nil
	case "redis":
		return NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unsupported limiter type: %s", cfg.Type)
	}
}

// Limiter allows a fixed number of requests per client per window.
type Limiter struct {
	store  domain.CounterStore
	limit  int
	window time.Duration
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// RetryAfter is the window length when the request was rejected.
	RetryAfter time.Duration
}

// New creates a limiter allowing requestsPerMin requests per minute.
// A limit of zero or less disables limiting.
func New(store domain.CounterStore, requestsPerMin int) *Limiter {
	return &Limiter{
		store:  store,
		limit:  requestsPerMin,
		window: time.Minute,
	}
}

// Enabled reports whether requests are limited at all.
func (l *Limiter) Enabled() bool {
	return l != nil && l.store != nil && l.limit > 0
}

// Allow counts a request for clientKey within a tenant.
// Store errors are returned with an allowing decision.
func (l *Limiter) Allow(ctx context.Context, tenantID, clientKey string) (Decision, error) {
	if !l.Enabled() {
		return Decision{Allowed: true}, nil
	}

	count, err := l.store.IncrementCounter(ctx, tenantID, clientKey, l.window)
	if err != nil {
		return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit}, err
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		return Decision{Allowed: false, Limit: l.limit, RetryAfter: l.window}, nil
	}
	return Decision{Allowed: true, Limit: l.limit, Remaining: remaining}, nil
}
