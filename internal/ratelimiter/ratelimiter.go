package ratelimiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// unlimited stands in for rate.Inf, which has edge cases with burst handling.
const unlimited = 1_000_000_000

// RateLimiter provides request rate limiting using the token bucket algorithm.
//
// This wraps golang.org/x/time/rate. Tokens are added to the bucket at a
// constant rate; each request consumes one; burst is the bucket capacity.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter with the given sustained rate and burst.
//
// Special cases:
//   - requestsPerSecond = 0: No rate limiting (unlimited)
//   - burst = 0: treated as 1 so at least one request can pass
func New(requestsPerSecond, burst uint) *RateLimiter {
	if requestsPerSecond == 0 {
		requestsPerSecond = unlimited
		burst = requestsPerSecond
	}
	if burst == 0 {
		burst = 1
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst)),
	}
}

// Allow reports whether a request may proceed now, consuming a token if so.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Tokens returns the current number of available tokens (monitoring only).
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}

// KeyedLimiter keeps one token bucket per client key (typically the remote
// address), so a single noisy client cannot exhaust the budget of others.
//
// The number of tracked keys is bounded: when MaxKeys is reached, buckets idle
// for longer than IdleTimeout are dropped, and if that frees nothing the
// least recently seen bucket is dropped.
type KeyedLimiter struct {
	requestsPerSecond uint
	burst             uint
	maxKeys           int
	idleTimeout       time.Duration
	now               func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	limiter  *RateLimiter
	lastSeen time.Time
}

// KeyedConfig configures a KeyedLimiter.
type KeyedConfig struct {
	// RequestsPerSecond per key. 0 disables limiting.
	RequestsPerSecond uint

	// Burst per key.
	Burst uint

	// MaxKeys bounds memory. Default: 10000
	MaxKeys int

	// IdleTimeout after which an unused bucket may be dropped. Default: 10m
	IdleTimeout time.Duration
}

// NewKeyed creates a per-key limiter.
func NewKeyed(cfg KeyedConfig) *KeyedLimiter {
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = 10000
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 10 * time.Minute
	}
	return &KeyedLimiter{
		requestsPerSecond: cfg.RequestsPerSecond,
		burst:             cfg.Burst,
		maxKeys:           cfg.MaxKeys,
		idleTimeout:       cfg.IdleTimeout,
		now:               time.Now,
		buckets:           make(map[string]*bucket),
	}
}

// Enabled reports whether any limiting is applied.
func (k *KeyedLimiter) Enabled() bool {
	return k != nil && k.requestsPerSecond > 0
}

// Allow reports whether a request from key may proceed.
func (k *KeyedLimiter) Allow(key string) bool {
	if !k.Enabled() {
		return true
	}

	k.mu.Lock()
	now := k.now()
	b, ok := k.buckets[key]
	if !ok {
		if len(k.buckets) >= k.maxKeys {
			k.pruneLocked(now)
		}
		b = &bucket{limiter: New(k.requestsPerSecond, k.burst)}
		k.buckets[key] = b
	}
	b.lastSeen = now
	k.mu.Unlock()

	return b.limiter.Allow()
}

// Len returns the number of tracked keys.
func (k *KeyedLimiter) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}

func (k *KeyedLimiter) pruneLocked(now time.Time) {
	var (
		oldestKey  string
		oldestSeen time.Time
	)
	for key, b := range k.buckets {
		if now.Sub(b.lastSeen) > k.idleTimeout {
			delete(k.buckets, key)
			continue
		}
		if oldestKey == "" || b.lastSeen.Before(oldestSeen) {
			oldestKey, oldestSeen = key, b.lastSeen
		}
	}
	if len(k.buckets) >= k.maxKeys && oldestKey != "" {
		delete(k.buckets, oldestKey)
	}
}
