package ratelimiter

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name              string
		requestsPerSecond uint
		burst             uint
	}{
		{name: "standard rate", requestsPerSecond: 100, burst: 200},
		{name: "low rate", requestsPerSecond: 1, burst: 2},
		{name: "zero burst", requestsPerSecond: 5, burst: 0},
		{name: "unlimited (zero rate)", requestsPerSecond: 0, burst: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := New(tt.requestsPerSecond, tt.burst)
			require.NotNil(t, limiter)
			assert.True(t, limiter.Allow(), "first request must pass")
		})
	}
}

func TestAllow(t *testing.T) {
	limiter := New(10, 10)

	for i := 0; i < 10; i++ {
		require.True(t, limiter.Allow(), "request %d should be allowed (within burst)", i)
	}
	assert.False(t, limiter.Allow(), "request should be rate-limited after burst exhausted")

	// 100ms at 10 req/s = 1 token
	time.Sleep(110 * time.Millisecond)
	assert.True(t, limiter.Allow())
}

func TestWait(t *testing.T) {
	limiter := New(10, 1)
	require.True(t, limiter.Allow())

	start := time.Now()
	require.NoError(t, limiter.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestWaitCancelled(t *testing.T) {
	limiter := New(1, 1)
	require.True(t, limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, limiter.Wait(ctx))
}

func TestKeyed_PerKeyBuckets(t *testing.T) {
	k := NewKeyed(KeyedConfig{RequestsPerSecond: 1, Burst: 2})

	assert.True(t, k.Allow("10.0.0.1"))
	assert.True(t, k.Allow("10.0.0.1"))
	assert.False(t, k.Allow("10.0.0.1"))

	// Another client is unaffected.
	assert.True(t, k.Allow("10.0.0.2"))
	assert.Equal(t, 2, k.Len())
}

func TestKeyed_Disabled(t *testing.T) {
	k := NewKeyed(KeyedConfig{})
	assert.False(t, k.Enabled())
	for i := 0; i < 100; i++ {
		require.True(t, k.Allow("same"))
	}
	assert.Zero(t, k.Len())

	var nilLimiter *KeyedLimiter
	assert.True(t, nilLimiter.Allow("x"))
}

func TestKeyed_BoundedKeys(t *testing.T) {
	k := NewKeyed(KeyedConfig{RequestsPerSecond: 1, Burst: 1, MaxKeys: 3, IdleTimeout: time.Minute})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	k.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		k.Allow(fmt.Sprintf("client-%d", i))
		now = now.Add(time.Second)
	}
	require.Equal(t, 3, k.Len())

	// Full and nothing idle: the least recently seen key goes.
	k.Allow("client-3")
	assert.Equal(t, 3, k.Len())
	_, ok := k.buckets["client-0"]
	assert.False(t, ok)

	// Everything idle: all stale buckets are dropped.
	now = now.Add(2 * time.Minute)
	k.Allow("client-4")
	assert.Equal(t, 1, k.Len())
}
