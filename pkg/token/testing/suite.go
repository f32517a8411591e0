// Package testing provides a reusable conformance suite for token registries.
package testing

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittowopi/pkg/storage"
	"github.com/marmos91/dittowopi/pkg/token"
)

// Clock is a manually advanced clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock frozen at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// SeededReader returns a deterministic entropy source.
func SeededReader(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// RegistryTestSuite exercises the Registry contract.
type RegistryTestSuite struct {
	// NewRegistry builds a fresh, empty registry for each subtest.
	NewRegistry func(t *testing.T, opts token.Options) token.Registry
}

// Run executes all subtests.
func (s *RegistryTestSuite) Run(t *testing.T) {
	t.Run("IssueResolve", s.testIssueResolve)
	t.Run("TokensAreUnique", s.testTokensAreUnique)
	t.Run("UnknownToken", s.testUnknownToken)
	t.Run("Revoke", s.testRevoke)
	t.Run("TTLExpiry", s.testTTLExpiry)
	t.Run("RevokeExpired", s.testRevokeExpired)
	t.Run("SweepExpired", s.testSweepExpired)
	t.Run("EvictsLeastRecentlyIssued", s.testEviction)
	t.Run("ConcurrentIssueResolve", s.testConcurrent)
}

func (s *RegistryTestSuite) newRegistry(t *testing.T, opts token.Options) token.Registry {
	t.Helper()
	reg := s.NewRegistry(t, opts)
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

func (s *RegistryTestSuite) testIssueResolve(t *testing.T) {
	ctx := context.Background()
	reg := s.newRegistry(t, token.Options{})

	tok, err := reg.Issue(ctx, "reports/q1.xlsx")
	require.NoError(t, err)
	assert.Len(t, string(tok), 43)

	key, err := reg.Resolve(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, storage.Key("reports/q1.xlsx"), key)
	assert.Equal(t, 1, reg.Len())
}

func (s *RegistryTestSuite) testTokensAreUnique(t *testing.T) {
	ctx := context.Background()
	reg := s.newRegistry(t, token.Options{Rand: SeededReader(42)})

	seen := make(map[token.Token]bool)
	for i := 0; i < 500; i++ {
		tok, err := reg.Issue(ctx, "same.xlsx")
		require.NoError(t, err)
		require.False(t, seen[tok], "duplicate token %q", tok)
		seen[tok] = true
	}
	assert.Equal(t, 500, reg.Len())
}

func (s *RegistryTestSuite) testUnknownToken(t *testing.T) {
	reg := s.newRegistry(t, token.Options{})

	_, err := reg.Resolve(context.Background(), "never-issued")
	assert.ErrorIs(t, err, token.ErrNotFound)
}

func (s *RegistryTestSuite) testRevoke(t *testing.T) {
	ctx := context.Background()
	reg := s.newRegistry(t, token.Options{})

	tok, err := reg.Issue(ctx, "a.xlsx")
	require.NoError(t, err)

	require.NoError(t, reg.Revoke(ctx, tok))
	_, err = reg.Resolve(ctx, tok)
	assert.ErrorIs(t, err, token.ErrNotFound)
	assert.Equal(t, 0, reg.Len())

	assert.ErrorIs(t, reg.Revoke(ctx, tok), token.ErrNotFound)
}

func (s *RegistryTestSuite) testTTLExpiry(t *testing.T) {
	ctx := context.Background()
	clock := NewClock()
	reg := s.newRegistry(t, token.Options{TTL: time.Hour, Now: clock.Now})

	tok, err := reg.Issue(ctx, "a.xlsx")
	require.NoError(t, err)

	clock.Advance(59 * time.Minute)
	_, err = reg.Resolve(ctx, tok)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = reg.Resolve(ctx, tok)
	assert.ErrorIs(t, err, token.ErrNotFound)
}

func (s *RegistryTestSuite) testRevokeExpired(t *testing.T) {
	ctx := context.Background()
	clock := NewClock()
	reg := s.newRegistry(t, token.Options{TTL: time.Hour, Now: clock.Now})

	tok, err := reg.Issue(ctx, "a.xlsx")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	assert.ErrorIs(t, reg.Revoke(ctx, tok), token.ErrNotFound)

	removed, err := reg.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Zero(t, reg.Len())
}

func (s *RegistryTestSuite) testSweepExpired(t *testing.T) {
	ctx := context.Background()
	clock := NewClock()
	reg := s.newRegistry(t, token.Options{TTL: time.Hour, Now: clock.Now})

	for i := 0; i < 3; i++ {
		_, err := reg.Issue(ctx, storage.Key(fmt.Sprintf("old-%d.xlsx", i)))
		require.NoError(t, err)
	}
	clock.Advance(30 * time.Minute)
	fresh, err := reg.Issue(ctx, "fresh.xlsx")
	require.NoError(t, err)

	clock.Advance(45 * time.Minute)
	removed, err := reg.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.Equal(t, 1, reg.Len())

	key, err := reg.Resolve(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, storage.Key("fresh.xlsx"), key)

	removed, err = reg.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func (s *RegistryTestSuite) testEviction(t *testing.T) {
	ctx := context.Background()
	clock := NewClock()
	reg := s.newRegistry(t, token.Options{MaxEntries: 3, Now: clock.Now})

	toks := make([]token.Token, 5)
	for i := range toks {
		clock.Advance(time.Second)
		tok, err := reg.Issue(ctx, storage.Key(fmt.Sprintf("f%d.xlsx", i)))
		require.NoError(t, err)
		toks[i] = tok
	}

	assert.Equal(t, 3, reg.Len())
	for _, tok := range toks[:2] {
		_, err := reg.Resolve(ctx, tok)
		assert.ErrorIs(t, err, token.ErrNotFound)
	}
	for i, tok := range toks[2:] {
		key, err := reg.Resolve(ctx, tok)
		require.NoError(t, err)
		assert.Equal(t, storage.Key(fmt.Sprintf("f%d.xlsx", i+2)), key)
	}
}

func (s *RegistryTestSuite) testConcurrent(t *testing.T) {
	ctx := context.Background()
	reg := s.newRegistry(t, token.Options{})

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				key := storage.Key(fmt.Sprintf("w%d/%d.xlsx", w, i))
				tok, err := reg.Issue(ctx, key)
				if err != nil {
					errs <- err
					return
				}
				got, err := reg.Resolve(ctx, tok)
				if err != nil {
					errs <- err
					return
				}
				if got != key {
					errs <- fmt.Errorf("resolved %q, want %q", got, key)
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, 16*20, reg.Len())
}
