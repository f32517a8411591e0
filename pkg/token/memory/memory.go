// Package memory provides an in-process token registry.
//
// Tokens live in a map for O(1) resolution and in an issue-ordered list for
// O(1) least-recently-issued eviction. Nothing survives a restart.
package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/marmos91/dittowopi/pkg/storage"
	"github.com/marmos91/dittowopi/pkg/token"
)

type entry struct {
	token     token.Token
	key       storage.Key
	expiresAt time.Time
	elem      *list.Element
}

// MemoryRegistry is a bounded, TTL-aware token registry.
//
// Thread Safety:
// Resolve takes a read lock; Issue, Revoke and SweepExpired take the write
// lock. Expired entries are invisible to Resolve immediately and are
// physically removed by SweepExpired or by eviction.
type MemoryRegistry struct {
	mu      sync.RWMutex
	entries map[token.Token]*entry
	order   *list.List // front = oldest issued
	opts    token.Options
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry(opts token.Options) *MemoryRegistry {
	return &MemoryRegistry{
		entries: make(map[token.Token]*entry),
		order:   list.New(),
		opts:    opts.WithDefaults(),
	}
}

// Issue mints a token for key, evicting the oldest tokens if the registry
// is full.
func (r *MemoryRegistry) Issue(ctx context.Context, key storage.Key) (token.Token, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tok, err := token.GenerateUnique(r.opts.Rand, func(t token.Token) bool {
		_, ok := r.entries[t]
		return ok
	})
	if err != nil {
		return "", err
	}

	if r.opts.MaxEntries > 0 {
		for len(r.entries) >= r.opts.MaxEntries {
			r.removeLocked(r.order.Front().Value.(*entry))
		}
	}

	e := &entry{
		token:     tok,
		key:       key,
		expiresAt: r.opts.ExpiresAt(r.opts.Now()),
	}
	e.elem = r.order.PushBack(e)
	r.entries[tok] = e

	return tok, nil
}

// Resolve returns the key bound to tok.
func (r *MemoryRegistry) Resolve(ctx context.Context, tok token.Token) (storage.Key, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[tok]
	if !ok || token.Expired(e.expiresAt, r.opts.Now()) {
		return "", token.ErrNotFound
	}
	return e.key, nil
}

// Revoke removes tok. Expired tokens report token.ErrNotFound, as in Resolve.
func (r *MemoryRegistry) Revoke(ctx context.Context, tok token.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[tok]
	if !ok || token.Expired(e.expiresAt, r.opts.Now()) {
		return token.ErrNotFound
	}
	r.removeLocked(e)
	return nil
}

// SweepExpired removes every expired entry.
func (r *MemoryRegistry) SweepExpired(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.opts.Now()
	removed := 0
	for el := r.order.Front(); el != nil; {
		next := el.Next()
		e := el.Value.(*entry)
		if token.Expired(e.expiresAt, now) {
			r.removeLocked(e)
			removed++
		}
		el = next
	}
	return removed, nil
}

// Len returns the number of stored entries.
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Close is a no-op.
func (r *MemoryRegistry) Close() error { return nil }

func (r *MemoryRegistry) removeLocked(e *entry) {
	r.order.Remove(e.elem)
	delete(r.entries, e.token)
}
