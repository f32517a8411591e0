// Package memory implements an in-memory Storage Gateway.
//
// It is used by tests and by `storage.type: memory` for local experiments.
// Content is lost when the process exits.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/marmos91/dittowopi/pkg/storage"
)

type object struct {
	data    []byte
	modTime time.Time
}

// MemoryGateway implements storage.Gateway with a map guarded by a RWMutex.
//
// Modification times are strictly increasing per key at millisecond
// resolution: if the clock has not moved to a later millisecond since the
// previous write, the new time is bumped to the next one. The WOPI Version
// is derived from UnixMilli, so every overwrite yields a new Version.
type MemoryGateway struct {
	mu      sync.RWMutex
	objects map[storage.Key]*object
	now     func() time.Time
}

// Option configures a MemoryGateway.
type Option func(*MemoryGateway)

// WithClock overrides the time source used for modification times.
func WithClock(now func() time.Time) Option {
	return func(g *MemoryGateway) { g.now = now }
}

// NewMemoryGateway creates an empty gateway.
func NewMemoryGateway(opts ...Option) *MemoryGateway {
	g := &MemoryGateway{
		objects: make(map[storage.Key]*object),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *MemoryGateway) Head(ctx context.Context, key storage.Key) (*storage.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	obj, ok := g.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, storage.ErrNotFound)
	}

	return &storage.ObjectInfo{Size: int64(len(obj.data)), ModifiedAt: obj.modTime}, nil
}

// GetContent returns a reader over a snapshot of the object. Later writes do
// not affect a reader that is already open.
func (g *MemoryGateway) GetContent(ctx context.Context, key storage.Key) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	obj, ok := g.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, storage.ErrNotFound)
	}

	// Objects are replaced, never mutated, so the slice can be shared.
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// PutContent reads the whole body before swapping it in, so a failing body
// leaves the previous object untouched.
func (g *MemoryGateway) PutContent(ctx context.Context, key storage.Key, body io.Reader, contentLength int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := key.Validate(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if contentLength > 0 {
		buf.Grow(int(contentLength))
	}
	if _, err := io.Copy(&buf, body); err != nil {
		return fmt.Errorf("read body for %s: %w", key, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	modTime := g.now()
	if prev, ok := g.objects[key]; ok && modTime.UnixMilli() <= prev.modTime.UnixMilli() {
		modTime = prev.modTime.Truncate(time.Millisecond).Add(time.Millisecond)
	}

	g.objects[key] = &object{data: buf.Bytes(), modTime: modTime}
	return nil
}

// Healthcheck always succeeds.
func (g *MemoryGateway) Healthcheck(ctx context.Context) error {
	return ctx.Err()
}

// Len returns the number of stored objects.
func (g *MemoryGateway) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.objects)
}
