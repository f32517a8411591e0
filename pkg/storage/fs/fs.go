// Package fs implements a Storage Gateway on the local filesystem.
//
// Keys are mapped to paths below a root directory. Writes go to a temporary
// file in the destination directory and are renamed into place, so readers
// never observe a partially written object.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"syscall"
	"time"

	"github.com/marmos91/dittowopi/pkg/storage"
)

// tempPattern names in-flight uploads. They live next to their destination so
// the final rename never crosses a filesystem boundary.
const tempPattern = ".dittowopi-upload-*"

// FSGateway implements storage.Gateway using the local filesystem.
//
// Thread Safety:
// Safe for concurrent use. Concurrent puts to the same key are
// last-rename-wins.
type FSGateway struct {
	basePath string
	metrics  storage.Metrics
}

// NewFSGateway creates a filesystem gateway rooted at basePath, creating the
// directory (0755) if it does not exist.
//
// Parameters:
//   - ctx: Context for cancellation
//   - basePath: Root directory for stored objects
//   - metrics: Optional metrics sink (nil disables collection)
func NewFSGateway(ctx context.Context, basePath string, metrics storage.Metrics) (*FSGateway, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if basePath == "" {
		return nil, fmt.Errorf("base path is required")
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	if metrics == nil {
		metrics = storage.NoopMetrics()
	}

	return &FSGateway{basePath: basePath, metrics: metrics}, nil
}

// getFilePath resolves key below the base path. Keys that are absolute, not
// in canonical form, or climb out of the root with ".." are rejected, so two
// distinct keys never name the same file.
func (g *FSGateway) getFilePath(key storage.Key) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}

	if path.Clean(string(key)) != string(key) {
		return "", fmt.Errorf("key %q is not canonical: %w", string(key), storage.ErrInvalidKey)
	}

	rel := filepath.FromSlash(string(key))
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("key %q escapes storage root: %w", string(key), storage.ErrInvalidKey)
	}

	return filepath.Join(g.basePath, rel), nil
}

// classify maps filesystem errors onto the storage taxonomy.
func classify(op string, key storage.Key, err error) error {
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return fmt.Errorf("fs %s %s: %w", op, key, storage.ErrNotFound)
	}
	return fmt.Errorf("fs %s %s: %w: %w", op, key, storage.ErrBackend, err)
}

func (g *FSGateway) Head(ctx context.Context, key storage.Key) (info *storage.ObjectInfo, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := g.getFilePath(key)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { g.metrics.ObserveOperation("head", time.Since(start), err) }()

	fi, err := os.Stat(path)
	if err != nil {
		return nil, classify("head", key, err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("fs head %s: is a directory: %w", key, storage.ErrNotFound)
	}

	return &storage.ObjectInfo{Size: fi.Size(), ModifiedAt: fi.ModTime()}, nil
}

func (g *FSGateway) GetContent(ctx context.Context, key storage.Key) (rc io.ReadCloser, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := g.getFilePath(key)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { g.metrics.ObserveOperation("get", time.Since(start), err) }()

	f, err := os.Open(path)
	if err != nil {
		return nil, classify("get", key, err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, classify("get", key, err)
	}
	if fi.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("fs get %s: is a directory: %w", key, storage.ErrNotFound)
	}

	return storage.MeteredReader(f, g.metrics, "get"), nil
}

// PutContent writes body to a temporary file, syncs it and renames it over
// the destination. The new modification time is kept at least one
// millisecond past the one it replaces.
func (g *FSGateway) PutContent(ctx context.Context, key storage.Key, body io.Reader, contentLength int64) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := g.getFilePath(key)
	if err != nil {
		return err
	}

	var prevModTime time.Time
	if fi, statErr := os.Stat(path); statErr == nil && !fi.IsDir() {
		prevModTime = fi.ModTime()
	}

	start := time.Now()
	var written int64
	defer func() {
		g.metrics.ObserveOperation("put", time.Since(start), err)
		if err == nil {
			g.metrics.RecordBytes("put", written)
		}
	}()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return classify("put", key, err)
	}

	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return classify("put", key, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	written, err = io.Copy(tmp, body)
	if err != nil {
		return fmt.Errorf("fs put %s: copy body: %w", key, err)
	}
	if contentLength >= 0 && written != contentLength {
		return fmt.Errorf("fs put %s: wrote %d bytes, expected %d: %w", key, written, contentLength, storage.ErrBackend)
	}
	if err = tmp.Sync(); err != nil {
		return classify("put", key, err)
	}
	if err = tmp.Close(); err != nil {
		return classify("put", key, err)
	}
	if err = os.Chmod(tmpName, 0644); err != nil {
		return classify("put", key, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return classify("put", key, err)
	}

	return advanceModTime(path, key, prevModTime)
}

// advanceModTime bumps the mtime of path to the millisecond after prev when
// the filesystem clock did not move past it.
func advanceModTime(path string, key storage.Key, prev time.Time) error {
	if prev.IsZero() {
		return nil
	}

	fi, err := os.Stat(path)
	if err != nil {
		return classify("put", key, err)
	}
	if fi.ModTime().UnixMilli() > prev.UnixMilli() {
		return nil
	}

	next := prev.Truncate(time.Millisecond).Add(time.Millisecond)
	if err := os.Chtimes(path, next, next); err != nil {
		return classify("put", key, err)
	}
	return nil
}

// Healthcheck verifies the root directory is still present.
func (g *FSGateway) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fi, err := os.Stat(g.basePath)
	if err != nil {
		return fmt.Errorf("fs root %s: %w: %w", g.basePath, storage.ErrUnavailable, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("fs root %s is not a directory: %w", g.basePath, storage.ErrBackend)
	}
	return nil
}
