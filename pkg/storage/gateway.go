// Package storage defines the Storage Gateway: a thin capability for reading,
// writing and stat-ing whole objects by key. Implementations live in the s3,
// fs and memory subpackages and carry no knowledge of the WOPI protocol.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Key identifies an object in the backend. It is typically a slash separated
// path such as "reports/q1.xlsx". Keys are opaque to the gateway except for
// the validation performed by Validate.
type Key string

// BaseName returns the last slash separated segment of the key.
//
// Example:
//
//	Key("reports/q1.xlsx").BaseName() // "q1.xlsx"
//	Key("demo.xlsx").BaseName()       // "demo.xlsx"
func (k Key) BaseName() string {
	s := string(k)
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Validate checks that the key can be used with any backend.
func (k Key) Validate() error {
	if k == "" {
		return fmt.Errorf("empty key: %w", ErrInvalidKey)
	}
	if strings.IndexByte(string(k), 0) >= 0 {
		return fmt.Errorf("key %q contains NUL: %w", string(k), ErrInvalidKey)
	}
	return nil
}

// ObjectInfo holds the attributes the backend reports for an object.
type ObjectInfo struct {
	// Size is the object length in bytes.
	Size int64

	// ModifiedAt is the backend's last modification time. The bridge derives
	// the WOPI Version from it, so it must change on every overwrite.
	ModifiedAt time.Time
}

// Gateway is the Storage Gateway contract.
//
// Every method may fail with an error wrapping ErrNotFound, ErrUnavailable,
// ErrBackend or ErrInvalidKey. Implementations must be safe for concurrent
// use; concurrent writes to the same key are last-write-wins.
type Gateway interface {
	// Head returns size and modification time without transferring content.
	Head(ctx context.Context, key Key) (*ObjectInfo, error)

	// GetContent returns a stream over the object bytes. The content is not
	// buffered by the gateway. The caller must close the returned reader.
	GetContent(ctx context.Context, key Key) (io.ReadCloser, error)

	// PutContent replaces the whole object at key. Readers never observe a
	// partially written object.
	PutContent(ctx context.Context, key Key, body io.Reader, contentLength int64) error
}

// HealthChecker is implemented by gateways that can verify backend
// reachability. It is optional.
type HealthChecker interface {
	Healthcheck(ctx context.Context) error
}
