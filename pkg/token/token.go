// Package token implements the Access Token Registry: opaque bearer tokens
// that scope a caller to exactly one storage key.
//
// Registries (memory, badger) own the token lifecycle: Issue, Resolve,
// Revoke and SweepExpired. Authorizers sit on top and decide how a request's
// token is turned into the key it may touch.
package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/marmos91/dittowopi/pkg/storage"
)

// Token is an opaque bearer credential.
type Token string

// tokenBytes is the amount of entropy per token (256 bits).
const tokenBytes = 32

var (
	// ErrNotFound indicates the token was never issued, was revoked, has
	// expired or was evicted. Callers must not distinguish these cases.
	ErrNotFound = errors.New("token not found")

	// ErrRejected indicates a token failed the stateless acceptance check.
	ErrRejected = errors.New("token rejected")

	// ErrKeyMismatch indicates a valid token was presented for a different
	// key than the one it is bound to.
	ErrKeyMismatch = errors.New("token not valid for this key")

	// ErrNotSupported indicates the authorizer does not implement the
	// requested operation.
	ErrNotSupported = errors.New("operation not supported")
)

// IsUnauthorized reports whether err means the caller must be answered with
// 401 rather than a server error.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrRejected) || errors.Is(err, ErrKeyMismatch)
}

// Generate draws a token from r. A nil reader means crypto/rand.
//
// The encoding is base64url without padding, so tokens are 43 characters
// and safe in query strings and headers.
func Generate(r io.Reader) (Token, error) {
	if r == nil {
		r = rand.Reader
	}

	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("failed to read token entropy: %w", err)
	}

	return Token(base64.RawURLEncoding.EncodeToString(buf)), nil
}

// Registry maps tokens to the storage key they were issued for.
//
// Implementations must be safe for concurrent use: Issue, Revoke and
// SweepExpired may run concurrently with any number of Resolve calls.
type Registry interface {
	// Issue mints a new token bound to key.
	Issue(ctx context.Context, key storage.Key) (Token, error)

	// Resolve returns the key bound to tok, or ErrNotFound.
	Resolve(ctx context.Context, tok Token) (storage.Key, error)

	// Revoke removes tok. Revoking an unknown token returns ErrNotFound.
	Revoke(ctx context.Context, tok Token) error

	// SweepExpired removes expired tokens and returns how many were removed.
	SweepExpired(ctx context.Context) (int, error)

	// Len returns the number of stored tokens, including expired ones that
	// have not been swept yet.
	Len() int

	// Close releases resources held by the registry.
	Close() error
}

// Options are shared by all registry implementations.
type Options struct {
	// TTL is the lifetime of a token from issuance. 0 means no expiry.
	TTL time.Duration

	// MaxEntries caps the number of stored tokens. When the cap is reached
	// the least recently issued token is evicted. 0 means unbounded.
	MaxEntries int

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time

	// Rand is the entropy source. Defaults to crypto/rand.Reader. Tests
	// may supply a seeded deterministic reader.
	Rand io.Reader
}

// WithDefaults returns a copy of o with zero-valued hooks filled in.
func (o Options) WithDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Rand == nil {
		o.Rand = rand.Reader
	}
	return o
}

// ExpiresAt returns the expiry for a token issued at issuedAt, or the zero
// time if tokens never expire.
func (o Options) ExpiresAt(issuedAt time.Time) time.Time {
	if o.TTL <= 0 {
		return time.Time{}
	}
	return issuedAt.Add(o.TTL)
}

// Expired reports whether expiresAt has passed at now.
func Expired(expiresAt, now time.Time) bool {
	return !expiresAt.IsZero() && !now.Before(expiresAt)
}

// maxGenerateAttempts bounds retries on the (astronomically unlikely) event
// of a collision with a live token.
const maxGenerateAttempts = 3

// GenerateUnique draws tokens from r until exists reports false.
func GenerateUnique(r io.Reader, exists func(Token) bool) (Token, error) {
	for i := 0; i < maxGenerateAttempts; i++ {
		tok, err := Generate(r)
		if err != nil {
			return "", err
		}
		if !exists(tok) {
			return tok, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique token after %d attempts", maxGenerateAttempts)
}
