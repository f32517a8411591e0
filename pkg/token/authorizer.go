package token

import (
	"context"
	"fmt"
	"strings"

	"github.com/marmos91/dittowopi/pkg/storage"
)

// Authorizer turns a presented token into the storage key the request may
// operate on.
type Authorizer interface {
	// Grant issues a token for key.
	Grant(ctx context.Context, key storage.Key) (Token, error)

	// Authorize validates tok for a request that names declared in its path
	// and returns the key the request is allowed to use.
	Authorize(ctx context.Context, tok Token, declared storage.Key) (storage.Key, error)

	// Revoke invalidates tok.
	Revoke(ctx context.Context, tok Token) error

	// Mode names the strategy ("stateful" or "stateless") for logging.
	Mode() string
}

// ============================================================================
// Stateful
// ============================================================================

// Stateful resolves every token through a Registry. The key bound at
// issuance is the only key the token can reach.
type Stateful struct {
	registry Registry
}

// NewStateful creates an authorizer backed by reg.
func NewStateful(reg Registry) *Stateful {
	return &Stateful{registry: reg}
}

func (s *Stateful) Grant(ctx context.Context, key storage.Key) (Token, error) {
	return s.registry.Issue(ctx, key)
}

// Authorize resolves tok. If the request path names a different key than the
// bound one the token is treated as invalid for this request.
func (s *Stateful) Authorize(ctx context.Context, tok Token, declared storage.Key) (storage.Key, error) {
	key, err := s.registry.Resolve(ctx, tok)
	if err != nil {
		return "", err
	}
	if declared != "" && declared != key {
		return "", fmt.Errorf("token bound to another key: %w", ErrKeyMismatch)
	}
	return key, nil
}

func (s *Stateful) Revoke(ctx context.Context, tok Token) error {
	return s.registry.Revoke(ctx, tok)
}

func (s *Stateful) Mode() string { return "stateful" }

// Registry exposes the underlying registry (for sweeping and metrics).
func (s *Stateful) Registry() Registry { return s.registry }

// ============================================================================
// Stateless
// ============================================================================

// Stateless accepts any token that contains a fixed marker and trusts the
// key named by the caller.
//
// WARNING: this provides no access control at all. Anyone who knows the
// marker can read and overwrite any key. It exists for local testing against
// an editor and is only constructed when explicitly enabled in config.
type Stateless struct {
	marker string
}

// NewStateless creates a marker-based authorizer. The marker must be
// non-empty, otherwise every token would be accepted.
func NewStateless(marker string) (*Stateless, error) {
	if marker == "" {
		return nil, fmt.Errorf("stateless marker must not be empty")
	}
	return &Stateless{marker: marker}, nil
}

// IsAccepted reports whether tok contains the marker.
func (s *Stateless) IsAccepted(tok Token) bool {
	return strings.Contains(string(tok), s.marker)
}

// Grant returns the marker itself; nothing is stored.
func (s *Stateless) Grant(ctx context.Context, key storage.Key) (Token, error) {
	return Token(s.marker), nil
}

func (s *Stateless) Authorize(ctx context.Context, tok Token, declared storage.Key) (storage.Key, error) {
	if !s.IsAccepted(tok) {
		return "", ErrRejected
	}
	if declared == "" {
		return "", fmt.Errorf("stateless mode requires a declared key: %w", ErrRejected)
	}
	return declared, nil
}

func (s *Stateless) Revoke(ctx context.Context, tok Token) error {
	return fmt.Errorf("stateless tokens cannot be revoked: %w", ErrNotSupported)
}

func (s *Stateless) Mode() string { return "stateless" }
