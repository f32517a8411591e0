package storage

import "errors"

// ============================================================================
// Standard Gateway Errors
// ============================================================================

// These errors provide a consistent way to indicate common failure conditions
// across all gateway implementations. The protocol bridge checks for them with
// errors.Is and maps them to HTTP status codes.
//
// Implementations should wrap these errors with additional context:
//
//	if !exists {
//	    return fmt.Errorf("object %s: %w", key, storage.ErrNotFound)
//	}

var (
	// ErrNotFound indicates the backend has no object for the requested key.
	//
	// Protocol Mapping:
	//   - HTTP: 404 Not Found
	ErrNotFound = errors.New("object not found")

	// ErrUnavailable indicates the backend could not be reached or did not
	// answer in time (network failure, timeout, throttling, 5xx).
	//
	// This is a transient error - retrying may succeed.
	//
	// Protocol Mapping:
	//   - HTTP: 500 Internal Server Error (detail is never sent to the caller)
	ErrUnavailable = errors.New("storage backend unavailable")

	// ErrBackend indicates any other backend failure (access denied, malformed
	// response, misconfiguration).
	//
	// Protocol Mapping:
	//   - HTTP: 500 Internal Server Error (detail is never sent to the caller)
	ErrBackend = errors.New("storage backend error")

	// ErrInvalidKey indicates the key cannot address an object on this backend
	// (empty, contains NUL, or escapes the filesystem root).
	//
	// Protocol Mapping:
	//   - HTTP: 400 Bad Request
	ErrInvalidKey = errors.New("invalid storage key")
)
