package bridge

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/dittowopi/pkg/storage"
	"github.com/marmos91/dittowopi/pkg/token"
)

// extractToken returns the presented token. The Authorization header wins
// over the access_token query parameter; a "Bearer " prefix is optional.
func extractToken(r *http.Request) token.Token {
	if hdr := strings.TrimSpace(r.Header.Get("Authorization")); hdr != "" {
		if len(hdr) > 7 && strings.EqualFold(hdr[:7], "bearer ") {
			hdr = strings.TrimSpace(hdr[7:])
		}
		return token.Token(hdr)
	}
	return token.Token(r.URL.Query().Get("access_token"))
}

// authorize gates every /wopi/files/{fileId} route.
//
// Step 1: a token must be present (401 "missing token").
// Step 2: {fileId} is percent-decoded once into the declared key.
// Step 3: the authorizer resolves the key the token grants; anything it
// rejects is 401 "invalid or expired token", whatever the reason.
// Step 4: the resolved key is bound to the request context.
func (h *Handler) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := extractToken(r)
		if tok == "" {
			writeError(w, http.StatusUnauthorized, msgMissingToken)
			return
		}

		declared, err := url.PathUnescape(chi.URLParam(r, "fileId"))
		if err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidFileID)
			return
		}
		if err := storage.Key(declared).Validate(); err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidFileID)
			return
		}

		key, err := h.auth.Authorize(r.Context(), tok, storage.Key(declared))
		if err != nil {
			if token.IsUnauthorized(err) {
				requestLog(r).Debug("Rejected token for %q: %v", declared, err)
				writeError(w, http.StatusUnauthorized, msgInvalidToken)
				return
			}
			requestLog(r).Error("Token lookup failed: %v", err)
			writeError(w, http.StatusInternalServerError, msgInternal)
			return
		}

		ctx := context.WithValue(r.Context(), storageKeyKey, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// KeyFromContext returns the storage key authorized for the request.
func KeyFromContext(ctx context.Context) (storage.Key, bool) {
	key, ok := ctx.Value(storageKeyKey).(storage.Key)
	return key, ok
}

// mustKey fetches the authorized key; handlers only run behind authorize.
func mustKey(r *http.Request) storage.Key {
	key, ok := KeyFromContext(r.Context())
	if !ok {
		panic("bridge: handler reached without an authorized key")
	}
	return key
}
