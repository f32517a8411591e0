package bridge

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/marmos91/dittowopi/pkg/storage"
	"github.com/marmos91/dittowopi/pkg/token"
)

// AccessResponse is returned by the access-grant endpoint.
type AccessResponse struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

// handleGrantAccess serves GET /access?path=<key>.
//
// This endpoint is unauthenticated: whoever can reach it can obtain a token
// for any key. Deployments must put it behind their own authentication.
func (h *Handler) handleGrantAccess(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow(clientAddr(r)) {
		h.metrics.RecordRateLimited(opGrantAccess)
		writeError(w, http.StatusTooManyRequests, msgRateLimited)
		return
	}

	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, msgMissingPath)
		return
	}
	key := storage.Key(path)
	if err := key.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidPath)
		return
	}

	tok, err := h.auth.Grant(r.Context(), key)
	if err != nil {
		requestLog(r).Error("Failed to grant access to %q: %v", key, err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if h.auth.Mode() == "stateful" {
		h.metrics.RecordTokenIssued()
	}

	requestLog(r).Debug("Granted access to %q", key)
	writeJSON(w, http.StatusOK, AccessResponse{
		URL:   h.launchURL(key, tok),
		Token: string(tok),
	})
}

// handleRevokeAccess serves DELETE /access. The token to revoke is taken
// from the request exactly like on protocol calls.
func (h *Handler) handleRevokeAccess(w http.ResponseWriter, r *http.Request) {
	tok := extractToken(r)
	if tok == "" {
		writeError(w, http.StatusUnauthorized, msgMissingToken)
		return
	}

	err := h.auth.Revoke(r.Context(), tok)
	switch {
	case err == nil:
		h.metrics.RecordTokenRevoked()
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, token.ErrNotSupported):
		writeError(w, http.StatusBadRequest, msgNoRevoke)
	case token.IsUnauthorized(err):
		writeError(w, http.StatusUnauthorized, msgInvalidToken)
	default:
		requestLog(r).Error("Failed to revoke token: %v", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}

// launchURL builds the editor URL for key:
//
//	<editor><launch path>?WOPISrc=<host>/wopi/files/<path-escaped key>&access_token=<token>
//
// The key is path-escaped into WOPISrc (so "/" becomes %2F) and WOPISrc as
// a whole is then query-escaped.
func (h *Handler) launchURL(key storage.Key, tok token.Token) string {
	src := strings.TrimRight(h.cfg.HostURL, "/") + "/wopi/files/" + url.PathEscape(string(key))

	q := url.Values{}
	q.Set("WOPISrc", src)
	q.Set("access_token", string(tok))

	return strings.TrimRight(h.cfg.EditorURL, "/") + h.cfg.LaunchPath + "?" + q.Encode()
}

// clientAddr is the rate-limit key: the remote host without port.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
