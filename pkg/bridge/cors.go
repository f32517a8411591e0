package bridge

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSConfig is the cross-origin policy applied to every route.
type CORSConfig struct {
	// AllowedOrigins lists origins allowed to call the bridge. "*" allows any.
	// Empty disables CORS headers entirely.
	AllowedOrigins []string

	// AllowedMethods for preflight responses.
	AllowedMethods []string

	// AllowedHeaders for preflight responses.
	AllowedHeaders []string

	// MaxAge lets browsers cache preflight results.
	MaxAge time.Duration
}

var (
	defaultCORSMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	defaultCORSHeaders = []string{"Content-Type", "Authorization", "X-WOPI-Lock", "X-WOPI-OldLock"}
)

func (c *CORSConfig) applyDefaults() {
	if len(c.AllowedMethods) == 0 {
		c.AllowedMethods = defaultCORSMethods
	}
	if len(c.AllowedHeaders) == 0 {
		c.AllowedHeaders = defaultCORSHeaders
	}
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" if the origin is not allowed.
func (c *CORSConfig) allowOrigin(origin string) string {
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return "*"
		}
		if strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

// cors sets CORS headers and answers preflight requests directly.
func (h *Handler) cors(next http.Handler) http.Handler {
	c := h.cfg.CORS
	methods := strings.Join(c.AllowedMethods, ", ")
	headers := strings.Join(c.AllowedHeaders, ", ")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" || len(c.AllowedOrigins) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		allow := c.allowOrigin(origin)
		if allow == "" {
			next.ServeHTTP(w, r)
			return
		}

		hdr := w.Header()
		hdr.Set("Access-Control-Allow-Origin", allow)
		if allow != "*" {
			hdr.Add("Vary", "Origin")
		}
		hdr.Set("Access-Control-Expose-Headers", "X-Request-Id")

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			hdr.Set("Access-Control-Allow-Methods", methods)
			hdr.Set("Access-Control-Allow-Headers", headers)
			if c.MaxAge > 0 {
				hdr.Set("Access-Control-Max-Age", strconv.Itoa(int(c.MaxAge.Seconds())))
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
