// Package bridge implements the WOPI protocol bridge: the HTTP handlers that
// translate host-application file calls into storage gateway operations,
// gated by access tokens that scope every request to a single key.
//
// Routes:
//
//	GET    /                               banner
//	GET    /healthz                        gateway/registry health
//	GET    /access?path=<key>              grant a token and launch URL
//	DELETE /access                         revoke the presented token
//	GET    /wopi/files/{fileId}            CheckFileInfo
//	GET    /wopi/files/{fileId}/contents   GetFile
//	POST   /wopi/files/{fileId}/contents   PutFile
//
// {fileId} is the percent-encoded storage key. It is decoded exactly once,
// so "reports%2Fq1.xlsx" addresses the key "reports/q1.xlsx".
package bridge

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/dittowopi/internal/logger"
	"github.com/marmos91/dittowopi/internal/ratelimiter"
	"github.com/marmos91/dittowopi/pkg/metrics"
	"github.com/marmos91/dittowopi/pkg/storage"
	"github.com/marmos91/dittowopi/pkg/token"
)

const (
	// DefaultContentType is served by GetFile. The backend stores no content
	// type, so one fixed value is configured for every file.
	DefaultContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// DefaultMaxBodySize caps PutFile bodies.
	DefaultMaxBodySize = 50 << 20 // 50 MiB

	// DefaultLaunchPath is the editor page that consumes WOPISrc.
	DefaultLaunchPath = "/loleaflet/dist/loleaflet.html"

	DefaultOwnerID = "admin"
	DefaultUserID  = "user1"
)

// Config configures the bridge.
type Config struct {
	// HostURL is the externally reachable base URL of this bridge, used to
	// build WOPISrc (e.g. "https://wopi.example.com").
	HostURL string

	// EditorURL is the base URL of the editor front end.
	EditorURL string

	// LaunchPath is appended to EditorURL. Default: DefaultLaunchPath
	LaunchPath string

	// ContentType served by GetFile. Default: DefaultContentType
	ContentType string

	// MaxBodySize is the largest accepted PutFile body. Default: DefaultMaxBodySize
	MaxBodySize int64

	// OwnerID and UserID are the placeholder identities in CheckFileInfo.
	OwnerID string
	UserID  string

	// TrustProxyHeaders makes the client address come from
	// X-Forwarded-For / X-Real-IP (rate limiting, logs).
	TrustProxyHeaders bool

	// CORS policy.
	CORS CORSConfig
}

func (c *Config) applyDefaults() {
	if c.LaunchPath == "" {
		c.LaunchPath = DefaultLaunchPath
	}
	if c.ContentType == "" {
		c.ContentType = DefaultContentType
	}
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = DefaultMaxBodySize
	}
	if c.OwnerID == "" {
		c.OwnerID = DefaultOwnerID
	}
	if c.UserID == "" {
		c.UserID = DefaultUserID
	}
	c.CORS.applyDefaults()
}

func (c *Config) validate() error {
	for name, raw := range map[string]string{"host url": c.HostURL, "editor url": c.EditorURL} {
		if raw == "" {
			return fmt.Errorf("bridge: %s is required", name)
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("bridge: %s %q must be an absolute URL", name, raw)
		}
	}
	return nil
}

// Handler is the bridge's http.Handler.
type Handler struct {
	cfg     Config
	gateway storage.Gateway
	auth    token.Authorizer
	metrics metrics.BridgeMetrics
	limiter *ratelimiter.KeyedLimiter
	router  chi.Router
}

// Option customizes a Handler.
type Option func(*Handler)

// WithMetrics sets the metrics sink. nil keeps the no-op default.
func WithMetrics(m metrics.BridgeMetrics) Option {
	return func(h *Handler) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithAccessRateLimit throttles /access per client address.
func WithAccessRateLimit(l *ratelimiter.KeyedLimiter) Option {
	return func(h *Handler) { h.limiter = l }
}

// New builds the bridge.
//
// Parameters:
//   - cfg: URLs, limits and CORS policy
//   - gateway: storage backend for file operations
//   - auth: token strategy (stateful registry or stateless marker)
//
// Returns an error if required URLs are missing or malformed.
func New(cfg Config, gateway storage.Gateway, auth token.Authorizer, opts ...Option) (*Handler, error) {
	if gateway == nil {
		return nil, fmt.Errorf("bridge: gateway is required")
	}
	if auth == nil {
		return nil, fmt.Errorf("bridge: authorizer is required")
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	h := &Handler{
		cfg:     cfg,
		gateway: gateway,
		auth:    auth,
		metrics: metrics.NewNoopBridgeMetrics(),
	}
	for _, opt := range opts {
		opt(h)
	}

	if s, ok := auth.(*token.Stateful); ok {
		h.metrics.ObserveLiveTokens(s.Registry().Len)
	}

	h.router = h.routes()

	logger.Info("WOPI bridge ready: mode=%s host=%s editor=%s max_body=%d",
		auth.Mode(), cfg.HostURL, cfg.EditorURL, cfg.MaxBodySize)
	return h, nil
}

// ServeHTTP dispatches to the router.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// healthTimeout bounds each dependency check behind /healthz.
const healthTimeout = 5 * time.Second
