package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/dittowopi/internal/logger"
)

const (
	defaultPort         = 9090
	metricsDrainTimeout = 5 * time.Second
)

// ServerConfig configures the scrape listener.
type ServerConfig struct {
	// Port defaults to 9090.
	Port int
}

// Server exposes the process registry on its own port, apart from the WOPI
// listener, so scrapes never share the bridge's rate limits or timeouts.
type Server struct {
	httpServer *http.Server
	port       int
	stopOnce   sync.Once
	stopErr    error
}

// NewServer builds a stopped scrape server. GET /metrics serves the registry
// installed by InitRegistry, or 503 when none is installed.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Port <= 0 {
		cfg.Port = defaultPort
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           scrapeRouter(GetRegistry() != nil),
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
		},
		port: cfg.Port,
	}
}

func scrapeRouter(enabled bool) http.Handler {
	r := chi.NewRouter()

	if enabled {
		r.Handle("/metrics", promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{EnableOpenMetrics: true}))
	} else {
		r.Get("/metrics", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics collection is disabled", http.StatusServiceUnavailable)
		})
	}

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = fmt.Fprintln(w, "dittowopi metrics: scrape /metrics")
	})

	return r
}

// Handler returns the scrape router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start binds the port and serves until ctx is cancelled, then drains for up
// to five seconds. A bind failure is returned immediately.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("metrics server: listen on %s: %w", s.httpServer.Addr, err)
	}
	logger.Info("Metrics server listening on %s", ln.Addr())

	served := make(chan error, 1)
	go func() { served <- s.httpServer.Serve(ln) }()

	select {
	case <-ctx.Done():
		drainCtx, cancel := context.WithTimeout(context.Background(), metricsDrainTimeout)
		defer cancel()
		return s.Stop(drainCtx)
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}

// Stop shuts the listener down. Only the first call does any work; later
// calls return its result.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.stopErr = fmt.Errorf("metrics server: shutdown: %w", err)
			logger.Warn("Metrics server shutdown incomplete: %v", err)
			return
		}
		logger.Debug("Metrics server stopped")
	})
	return s.stopErr
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}
