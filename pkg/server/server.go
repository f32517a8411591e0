package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/dittowopi/internal/logger"
)

// Config controls the HTTP listener.
type Config struct {
	// Port to listen on. Default: 5000
	Port int

	// ReadHeaderTimeout bounds slow-loris header reads. Default: 10s
	ReadHeaderTimeout time.Duration

	// ReadTimeout bounds reading a whole request, body included. PutFile
	// bodies can be large, so keep this generous. Default: 5m
	ReadTimeout time.Duration

	// WriteTimeout bounds writing a response. GetFile streams whole files.
	// Default: 5m
	WriteTimeout time.Duration

	// IdleTimeout for keep-alive connections. Default: 2m
	IdleTimeout time.Duration

	// ShutdownTimeout is how long in-flight requests get to finish after a
	// shutdown signal. Default: 30s
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	var c Config
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 5000
	}
	if c.ReadHeaderTimeout <= 0 {
		c.ReadHeaderTimeout = 10 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 5 * time.Minute
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Minute
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 2 * time.Minute
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

// WopiServer runs the bridge handler and its background tasks.
//
// Lifecycle:
//  1. Creation: New() with the bridge handler
//  2. Optional: AddBackground() for tasks like the token sweeper
//  3. Serve(): blocks until the context is cancelled or the listener fails
//  4. Shutdown: in-flight requests get ShutdownTimeout to complete, then
//     background tasks are cancelled and awaited
//
// Serve must only be called once.
type WopiServer struct {
	cfg        Config
	httpServer *http.Server
	background []func(ctx context.Context)

	mu   sync.Mutex
	addr net.Addr

	serveOnce sync.Once
}

// New creates a server for handler.
func New(cfg Config, handler http.Handler) *WopiServer {
	cfg.applyDefaults()

	return &WopiServer{
		cfg: cfg,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
	}
}

// AddBackground registers a task that runs for the lifetime of Serve. The
// task must return when its context is cancelled.
func (s *WopiServer) AddBackground(task func(ctx context.Context)) {
	s.background = append(s.background, task)
}

// Serve listens on the configured port and blocks until ctx is cancelled.
//
// Returns:
//   - nil on graceful shutdown
//   - error if the listener could not be opened or failed while serving
func (s *WopiServer) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener (tests use port 0).
func (s *WopiServer) ServeListener(ctx context.Context, ln net.Listener) error {
	called := false
	s.serveOnce.Do(func() { called = true })
	if !called {
		_ = ln.Close()
		return errors.New("server: Serve called more than once")
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	bgCtx, cancelBackground := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, task := range s.background {
		wg.Add(1)
		go func(task func(context.Context)) {
			defer wg.Done()
			task(bgCtx)
		}(task)
	}
	defer func() {
		cancelBackground()
		wg.Wait()
	}()

	errChan := make(chan error, 1)
	go func() {
		logger.Info("WOPI bridge listening on %s", ln.Addr())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, draining requests (timeout %s)", s.cfg.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Graceful shutdown incomplete: %v", err)
			_ = s.httpServer.Close()
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("WOPI bridge stopped gracefully")
		return nil

	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	}
}

// Addr returns the bound address once Serve has started, or nil.
func (s *WopiServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
