// Package server runs an http.Handler with graceful shutdown.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

// Server wraps http.Server with graceful shutdown support.
type Server struct {
	httpServer   *http.Server
	drainTimeout time.Duration
	logger       *slog.Logger
	closers      []namedCloser
	ready        chan net.Addr
}

type namedCloser struct {
	name string
	c    io.Closer
}

// Config holds server configuration.
type Config struct {
	Addr         string // listen address, e.g. ":9000"
	Handler      http.Handler
	DrainTimeout time.Duration // max time to wait for in-flight requests
	Logger       *slog.Logger
}

// New creates a server with graceful shutdown support.
func New(cfg Config) *Server {
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           cfg.Handler,
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          slog.NewLogLogger(cfg.Logger.Handler(), slog.LevelWarn),
		},
		drainTimeout: cfg.DrainTimeout,
		logger:       cfg.Logger,
		ready:        make(chan net.Addr, 1),
	}
}

// RegisterCloser adds a resource to close after the server drains.
// Resources close in reverse registration order.
func (s *Server) RegisterCloser(name string, c io.Closer) {
	s.closers = append(s.closers, namedCloser{name: name, c: c})
}

// Ready delivers the bound address once the listener is up.
func (s *Server) Ready() <-chan net.Addr { return s.ready }

// ListenAndServe serves until SIGTERM or SIGINT, then shuts down.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	return s.Serve(ctx)
}

// Serve blocks until ctx is done or the server fails.
//
// Shutdown sequence:
//  1. Stop accepting new connections
//  2. Wait for in-flight requests to finish (up to the drain timeout)
//  3. Close registered resources
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.closeResources()
		return err
	}
	s.logger.Info("server starting", "addr", ln.Addr().String())
	s.ready <- ln.Addr()

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.closeResources()
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown requested", "cause", context.Cause(ctx))
	}

	s.logger.Info("draining connections", "timeout", s.drainTimeout.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.drainTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown error, forcing close", "error", err)
		s.httpServer.Close()
	}

	s.closeResources()
	s.logger.Info("shutdown complete")
	return nil
}

func (s *Server) closeResources() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		nc := s.closers[i]
		if err := nc.c.Close(); err != nil {
			s.logger.Warn("error closing resource", "resource", nc.name, "error", err)
		}
	}
}
