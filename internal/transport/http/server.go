// Package httptransport builds and runs the service's HTTP server.
package httptransport

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// ServerConfig contains tunables for the HTTP server.
type ServerConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server wraps *http.Server with run/shutdown plumbing.
type Server struct {
	inner *http.Server
}

// NewServer creates a Server with the provided handler.
func NewServer(cfg ServerConfig, handler http.Handler) *Server {
	return &Server{
		inner: &http.Server{
			Addr:         cfg.Address,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Run serves until the listener fails or Shutdown is called. A clean shutdown
// returns nil.
func (s *Server) Run() error {
	err := s.inner.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
