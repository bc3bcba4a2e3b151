package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"firestige.xyz/warts/internal/log"
)

// Server is the HTTP server for Prometheus metrics.
type Server struct {
	addr   string
	path   string
	server *http.Server
	ln     net.Listener
}

// NewServer creates a new metrics server.
func NewServer(addr, path string) *Server {
	if path == "" {
		path = "/metrics"
	}
	return &Server{
		addr: addr,
		path: path,
	}
}

// Start binds the listen address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("metrics server listen on %s: %w", s.addr, err)
	}
	s.ln = ln

	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.Handler())

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.GetLogger().WithFields(map[string]interface{}{
		"addr": ln.Addr().String(),
		"path": s.path,
	}).Info("starting metrics server")

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.GetLogger().WithError(err).Error("metrics server error")
		}
	}()

	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

// Stop gracefully stops the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	log.GetLogger().Info("stopping metrics server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown failed: %w", err)
	}
	return nil
}
