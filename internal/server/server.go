package server

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pageza/alchemorsel-v2/search/config"
)

// shutdownTimeout bounds how long in-flight searches may finish on stop.
const shutdownTimeout = 10 * time.Second

// Server represents the HTTP server
type Server struct {
	handler http.Handler
	http    *http.Server
}

// New creates a server serving handler on the configured host and port.
func New(cfg *config.Config, handler http.Handler) *Server {
	// Write timeout covers the search timeout plus encoding
	writeTimeout := cfg.RequestTimeout + 5*time.Second
	return &Server{
		handler: handler,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.ServerHost, cfg.ServerPort),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	errCh := make(chan error, 1)

	// Start server in a goroutine
	go func() {
		log.Printf("Search API listening on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Printf("Received %s, shutting down", sig)
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Stop(ctx)
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
