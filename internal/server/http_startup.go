package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"resumeguard/internal/observability"
	"resumeguard/internal/scan"
)

const (
	// rulesReloadDebounce coalesces the burst of events an editor save produces
	rulesReloadDebounce = 500 * time.Millisecond
	shutdownTimeout     = 30 * time.Second
)

// Start runs the server until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	om, err := s.initializeObservability()
	if err != nil {
		return err
	}
	defer s.shutdownObservability(om)

	if err := s.initializeScanService(om); err != nil {
		return err
	}
	defer s.closeScanService()

	// Create the HTTP server and attach TLS before binding
	httpServer := s.setupHTTPServer()
	if err := s.configureTLS(httpServer); err != nil {
		return err
	}

	s.writeServerInfo(os.Stdout)

	return s.serve(ctx, httpServer)
}

// initializeObservability sets up observability components
func (s *Server) initializeObservability() (*observability.ObservabilityManager, error) {
	obsConfig := observability.GetObservabilityConfig(s.AppConfig, s.Version)

	om, err := observability.NewObservabilityManager(obsConfig, s.AppConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	s.Observability = om

	return om, nil
}

// initializeScanService compiles the rules and starts watching the rules file
func (s *Server) initializeScanService(om *observability.ObservabilityManager) error {
	if s.Service == nil {
		service, err := scan.NewService(s.AppConfig, om, s.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize scan service: %w", err)
		}
		s.Service = service
	}

	if err := s.Service.WatchRules(s.AppConfig.Detection.RulesFile, rulesReloadDebounce); err != nil {
		return fmt.Errorf("failed to watch detection rules: %w", err)
	}
	return nil
}

func (s *Server) closeScanService() {
	if err := s.Service.Close(); err != nil {
		s.Logger.LogError(err, "Failed to stop rules watcher")
	}
}

// shutdownObservability handles observability cleanup
func (s *Server) shutdownObservability(om *observability.ObservabilityManager) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := om.Shutdown(ctx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown observability")
	}
}

// setupHTTPServer creates and configures the HTTP server
func (s *Server) setupHTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.Host, s.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
		IdleTimeout:  s.IdleTimeout,
	}
}

// serve binds the listener up front so a busy port fails Start, then serves until
// ctx is cancelled or the server stops on its own
func (s *Server) serve(ctx context.Context, server *http.Server) error {
	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}

	s.Logger.Info("Starting HTTP server",
		"address", listener.Addr().String(),
		"tls_enabled", server.TLSConfig != nil)

	serverErrors := make(chan error, 1)
	go func() {
		if server.TLSConfig != nil {
			// Certificates are already in TLSConfig
			serverErrors <- server.ServeTLS(listener, "", "")
			return
		}
		serverErrors <- server.Serve(listener)
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
		s.Logger.Info("Shutdown requested, draining connections", "cause", context.Cause(ctx))
		return s.performGracefulShutdown(server)
	}
}

// performGracefulShutdown handles the graceful shutdown process
func (s *Server) performGracefulShutdown(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop the limiter eviction goroutine first
	s.cleanupRateLimiter()

	if err := server.Shutdown(shutdownCtx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		return server.Close()
	}

	s.Logger.Info("Server shutdown completed")
	return nil
}

// cleanupRateLimiter cleans up the rate limiter resources
func (s *Server) cleanupRateLimiter() {
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
		s.Logger.Info("Rate limiter cleaned up")
	}
}
