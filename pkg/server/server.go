// Package server wires the proxy handler into an HTTP server with
// graceful shutdown and an optional metrics endpoint.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Godwin-T/blue-green-deployment/pkg/config"
	"github.com/Godwin-T/blue-green-deployment/pkg/proxy"
	"github.com/Godwin-T/blue-green-deployment/pkg/telemetry/metrics"
)

// Server is the failover proxy's HTTP front end.
type Server struct {
	cfg     *config.ProxyConfig
	handler *proxy.Handler
	metrics *metrics.ProxyMetrics
	metCfg  *config.MetricsConfig

	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a proxy server. m may be nil when metrics are disabled.
func NewServer(cfg *config.ProxyConfig, metCfg *config.MetricsConfig, handler *proxy.Handler, m *metrics.ProxyMetrics) *Server {
	return &Server{
		cfg:     cfg,
		handler: handler,
		metrics: m,
		metCfg:  metCfg,
	}
}

// Handler returns the configured HTTP handler, for tests that want to
// drive the server through httptest.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:           s.cfg.ListenAddress,
		Handler:        s.setupRoutes(),
		ReadTimeout:    s.cfg.ReadTimeout.Std(),
		WriteTimeout:   s.cfg.WriteTimeout.Std(),
		IdleTimeout:    s.cfg.IdleTimeout.Std(),
		MaxHeaderBytes: s.cfg.MaxHeaderBytes,
	}

	tlsConfig, err := s.cfg.TLS.ToTLSConfig()
	if err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}
	s.httpServer.TLSConfig = tlsConfig

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting proxy server", "address", s.cfg.ListenAddress, "tls", tlsConfig != nil)
		var err error
		if tlsConfig != nil {
			err = s.httpServer.ListenAndServeTLS("", "")
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server, letting in-flight requests
// complete within the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		slog.Info("initiating graceful shutdown", "timeout", s.cfg.ShutdownTimeout.Std().String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout.Std())
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("proxy server stopped")
	})

	return shutdownErr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// setupRoutes mounts the metrics endpoint (when enabled) ahead of the
// proxy handler, which owns every other route including the health path.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	if s.metrics != nil && s.metCfg.MetricsEnabled() {
		mux.Handle(s.metCfg.Path, s.metrics.Handler())
	}
	mux.Handle("/", s.handler)

	return mux
}
