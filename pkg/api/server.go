package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/marmos91/cdapd/internal/logger"
	"github.com/marmos91/cdapd/pkg/cdap"
	"github.com/marmos91/cdapd/pkg/config"
	"github.com/marmos91/cdapd/pkg/rib"
)

// Server provides the management HTTP server.
//
// The server supports graceful shutdown: Start blocks until the context is
// cancelled, then drains in-flight requests.
type Server struct {
	server *http.Server
	config config.ControlPlaneConfig
}

// NewServer creates the API server in a stopped state; call Start to serve.
func NewServer(cfg config.ControlPlaneConfig, mgr *cdap.SessionManager,
	daemon *rib.Daemon, instanceID string) *Server {

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      NewRouter(mgr, daemon, instanceID),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		config: cfg,
	}
}

// Start serves the API until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("control plane API listening", "port", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("control plane API: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("control plane API shutdown: %w", err)
	}
	return nil
}
