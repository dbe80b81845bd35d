package adminapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/scrapeforge/crawlcore/internal/logger"
)

// Server hosts the admin API over HTTP, with graceful shutdown.
type Server struct {
	server       *http.Server
	config       Config
	shutdownOnce sync.Once
}

// NewServer builds a Server from cfg and deps. The server is created in a
// stopped state; call Start to begin serving.
func NewServer(cfg Config, deps Dependencies) *Server {
	cfg.ApplyDefaults()

	return &Server{
		config: cfg,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      NewRouter(deps),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Start serves the admin API until ctx is cancelled, then performs a
// graceful shutdown and returns.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("admin API listening", "port", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("admin API shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("admin API failed: %w", err)
	}
}

// Stop gracefully shuts down the admin API server. Safe to call more than
// once and safe to call concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.server.Shutdown(ctx)
	})
	return err
}
