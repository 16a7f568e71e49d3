package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/repolens/repolens/cfg"
	"github.com/repolens/repolens/pkg/log"
)

// Server wraps the query service HTTP server.
type Server struct {
	Logger  log.Logger
	Config  *cfg.Config
	handler *Handler
	server  *http.Server
	port    int
}

func NewServer(logger log.Logger, config *cfg.Config, handler *Handler) (*Server, error) {
	return &Server{
		Logger:  logger,
		Config:  config,
		handler: handler,
		port:    config.Api.Port,
	}, nil
}

// Start blocks serving requests until Stop or a listener failure.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	s.handler.RegisterRoutes(mux)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.Logger.Info(context.Background(), "Starting query service on port %d", s.port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		s.Logger.Info(ctx, "Shutting down query service")
		return s.server.Shutdown(ctx)
	}
	return nil
}
