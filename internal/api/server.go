package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/murillocortez/klyver-engine/internal/config"
)

// Server wraps the admin HTTP server.
type Server struct {
	cfg    config.ServerConfig
	server *http.Server
}

// NewServer creates the admin API server.
func NewServer(cfg config.ServerConfig, h *Handlers, apiKey string) *Server {
	router := SetupRoutes(h, apiKey)
	return &Server{
		cfg: cfg,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.GetHost(), cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 10 * time.Minute, // pass triggers are synchronous
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start blocks serving HTTP until Shutdown or failure.
func (s *Server) Start() error {
	log.Printf("[API] listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
