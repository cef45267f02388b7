package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mtr002/Job-Client/internal/logger"
	"github.com/mtr002/Job-Client/internal/master"
)

type Server struct {
	manager *master.Manager
	service string
	checks  map[string]ReadinessCheck
	server  *http.Server
}

func NewServer(manager *master.Manager, service, port string) *Server {
	return &Server{
		manager: manager,
		service: service,
		checks:  make(map[string]ReadinessCheck),
		server: &http.Server{
			Addr:         fmt.Sprintf(":%s", port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// AddReadinessCheck registers a dependency reported by /health/ready. Call
// before Handler or Start.
func (s *Server) AddReadinessCheck(name string, check ReadinessCheck) {
	s.checks[name] = check
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	AddRoutes(mux, s.service, s.manager, s.checks)
	return mux
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	logger.Logger.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")

	s.server.Handler = s.Handler()
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
