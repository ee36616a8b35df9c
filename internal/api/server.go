package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/clipforge/clipforge-agent/internal/artifacts"
	"github.com/clipforge/clipforge-agent/internal/engine"
	"github.com/clipforge/clipforge-agent/internal/history"
	"github.com/clipforge/clipforge-agent/internal/segment"
)

// BuildService is the surface the API needs from the build pipeline.
type BuildService interface {
	StartBuild(ctx context.Context, raw []segment.Segment) (*history.Build, error)
	InFlight() bool
	State() (int, string)
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port         int
	BuildService BuildService
	Repository   history.Repository
	Artifacts    *artifacts.Store
	Sessions     *engine.Sessions
	Logger       *slog.Logger
	StartTime    time.Time
	AgentID      string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
