package observability

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rafaeljc/accolade/internal/config"
)

// Server exposes liveness, readiness and Prometheus metrics on a dedicated
// port, away from business traffic.
type Server struct {
	logger   *slog.Logger
	cfg      *config.ObservabilityConfig
	router   *chi.Mux
	server   *http.Server
	checkers []Checker
}

// NewServer creates the observability server. The checkers (Postgres, Redis)
// are run by the readiness check.
func NewServer(logger *slog.Logger, cfg *config.ObservabilityConfig, checkers ...Checker) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		panic("observability: config cannot be nil")
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)

	s := &Server{
		logger:   logger,
		cfg:      cfg,
		router:   r,
		checkers: checkers,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Get(s.cfg.LivenessPath, s.liveness)
	s.router.Get(s.cfg.ReadinessPath, s.readiness)
	s.router.Method(http.MethodGet, s.cfg.MetricsPath, promhttp.Handler())
}

// Handler returns the router, for embedding or for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves the health endpoints in the background. Listen errors are logged, not returned.
func (s *Server) Start() {
	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.Timeout,
		ReadTimeout:       s.cfg.Timeout,
		// Readiness may use the whole timeout before it writes.
		WriteTimeout: 2 * s.cfg.Timeout,
		IdleTimeout:  3 * s.cfg.Timeout,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	s.logger.Info("observability server listening",
		slog.String("addr", addr),
		slog.Group("paths",
			slog.String("liveness", s.cfg.LivenessPath),
			slog.String("readiness", s.cfg.ReadinessPath),
			slog.String("metrics", s.cfg.MetricsPath),
		),
	)
	go func(srv *http.Server) {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("observability server stopped unexpectedly", slog.String("error", err.Error()))
		}
	}(s.server)
}

// Shutdown drains in-flight health requests. It is a no-op before Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
