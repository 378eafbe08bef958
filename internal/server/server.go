package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/me/shardsched/internal/config"
	"github.com/me/shardsched/internal/scheduler"
	"github.com/me/shardsched/internal/store"
	"github.com/me/shardsched/internal/timing"
)

// maxScheduleBody caps the JSON test list accepted by /schedule.
const maxScheduleBody = 8 << 20

// Server is the shard scheduler HTTP server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	store     store.Store
	tracker   *timing.Tracker
	planner   *scheduler.Planner
}

// New creates a new Server with all routes registered.
func New(cfg config.ServerConfig, st store.Store, logger *slog.Logger) *Server {
	tracker := timing.NewTracker(st, logger)
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		store:     st,
		tracker:   tracker,
		planner:   scheduler.NewPlanner(st, tracker, logger),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	if s.config.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.config.RequestTimeout))
	}

	// Scheduler protocol used by test runners. Test names may contain '/',
	// so the runtime is split off the end of the wildcard.
	r.Post("/record/*", s.handleRecord)
	r.Post("/schedule/{runID}/{shardCount}/{shardIndex}", s.handleSchedule)

	// Inspection API (JSON envelope)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleDiscovery)
		r.Get("/health", s.handleHealth)
		r.Get("/timings/*", s.handleGetTiming)
		r.Get("/plans/{runID}/{shardCount}", s.handleGetPlan)
	})
}
