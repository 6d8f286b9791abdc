// Package server provides the HTTP surface of the screener: analysis and
// screening endpoints, job orchestration with SSE progress, and the monitor
// dashboard routes.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/database"
	"github.com/aristath/screener/internal/events"
	"github.com/aristath/screener/internal/modules/market"
	"github.com/aristath/screener/internal/modules/screening"
	"github.com/aristath/screener/internal/modules/watchlist"
)

// Config wires the server's collaborators.
type Config struct {
	Log     zerolog.Logger
	Port    int
	DevMode bool
	DataDir string

	Data         DataProvider
	JobRepo      *screening.JobRepository
	Orchestrator *screening.Orchestrator
	Bus          *events.Bus
	Market       *market.Aggregator
	Watchlist    *watchlist.Repository
	Refresher    *watchlist.Refresher
	Databases    []*database.DB
	CacheHealth  HealthChecker
}

// Server is the HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	port   int
}

// New creates the server and mounts all routes.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		port:   cfg.Port,
	}

	s.setupMiddleware(cfg.DevMode)

	NewSystemHandlers(cfg.Databases, cfg.CacheHealth, cfg.DataDir, cfg.Log).RegisterRoutes(s.router)
	NewAnalysisHandlers(cfg.Data, cfg.Log).RegisterRoutes(s.router)
	NewJobHandlers(cfg.JobRepo, cfg.Orchestrator, cfg.Bus, cfg.Log).RegisterRoutes(s.router)
	NewMonitorHandlers(cfg.Market, cfg.Watchlist, cfg.Refresher, cfg.Log).RegisterRoutes(s.router)

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: the SSE stream holds its connection open for the
		// lifetime of a job.
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Router exposes the mux for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// setupMiddleware configures the middleware chain.
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
