package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"aiblog/internal/config"
	"aiblog/internal/logger"
	"aiblog/internal/metrics"
	"aiblog/internal/persistence"
	"aiblog/internal/pipeline"
)

// Runner executes one pipeline run
type Runner interface {
	Run(ctx context.Context, opts pipeline.RunOptions) (*pipeline.RunResult, error)
}

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	runner     Runner
	store      persistence.ContentStore
	metrics    *metrics.Metrics
	runs       *RunRegistry
	config     config.Server
	log        *slog.Logger

	// Triggered runs outlive their request and use this context instead.
	runCtx    context.Context
	cancelRun context.CancelFunc
	inFlight  sync.WaitGroup
	busy      atomic.Bool
}

// New creates a new HTTP server instance
func New(runner Runner, store persistence.ContentStore, m *metrics.Metrics, cfg config.Server) *Server {
	if m == nil {
		m = metrics.New()
	}
	runCtx, cancel := context.WithCancel(context.Background())

	s := &Server{
		router:    chi.NewRouter(),
		runner:    runner,
		store:     store,
		metrics:   m,
		runs:      NewRunRegistry(DefaultRunRetention),
		config:    cfg,
		log:       logger.Get().With("component", "server"),
		runCtx:    runCtx,
		cancelRun: cancel,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.metrics.Middleware(routePattern))
	s.router.Use(securityHeaders)

	if len(s.config.CORSOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Location"},
			AllowCredentials: false,
			MaxAge:           300, // Maximum value not ignored by any major browsers
		}))
	}
}

// setupRoutes configures routes for the server
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/runs", func(r chi.Router) {
			r.Use(noCache)
			r.With(s.requireAdminAPI).Post("/", s.handleCreateRun)
			r.Get("/", s.handleListRuns)
			r.Get("/{id}", s.handleGetRun)
			r.Get("/{id}/preview", s.handleRunPreview)
		})

		r.Get("/posts", s.handleListPosts)
	})
}

// Runs returns the registry of recent runs. Scheduled runs are recorded here
// too so they show up next to triggered ones.
func (s *Server) Runs() *RunRegistry {
	return s.runs
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}

// Shutdown stops accepting requests and waits for in-flight runs until ctx
// expires, after which they are cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server gracefully...")

	err := s.httpServer.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("Cancelling in-flight run")
		s.cancelRun()
		<-done
	}
	s.cancelRun()

	if err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.log.Info("HTTP server stopped")
	return nil
}

// Router returns the chi router instance (useful for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}
