package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opensource-finance/harpia/internal/classify"
	"github.com/opensource-finance/harpia/internal/domain"
	"github.com/opensource-finance/harpia/internal/limiter"
	"github.com/opensource-finance/harpia/internal/metrics"
)

// Dependencies are the components the API serves. Only Analyzer is required.
type Dependencies struct {
	Repo       domain.Repository
	Bus        domain.EventBus
	Analyzer   DocumentAnalyzer
	Classifier *classify.Classifier
	Compiler   *classify.Compiler
	Submitter  Submitter
	Limiter    *limiter.Limiter
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
	Version    string
}

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, deps Dependencies) *Server {
	handler := NewHandler(cfg, deps)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)
	router.Use(RecoverMiddleware)
	router.Use(TracingMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(middleware.RealIP)
	router.Use(middleware.Compress(5))

	// Health and metrics endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	if deps.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	// API routes (tenant required, rate limited)
	router.Group(func(r chi.Router) {
		r.Use(TenantMiddleware)
		r.Use(RateLimitMiddleware(deps.Limiter, deps.Metrics))

		// Document analysis
		r.Post("/analyze", handler.Analyze)
		r.Post("/analyze/async", handler.AnalyzeAsync)
		r.Post("/validate", handler.Validate)

		// Field rule management
		r.Get("/field-rules", handler.ListFieldRules)
		r.Post("/field-rules", handler.CreateFieldRule)
		r.Delete("/field-rules/{id}", handler.DeleteFieldRule)
		r.Post("/field-rules/reload", handler.ReloadFieldRules)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
