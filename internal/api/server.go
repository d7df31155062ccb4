// Package api exposes watch progress and tracking sessions over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/listenupapp/watchtrack/internal/ratelimit"
	"github.com/listenupapp/watchtrack/internal/service"
	"github.com/listenupapp/watchtrack/internal/sse"
	"github.com/listenupapp/watchtrack/internal/store"
)

// Services groups the services the handlers call.
type Services struct {
	Progress *service.ProgressService
	Playback *service.PlaybackService
}

// Options configures middleware.
type Options struct {
	CORSOrigins []string
	Limiter     *ratelimit.KeyedRateLimiter // nil disables rate limiting

	// TrustProxy takes the client address from X-Forwarded-For and X-Real-IP.
	// Enable it only behind a proxy that overwrites those headers, since the
	// rate limiter keys on that address.
	TrustProxy bool
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store      store.Store
	services   Services
	sseManager *sse.Manager
	sseHandler *sse.Handler
	opts       Options
	router     *chi.Mux
	api        huma.API
	handler    http.Handler
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered.
func NewServer(st store.Store, services Services, sseManager *sse.Manager, opts Options, logger *slog.Logger) *Server {
	s := &Server{
		store:      st,
		services:   services,
		sseManager: sseManager,
		opts:       opts,
		router:     chi.NewRouter(),
		logger:     logger,
	}
	if sseManager != nil {
		s.sseHandler = sse.NewHandler(sseManager, logger)
	}

	s.setupMiddleware()

	RegisterErrorHandler()
	config := huma.DefaultConfig("Watchtrack API", "1.0.0")
	config.Info.Description = "Tracks which parts of a video each user has actually watched."
	config.Transformers = append(config.Transformers, EnvelopeTransformer)
	s.api = humachi.New(s.router, config)

	s.registerRoutes()

	s.handler = otelhttp.NewHandler(s.router, "watchtrack-api")
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// API returns the huma API, for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	if s.opts.TrustProxy {
		s.router.Use(middleware.RealIP)
	}
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(traceHeader)

	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Trace-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if s.opts.Limiter != nil {
		s.router.Use(RateLimitMiddleware(s.opts.Limiter, s.logger))
	}
}

func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerProgressRoutes()
	s.registerSessionRoutes()
	s.registerIntervalRoutes()

	// huma has no streaming responses, so SSE goes straight to chi.
	if s.sseHandler != nil {
		s.router.Get("/api/v1/events", s.sseHandler.ServeHTTP)
	}
}
