package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/onnwee/eventchat/internal/middleware"
)

// RouterConfig wires handlers and middleware into the API router.
type RouterConfig struct {
	Discover *DiscoverHandlers
	Feed     *FeedHandlers
	Health   *HealthHandlers
	Metrics  http.Handler // serves /metrics; nil disables the endpoint

	Tokens      middleware.TokenValidator
	HTTPMetrics *middleware.Metrics
	Logger      *slog.Logger
	ServiceName string

	CORS middleware.CORSConfig

	// RateLimitStore nil disables rate limiting of discovery routes.
	RateLimitStore middleware.RateLimitStore
	RateLimit      middleware.RateLimitConfig
}

// NewRouter builds the HTTP handler of the discovery API.
//
// Global chain: RequestID, Tracing, Logging, HTTPMetrics, Recoverer, CORS.
// Discovery routes add authentication and then rate limiting, so limits are
// keyed by user when one is known.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.HTTPMetrics(cfg.HTTPMetrics))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORS))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r.Context(), http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	requireAuth := middleware.RequireAuth(cfg.Tokens, cfg.HTTPMetrics)
	optionalAuth := middleware.OptionalAuth(cfg.Tokens, cfg.HTTPMetrics)
	limit := func(next http.Handler) http.Handler { return next }
	if cfg.RateLimitStore != nil {
		limit = middleware.RateLimit(cfg.RateLimitStore, cfg.RateLimit, middleware.ClientKey, cfg.HTTPMetrics)
	}

	r.Route("/events", func(r chi.Router) {
		r.With(requireAuth, limit).Get("/recommended", cfg.Discover.Recommended)
		r.With(optionalAuth, limit).Get("/search", cfg.Discover.Search)
		if cfg.Feed != nil {
			r.With(requireAuth).Get("/feed", cfg.Feed.Subscribe)
		}
	})

	return r
}
