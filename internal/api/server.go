// Package api assembles the HTTP router: middleware, routes and docs.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/albapepper/vitalsync/internal/api/handler"
	"github.com/albapepper/vitalsync/internal/api/respond"
	"github.com/albapepper/vitalsync/internal/cache"
	"github.com/albapepper/vitalsync/internal/config"
)

// NewRouter creates and configures the Chi router with all middleware and
// routes. gatherer backs /metrics; nil means the default registry.
func NewRouter(svc handler.Service, appCache *cache.Cache, db handler.HealthChecker, gatherer prometheus.Gatherer, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type", "If-None-Match", "Cache-Control"},
		ExposedHeaders:   []string{"X-Process-Time", "X-Cache", "ETag", respond.SourceHeader, "Content-Disposition"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	h := handler.New(svc, appCache, db)

	// --- Routes ---
	r.Get("/", h.Root)
	r.Get("/health", h.HealthCheck)

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/docs/doc.json")))

	// Authorization handshake
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/callback", h.AuthCallback)
		r.Get("/{memberID}", h.StartAuth)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health-data", h.ListMembers)

		r.Route("/member/{memberID}", func(r chi.Router) {
			r.Get("/latest", h.GetLatest)
			r.Get("/auth-status", h.GetAuthStatus)
			r.Get("/history", h.GetHistory)
			r.Get("/history.xlsx", h.GetHistoryXLSX)
		})

		r.Post("/sync", h.RunSync)
		r.Post("/alerts/sweep", h.RunSweep)
	})

	return r
}
