package router

import (
	"net/http"

	"jsonbench-api/internal/handler"
	"jsonbench-api/internal/metrics"
	"jsonbench-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler      *handler.Handler
	BenchHandler *handler.BenchHandler
	AdminHandler *handler.AdminHandler

	// Registry enables HTTP metrics and the /metrics endpoint when set.
	Registry *prometheus.Registry
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	if cfg.Registry != nil {
		r.Use(middleware.Metrics(cfg.Registry))
	}
	r.Use(middleware.Recovery)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check endpoints
	if cfg.Handler != nil {
		r.Get("/health", cfg.Handler.Health)
		r.Get("/ready", cfg.Handler.Ready)
	}

	// Benchmark endpoints
	if cfg.BenchHandler != nil {
		r.Get("/hello", cfg.BenchHandler.Hello)
		r.Post("/parse_light", cfg.BenchHandler.ParseLight)
		r.Post("/parse_heavy", cfg.BenchHandler.ParseHeavy)
		r.Post("/write_light_db", cfg.BenchHandler.WriteLight)
		r.Get("/read_light_db", cfg.BenchHandler.ReadLight)
		r.Post("/write_heavy_db", cfg.BenchHandler.WriteHeavy)
		r.Get("/read_heavy_db", cfg.BenchHandler.ReadHeavy)
	}

	// Admin endpoints
	if cfg.AdminHandler != nil {
		r.Route("/admin", func(r chi.Router) {
			r.Get("/stats", cfg.AdminHandler.GetStats)
		})
	}

	if cfg.Registry != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(cfg.Registry))
	}

	return r
}
