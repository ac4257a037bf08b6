package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/cloo-solutions/logsage/internal/api/handlers"
	"github.com/cloo-solutions/logsage/internal/api/middleware"
)

const maxBodyBytes int64 = 5 * 1024 * 1024

// RouterConfig wires handlers into the HTTP surface. LogHandler is nil when
// the process fronts no database, in which case /logs is not mounted.
type RouterConfig struct {
	Logger          zerolog.Logger
	HealthHandler   *handlers.HealthHandler
	LogHandler      *handlers.LogHandler
	AnalysisHandler *handlers.AnalysisHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Sentry)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", cfg.HealthHandler.Health)

	if cfg.LogHandler != nil {
		r.Route("/logs", func(r chi.Router) {
			r.With(middleware.DecodeZstd(maxBodyBytes)).Post("/", cfg.LogHandler.Append)
			r.Get("/", cfg.LogHandler.List)
			r.Delete("/", cfg.LogHandler.DeleteAll)
			r.Get("/{id}", cfg.LogHandler.Get)
			r.Delete("/{id}", cfg.LogHandler.Delete)
		})
	}

	r.Route("/analyses", func(r chi.Router) {
		r.Get("/", cfg.AnalysisHandler.List)
		r.Get("/{logId}", cfg.AnalysisHandler.Get)
	})
	r.Post("/ask", cfg.AnalysisHandler.Ask)
	r.Post("/analyze", cfg.AnalysisHandler.Analyze)

	return r
}
