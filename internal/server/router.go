package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tessellate-ai/recall/internal/api/handlers"
	"github.com/tessellate-ai/recall/internal/api/middleware"
)

const defaultMaxBodyBytes int64 = 5 * 1024 * 1024

type RouterConfig struct {
	SearchHandler *handlers.SearchHandler

	// APIKey guards the search endpoints when non-empty. Health stays
	// public so load balancers can probe without credentials.
	APIKey       string
	MaxBodyBytes int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBody))

	r.Get("/api/health", cfg.SearchHandler.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.APIKey))

		r.Get("/api/search", cfg.SearchHandler.Search)
		r.Post("/api/search/batch", cfg.SearchHandler.BatchSearch)
	})

	return r
}
