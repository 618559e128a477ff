package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xbookmarks/api/internal/handler"
	"github.com/xbookmarks/api/internal/ratelimit"
)

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(h *handler.Handler, limiter *ratelimit.Limiter, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
			ExposedHeaders: []string{requestIDHeader, "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
			MaxAge:         86400,
		}))
	}

	r.Use(ratelimit.Middleware(limiter))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/categories", h.ListCategories)
		r.Get("/categories/{slug}/tags", h.ListCategoryTags)
		r.Get("/subtags", h.ListSubtags)

		r.Get("/tweets", h.ListTweets)
		r.Get("/tweets/{id}", h.GetTweet)
		r.Delete("/tweets/{id}", h.DeleteTweet)

		r.Get("/stats", h.GetStats)
		r.Get("/link-preview", h.GetLinkPreview)
	})

	r.Get("/static/images/*", h.ServeImage)

	return otelhttp.NewHandler(r, "http.server")
}
