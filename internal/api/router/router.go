package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/ivanhe123/jstor-gen/internal/http/middleware"
	"github.com/ivanhe123/jstor-gen/internal/querygen"
	"github.com/ivanhe123/jstor-gen/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	QueryGenHandler    *querygen.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.QueryGenHandler != nil {
		r.Get("/platforms", cfg.QueryGenHandler.ListPlatforms)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", cfg.QueryGenHandler.CreateSession)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", cfg.QueryGenHandler.GetSession)
				r.Delete("/", cfg.QueryGenHandler.DeleteSession)
				r.Post("/messages", cfg.QueryGenHandler.Submit)
				r.Post("/reset", cfg.QueryGenHandler.Reset)
				r.Put("/platform", cfg.QueryGenHandler.ChangePlatform)
				r.Put("/variations", cfg.QueryGenHandler.ChangeVariations)
			})
		})
	}

	return r
}
