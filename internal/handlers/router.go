package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/BorisDmv/portfolio-api/internal/auth"
	appmiddleware "github.com/BorisDmv/portfolio-api/internal/middleware"
)

type RouterConfig struct {
	Posts          *PostsHandler
	Admin          *AdminHandler
	Gate           *auth.Gate
	AllowedOrigins []string
	// Optional per-IP limits for the public list and the login endpoint.
	PublicLimiter *appmiddleware.RateLimiter
	LoginLimiter  *appmiddleware.RateLimiter
}

func limit(rl *appmiddleware.RateLimiter) func(http.Handler) http.Handler {
	if rl == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return rl.Limit
}

func anyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if anyOrigin(cfg.AllowedOrigins) {
		r.Use(appmiddleware.AllowAnyOrigin)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.MethodNotAllowed(MethodNotAllowed)

	r.Get("/health", Health)

	r.Route("/posts", func(r chi.Router) {
		r.With(limit(cfg.PublicLimiter)).Get("/", cfg.Posts.List)
		r.Options("/", Preflight)
		r.Get("/{id}", cfg.Posts.Get)
	})

	r.Route("/admin", func(r chi.Router) {
		r.With(limit(cfg.LoginLimiter)).Post("/login", cfg.Admin.Login)

		r.Route("/posts", func(r chi.Router) {
			r.Options("/", Preflight)
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.Auth(cfg.Gate))
				r.Post("/", cfg.Posts.Create)
				r.Put("/", cfg.Posts.Update)
				r.Delete("/", cfg.Posts.Delete)
			})
		})
	})

	return r
}
