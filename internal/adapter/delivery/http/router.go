// Package http provides the HTTP delivery layer for the link shortener service.
// This package contains the HTTP handlers and related types used for processing
// incoming requests, validating input, and formatting responses.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	httpSwagger "github.com/swaggo/http-swagger"
)

// NewRouter initializes and returns a new Chi router configured with middleware and routes for the link shortener API.
func NewRouter(logger *httplog.Logger, urlUseCase urlUseCase, authUseCase authUseCase) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"POST", "GET", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept", "Authorization"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))

	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./docs/swagger.yml")
	})

	validate := newValidator()
	uh := newURLHandler(urlUseCase, validate)
	ah := newUserHandler(authUseCase, validate)
	auth := authenticate(authUseCase)

	r.Get("/{shortCode}", uh.redirect)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", handlePing)

		r.Route("/users", func(r chi.Router) {
			r.Post("/register", ah.register)
			r.Post("/login", ah.login)

			r.Group(func(r chi.Router) {
				r.Use(auth)

				r.Get("/me", ah.me)
				r.Patch("/me", ah.updateProfile)
				r.Post("/logout", ah.logout)
			})
		})

		r.Route("/links", func(r chi.Router) {
			r.Get("/{shortCode}", uh.resolveShortCode)

			r.Group(func(r chi.Router) {
				r.Use(auth)

				r.Post("/shorten", uh.shortenURL)
				r.Get("/search", uh.searchURLs)

				r.Put("/{shortCode}", uh.replaceURL)
				r.Patch("/{shortCode}", uh.patchURL)
				r.Delete("/{shortCode}", uh.deactivateURL)
				r.Get("/{shortCode}/stats", uh.getURLStats)
			})
		})
	})

	return r
}
