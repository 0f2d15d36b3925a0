package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps bundles what NewRouter mounts.
type RouterDeps struct {
	Query       *Handler
	Docs        *DocHandler
	Auth        *AuthHandler
	Manage      *ManageHandler
	APILimiter  *RateLimiter
	AuthLimiter *RateLimiter
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// Public API (Protected by API Key + Rate Limiter)
	r.Route("/api/v1", func(r chi.Router) {
		if d.APILimiter != nil {
			r.Use(d.APILimiter.MiddlewareByAPIKey)
		}
		r.Post("/query", d.Query.ExecuteQuery)
		if d.Docs != nil {
			r.Get("/docs", d.Docs.ServeSwaggerUI)
			r.Get("/openapi.json", d.Docs.GetOpenAPISpec)
		}
	})

	r.Route("/auth", func(r chi.Router) {
		r.Use(d.Auth.Authenticate)
		r.Group(func(r chi.Router) {
			if d.AuthLimiter != nil {
				r.Use(d.AuthLimiter.Middleware)
			}
			r.Post("/signup", d.Auth.SignUp)
			r.Post("/signin", d.Auth.SignIn)
		})
		r.Group(func(r chi.Router) {
			r.Use(RequireSession)
			r.Post("/signout", d.Auth.SignOut)
			r.Get("/me", d.Auth.Me)
			r.Put("/profile", d.Auth.UpdateProfile)
			r.Put("/password", d.Auth.UpdatePassword)
		})
	})

	r.Route("/manage", func(r chi.Router) {
		r.Use(d.Auth.Authenticate)
		r.Use(RequireSession)
		d.Manage.Routes(r)
	})

	return r
}
