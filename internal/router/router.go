// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router sets up all HTTP routes and middleware chains for the
// copyforge API. Routes are split into public callbacks and the
// authenticated merchant API.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"copyforge/internal/handlers"
	"copyforge/internal/middleware"
)

// Config holds the router's collaborators.
type Config struct {
	API     *handlers.API
	Public  *handlers.Public
	Auth    *middleware.Authenticator
	Limiter *middleware.RateLimiter
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Log     *zap.Logger
}

// New creates the chi router with all middleware and route groups.
func New(cfg Config) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.Recoverer(cfg.Log))
	r.Use(middleware.Logger(cfg.Log))
	r.Use(middleware.SecureHeaders)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusNotFound, "not_found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusMethodNotAllowed, "method_not_allowed")
	})

	r.Get("/health", cfg.Public.Health)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	// Storefront callbacks authenticate with the OAuth state nonce and the
	// webhook signature respectively.
	r.Get("/oauth/callback", cfg.Public.OAuthCallback)
	r.With(chimw.Timeout(10*time.Second)).
		Post("/webhooks/shops/{shopID}/products-update", cfg.Public.ProductWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Use(cfg.Auth.Authenticate)
		if cfg.Limiter != nil {
			r.Use(cfg.Limiter.Middleware)
		}

		r.Get("/options", cfg.API.Options)
		r.Get("/products", cfg.API.ListAllProducts)

		r.Route("/shops", func(r chi.Router) {
			r.Get("/", cfg.API.ListShops)
			r.Post("/", cfg.API.ConnectShop)

			r.Route("/{shopID}", func(r chi.Router) {
				r.Get("/", cfg.API.GetShop)
				r.Put("/", cfg.API.UpdateShop)
				r.Delete("/", cfg.API.DeleteShop)

				r.Get("/preferences", cfg.API.GetPreferences)
				r.Put("/preferences", cfg.API.UpdatePreferences)

				r.Route("/products", func(r chi.Router) {
					r.Get("/", cfg.API.ListProducts)
					r.Post("/sync", cfg.API.SyncProducts)
					r.Post("/optimize-all", cfg.API.OptimizeAll)
					r.Post("/deploy-all", cfg.API.DeployAll)
					r.Get("/{productID}", cfg.API.GetProduct)
					r.Put("/{productID}", cfg.API.UpdateProduct)
					r.Delete("/{productID}", cfg.API.DeleteProduct)
					r.Post("/{productID}/optimize", cfg.API.OptimizeProduct)
					r.Post("/{productID}/deploy", cfg.API.DeployProduct)
				})

				r.Get("/batches/{batchID}/report", cfg.API.BatchReport)

				r.Route("/templates", func(r chi.Router) {
					r.Get("/", cfg.API.ListTemplates)
					r.Post("/", cfg.API.CreateTemplate)
					r.Post("/preview", cfg.API.PreviewTemplate)
					r.Get("/{templateID}", cfg.API.GetTemplate)
					r.Put("/{templateID}", cfg.API.UpdateTemplate)
					r.Delete("/{templateID}", cfg.API.DeleteTemplate)
					r.Post("/{templateID}/activate", cfg.API.ActivateTemplate)
				})
			})
		})
	})

	return r
}

func writeStatus(w http.ResponseWriter, status int, kind string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":{"kind":"` + kind + `","message":"` + http.StatusText(status) + `"}}`))
}
