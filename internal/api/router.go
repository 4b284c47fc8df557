// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mwhitten/bookrec/internal/metrics"
)

// RouterConfig holds the transport-level knobs for the HTTP surface.
type RouterConfig struct {
	CORSOrigins       []string
	RateLimitReqs     int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
}

// NewRouter wires the full route tree: recommendation endpoints, health
// probes, and the Prometheus scrape endpoint.
func NewRouter(handler *Handler, pinger Pinger, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Health endpoints get a permissive dedicated limit so monitoring
	// never competes with API traffic for quota.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Get("/live", handler.HealthLive)
		r.Get("/ready", handler.HealthReady(pinger))
	})

	r.Route("/api/v1", func(r chi.Router) {
		if !cfg.RateLimitDisabled {
			r.Use(httprate.LimitByIP(cfg.RateLimitReqs, cfg.RateLimitWindow))
		}
		r.Use(prometheusMetrics)

		r.Post("/recommendations", handler.Recommendations)
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/recommendations", handler.UserRecommendations)
			r.Get("/recommendations/explanation", handler.Explanation)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// prometheusMetrics records request duration labeled by method, route
// pattern, and status. The Chi route pattern keeps cardinality bounded;
// raw paths would explode the label space with user IDs.
func prometheusMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTPRequest(r.Method, route, ww.Status(), time.Since(start))
	})
}
