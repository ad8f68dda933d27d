package main

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	appconfig "prediction-fleet/config"
	"prediction-fleet/observability"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates and configures a Chi router with all routes
func NewRouter(h *APIHandler, cfg *appconfig.Config) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Duration(cfg.Runner.TimeoutSeconds) * time.Second))
	r.Use(corsMiddleware(cfg.HTTP.CORSAllowedOrigins))
	r.Use(metricsMiddleware)

	// Public surface
	r.Get("/api/health", h.handleHealth)
	r.Get("/api/agents", h.handleAgents)
	r.Handle("/metrics", promhttp.Handler())

	// Service-to-service calls authenticate with the service secret.
	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(cfg.Auth.ServiceSecret))
		r.Post("/api/trigger", h.handleTrigger)
		r.Post("/api/runs/status", h.handleRunsStatus)
	})

	// Cron-originated calls authenticate with the cron secret. The two
	// secrets are not interchangeable.
	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(cfg.Auth.CronSecret))
		r.Post("/api/cron/tick", h.handleCronTick)
		r.Post("/api/cron/health", h.handleCronHealth)
	})

	return r
}

// bearerAuth rejects any request whose bearer token does not match the
// configured secret. An empty secret rejects everything: a trigger endpoint
// is never left open by misconfiguration.
func bearerAuth(secret string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || secret == "" ||
				subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// metricsMiddleware records request counts and durations per route pattern
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		observability.GetMetrics().RecordHTTPRequest(
			r.Method, pattern, strconv.Itoa(ww.Status()), time.Since(start))
	})
}

// corsMiddleware returns CORS middleware with the specified allowed origins
func corsMiddleware(allowedOrigins string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
