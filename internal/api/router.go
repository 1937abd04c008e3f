// Streamlens - Twitch Live Stream ETL and Analytics
// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamlens/streamlens/internal/config"
	"github.com/streamlens/streamlens/internal/database"
)

// Router assembles the HTTP surface: health and Prometheus endpoints at
// the root, analytics under /api/v1/analytics.
type Router struct {
	handler *Handler
	cfg     *config.ServerConfig
}

// NewRouter creates a Router over the given store.
func NewRouter(db *database.DB, cfg *config.Config) *Router {
	return &Router{
		handler: NewHandler(db, cfg),
		cfg:     &cfg.Server,
	}
}

// Setup builds the chi route tree.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsMiddleware(rt.cfg.CORSOrigins))

	r.Get("/healthz", rt.handler.Healthz)
	r.Get("/readyz", rt.handler.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/analytics", func(r chi.Router) {
		r.Use(rateLimitByIP(rt.cfg.RateLimitReqs, rt.cfg.RateLimitWindow))
		r.Use(prometheusMetrics)

		r.Get("/summary", rt.handler.Summary)
		r.Get("/peak-hours", rt.handler.PeakHours)
		r.Get("/top-games", rt.handler.TopGames)
		r.Get("/weekend", rt.handler.Weekend)
		r.Get("/languages", rt.handler.Languages)
		r.Get("/trends", rt.handler.Trends)
		r.Get("/streamers", rt.handler.Streamers)
		r.Get("/ingest-history", rt.handler.IngestHistory)
		r.Get("/ingest-runs", rt.handler.IngestRuns)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
	})

	return r
}
