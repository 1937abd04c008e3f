// Streamlens - Twitch Live Stream ETL and Analytics
// SPDX-License-Identifier: MIT

// Package api exposes the analytics queries over HTTP. All endpoints are
// read-only and return the standard JSON envelope; writes happen only
// through the ETL pipeline.
package api

import (
	"net/http"
	"time"

	"github.com/streamlens/streamlens/internal/config"
	"github.com/streamlens/streamlens/internal/database"
)

// Handler holds the dependencies shared by all HTTP handlers.
type Handler struct {
	db  *database.DB
	cfg *config.Config
}

// NewHandler creates a Handler backed by the given store.
func NewHandler(db *database.DB, cfg *config.Config) *Handler {
	return &Handler{db: db, cfg: cfg}
}

// Healthz reports process liveness.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, successEnvelope(map[string]string{"status": "ok"}, 0))
}

// Readyz reports store reachability.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ready := h.db != nil && h.db.Ping(r.Context()) == nil

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "unavailable"
	}

	respondJSON(w, status, successEnvelope(map[string]string{"status": state}, 0))
}

// Summary returns dataset-wide totals and date ranges.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	summary, err := h.db.Summary(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to compute summary", err)
		return
	}
	respondSuccess(w, summary, time.Since(start))
}

// PeakHours returns per-hour stream and viewer aggregates.
func (h *Handler) PeakHours(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	hours, err := h.db.PeakHours(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query peak hours", err)
		return
	}
	respondSuccess(w, hours, time.Since(start))
}

// TopGames returns games ranked by average viewers. The min_streams and
// top_n query parameters override the configured defaults.
func (h *Handler) TopGames(w http.ResponseWriter, r *http.Request) {
	minStreams, err := queryInt(r, "min_streams", h.cfg.Analytics.MinStreams)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	topN, err := queryInt(r, "top_n", h.cfg.Analytics.TopN)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	start := time.Now()
	games, err := h.db.TopGames(r.Context(), minStreams, topN)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query top games", err)
		return
	}
	respondSuccess(w, games, time.Since(start))
}

// Weekend returns per-weekday aggregates, Monday first.
func (h *Handler) Weekend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	days, err := h.db.WeekendBreakdown(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query weekday breakdown", err)
		return
	}
	respondSuccess(w, days, time.Since(start))
}

// Languages returns the broadcast language distribution.
func (h *Handler) Languages(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	langs, err := h.db.LanguageDistribution(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query language distribution", err)
		return
	}
	respondSuccess(w, langs, time.Since(start))
}

// Trends returns daily stream and viewer trends.
func (h *Handler) Trends(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	trends, err := h.db.DailyTrends(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query daily trends", err)
		return
	}
	respondSuccess(w, trends, time.Since(start))
}

// Streamers returns broadcasters ranked by total observed viewers.
func (h *Handler) Streamers(w http.ResponseWriter, r *http.Request) {
	topN, err := queryInt(r, "top_n", h.cfg.Analytics.TopN)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	start := time.Now()
	streamers, err := h.db.TopStreamers(r.Context(), topN)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query top streamers", err)
		return
	}
	respondSuccess(w, streamers, time.Since(start))
}

// IngestHistory returns per-day ingestion volumes, newest first.
func (h *Handler) IngestHistory(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	history, err := h.db.IngestionHistory(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query ingestion history", err)
		return
	}
	respondSuccess(w, history, time.Since(start))
}

// IngestRuns returns recorded pipeline runs, newest first. The limit
// query parameter caps the result size.
func (h *Handler) IngestRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	start := time.Now()
	runs, err := h.db.IngestRuns(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query ingest runs", err)
		return
	}
	respondSuccess(w, runs, time.Since(start))
}
