// Streamlens - Twitch Live Stream ETL and Analytics
// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/streamlens/streamlens/internal/config"
	"github.com/streamlens/streamlens/internal/database"
	"github.com/streamlens/streamlens/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{
			Path:      ":memory:",
			MaxMemory: "512MB",
		},
		Analytics: config.AnalyticsConfig{
			MinStreams: 1,
			TopN:       15,
		},
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			Timeout:         10 * time.Second,
			RateLimitReqs:   1000,
			RateLimitWindow: time.Minute,
		},
	}
}

func setupAPITest(t *testing.T) (*database.DB, http.Handler) {
	t.Helper()

	cfg := testConfig()
	db, err := database.New(&cfg.Database)
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})

	return db, NewRouter(db, cfg).Setup()
}

func seedStreams(t *testing.T, db *database.DB) {
	t.Helper()

	mondayAfternoon := time.Date(2026, 8, 3, 14, 0, 0, 0, time.UTC)
	saturdayEvening := time.Date(2026, 8, 1, 20, 0, 0, 0, time.UTC)
	ingested := time.Date(2026, 8, 4, 6, 0, 0, 0, time.UTC)

	streams := []models.Stream{
		{ID: "1", UserID: "u1", UserLogin: "alice", UserName: "Alice", GameID: "g1", GameName: "Chess", Type: "live", ViewerCount: 100, Language: "en", StartedAt: &mondayAfternoon, IngestedAt: ingested},
		{ID: "2", UserID: "u2", UserLogin: "bob", UserName: "Bob", GameID: "g2", GameName: "Poker", Type: "live", ViewerCount: 40, Language: "de", StartedAt: &mondayAfternoon, IngestedAt: ingested},
		{ID: "3", UserID: "u1", UserLogin: "alice", UserName: "Alice", GameID: "g1", GameName: "Chess", Type: "live", ViewerCount: 500, Language: "en", StartedAt: &saturdayEvening, IngestedAt: ingested},
	}
	for i := range streams {
		streams[i].DeriveTimeFields()
	}

	if _, _, err := db.InsertStreamsBatch(context.Background(), streams); err != nil {
		t.Fatalf("InsertStreamsBatch() error = %v", err)
	}
}

func doRequest(t *testing.T, handler http.Handler, path string) (*httptest.ResponseRecorder, *models.APIResponse) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nbody: %s", err, rec.Body.String())
	}
	return rec, &resp
}

func TestHealthEndpoints(t *testing.T) {
	_, handler := setupAPITest(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec, resp := doRequest(t, handler, path)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want %d", path, rec.Code, http.StatusOK)
		}
		if resp.Status != "success" {
			t.Errorf("%s: Status = %q, want success", path, resp.Status)
		}
	}
}

func TestSummaryEndpoint(t *testing.T) {
	db, handler := setupAPITest(t)
	seedStreams(t, db)

	rec, resp := doRequest(t, handler, "/api/v1/analytics/summary")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Data has type %T, want object", resp.Data)
	}
	if got := data["total_streams"].(float64); got != 3 {
		t.Errorf("total_streams = %v, want 3", got)
	}
	if got := data["total_viewers"].(float64); got != 640 {
		t.Errorf("total_viewers = %v, want 640", got)
	}
}

func TestTopGamesEndpoint(t *testing.T) {
	db, handler := setupAPITest(t)
	seedStreams(t, db)

	rec, resp := doRequest(t, handler, "/api/v1/analytics/top-games")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	games, ok := resp.Data.([]interface{})
	if !ok {
		t.Fatalf("Data has type %T, want array", resp.Data)
	}
	if len(games) != 2 {
		t.Fatalf("len(games) = %d, want 2", len(games))
	}
	first := games[0].(map[string]interface{})
	if first["game_name"] != "Chess" {
		t.Errorf("top game = %v, want Chess", first["game_name"])
	}
}

func TestTopGamesQueryParameters(t *testing.T) {
	db, handler := setupAPITest(t)
	seedStreams(t, db)

	// min_streams=2 leaves only Chess, which has two snapshots.
	rec, resp := doRequest(t, handler, "/api/v1/analytics/top-games?min_streams=2&top_n=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	games := resp.Data.([]interface{})
	if len(games) != 1 {
		t.Fatalf("len(games) = %d, want 1", len(games))
	}
}

func TestTopGamesRejectsBadParameter(t *testing.T) {
	_, handler := setupAPITest(t)

	rec, resp := doRequest(t, handler, "/api/v1/analytics/top-games?top_n=abc")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if resp.Error == nil || resp.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("Error = %+v, want VALIDATION_ERROR", resp.Error)
	}
}

func TestLanguagesEndpoint(t *testing.T) {
	db, handler := setupAPITest(t)
	seedStreams(t, db)

	rec, resp := doRequest(t, handler, "/api/v1/analytics/languages")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	langs := resp.Data.([]interface{})
	if len(langs) != 2 {
		t.Fatalf("len(langs) = %d, want 2", len(langs))
	}
	first := langs[0].(map[string]interface{})
	if first["language"] != "en" {
		t.Errorf("dominant language = %v, want en", first["language"])
	}
}

func TestStreamersEndpoint(t *testing.T) {
	db, handler := setupAPITest(t)
	seedStreams(t, db)

	rec, resp := doRequest(t, handler, "/api/v1/analytics/streamers?top_n=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	streamers := resp.Data.([]interface{})
	if len(streamers) != 1 {
		t.Fatalf("len(streamers) = %d, want 1", len(streamers))
	}
	first := streamers[0].(map[string]interface{})
	if first["user_login"] != "alice" {
		t.Errorf("top streamer = %v, want alice", first["user_login"])
	}
}

func TestEmptyDatabaseReturnsEmptyArrays(t *testing.T) {
	_, handler := setupAPITest(t)

	for _, path := range []string{
		"/api/v1/analytics/peak-hours",
		"/api/v1/analytics/weekend",
		"/api/v1/analytics/trends",
		"/api/v1/analytics/ingest-history",
		"/api/v1/analytics/ingest-runs",
	} {
		rec, resp := doRequest(t, handler, path)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want %d", path, rec.Code, http.StatusOK)
			continue
		}
		if resp.Status != "success" {
			t.Errorf("%s: Status = %q, want success", path, resp.Status)
		}
	}
}

func TestNotFoundEnvelope(t *testing.T) {
	_, handler := setupAPITest(t)

	rec, resp := doRequest(t, handler, "/api/v1/analytics/nope")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if resp.Error == nil || resp.Error.Code != "NOT_FOUND" {
		t.Errorf("Error = %+v, want NOT_FOUND", resp.Error)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, handler := setupAPITest(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "streams_fetched_total") {
		t.Error("metrics output missing pipeline collectors")
	}
}

func TestSanitizeLogValue(t *testing.T) {
	got := sanitizeLogValue("line1\nline2\tend")
	want := "line1\\x0aline2\\x09end"
	if got != want {
		t.Errorf("sanitizeLogValue() = %q, want %q", got, want)
	}
}
