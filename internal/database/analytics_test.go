// Streamlens - Twitch Live Stream ETL and Analytics
// SPDX-License-Identifier: MIT

package database

import (
	"context"
	"testing"
	"time"

	"github.com/streamlens/streamlens/internal/models"
)

// seedAnalyticsData loads a small fixture spanning hours, weekdays,
// games and languages.
func seedAnalyticsData(t *testing.T, db *DB) {
	t.Helper()

	mk := func(id string, startedAt time.Time, viewers int, game, lang, user string) models.Stream {
		s := models.Stream{
			ID:          id,
			UserID:      "u-" + user,
			UserLogin:   user,
			UserName:    user,
			GameID:      "g-" + game,
			GameName:    game,
			Type:        "live",
			Title:       "t",
			ViewerCount: viewers,
			Language:    lang,
			StartedAt:   &startedAt,
			IngestedAt:  time.Date(2026, 8, 2, 12, 0, 0, 0, time.UTC),
		}
		s.DeriveTimeFields()
		return s
	}

	// Monday 2026-08-03 and Saturday 2026-08-01.
	monday := time.Date(2026, 8, 3, 14, 0, 0, 0, time.UTC)
	saturday := time.Date(2026, 8, 1, 20, 0, 0, 0, time.UTC)

	streams := []models.Stream{
		mk("1", monday, 100, "Chess", "en", "alice"),
		mk("2", monday, 300, "Chess", "en", "bob"),
		mk("3", monday.Add(time.Hour), 50, "Poker", "de", "carol"),
		mk("4", saturday, 500, "Chess", "en", "alice"),
		mk("5", saturday, 80, "Poker", "de", "dave"),
	}

	if _, _, err := db.InsertStreamsBatch(context.Background(), streams); err != nil {
		t.Fatalf("seeding streams: %v", err)
	}
}

func TestPeakHours(t *testing.T) {
	db := setupTestDB(t)
	seedAnalyticsData(t, db)

	stats, err := db.PeakHours(context.Background())
	if err != nil {
		t.Fatalf("PeakHours() error = %v", err)
	}
	// Hours present: 14 (2 streams), 15 (1), 20 (2).
	if len(stats) != 3 {
		t.Fatalf("PeakHours() returned %d hours, want 3", len(stats))
	}
	if stats[0].HourOfDay != 14 || stats[0].StreamCount != 2 {
		t.Errorf("first hour = %+v, want hour 14 with 2 streams", stats[0])
	}
	for i := 1; i < len(stats); i++ {
		if stats[i].HourOfDay <= stats[i-1].HourOfDay {
			t.Error("PeakHours() not ordered by hour")
		}
	}
}

func TestTopGamesThresholdAndOrder(t *testing.T) {
	db := setupTestDB(t)
	seedAnalyticsData(t, db)

	stats, err := db.TopGames(context.Background(), 3, 10)
	if err != nil {
		t.Fatalf("TopGames() error = %v", err)
	}
	// Only Chess has >= 3 snapshots.
	if len(stats) != 1 {
		t.Fatalf("TopGames(min=3) returned %d games, want 1", len(stats))
	}
	if stats[0].GameName != "Chess" {
		t.Errorf("top game = %q, want Chess", stats[0].GameName)
	}
	if stats[0].StreamCount != 3 || stats[0].UniqueStreamers != 2 {
		t.Errorf("Chess stats = %+v, want 3 snapshots from 2 streamers", stats[0])
	}

	all, err := db.TopGames(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("TopGames() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("TopGames(min=1) returned %d games, want 2", len(all))
	}
	if all[0].AvgViewers < all[1].AvgViewers {
		t.Error("TopGames() not ordered by average viewers descending")
	}
}

func TestTopGamesExcludesUnknown(t *testing.T) {
	db := setupTestDB(t)
	seedAnalyticsData(t, db)

	// An unresolved game keeps the Unknown placeholder; a huge viewer
	// count must not let it outrank real games.
	startedAt := time.Date(2026, 8, 3, 16, 0, 0, 0, time.UTC)
	unknown := models.Stream{
		ID:          "6",
		UserID:      "u-eve",
		UserLogin:   "eve",
		UserName:    "eve",
		GameName:    "Unknown",
		Type:        "live",
		Title:       "t",
		ViewerCount: 9999,
		Language:    "en",
		StartedAt:   &startedAt,
		IngestedAt:  time.Date(2026, 8, 2, 12, 0, 0, 0, time.UTC),
	}
	unknown.DeriveTimeFields()
	if _, _, err := db.InsertStreamsBatch(context.Background(), []models.Stream{unknown}); err != nil {
		t.Fatalf("seeding unknown stream: %v", err)
	}

	stats, err := db.TopGames(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("TopGames() error = %v", err)
	}
	for _, g := range stats {
		if g.GameName == "Unknown" {
			t.Fatalf("TopGames() ranked Unknown with %.0f avg viewers", g.AvgViewers)
		}
	}
	if len(stats) != 2 || stats[0].GameName != "Chess" {
		t.Errorf("TopGames() = %+v, want Chess and Poker only", stats)
	}
}

func TestWeekendBreakdown(t *testing.T) {
	db := setupTestDB(t)
	seedAnalyticsData(t, db)

	stats, err := db.WeekendBreakdown(context.Background())
	if err != nil {
		t.Fatalf("WeekendBreakdown() error = %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("WeekendBreakdown() returned %d weekdays, want 2", len(stats))
	}
	// Monday-first ordering puts Monday before Saturday.
	if stats[0].Weekday != "Monday" || stats[0].IsWeekend {
		t.Errorf("first row = %+v, want Monday weekday", stats[0])
	}
	if stats[1].Weekday != "Saturday" || !stats[1].IsWeekend {
		t.Errorf("second row = %+v, want Saturday weekend", stats[1])
	}
	if stats[0].StreamCount != 3 || stats[1].StreamCount != 2 {
		t.Errorf("stream counts = %d/%d, want 3/2", stats[0].StreamCount, stats[1].StreamCount)
	}
}

func TestLanguageDistribution(t *testing.T) {
	db := setupTestDB(t)
	seedAnalyticsData(t, db)

	stats, err := db.LanguageDistribution(context.Background())
	if err != nil {
		t.Fatalf("LanguageDistribution() error = %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("LanguageDistribution() returned %d languages, want 2", len(stats))
	}
	if stats[0].Language != "en" || stats[0].StreamCount != 3 {
		t.Errorf("first language = %+v, want en with 3 streams", stats[0])
	}
	if stats[0].Percentage != 60 {
		t.Errorf("en percentage = %v, want 60", stats[0].Percentage)
	}
	var total float64
	for _, l := range stats {
		total += l.Percentage
	}
	if total < 99.9 || total > 100.1 {
		t.Errorf("percentages sum to %v, want ~100", total)
	}
}

func TestDailyTrends(t *testing.T) {
	db := setupTestDB(t)
	seedAnalyticsData(t, db)

	trends, err := db.DailyTrends(context.Background())
	if err != nil {
		t.Fatalf("DailyTrends() error = %v", err)
	}
	if len(trends) != 2 {
		t.Fatalf("DailyTrends() returned %d days, want 2", len(trends))
	}
	if !trends[0].Date.Before(trends[1].Date) {
		t.Error("DailyTrends() not ordered oldest first")
	}
	// Saturday 2026-08-01: 2 streams, 2 streamers, 2 games.
	if trends[0].StreamCount != 2 || trends[0].UniqueStreamers != 2 || trends[0].UniqueGames != 2 {
		t.Errorf("first day = %+v, want 2 streams / 2 streamers / 2 games", trends[0])
	}
}

func TestTopStreamers(t *testing.T) {
	db := setupTestDB(t)
	seedAnalyticsData(t, db)

	stats, err := db.TopStreamers(context.Background(), 2)
	if err != nil {
		t.Fatalf("TopStreamers() error = %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("TopStreamers() returned %d streamers, want 2", len(stats))
	}
	// alice: 100 + 500 viewers across two days.
	if stats[0].UserLogin != "alice" {
		t.Errorf("top streamer = %q, want alice", stats[0].UserLogin)
	}
	if stats[0].TotalViewers != 600 || stats[0].DaysActive != 2 {
		t.Errorf("alice stats = %+v, want 600 viewers over 2 days", stats[0])
	}
}

func TestIngestionHistory(t *testing.T) {
	db := setupTestDB(t)
	seedAnalyticsData(t, db)

	days, err := db.IngestionHistory(context.Background())
	if err != nil {
		t.Fatalf("IngestionHistory() error = %v", err)
	}
	if len(days) != 1 {
		t.Fatalf("IngestionHistory() returned %d days, want 1", len(days))
	}
	d := days[0]
	if d.RowsIngested != 5 || d.UniqueStreamDates != 2 {
		t.Errorf("ingestion day = %+v, want 5 rows over 2 stream dates", d)
	}
	if d.EarliestStream == nil || d.LatestStream == nil {
		t.Fatal("ingestion day stream bounds are nil")
	}
	if !d.EarliestStream.Before(*d.LatestStream) {
		t.Error("earliest stream not before latest stream")
	}
}

func TestSummary(t *testing.T) {
	db := setupTestDB(t)

	// Empty dataset: zero counts, nil dates.
	empty, err := db.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary() on empty DB error = %v", err)
	}
	if empty.TotalStreams != 0 || empty.EarliestDate != nil {
		t.Errorf("empty summary = %+v, want zeroes and nil dates", empty)
	}

	seedAnalyticsData(t, db)

	s, err := db.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if s.TotalStreams != 5 || s.UniqueDays != 2 || s.UniqueStreamers != 4 {
		t.Errorf("summary = %+v, want 5 streams / 2 days / 4 streamers", s)
	}
	if s.UniqueGames != 2 || s.UniqueLanguages != 2 {
		t.Errorf("summary = %+v, want 2 games / 2 languages", s)
	}
	if s.TotalViewers != 1030 {
		t.Errorf("total viewers = %d, want 1030", s.TotalViewers)
	}
	if s.EarliestDate == nil || s.LatestDate == nil {
		t.Fatal("summary dates are nil with data loaded")
	}
}
