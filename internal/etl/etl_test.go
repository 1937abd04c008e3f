// Streamlens - Twitch Live Stream ETL and Analytics
// SPDX-License-Identifier: MIT

package etl

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/streamlens/streamlens/internal/config"
	"github.com/streamlens/streamlens/internal/database"
	"github.com/streamlens/streamlens/internal/models/helix"
)

// fakeHelix implements twitch.HelixAPI over fixed data.
type fakeHelix struct {
	streams   []helix.Stream
	games     map[string]helix.Game
	gameCalls [][]string
}

func (f *fakeHelix) Ping(ctx context.Context) error { return nil }

func (f *fakeHelix) GetStreams(ctx context.Context, language, cursor string) (*helix.StreamsResponse, error) {
	return &helix.StreamsResponse{Data: f.streams}, nil
}

func (f *fakeHelix) FetchStreams(ctx context.Context) ([]helix.Stream, error) {
	return f.streams, nil
}

func (f *fakeHelix) GetGames(ctx context.Context, ids []string) ([]helix.Game, error) {
	f.gameCalls = append(f.gameCalls, ids)
	var out []helix.Game
	for _, id := range ids {
		if g, ok := f.games[id]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

func testExtractConfig(t *testing.T) *config.ExtractConfig {
	t.Helper()
	dir := t.TempDir()
	return &config.ExtractConfig{
		RawDir:       filepath.Join(dir, "raw"),
		ProcessedDir: filepath.Join(dir, "processed"),
	}
}

func sampleStreams() []helix.Stream {
	return []helix.Stream{
		{
			ID: "1", UserID: "u1", UserLogin: "alice", UserName: "Alice",
			GameID: "g1", Type: "live", Title: "chess time", ViewerCount: 120,
			Language: "en", StartedAt: "2026-08-01T20:15:00Z",
			Tags: []string{"English", "Chess"}, IsMature: false,
		},
		{
			ID: "2", UserID: "u2", UserLogin: "bob", UserName: "Bob",
			GameID: "g2", Type: "live", Title: "late night", ViewerCount: 40,
			Language: "de", StartedAt: "2026-08-03T02:45:00Z",
		},
		{
			ID: "3", UserID: "u3", UserLogin: "carol", UserName: "Carol",
			GameID: "", Type: "live", Title: "chatting", ViewerCount: 7,
			Language: "en", StartedAt: "",
		},
	}
}

func sampleGames() map[string]helix.Game {
	return map[string]helix.Game{
		"g1": {ID: "g1", Name: "Chess", BoxArtURL: "https://example.com/g1.jpg"},
		"g2": {ID: "g2", Name: "Poker"},
	}
}

func TestExtractWritesRawSnapshots(t *testing.T) {
	cfg := testExtractConfig(t)
	client := &fakeHelix{streams: sampleStreams(), games: sampleGames()}

	result, err := NewExtractor(client, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.StreamCount != 3 || result.GameCount != 2 {
		t.Errorf("result = %+v, want 3 streams / 2 games", result)
	}

	raw, err := readRawStreams(result.StreamsPath)
	if err != nil {
		t.Fatalf("readRawStreams() error = %v", err)
	}
	if len(raw) != 3 || raw[0].ID != "1" || raw[0].ViewerCount != 120 {
		t.Errorf("raw round trip = %+v", raw)
	}
	if len(raw[0].Tags) != 2 || raw[0].Tags[0] != "English" {
		t.Errorf("tags round trip = %v", raw[0].Tags)
	}

	games, err := readRawGames(result.GamesPath)
	if err != nil {
		t.Fatalf("readRawGames() error = %v", err)
	}
	if len(games) != 2 {
		t.Errorf("games round trip = %+v, want 2 games", games)
	}
}

func TestExtractEmptySnapshotWritesHeaders(t *testing.T) {
	cfg := testExtractConfig(t)
	client := &fakeHelix{}

	result, err := NewExtractor(client, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.StreamCount != 0 {
		t.Errorf("StreamCount = %d, want 0", result.StreamCount)
	}

	data, err := os.ReadFile(result.StreamsPath)
	if err != nil {
		t.Fatalf("reading raw streams: %v", err)
	}
	if !strings.HasPrefix(string(data), "id,user_id,") {
		t.Errorf("empty snapshot = %q, want header row", string(data))
	}

	raw, err := readRawStreams(result.StreamsPath)
	if err != nil {
		t.Fatalf("readRawStreams() on empty snapshot error = %v", err)
	}
	if len(raw) != 0 {
		t.Errorf("empty snapshot parsed to %d rows", len(raw))
	}
}

func TestTransformDerivesFieldsAndJoinsGames(t *testing.T) {
	cfg := testExtractConfig(t)
	client := &fakeHelix{streams: sampleStreams(), games: sampleGames()}

	if _, err := NewExtractor(client, cfg).Run(context.Background()); err != nil {
		t.Fatalf("extract: %v", err)
	}

	result, err := NewTransformer(client, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.RowCount != 3 {
		t.Fatalf("RowCount = %d, want 3", result.RowCount)
	}

	streams, err := readProcessed(result.ProcessedPath)
	if err != nil {
		t.Fatalf("readProcessed() error = %v", err)
	}

	// Saturday 20:15 UTC.
	s := streams[0]
	if s.GameName != "Chess" {
		t.Errorf("stream 1 game = %q, want Chess", s.GameName)
	}
	if s.HourOfDay == nil || *s.HourOfDay != 20 {
		t.Errorf("stream 1 hour = %v, want 20", s.HourOfDay)
	}
	if s.Weekday == nil || *s.Weekday != "Saturday" || !s.IsWeekend {
		t.Errorf("stream 1 weekday = %v weekend = %v, want Saturday weekend", s.Weekday, s.IsWeekend)
	}

	// Monday 02:45 UTC.
	s = streams[1]
	if s.Weekday == nil || *s.Weekday != "Monday" || s.IsWeekend {
		t.Errorf("stream 2 weekday = %v weekend = %v, want Monday not weekend", s.Weekday, s.IsWeekend)
	}

	// No game, no start time.
	s = streams[2]
	if s.GameName != "Unknown" {
		t.Errorf("stream 3 game = %q, want Unknown", s.GameName)
	}
	if s.StartedAt != nil || s.HourOfDay != nil || s.Weekday != nil || s.IsWeekend {
		t.Errorf("stream 3 derived fields = %+v, want empty", s)
	}
}

func TestTransformFillsGameGapsFromHelix(t *testing.T) {
	cfg := testExtractConfig(t)

	// Raw games file covers g1 only; g2 must be re-fetched during transform.
	if err := writeRawStreams(filepath.Join(cfg.RawDir, RawStreamsFile), sampleStreams()); err != nil {
		t.Fatalf("writing raw streams: %v", err)
	}
	if err := writeRawGames(filepath.Join(cfg.RawDir, RawGamesFile), []helix.Game{{ID: "g1", Name: "Chess"}}); err != nil {
		t.Fatalf("writing raw games: %v", err)
	}

	client := &fakeHelix{games: sampleGames()}
	result, err := NewTransformer(client, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(client.gameCalls) != 1 || len(client.gameCalls[0]) != 1 || client.gameCalls[0][0] != "g2" {
		t.Errorf("game gap calls = %v, want single fetch of g2", client.gameCalls)
	}

	streams, err := readProcessed(result.ProcessedPath)
	if err != nil {
		t.Fatalf("readProcessed() error = %v", err)
	}
	if streams[1].GameName != "Poker" {
		t.Errorf("stream 2 game = %q, want Poker from gap fill", streams[1].GameName)
	}
}

func setupLoadTest(t *testing.T) (*Loader, *config.ExtractConfig, *database.DB) {
	t.Helper()

	cfg := testExtractConfig(t)
	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "512MB"})
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	loadCfg := &config.LoadConfig{
		BatchSize:     2,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	}
	return NewLoader(db, cfg, loadCfg), cfg, db
}

func TestLoadIsIdempotent(t *testing.T) {
	loader, cfg, db := setupLoadTest(t)
	ctx := context.Background()

	client := &fakeHelix{streams: sampleStreams(), games: sampleGames()}
	if _, err := NewExtractor(client, cfg).Run(ctx); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if _, err := NewTransformer(client, cfg).Run(ctx); err != nil {
		t.Fatalf("transform: %v", err)
	}

	first, err := loader.Run(ctx)
	if err != nil {
		t.Fatalf("first load error = %v", err)
	}
	if first.RowsInserted != 3 || first.RowsDuplicate != 0 {
		t.Errorf("first load = %+v, want 3 inserted / 0 duplicate", first)
	}

	second, err := loader.Run(ctx)
	if err != nil {
		t.Fatalf("second load error = %v", err)
	}
	if second.RowsInserted != 0 || second.RowsDuplicate != 3 {
		t.Errorf("second load = %+v, want 0 inserted / 3 duplicate", second)
	}

	count, err := db.CountStreams(ctx)
	if err != nil {
		t.Fatalf("CountStreams() error = %v", err)
	}
	if count != 3 {
		t.Errorf("CountStreams() = %d, want 3", count)
	}

	runs, err := db.IngestRuns(ctx, 10)
	if err != nil {
		t.Fatalf("IngestRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("IngestRuns() = %d runs, want 2", len(runs))
	}
	// The re-run's record carries the duplicates found by the ID
	// pre-check, not just conflict-skipped rows.
	if runs[0].RowsInserted != 0 || runs[0].RowsDuplicate != 3 {
		t.Errorf("latest run = %+v, want 0 inserted / 3 duplicate", runs[0])
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	cfg := &config.Config{
		Extract: *testExtractConfig(t),
		Load: config.LoadConfig{
			BatchSize:     1000,
			RetryAttempts: 3,
			RetryDelay:    time.Millisecond,
		},
	}

	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "512MB"})
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	client := &fakeHelix{streams: sampleStreams(), games: sampleGames()}
	result, err := NewPipeline(client, db, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Extract.StreamCount != 3 || result.Transform.RowCount != 3 || result.Load.RowsInserted != 3 {
		t.Errorf("pipeline result = %+v, want 3 rows through every stage", result)
	}

	summary, err := db.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if summary.TotalStreams != 3 {
		t.Errorf("TotalStreams = %d, want 3", summary.TotalStreams)
	}
}
