// Streamlens - Twitch Live Stream ETL and Analytics
// SPDX-License-Identifier: MIT

package etl

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/streamlens/streamlens/internal/config"
	"github.com/streamlens/streamlens/internal/logging"
	"github.com/streamlens/streamlens/internal/metrics"
	"github.com/streamlens/streamlens/internal/models/helix"
	"github.com/streamlens/streamlens/internal/twitch"
)

// ExtractResult summarizes one extract run.
type ExtractResult struct {
	StreamsPath string
	GamesPath   string
	StreamCount int
	GameCount   int
}

// Extractor pulls the current live snapshot from Helix and writes the
// raw CSV files.
type Extractor struct {
	client twitch.HelixAPI
	cfg    *config.ExtractConfig
}

// NewExtractor creates an extractor writing into cfg.RawDir.
func NewExtractor(client twitch.HelixAPI, cfg *config.ExtractConfig) *Extractor {
	return &Extractor{client: client, cfg: cfg}
}

// Run fetches live streams and their game catalog and writes both raw
// snapshots. An empty snapshot is a warning, not an error: the header-only
// CSVs are still written so downstream stages behave uniformly.
func (e *Extractor) Run(ctx context.Context) (result *ExtractResult, err error) {
	start := time.Now()
	defer func() { metrics.RecordStage("extract", time.Since(start), err) }()

	streams, err := e.client.FetchStreams(ctx)
	if err != nil {
		return nil, err
	}
	if len(streams) == 0 {
		logging.Warn().Msg("No streams returned; increase max_pages or relax the language filter")
	}

	games, err := e.fetchGames(ctx, streams)
	if err != nil {
		return nil, err
	}

	streamsPath := filepath.Join(e.cfg.RawDir, RawStreamsFile)
	gamesPath := filepath.Join(e.cfg.RawDir, RawGamesFile)

	if err = writeRawStreams(streamsPath, streams); err != nil {
		return nil, err
	}
	if err = writeRawGames(gamesPath, games); err != nil {
		return nil, err
	}

	logging.Info().Int("streams", len(streams)).Int("games", len(games)).
		Str("streams_path", streamsPath).Str("games_path", gamesPath).Msg("Extract complete")

	return &ExtractResult{
		StreamsPath: streamsPath,
		GamesPath:   gamesPath,
		StreamCount: len(streams),
		GameCount:   len(games),
	}, nil
}

// fetchGames resolves the unique game IDs referenced by the snapshot,
// with one follow-up pass for IDs missing from the first response.
func (e *Extractor) fetchGames(ctx context.Context, streams []helix.Stream) ([]helix.Game, error) {
	ids := uniqueGameIDs(streams, nil)
	if len(ids) == 0 {
		return nil, nil
	}

	games, err := e.client.GetGames(ctx, ids)
	if err != nil {
		return nil, err
	}

	have := make(map[string]struct{}, len(games))
	for _, g := range games {
		have[g.ID] = struct{}{}
	}

	if missing := uniqueGameIDs(streams, have); len(missing) > 0 {
		logging.Debug().Int("missing", len(missing)).Msg("Re-fetching games missing from first pass")
		more, err := e.client.GetGames(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, g := range more {
			if _, ok := have[g.ID]; !ok {
				have[g.ID] = struct{}{}
				games = append(games, g)
			}
		}
	}

	return games, nil
}

// uniqueGameIDs returns the sorted unique game IDs of the snapshot,
// skipping blanks and any IDs already in have.
func uniqueGameIDs(streams []helix.Stream, have map[string]struct{}) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, s := range streams {
		if s.GameID == "" {
			continue
		}
		if _, ok := have[s.GameID]; ok {
			continue
		}
		if _, ok := seen[s.GameID]; ok {
			continue
		}
		seen[s.GameID] = struct{}{}
		ids = append(ids, s.GameID)
	}
	sort.Strings(ids)
	return ids
}
