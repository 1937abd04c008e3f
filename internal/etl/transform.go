// Streamlens - Twitch Live Stream ETL and Analytics
// SPDX-License-Identifier: MIT

package etl

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/streamlens/streamlens/internal/config"
	"github.com/streamlens/streamlens/internal/logging"
	"github.com/streamlens/streamlens/internal/metrics"
	"github.com/streamlens/streamlens/internal/models"
	"github.com/streamlens/streamlens/internal/models/helix"
	"github.com/streamlens/streamlens/internal/twitch"
)

// unknownGameName is assigned to streams whose game cannot be resolved.
const unknownGameName = "Unknown"

// TransformResult summarizes one transform run.
type TransformResult struct {
	ProcessedPath string
	RowCount      int
}

// Transformer derives analytical fields from the raw snapshot and joins
// game names, producing the processed CSV the loader consumes.
type Transformer struct {
	client twitch.HelixAPI // may be nil: game gaps then stay "Unknown"
	cfg    *config.ExtractConfig
}

// NewTransformer creates a transformer reading from cfg.RawDir and
// writing into cfg.ProcessedDir. The Helix client is optional and only
// used to resolve game IDs absent from the raw game snapshot.
func NewTransformer(client twitch.HelixAPI, cfg *config.ExtractConfig) *Transformer {
	return &Transformer{client: client, cfg: cfg}
}

// Run reads the raw snapshots, derives hour-of-day, weekday and weekend
// flags in UTC, joins game names (falling back to a Helix lookup, then
// to "Unknown"), and writes the processed CSV.
func (t *Transformer) Run(ctx context.Context) (result *TransformResult, err error) {
	start := time.Now()
	defer func() { metrics.RecordStage("transform", time.Since(start), err) }()

	raw, err := readRawStreams(filepath.Join(t.cfg.RawDir, RawStreamsFile))
	if err != nil {
		return nil, err
	}
	games, err := readRawGames(filepath.Join(t.cfg.RawDir, RawGamesFile))
	if err != nil {
		return nil, err
	}

	gameNames := make(map[string]string, len(games))
	for _, g := range games {
		gameNames[g.ID] = g.Name
	}

	if err = t.fillGameGaps(ctx, raw, gameNames); err != nil {
		return nil, err
	}

	streams := make([]models.Stream, 0, len(raw))
	for _, r := range raw {
		streams = append(streams, t.toModel(r, gameNames))
	}

	processedPath := filepath.Join(t.cfg.ProcessedDir, ProcessedFile)
	if err = writeProcessed(processedPath, streams); err != nil {
		return nil, err
	}

	logging.Info().Int("rows", len(streams)).Str("path", processedPath).Msg("Transform complete")
	return &TransformResult{ProcessedPath: processedPath, RowCount: len(streams)}, nil
}

// fillGameGaps resolves game IDs that are referenced by streams but
// missing from the raw game snapshot.
func (t *Transformer) fillGameGaps(ctx context.Context, raw []helix.Stream, gameNames map[string]string) error {
	if t.client == nil {
		return nil
	}

	have := make(map[string]struct{}, len(gameNames))
	for id := range gameNames {
		have[id] = struct{}{}
	}
	missing := uniqueGameIDs(raw, have)
	if len(missing) == 0 {
		return nil
	}

	logging.Debug().Int("missing", len(missing)).Msg("Resolving game IDs absent from raw snapshot")
	fetched, err := t.client.GetGames(ctx, missing)
	if err != nil {
		return err
	}
	for _, g := range fetched {
		gameNames[g.ID] = g.Name
	}
	return nil
}

// toModel converts a wire record to the domain model with derived fields.
func (t *Transformer) toModel(r helix.Stream, gameNames map[string]string) models.Stream {
	s := models.Stream{
		ID:          r.ID,
		UserID:      r.UserID,
		UserLogin:   r.UserLogin,
		UserName:    r.UserName,
		GameID:      r.GameID,
		GameName:    r.GameName,
		Type:        r.Type,
		Title:       r.Title,
		ViewerCount: r.ViewerCount,
		Language:    r.Language,
		Tags:        strings.Join(r.Tags, ","),
		IsMature:    r.IsMature,
	}

	if name, ok := gameNames[r.GameID]; ok && name != "" {
		s.GameName = name
	}
	if s.GameName == "" {
		s.GameName = unknownGameName
	}

	if r.StartedAt != "" {
		if ts, err := time.Parse(time.RFC3339, r.StartedAt); err == nil {
			ts = ts.UTC()
			s.StartedAt = &ts
		} else {
			logging.Warn().Str("stream_id", r.ID).Str("started_at", r.StartedAt).Msg("Unparseable start time, derived fields left empty")
		}
	}
	s.DeriveTimeFields()

	return s
}
