// Streamlens - Twitch Live Stream ETL and Analytics
// SPDX-License-Identifier: MIT

package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/streamlens/streamlens/internal/config"
	"github.com/streamlens/streamlens/internal/database"
	"github.com/streamlens/streamlens/internal/logging"
	"github.com/streamlens/streamlens/internal/twitch"
)

// PipelineResult aggregates the stage summaries of one full run.
type PipelineResult struct {
	Extract   *ExtractResult
	Transform *TransformResult
	Load      *LoadResult
	Duration  time.Duration
}

// Pipeline runs extract, transform and load in sequence against shared
// configuration. A stage failure aborts the run; completed stages keep
// their on-disk output so the run can be resumed stage by stage.
type Pipeline struct {
	extractor   *Extractor
	transformer *Transformer
	loader      *Loader
}

// NewPipeline wires the three stages from shared dependencies.
func NewPipeline(client twitch.HelixAPI, db *database.DB, cfg *config.Config) *Pipeline {
	return &Pipeline{
		extractor:   NewExtractor(client, &cfg.Extract),
		transformer: NewTransformer(client, &cfg.Extract),
		loader:      NewLoader(db, &cfg.Extract, &cfg.Load),
	}
}

// Run executes the full ETL sequence.
func (p *Pipeline) Run(ctx context.Context) (*PipelineResult, error) {
	start := time.Now()
	logging.Info().Msg("Starting ETL run")

	extract, err := p.extractor.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("extract stage: %w", err)
	}

	transform, err := p.transformer.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("transform stage: %w", err)
	}

	load, err := p.loader.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stage: %w", err)
	}

	result := &PipelineResult{
		Extract:   extract,
		Transform: transform,
		Load:      load,
		Duration:  time.Since(start),
	}
	logging.Info().Dur("duration", result.Duration).
		Int("fetched", extract.StreamCount).
		Int("inserted", load.RowsInserted).
		Int("duplicates", load.RowsDuplicate).
		Msg("ETL run complete")
	return result, nil
}
