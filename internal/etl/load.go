// Streamlens - Twitch Live Stream ETL and Analytics
// SPDX-License-Identifier: MIT

package etl

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/streamlens/streamlens/internal/config"
	"github.com/streamlens/streamlens/internal/database"
	"github.com/streamlens/streamlens/internal/logging"
	"github.com/streamlens/streamlens/internal/metrics"
	"github.com/streamlens/streamlens/internal/models"
)

// LoadResult summarizes one load run.
type LoadResult struct {
	StreamsRead   int
	RowsInserted  int
	RowsDuplicate int
}

// Loader appends the processed snapshot into DuckDB. Loading is
// idempotent: rows whose stream ID is already stored are skipped, so
// re-running the same snapshot inserts nothing.
type Loader struct {
	db         *database.DB
	extractCfg *config.ExtractConfig
	cfg        *config.LoadConfig
}

// NewLoader creates a loader reading from extractCfg's directories.
func NewLoader(db *database.DB, extractCfg *config.ExtractConfig, cfg *config.LoadConfig) *Loader {
	return &Loader{db: db, extractCfg: extractCfg, cfg: cfg}
}

// Run reads the processed CSV, stamps every row with a single ingestion
// timestamp, checks which stream IDs are already stored, and commits the
// unseen rows, the game catalog refresh and the ingest_runs record in one
// transaction. A failed load leaves the store unchanged.
func (l *Loader) Run(ctx context.Context) (result *LoadResult, err error) {
	start := time.Now()
	defer func() { metrics.RecordStage("load", time.Since(start), err) }()

	streams, err := readProcessed(filepath.Join(l.extractCfg.ProcessedDir, ProcessedFile))
	if err != nil {
		return nil, err
	}

	// One timestamp for the whole run so rows of a run group together
	// in the ingestion-history report.
	ingestedAt := time.Now().UTC()
	for i := range streams {
		streams[i].IngestedAt = ingestedAt
	}

	// Pre-check which IDs are stored; ON CONFLICT DO NOTHING in the
	// insert remains the second guard.
	ids := make([]string, len(streams))
	for i := range streams {
		ids[i] = streams[i].ID
	}
	existing, err := l.db.ExistingStreamIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	unseen := make([]models.Stream, 0, len(streams))
	for i := range streams {
		if _, ok := existing[streams[i].ID]; !ok {
			unseen = append(unseen, streams[i])
		}
	}
	preDuplicates := len(streams) - len(unseen)

	games, err := l.readGames(ingestedAt)
	if err != nil {
		return nil, err
	}

	run := &models.IngestRun{
		StartedAt:      start.UTC(),
		StreamsFetched: len(streams),
		RowsDuplicate:  preDuplicates,
	}

	var inserted, conflictDups int
	err = l.retryWithBackoff(ctx, func() error {
		ins, dup, loadErr := l.db.LoadSnapshot(ctx, unseen, games, run, l.cfg.BatchSize)
		if loadErr != nil {
			return loadErr
		}
		inserted = ins
		conflictDups = dup
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	duplicates := preDuplicates + conflictDups

	logging.Info().Int("read", len(streams)).Int("inserted", inserted).Int("duplicates", duplicates).Msg("Load complete")
	return &LoadResult{StreamsRead: len(streams), RowsInserted: inserted, RowsDuplicate: duplicates}, nil
}

// readGames reads the raw game snapshot for the catalog refresh.
func (l *Loader) readGames(updatedAt time.Time) ([]models.Game, error) {
	raw, err := readRawGames(filepath.Join(l.extractCfg.RawDir, RawGamesFile))
	if err != nil {
		return nil, err
	}

	games := make([]models.Game, 0, len(raw))
	for _, g := range raw {
		games = append(games, models.Game{
			ID:        g.ID,
			Name:      g.Name,
			BoxArtURL: g.BoxArtURL,
			UpdatedAt: updatedAt,
		})
	}
	return games, nil
}

// retryWithBackoff executes fn with exponential backoff on failure. The
// context is checked before each attempt and during backoff waits.
func (l *Loader) retryWithBackoff(ctx context.Context, fn func() error) error {
	var err error
	delay := l.cfg.RetryDelay

	for attempt := 0; attempt < l.cfg.RetryAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = fn()
		if err == nil {
			return nil
		}

		if attempt < l.cfg.RetryAttempts-1 {
			logging.Warn().Err(err).Int("attempt", attempt+1).Int("max_attempts", l.cfg.RetryAttempts).Dur("delay", delay).Msg("Retry attempt")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
	}

	return fmt.Errorf("max retry attempts reached: %w", err)
}
