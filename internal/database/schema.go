// Streamlens - Twitch Live Stream ETL and Analytics
// SPDX-License-Identifier: MIT

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createSchema creates tables and indexes if they do not exist.
func (db *DB) createSchema() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := []string{
		// Stream snapshots. The stream ID is the Helix stream identifier,
		// unique per broadcast, which makes re-loads idempotent.
		`CREATE TABLE IF NOT EXISTS streams (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			user_login TEXT NOT NULL,
			user_name TEXT NOT NULL,
			game_id TEXT,
			game_name TEXT,
			type TEXT,
			title TEXT,
			viewer_count INTEGER NOT NULL,
			language TEXT,
			started_at TIMESTAMP,
			hour_of_day INTEGER,
			weekday TEXT,
			is_weekend BOOLEAN NOT NULL DEFAULT FALSE,
			tags TEXT,
			is_mature BOOLEAN NOT NULL DEFAULT FALSE,
			ingested_at TIMESTAMP NOT NULL
		)`,

		// Game catalog, upserted on every run that sees new categories.
		`CREATE TABLE IF NOT EXISTS games (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			box_art_url TEXT,
			updated_at TIMESTAMP NOT NULL
		)`,

		// One row per load run, for the ingestion-history report.
		`CREATE TABLE IF NOT EXISTS ingest_runs (
			id UUID PRIMARY KEY,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL,
			streams_fetched INTEGER NOT NULL,
			rows_inserted INTEGER NOT NULL,
			rows_duplicate INTEGER NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_streams_started_at ON streams(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_streams_game_id ON streams(game_id)`,
		`CREATE INDEX IF NOT EXISTS idx_streams_language ON streams(language)`,
		`CREATE INDEX IF NOT EXISTS idx_streams_hour_of_day ON streams(hour_of_day)`,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}
