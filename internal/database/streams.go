// Streamlens - Twitch Live Stream ETL and Analytics
// SPDX-License-Identifier: MIT

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/streamlens/streamlens/internal/logging"
	"github.com/streamlens/streamlens/internal/metrics"
	"github.com/streamlens/streamlens/internal/models"
)

// recordQuery updates the query metrics for one database operation.
func recordQuery(operation string, start time.Time, err error) {
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

// ExistingStreamIDs returns the subset of the given stream IDs that are
// already present in the streams table. Used by the loader to report
// duplicate counts without relying on insert conflicts alone.
func (db *DB) ExistingStreamIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	start := time.Now()
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	existing := make(map[string]struct{})
	if len(ids) == 0 {
		return existing, nil
	}

	// Chunk the IN list to keep statements bounded on large snapshots.
	const chunkSize = 1000
	for lo := 0; lo < len(ids); lo += chunkSize {
		hi := lo + chunkSize
		if hi > len(ids) {
			hi = len(ids)
		}
		chunk := ids[lo:hi]

		placeholders := strings.Repeat("?,", len(chunk))
		placeholders = placeholders[:len(placeholders)-1]
		query := fmt.Sprintf("SELECT id FROM streams WHERE id IN (%s)", placeholders)

		args := make([]interface{}, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		rows, err := db.conn.QueryContext(ctx, query, args...)
		if err != nil {
			recordQuery("existing_stream_ids", start, err)
			return nil, fmt.Errorf("failed to query existing stream IDs: %w", err)
		}

		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				_ = rows.Close()
				recordQuery("existing_stream_ids", start, err)
				return nil, fmt.Errorf("failed to scan stream ID: %w", err)
			}
			existing[id] = struct{}{}
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			recordQuery("existing_stream_ids", start, err)
			return nil, fmt.Errorf("failed to iterate stream IDs: %w", err)
		}
	}

	recordQuery("existing_stream_ids", start, nil)
	return existing, nil
}

// insertStreamsTx appends stream snapshots within an open transaction.
// Rows whose ID already exists are skipped via ON CONFLICT DO NOTHING.
// Returns the number of rows inserted and the number skipped as
// duplicates.
func insertStreamsTx(ctx context.Context, tx *sql.Tx, streams []models.Stream) (inserted, duplicates int, err error) {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO streams (
		id, user_id, user_login, user_name, game_id, game_name,
		type, title, viewer_count, language, started_at,
		hour_of_day, weekday, is_weekend, tags, is_mature, ingested_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to prepare stream insert: %w", err)
	}
	defer closeQuietly(stmt)

	for i := range streams {
		s := &streams[i]
		res, execErr := stmt.ExecContext(ctx,
			s.ID, s.UserID, s.UserLogin, s.UserName, s.GameID, s.GameName,
			s.Type, s.Title, s.ViewerCount, s.Language, s.StartedAt,
			s.HourOfDay, s.Weekday, s.IsWeekend, s.Tags, s.IsMature, s.IngestedAt,
		)
		if execErr != nil {
			return 0, 0, fmt.Errorf("failed to insert stream %s: %w", s.ID, execErr)
		}

		affected, raErr := res.RowsAffected()
		if raErr != nil {
			return 0, 0, fmt.Errorf("failed to read rows affected for stream %s: %w", s.ID, raErr)
		}
		if affected > 0 {
			inserted++
		} else {
			duplicates++
		}
	}
	return inserted, duplicates, nil
}

// InsertStreamsBatch appends stream snapshots inside a single transaction.
// Rows whose ID already exists are skipped via ON CONFLICT DO NOTHING, so
// re-loading the same snapshot inserts nothing. Returns the number of rows
// inserted and the number skipped as duplicates. Any error rolls back the
// whole batch.
func (db *DB) InsertStreamsBatch(ctx context.Context, streams []models.Stream) (inserted, duplicates int, err error) {
	start := time.Now()
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if len(streams) == 0 {
		return 0, 0, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		recordQuery("insert_streams", start, err)
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Warn().Err(rbErr).Msg("Failed to rollback stream insert")
			}
		}
	}()

	inserted, duplicates, err = insertStreamsTx(ctx, tx, streams)
	if err != nil {
		recordQuery("insert_streams", start, err)
		return 0, 0, err
	}

	if err = tx.Commit(); err != nil {
		recordQuery("insert_streams", start, err)
		return 0, 0, fmt.Errorf("failed to commit stream insert: %w", err)
	}

	recordQuery("insert_streams", start, nil)
	metrics.RowsInserted.Add(float64(inserted))
	metrics.RowsDuplicate.Add(float64(duplicates))
	metrics.LoadBatchSize.Observe(float64(len(streams)))
	return inserted, duplicates, nil
}

// LoadSnapshot performs one ingest run atomically: unseen stream rows,
// the game catalog refresh and the ingest_runs record are committed in a
// single transaction, so a failed load leaves the store unchanged.
// run.RowsDuplicate may be pre-filled by the caller with duplicates found
// during its ID pre-check; conflict-skipped rows are added to it in the
// recorded run. streams are inserted in batchSize slices per prepared
// execution round for progress metrics.
func (db *DB) LoadSnapshot(ctx context.Context, streams []models.Stream, games []models.Game, run *models.IngestRun, batchSize int) (inserted, duplicates int, err error) {
	start := time.Now()
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if batchSize <= 0 {
		batchSize = len(streams)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		recordQuery("load_snapshot", start, err)
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Warn().Err(rbErr).Msg("Failed to rollback load")
			}
		}
	}()

	for lo := 0; lo < len(streams); lo += batchSize {
		hi := lo + batchSize
		if hi > len(streams) {
			hi = len(streams)
		}
		batch := streams[lo:hi]

		ins, dup, insErr := insertStreamsTx(ctx, tx, batch)
		if insErr != nil {
			err = fmt.Errorf("loading batch [%d:%d]: %w", lo, hi, insErr)
			recordQuery("load_snapshot", start, err)
			return 0, 0, err
		}
		inserted += ins
		duplicates += dup
		metrics.LoadBatchSize.Observe(float64(len(batch)))
	}

	if err = upsertGamesTx(ctx, tx, games); err != nil {
		recordQuery("load_snapshot", start, err)
		return 0, 0, err
	}

	// Record the run inside the same transaction; the caller's run value
	// is left untouched so a retried load starts from its original counts.
	rec := *run
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.FinishedAt = time.Now().UTC()
	rec.RowsInserted = inserted
	rec.RowsDuplicate += duplicates
	if err = insertIngestRunTx(ctx, tx, &rec); err != nil {
		recordQuery("load_snapshot", start, err)
		return 0, 0, err
	}

	if err = tx.Commit(); err != nil {
		recordQuery("load_snapshot", start, err)
		return 0, 0, fmt.Errorf("failed to commit load: %w", err)
	}

	recordQuery("load_snapshot", start, nil)
	metrics.RowsInserted.Add(float64(inserted))
	metrics.RowsDuplicate.Add(float64(duplicates))
	return inserted, duplicates, nil
}

// upsertGamesTx inserts or refreshes game catalog entries within an open
// transaction. A nil or empty slice is a no-op.
func upsertGamesTx(ctx context.Context, tx *sql.Tx, games []models.Game) error {
	if len(games) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO games (id, name, box_art_url, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			box_art_url = excluded.box_art_url,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare game upsert: %w", err)
	}
	defer closeQuietly(stmt)

	for i := range games {
		g := &games[i]
		if _, err := stmt.ExecContext(ctx, g.ID, g.Name, g.BoxArtURL, g.UpdatedAt); err != nil {
			return fmt.Errorf("failed to upsert game %s: %w", g.ID, err)
		}
	}
	return nil
}

// UpsertGames inserts or refreshes game catalog entries.
func (db *DB) UpsertGames(ctx context.Context, games []models.Game) error {
	start := time.Now()
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if len(games) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		recordQuery("upsert_games", start, err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := upsertGamesTx(ctx, tx, games); err != nil {
		_ = tx.Rollback()
		recordQuery("upsert_games", start, err)
		return err
	}

	if err := tx.Commit(); err != nil {
		recordQuery("upsert_games", start, err)
		return fmt.Errorf("failed to commit game upsert: %w", err)
	}

	recordQuery("upsert_games", start, nil)
	return nil
}

// insertIngestRunTx records a load run within an open transaction.
func insertIngestRunTx(ctx context.Context, tx *sql.Tx, run *models.IngestRun) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO ingest_runs (
		id, started_at, finished_at, streams_fetched, rows_inserted, rows_duplicate
	) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt, run.FinishedAt, run.StreamsFetched, run.RowsInserted, run.RowsDuplicate,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ingest run: %w", err)
	}
	return nil
}

// InsertIngestRun records a completed load run.
func (db *DB) InsertIngestRun(ctx context.Context, run *models.IngestRun) error {
	start := time.Now()
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	_, err := db.conn.ExecContext(ctx, `INSERT INTO ingest_runs (
		id, started_at, finished_at, streams_fetched, rows_inserted, rows_duplicate
	) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt, run.FinishedAt, run.StreamsFetched, run.RowsInserted, run.RowsDuplicate,
	)
	recordQuery("insert_ingest_run", start, err)
	if err != nil {
		return fmt.Errorf("failed to insert ingest run: %w", err)
	}
	return nil
}

// CountStreams returns the total number of stored stream snapshots.
func (db *DB) CountStreams(ctx context.Context) (int64, error) {
	start := time.Now()
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var count int64
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM streams").Scan(&count)
	recordQuery("count_streams", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to count streams: %w", err)
	}
	return count, nil
}
