// Streamlens - Twitch Live Stream ETL and Analytics
// SPDX-License-Identifier: MIT

/*
analytics.go - Aggregate Queries

All analytics run directly against DuckDB; the columnar engine handles
these aggregations without intermediate materialization. Grouped results
come back ordered so reports and charts can render them without a sort
pass. Weekday ordering is Monday-first.
*/

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/streamlens/streamlens/internal/models"
)

// weekdayOrder is the Monday-first CASE expression shared by the
// weekday-grouped queries.
const weekdayOrder = `CASE weekday
		WHEN 'Monday' THEN 1
		WHEN 'Tuesday' THEN 2
		WHEN 'Wednesday' THEN 3
		WHEN 'Thursday' THEN 4
		WHEN 'Friday' THEN 5
		WHEN 'Saturday' THEN 6
		WHEN 'Sunday' THEN 7
	END`

// PeakHours aggregates viewership by hour of day (UTC), ordered by hour.
func (db *DB) PeakHours(ctx context.Context) ([]models.HourlyStats, error) {
	start := time.Now()
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT
		hour_of_day,
		COUNT(*) AS stream_count,
		ROUND(AVG(viewer_count), 2) AS avg_viewers,
		SUM(viewer_count) AS total_viewers,
		MAX(viewer_count) AS max_viewers,
		MIN(viewer_count) AS min_viewers
	FROM streams
	WHERE hour_of_day IS NOT NULL
	GROUP BY hour_of_day
	ORDER BY hour_of_day`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		recordQuery("peak_hours", start, err)
		return nil, fmt.Errorf("failed to query peak hours: %w", err)
	}
	defer closeQuietly(rows)

	var stats []models.HourlyStats
	for rows.Next() {
		var h models.HourlyStats
		if err := rows.Scan(&h.HourOfDay, &h.StreamCount, &h.AvgViewers, &h.TotalViewers, &h.MaxViewers, &h.MinViewers); err != nil {
			recordQuery("peak_hours", start, err)
			return nil, fmt.Errorf("failed to scan hourly stats: %w", err)
		}
		stats = append(stats, h)
	}
	recordQuery("peak_hours", start, rows.Err())
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate hourly stats: %w", err)
	}
	return stats, nil
}

// TopGames ranks games by average viewers. Games with fewer than
// minStreams snapshots are excluded, as is the Unknown placeholder for
// streams whose game could not be resolved; at most topN rows are
// returned.
func (db *DB) TopGames(ctx context.Context, minStreams, topN int) ([]models.GameStats, error) {
	start := time.Now()
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT
		game_name,
		COUNT(*) AS stream_count,
		ROUND(AVG(viewer_count), 2) AS avg_viewers,
		SUM(viewer_count) AS total_viewers,
		MAX(viewer_count) AS max_viewers,
		COUNT(DISTINCT user_id) AS unique_streamers
	FROM streams
	WHERE game_name IS NOT NULL AND game_name != '' AND game_name != 'Unknown'
	GROUP BY game_name
	HAVING COUNT(*) >= ?
	ORDER BY avg_viewers DESC
	LIMIT ?`

	rows, err := db.conn.QueryContext(ctx, query, minStreams, topN)
	if err != nil {
		recordQuery("top_games", start, err)
		return nil, fmt.Errorf("failed to query top games: %w", err)
	}
	defer closeQuietly(rows)

	var stats []models.GameStats
	for rows.Next() {
		var g models.GameStats
		if err := rows.Scan(&g.GameName, &g.StreamCount, &g.AvgViewers, &g.TotalViewers, &g.MaxViewers, &g.UniqueStreamers); err != nil {
			recordQuery("top_games", start, err)
			return nil, fmt.Errorf("failed to scan game stats: %w", err)
		}
		stats = append(stats, g)
	}
	recordQuery("top_games", start, rows.Err())
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate game stats: %w", err)
	}
	return stats, nil
}

// WeekendBreakdown aggregates viewership per weekday, Monday first.
func (db *DB) WeekendBreakdown(ctx context.Context) ([]models.WeekdayStats, error) {
	start := time.Now()
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT
		weekday,
		is_weekend,
		COUNT(*) AS stream_count,
		ROUND(AVG(viewer_count), 2) AS avg_viewers,
		SUM(viewer_count) AS total_viewers,
		MAX(viewer_count) AS max_viewers
	FROM streams
	WHERE weekday IS NOT NULL
	GROUP BY weekday, is_weekend
	ORDER BY %s`, weekdayOrder)

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		recordQuery("weekend_breakdown", start, err)
		return nil, fmt.Errorf("failed to query weekend breakdown: %w", err)
	}
	defer closeQuietly(rows)

	var stats []models.WeekdayStats
	for rows.Next() {
		var w models.WeekdayStats
		if err := rows.Scan(&w.Weekday, &w.IsWeekend, &w.StreamCount, &w.AvgViewers, &w.TotalViewers, &w.MaxViewers); err != nil {
			recordQuery("weekend_breakdown", start, err)
			return nil, fmt.Errorf("failed to scan weekday stats: %w", err)
		}
		stats = append(stats, w)
	}
	recordQuery("weekend_breakdown", start, rows.Err())
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate weekday stats: %w", err)
	}
	return stats, nil
}

// LanguageDistribution aggregates viewership per broadcast language with
// each language's share of all snapshots.
func (db *DB) LanguageDistribution(ctx context.Context) ([]models.LanguageStats, error) {
	start := time.Now()
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT
		language,
		COUNT(*) AS stream_count,
		SUM(viewer_count) AS total_viewers,
		ROUND(AVG(viewer_count), 2) AS avg_viewers,
		ROUND(COUNT(*) * 100.0 / SUM(COUNT(*)) OVER (), 2) AS percentage
	FROM streams
	WHERE language IS NOT NULL AND language != ''
	GROUP BY language
	ORDER BY stream_count DESC`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		recordQuery("language_distribution", start, err)
		return nil, fmt.Errorf("failed to query language distribution: %w", err)
	}
	defer closeQuietly(rows)

	var stats []models.LanguageStats
	for rows.Next() {
		var l models.LanguageStats
		if err := rows.Scan(&l.Language, &l.StreamCount, &l.TotalViewers, &l.AvgViewers, &l.Percentage); err != nil {
			recordQuery("language_distribution", start, err)
			return nil, fmt.Errorf("failed to scan language stats: %w", err)
		}
		stats = append(stats, l)
	}
	recordQuery("language_distribution", start, rows.Err())
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate language stats: %w", err)
	}
	return stats, nil
}

// DailyTrends aggregates stream starts per calendar day, oldest first.
func (db *DB) DailyTrends(ctx context.Context) ([]models.DailyTrend, error) {
	start := time.Now()
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT
		CAST(started_at AS DATE) AS day,
		COUNT(*) AS stream_count,
		SUM(viewer_count) AS total_viewers,
		ROUND(AVG(viewer_count), 2) AS avg_viewers,
		COUNT(DISTINCT user_id) AS unique_streamers,
		COUNT(DISTINCT game_id) AS unique_games
	FROM streams
	WHERE started_at IS NOT NULL
	GROUP BY day
	ORDER BY day`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		recordQuery("daily_trends", start, err)
		return nil, fmt.Errorf("failed to query daily trends: %w", err)
	}
	defer closeQuietly(rows)

	var trends []models.DailyTrend
	for rows.Next() {
		var d models.DailyTrend
		if err := rows.Scan(&d.Date, &d.StreamCount, &d.TotalViewers, &d.AvgViewers, &d.UniqueStreamers, &d.UniqueGames); err != nil {
			recordQuery("daily_trends", start, err)
			return nil, fmt.Errorf("failed to scan daily trend: %w", err)
		}
		trends = append(trends, d)
	}
	recordQuery("daily_trends", start, rows.Err())
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate daily trends: %w", err)
	}
	return trends, nil
}

// TopStreamers ranks broadcasters by total viewers across snapshots.
func (db *DB) TopStreamers(ctx context.Context, topN int) ([]models.StreamerStats, error) {
	start := time.Now()
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT
		user_name,
		user_login,
		COUNT(*) AS stream_count,
		SUM(viewer_count) AS total_viewers,
		ROUND(AVG(viewer_count), 2) AS avg_viewers,
		MAX(viewer_count) AS max_viewers,
		COUNT(DISTINCT CAST(started_at AS DATE)) AS days_active
	FROM streams
	GROUP BY user_name, user_login
	ORDER BY total_viewers DESC
	LIMIT ?`

	rows, err := db.conn.QueryContext(ctx, query, topN)
	if err != nil {
		recordQuery("top_streamers", start, err)
		return nil, fmt.Errorf("failed to query top streamers: %w", err)
	}
	defer closeQuietly(rows)

	var stats []models.StreamerStats
	for rows.Next() {
		var s models.StreamerStats
		if err := rows.Scan(&s.UserName, &s.UserLogin, &s.StreamCount, &s.TotalViewers, &s.AvgViewers, &s.MaxViewers, &s.DaysActive); err != nil {
			recordQuery("top_streamers", start, err)
			return nil, fmt.Errorf("failed to scan streamer stats: %w", err)
		}
		stats = append(stats, s)
	}
	recordQuery("top_streamers", start, rows.Err())
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate streamer stats: %w", err)
	}
	return stats, nil
}

// IngestionHistory aggregates ingestion activity per calendar day of
// ingestion, newest first.
func (db *DB) IngestionHistory(ctx context.Context) ([]models.IngestionDay, error) {
	start := time.Now()
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT
		CAST(ingested_at AS DATE) AS day,
		COUNT(*) AS rows_ingested,
		COUNT(DISTINCT CAST(started_at AS DATE)) AS unique_stream_dates,
		MIN(started_at) AS earliest_stream,
		MAX(started_at) AS latest_stream
	FROM streams
	GROUP BY day
	ORDER BY day DESC`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		recordQuery("ingestion_history", start, err)
		return nil, fmt.Errorf("failed to query ingestion history: %w", err)
	}
	defer closeQuietly(rows)

	var days []models.IngestionDay
	for rows.Next() {
		var d models.IngestionDay
		if err := rows.Scan(&d.Date, &d.RowsIngested, &d.UniqueStreamDates, &d.EarliestStream, &d.LatestStream); err != nil {
			recordQuery("ingestion_history", start, err)
			return nil, fmt.Errorf("failed to scan ingestion day: %w", err)
		}
		days = append(days, d)
	}
	recordQuery("ingestion_history", start, rows.Err())
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ingestion history: %w", err)
	}
	return days, nil
}

// IngestRuns returns the most recent load runs, newest first.
func (db *DB) IngestRuns(ctx context.Context, limit int) ([]models.IngestRun, error) {
	start := time.Now()
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT id, started_at, finished_at, streams_fetched, rows_inserted, rows_duplicate
	FROM ingest_runs
	ORDER BY started_at DESC
	LIMIT ?`

	rows, err := db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		recordQuery("ingest_runs", start, err)
		return nil, fmt.Errorf("failed to query ingest runs: %w", err)
	}
	defer closeQuietly(rows)

	var runs []models.IngestRun
	for rows.Next() {
		var r models.IngestRun
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.StreamsFetched, &r.RowsInserted, &r.RowsDuplicate); err != nil {
			recordQuery("ingest_runs", start, err)
			return nil, fmt.Errorf("failed to scan ingest run: %w", err)
		}
		runs = append(runs, r)
	}
	recordQuery("ingest_runs", start, rows.Err())
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ingest runs: %w", err)
	}
	return runs, nil
}

// Summary returns the overall shape of the accumulated dataset.
func (db *DB) Summary(ctx context.Context) (*models.Summary, error) {
	start := time.Now()
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT
		COUNT(*) AS total_streams,
		COUNT(DISTINCT CAST(started_at AS DATE)) AS unique_days,
		MIN(CAST(started_at AS DATE)) AS earliest_date,
		MAX(CAST(started_at AS DATE)) AS latest_date,
		COUNT(DISTINCT user_id) AS unique_streamers,
		COUNT(DISTINCT game_id) AS unique_games,
		COUNT(DISTINCT language) AS unique_languages,
		COALESCE(SUM(viewer_count), 0) AS total_viewers,
		COALESCE(ROUND(AVG(viewer_count), 2), 0) AS avg_viewers,
		MIN(ingested_at) AS first_ingestion,
		MAX(ingested_at) AS last_ingestion
	FROM streams`

	var s models.Summary
	err := db.conn.QueryRowContext(ctx, query).Scan(
		&s.TotalStreams, &s.UniqueDays, &s.EarliestDate, &s.LatestDate,
		&s.UniqueStreamers, &s.UniqueGames, &s.UniqueLanguages,
		&s.TotalViewers, &s.AvgViewers, &s.FirstIngestion, &s.LastIngestion,
	)
	recordQuery("summary", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}
	return &s, nil
}
