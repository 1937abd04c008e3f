// Streamlens - Twitch Live Stream ETL and Analytics
// SPDX-License-Identifier: MIT

package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// exportDatasets maps exportable dataset names to their SELECT. The
// aggregate queries mirror the analytics endpoints; parameterized ones
// (top games) are not exportable.
var exportDatasets = map[string]string{
	"streams": `SELECT * FROM streams ORDER BY started_at`,
	"games":   `SELECT * FROM games ORDER BY name`,
	"peak-hours": `SELECT
		hour_of_day,
		COUNT(*) AS stream_count,
		ROUND(AVG(viewer_count), 2) AS avg_viewers,
		SUM(viewer_count) AS total_viewers
	FROM streams
	WHERE hour_of_day IS NOT NULL
	GROUP BY hour_of_day
	ORDER BY hour_of_day`,
	"languages": `SELECT
		language,
		COUNT(*) AS stream_count,
		SUM(viewer_count) AS total_viewers,
		ROUND(COUNT(*) * 100.0 / SUM(COUNT(*)) OVER (), 2) AS percentage
	FROM streams
	GROUP BY language
	ORDER BY stream_count DESC`,
	"daily-trends": `SELECT
		CAST(started_at AS DATE) AS day,
		COUNT(*) AS stream_count,
		SUM(viewer_count) AS total_viewers,
		COUNT(DISTINCT user_id) AS unique_streamers
	FROM streams
	WHERE started_at IS NOT NULL
	GROUP BY day
	ORDER BY day`,
	"streamers": `SELECT
		user_name,
		user_login,
		COUNT(*) AS stream_count,
		SUM(viewer_count) AS total_viewers,
		MAX(viewer_count) AS max_viewers
	FROM streams
	GROUP BY user_name, user_login
	ORDER BY total_viewers DESC`,
	"ingest-runs": `SELECT * FROM ingest_runs ORDER BY started_at`,
}

// ExportDatasets lists the names accepted by ExportCSV, sorted.
func ExportDatasets() []string {
	names := make([]string, 0, len(exportDatasets))
	for name := range exportDatasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExportCSV writes the named dataset to a CSV file using DuckDB's native
// COPY, creating the parent directory if needed.
func (db *DB) ExportCSV(ctx context.Context, dataset, outputPath string) error {
	start := time.Now()
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query, ok := exportDatasets[dataset]
	if !ok {
		return fmt.Errorf("unknown export dataset %q (have: %v)", dataset, ExportDatasets())
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create export directory %s: %w", dir, err)
		}
	}

	copyStmt := fmt.Sprintf("COPY (%s) TO ? (FORMAT CSV, HEADER true)", query)
	_, err := db.conn.ExecContext(ctx, copyStmt, outputPath)
	recordQuery("export_csv", start, err)
	if err != nil {
		return fmt.Errorf("failed to export %s CSV: %w", dataset, err)
	}
	return nil
}

// ExportStreamsCSV writes the full streams table to a CSV file.
func (db *DB) ExportStreamsCSV(ctx context.Context, outputPath string) error {
	return db.ExportCSV(ctx, "streams", outputPath)
}
