// Streamlens - Twitch Live Stream ETL and Analytics
// SPDX-License-Identifier: MIT

package models

import (
	"time"

	"github.com/google/uuid"
)

// HourlyStats aggregates viewership for one hour of day (UTC).
type HourlyStats struct {
	HourOfDay    int     `json:"hour_of_day"`
	StreamCount  int64   `json:"stream_count"`
	AvgViewers   float64 `json:"avg_viewers"`
	TotalViewers int64   `json:"total_viewers"`
	MaxViewers   int64   `json:"max_viewers"`
	MinViewers   int64   `json:"min_viewers"`
}

// GameStats aggregates viewership for one game.
type GameStats struct {
	GameName        string  `json:"game_name"`
	StreamCount     int64   `json:"stream_count"`
	AvgViewers      float64 `json:"avg_viewers"`
	TotalViewers    int64   `json:"total_viewers"`
	MaxViewers      int64   `json:"max_viewers"`
	UniqueStreamers int64   `json:"unique_streamers"`
}

// WeekdayStats aggregates viewership for one day of week.
type WeekdayStats struct {
	Weekday      string  `json:"weekday"`
	IsWeekend    bool    `json:"is_weekend"`
	StreamCount  int64   `json:"stream_count"`
	AvgViewers   float64 `json:"avg_viewers"`
	TotalViewers int64   `json:"total_viewers"`
	MaxViewers   int64   `json:"max_viewers"`
}

// LanguageStats aggregates viewership for one broadcast language.
type LanguageStats struct {
	Language     string  `json:"language"`
	StreamCount  int64   `json:"stream_count"`
	TotalViewers int64   `json:"total_viewers"`
	AvgViewers   float64 `json:"avg_viewers"`
	Percentage   float64 `json:"percentage"`
}

// DailyTrend aggregates one calendar day of stream starts.
type DailyTrend struct {
	Date            time.Time `json:"date"`
	StreamCount     int64     `json:"stream_count"`
	TotalViewers    int64     `json:"total_viewers"`
	AvgViewers      float64   `json:"avg_viewers"`
	UniqueStreamers int64     `json:"unique_streamers"`
	UniqueGames     int64     `json:"unique_games"`
}

// StreamerStats aggregates viewership for one broadcaster.
type StreamerStats struct {
	UserName     string  `json:"user_name"`
	UserLogin    string  `json:"user_login"`
	StreamCount  int64   `json:"stream_count"`
	TotalViewers int64   `json:"total_viewers"`
	AvgViewers   float64 `json:"avg_viewers"`
	MaxViewers   int64   `json:"max_viewers"`
	DaysActive   int64   `json:"days_active"`
}

// IngestRun is the audit row recorded by each load, the row shape of the
// ingest_runs table.
type IngestRun struct {
	ID             uuid.UUID `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	StreamsFetched int       `json:"streams_fetched"`
	RowsInserted   int       `json:"rows_inserted"`
	RowsDuplicate  int       `json:"rows_duplicate"`
}

// IngestionDay aggregates load activity for one calendar day.
type IngestionDay struct {
	Date              time.Time  `json:"date"`
	RowsIngested      int64      `json:"rows_ingested"`
	UniqueStreamDates int64      `json:"unique_stream_dates"`
	EarliestStream    *time.Time `json:"earliest_stream"`
	LatestStream      *time.Time `json:"latest_stream"`
}

// Summary is the overall shape of the accumulated dataset.
type Summary struct {
	TotalStreams    int64      `json:"total_streams"`
	UniqueDays      int64      `json:"unique_days"`
	EarliestDate    *time.Time `json:"earliest_date"`
	LatestDate      *time.Time `json:"latest_date"`
	UniqueStreamers int64      `json:"unique_streamers"`
	UniqueGames     int64      `json:"unique_games"`
	UniqueLanguages int64      `json:"unique_languages"`
	TotalViewers    int64      `json:"total_viewers"`
	AvgViewers      float64    `json:"avg_viewers"`
	FirstIngestion  *time.Time `json:"first_ingestion"`
	LastIngestion   *time.Time `json:"last_ingestion"`
}
