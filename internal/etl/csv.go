// Streamlens - Twitch Live Stream ETL and Analytics
// SPDX-License-Identifier: MIT

// Package etl implements the extract, transform and load stages of the
// pipeline. Each stage hands off to the next through CSV snapshots on
// disk, so stages can be run independently and inspected between runs.
package etl

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/streamlens/streamlens/internal/models"
	"github.com/streamlens/streamlens/internal/models/helix"
)

// Snapshot filenames under the raw and processed directories.
const (
	RawStreamsFile = "twitch_streams.csv"
	RawGamesFile   = "twitch_games.csv"
	ProcessedFile  = "streams_processed.csv"
)

var rawStreamHeader = []string{
	"id", "user_id", "user_login", "user_name", "game_id", "game_name",
	"type", "title", "viewer_count", "language", "started_at", "tags", "is_mature",
}

var rawGameHeader = []string{"id", "name", "box_art_url"}

var processedHeader = []string{
	"id", "user_id", "user_login", "user_name", "game_id", "game_name",
	"type", "title", "viewer_count", "language", "started_at",
	"hour_of_day", "weekday", "is_weekend", "tags", "is_mature",
}

// createCSV opens path for writing, creating the parent directory.
func createCSV(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, nil
}

// writeRawStreams writes the raw stream snapshot. The header is written
// even for an empty snapshot so downstream stages see a valid file.
func writeRawStreams(path string, streams []helix.Stream) error {
	f, err := createCSV(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(rawStreamHeader); err != nil {
		return fmt.Errorf("failed to write stream header: %w", err)
	}

	for _, s := range streams {
		record := []string{
			s.ID, s.UserID, s.UserLogin, s.UserName, s.GameID, s.GameName,
			s.Type, s.Title, strconv.Itoa(s.ViewerCount), s.Language,
			s.StartedAt, strings.Join(s.Tags, ","), strconv.FormatBool(s.IsMature),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write stream %s: %w", s.ID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return f.Close()
}

// writeRawGames writes the raw game snapshot.
func writeRawGames(path string, games []helix.Game) error {
	f, err := createCSV(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(rawGameHeader); err != nil {
		return fmt.Errorf("failed to write game header: %w", err)
	}

	for _, g := range games {
		if err := w.Write([]string{g.ID, g.Name, g.BoxArtURL}); err != nil {
			return fmt.Errorf("failed to write game %s: %w", g.ID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return f.Close()
}

// readRawStreams parses the raw stream snapshot back into wire records.
func readRawStreams(path string) ([]helix.Stream, error) {
	records, err := readCSV(path, rawStreamHeader)
	if err != nil {
		return nil, err
	}

	streams := make([]helix.Stream, 0, len(records))
	for i, rec := range records {
		viewers, err := strconv.Atoi(rec["viewer_count"])
		if err != nil {
			return nil, fmt.Errorf("row %d: bad viewer_count %q: %w", i+2, rec["viewer_count"], err)
		}

		s := helix.Stream{
			ID:          rec["id"],
			UserID:      rec["user_id"],
			UserLogin:   rec["user_login"],
			UserName:    rec["user_name"],
			GameID:      rec["game_id"],
			GameName:    rec["game_name"],
			Type:        rec["type"],
			Title:       rec["title"],
			ViewerCount: viewers,
			Language:    rec["language"],
			StartedAt:   rec["started_at"],
			IsMature:    rec["is_mature"] == "true",
		}
		if rec["tags"] != "" {
			s.Tags = strings.Split(rec["tags"], ",")
		}
		streams = append(streams, s)
	}
	return streams, nil
}

// readRawGames parses the raw game snapshot. A missing file is treated
// as an empty catalog, matching a run where extraction found no games.
func readRawGames(path string) ([]helix.Game, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	records, err := readCSV(path, rawGameHeader)
	if err != nil {
		return nil, err
	}

	games := make([]helix.Game, 0, len(records))
	for _, rec := range records {
		games = append(games, helix.Game{
			ID:        rec["id"],
			Name:      rec["name"],
			BoxArtURL: rec["box_art_url"],
		})
	}
	return games, nil
}

// writeProcessed writes the transformed snapshot with derived time fields.
func writeProcessed(path string, streams []models.Stream) error {
	f, err := createCSV(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(processedHeader); err != nil {
		return fmt.Errorf("failed to write processed header: %w", err)
	}

	for i := range streams {
		s := &streams[i]

		startedAt, hourOfDay, weekday := "", "", ""
		if s.StartedAt != nil {
			startedAt = s.StartedAt.Format(time.RFC3339)
		}
		if s.HourOfDay != nil {
			hourOfDay = strconv.Itoa(*s.HourOfDay)
		}
		if s.Weekday != nil {
			weekday = *s.Weekday
		}

		record := []string{
			s.ID, s.UserID, s.UserLogin, s.UserName, s.GameID, s.GameName,
			s.Type, s.Title, strconv.Itoa(s.ViewerCount), s.Language, startedAt,
			hourOfDay, weekday, strconv.FormatBool(s.IsWeekend),
			s.Tags, strconv.FormatBool(s.IsMature),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write stream %s: %w", s.ID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return f.Close()
}

// readProcessed parses the processed snapshot back into domain models.
// IngestedAt is left zero; the loader stamps it per run.
func readProcessed(path string) ([]models.Stream, error) {
	records, err := readCSV(path, processedHeader)
	if err != nil {
		return nil, err
	}

	streams := make([]models.Stream, 0, len(records))
	for i, rec := range records {
		viewers, err := strconv.Atoi(rec["viewer_count"])
		if err != nil {
			return nil, fmt.Errorf("row %d: bad viewer_count %q: %w", i+2, rec["viewer_count"], err)
		}

		s := models.Stream{
			ID:          rec["id"],
			UserID:      rec["user_id"],
			UserLogin:   rec["user_login"],
			UserName:    rec["user_name"],
			GameID:      rec["game_id"],
			GameName:    rec["game_name"],
			Type:        rec["type"],
			Title:       rec["title"],
			ViewerCount: viewers,
			Language:    rec["language"],
			IsWeekend:   rec["is_weekend"] == "true",
			Tags:        rec["tags"],
			IsMature:    rec["is_mature"] == "true",
		}

		if rec["started_at"] != "" {
			ts, err := time.Parse(time.RFC3339, rec["started_at"])
			if err != nil {
				return nil, fmt.Errorf("row %d: bad started_at %q: %w", i+2, rec["started_at"], err)
			}
			ts = ts.UTC()
			s.StartedAt = &ts
		}
		if rec["hour_of_day"] != "" {
			hour, err := strconv.Atoi(rec["hour_of_day"])
			if err != nil {
				return nil, fmt.Errorf("row %d: bad hour_of_day %q: %w", i+2, rec["hour_of_day"], err)
			}
			s.HourOfDay = &hour
		}
		if rec["weekday"] != "" {
			weekday := rec["weekday"]
			s.Weekday = &weekday
		}

		streams = append(streams, s)
	}
	return streams, nil
}

// readCSV reads a CSV file and maps each row by the expected header.
// Extra columns are ignored; missing expected columns are an error.
func readCSV(path string, expected []string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s is empty, expected a header row", path)
	}

	index := make(map[string]int, len(rows[0]))
	for i, col := range rows[0] {
		index[col] = i
	}
	for _, col := range expected {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%s is missing column %q", path, col)
		}
	}

	records := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(map[string]string, len(expected))
		for _, col := range expected {
			if i := index[col]; i < len(row) {
				rec[col] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
