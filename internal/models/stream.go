// Streamlens - Twitch Live Stream ETL and Analytics
// SPDX-License-Identifier: MIT

// Package models defines the domain types shared by the ETL stages, the
// DuckDB store and the analytics layer.
package models

import (
	"time"
)

// Stream is one processed live-stream listing, the row shape of the
// streams table. A Stream is identified by the Helix stream ID, which is
// unique per broadcast session and is the deduplication key for loads.
type Stream struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	UserLogin   string `json:"user_login"`
	UserName    string `json:"user_name"`
	GameID      string `json:"game_id"`
	GameName    string `json:"game_name"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	ViewerCount int    `json:"viewer_count"`
	Language    string `json:"language"`

	// StartedAt is the broadcast start in UTC. The derived fields below
	// are nil when StartedAt could not be parsed from the raw snapshot.
	StartedAt *time.Time `json:"started_at"`
	HourOfDay *int       `json:"hour_of_day"`
	Weekday   *string    `json:"weekday"`
	IsWeekend bool       `json:"is_weekend"`

	Tags     string `json:"tags"`
	IsMature bool   `json:"is_mature"`

	// IngestedAt is stamped by the load stage, identical for every row of
	// one ingest run.
	IngestedAt time.Time `json:"ingested_at"`
}

// Game is one Twitch category/game, the row shape of the games table.
type Game struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	BoxArtURL string    `json:"box_art_url"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeriveTimeFields fills HourOfDay, Weekday and IsWeekend from StartedAt.
// A nil StartedAt leaves the derivations nil and IsWeekend false.
func (s *Stream) DeriveTimeFields() {
	if s.StartedAt == nil {
		s.HourOfDay = nil
		s.Weekday = nil
		s.IsWeekend = false
		return
	}
	utc := s.StartedAt.UTC()
	hour := utc.Hour()
	weekday := utc.Weekday().String()
	s.HourOfDay = &hour
	s.Weekday = &weekday
	s.IsWeekend = utc.Weekday() == time.Saturday || utc.Weekday() == time.Sunday
}
