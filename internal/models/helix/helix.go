// Streamlens - Twitch Live Stream ETL and Analytics
// SPDX-License-Identifier: MIT

// Package helix holds the wire types for the Twitch Helix API.
// Field names mirror the Helix JSON responses exactly; higher-level
// packages convert these into the internal model types.
package helix

// Stream represents a single live stream record from Helix GET /streams.
type Stream struct {
	ID           string   `json:"id"`
	UserID       string   `json:"user_id"`
	UserLogin    string   `json:"user_login"`
	UserName     string   `json:"user_name"`
	GameID       string   `json:"game_id"`
	GameName     string   `json:"game_name"`
	Type         string   `json:"type"` // "live" or "" on error
	Title        string   `json:"title"`
	ViewerCount  int      `json:"viewer_count"`
	Language     string   `json:"language"`
	StartedAt    string   `json:"started_at"` // RFC3339 UTC
	ThumbnailURL string   `json:"thumbnail_url"`
	TagIDs       []string `json:"tag_ids"` // Deprecated by Twitch, may be null
	Tags         []string `json:"tags"`
	IsMature     bool     `json:"is_mature"`
}

// Game represents a category record from Helix GET /games.
type Game struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BoxArtURL string `json:"box_art_url"`
	IGDBID    string `json:"igdb_id"`
}

// Pagination carries the forward cursor for paginated Helix endpoints.
// An empty cursor means the last page has been reached.
type Pagination struct {
	Cursor string `json:"cursor"`
}

// StreamsResponse is the envelope for GET /streams.
type StreamsResponse struct {
	Data       []Stream   `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// GamesResponse is the envelope for GET /games. Games endpoints do not
// paginate when queried by ID.
type GamesResponse struct {
	Data []Game `json:"data"`
}

// APIError is the error envelope Helix returns for non-2xx responses.
type APIError struct {
	Error   string `json:"error"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}
