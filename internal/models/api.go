// Streamlens - Twitch Live Stream ETL and Analytics
// SPDX-License-Identifier: MIT

package models

import "time"

// APIResponse is the envelope returned by every JSON endpoint.
//
//	{
//	  "status": "success",
//	  "data": {...},
//	  "metadata": {"timestamp": "2026-08-28T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries per-response observability fields. QueryTimeMS is the
// database execution time for the request, 0 for endpoints that do not
// touch the store.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError is the structured error payload. Code is machine-readable
// (VALIDATION_ERROR, DATABASE_ERROR, NOT_FOUND), Message is for humans.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
