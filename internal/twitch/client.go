// Streamlens - Twitch Live Stream ETL and Analytics
// SPDX-License-Identifier: MIT

// Package twitch provides the HTTP client for the Twitch Helix API.
//
// The client authenticates with the OAuth2 client-credentials flow (app
// access token), adds the required Client-Id header on every request,
// paces requests with a client-side rate limiter, and retries HTTP 429
// responses with exponential backoff honoring Retry-After.
package twitch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/streamlens/streamlens/internal/config"
	"github.com/streamlens/streamlens/internal/metrics"
	"github.com/streamlens/streamlens/internal/models/helix"
)

// maxErrorBodySize limits the response body read for error reporting
// to prevent unbounded memory allocation on large error responses.
const maxErrorBodySize = 64 * 1024 // 64KB

// gamesChunkSize is the Helix limit on IDs per GET /games request.
const gamesChunkSize = 100

// readBodyForError reads the response body for error reporting (max 64KB).
// Returns the body content or a placeholder message if reading fails.
func readBodyForError(r io.Reader) []byte {
	limitedReader := io.LimitReader(r, maxErrorBodySize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// HelixAPI defines the Helix operations the ETL pipeline depends on.
//
// It is implemented by Client for production use and by mock
// implementations for testing. All methods accept a context for
// cancellation and are safe for concurrent use.
type HelixAPI interface {
	Ping(ctx context.Context) error
	GetStreams(ctx context.Context, language, cursor string) (*helix.StreamsResponse, error)
	FetchStreams(ctx context.Context) ([]helix.Stream, error)
	GetGames(ctx context.Context, ids []string) ([]helix.Game, error)
}

// Client handles communication with the Twitch Helix API.
//
// Resilience:
//   - OAuth2 app token refresh handled by the clientcredentials TokenSource
//   - Client-side request pacing via golang.org/x/time/rate
//   - HTTP 429 retried with exponential backoff (Retry-After honored)
//
// Thread Safety: safe for concurrent use.
type Client struct {
	baseURL        string
	client         *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	retryBaseDelay time.Duration

	maxPages  int
	perPage   int
	languages []string
	pageDelay time.Duration
}

// clientIDTransport injects the Client-Id header Helix requires on every
// request alongside the bearer token.
type clientIDTransport struct {
	clientID string
	base     http.RoundTripper
}

func (t *clientIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone before mutating; RoundTrippers must not modify the original request.
	clone := req.Clone(req.Context())
	clone.Header.Set("Client-Id", t.clientID)
	return t.base.RoundTrip(clone)
}

// NewClient creates a Helix client from the Twitch configuration.
//
// Token acquisition is lazy: the first API call fetches the app access
// token, and the TokenSource refreshes it before expiry thereafter.
func NewClient(cfg *config.TwitchConfig) *Client {
	base := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &clientIDTransport{
			clientID: cfg.ClientID,
			base:     http.DefaultTransport,
		},
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}

	// The oauth2 transport wraps our base client so API requests carry
	// both the bearer token and the Client-Id header.
	authCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	httpClient := cc.Client(authCtx)
	httpClient.Timeout = cfg.Timeout

	return &Client{
		baseURL:        cfg.HelixURL,
		client:         httpClient,
		limiter:        rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		maxRetries:     cfg.RetryAttempts,
		retryBaseDelay: cfg.RetryBaseDelay,
		maxPages:       cfg.MaxPages,
		perPage:        cfg.PerPage,
		languages:      cfg.Languages,
		pageDelay:      cfg.PageDelay,
	}
}

// doRequestWithRateLimit performs an HTTP GET with automatic rate limit
// handling. HTTP 429 responses are retried with exponential backoff; a
// Retry-After header (seconds) overrides the computed delay. The context
// is used for cancellation during backoff waits.
func (c *Client) doRequestWithRateLimit(ctx context.Context, reqURL string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		// Rate limited (HTTP 429) - close body and retry with backoff
		_ = resp.Body.Close()
		metrics.HelixRateLimited.Inc()

		if attempt == c.maxRetries {
			lastErr = fmt.Errorf("rate limit exceeded after %d retries (HTTP 429)", c.maxRetries)
			break
		}

		// Exponential backoff: 1s, 2s, 4s, 8s, 16s
		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))

		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
				delay = time.Duration(seconds) * time.Second
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// get performs a Helix GET request and decodes the JSON response into result.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, result interface{}) error {
	reqURL := fmt.Sprintf("%s/%s", c.baseURL, endpoint)
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	start := time.Now()
	resp, err := c.doRequestWithRateLimit(ctx, reqURL)
	if err != nil {
		metrics.RecordHelixRequest(endpoint, 0, time.Since(start))
		return fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	metrics.RecordHelixRequest(endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		body := readBodyForError(resp.Body)
		var apiErr helix.APIError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("%s request failed with status %d: %s", endpoint, resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("%s request failed with status %d: %s", endpoint, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}

// Ping verifies connectivity and credentials with a minimal streams request.
func (c *Client) Ping(ctx context.Context) error {
	params := url.Values{}
	params.Set("first", "1")

	var resp helix.StreamsResponse
	if err := c.get(ctx, "streams", params, &resp); err != nil {
		return fmt.Errorf("helix ping failed: %w", err)
	}
	return nil
}

// GetStreams fetches a single page of live streams for one broadcast
// language (empty means no language filter). An empty cursor requests
// the first page; the returned pagination cursor is empty on the last
// page.
func (c *Client) GetStreams(ctx context.Context, language, cursor string) (*helix.StreamsResponse, error) {
	params := url.Values{}
	params.Set("first", strconv.Itoa(c.perPage))
	params.Set("type", "live")
	if language != "" {
		params.Set("language", language)
	}
	if cursor != "" {
		params.Set("after", cursor)
	}

	var resp helix.StreamsResponse
	if err := c.get(ctx, "streams", params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchStreams paginates through live streams, up to the configured page
// limit per configured language (one unfiltered pass when no languages
// are set), pausing between pages. Streams repeated across page
// boundaries (the live list shifts while paginating) are dropped by ID.
func (c *Client) FetchStreams(ctx context.Context) ([]helix.Stream, error) {
	languages := c.languages
	if len(languages) == 0 {
		languages = []string{""}
	}

	seen := make(map[string]struct{})
	var streams []helix.Stream

	for _, lang := range languages {
		cursor := ""
		for page := 1; page <= c.maxPages; page++ {
			resp, err := c.GetStreams(ctx, lang, cursor)
			if err != nil {
				return nil, fmt.Errorf("fetching streams page %d: %w", page, err)
			}

			for _, s := range resp.Data {
				if _, ok := seen[s.ID]; ok {
					continue
				}
				seen[s.ID] = struct{}{}
				streams = append(streams, s)
			}

			cursor = resp.Pagination.Cursor
			if cursor == "" || len(resp.Data) == 0 {
				break
			}

			if page < c.maxPages && c.pageDelay > 0 {
				select {
				case <-time.After(c.pageDelay):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
		}
	}

	metrics.StreamsFetched.Add(float64(len(streams)))
	return streams, nil
}

// GetGames resolves game IDs to category records, chunking requests at
// the Helix limit of 100 IDs per call. Unknown IDs are silently absent
// from the result.
func (c *Client) GetGames(ctx context.Context, ids []string) ([]helix.Game, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var games []helix.Game
	for start := 0; start < len(ids); start += gamesChunkSize {
		end := start + gamesChunkSize
		if end > len(ids) {
			end = len(ids)
		}

		params := url.Values{}
		for _, id := range ids[start:end] {
			params.Add("id", id)
		}

		var resp helix.GamesResponse
		if err := c.get(ctx, "games", params, &resp); err != nil {
			return nil, fmt.Errorf("fetching games chunk [%d:%d]: %w", start, end, err)
		}
		games = append(games, resp.Data...)
	}

	return games, nil
}
