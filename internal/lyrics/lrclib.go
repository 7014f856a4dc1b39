// Package lyrics looks up song lyrics on LRCLib for embedding into tags.
package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"trackbot/internal/catalog"
)

const defaultAPIURL = "https://lrclib.net/api/get"

type Result struct {
	Synced string // LRC format with timestamps, empty if unavailable
	Plain  string // plain text lyrics, empty if unavailable
}

// Text prefers synced lyrics, which players that understand LRC can follow along.
func (r Result) Text() string {
	if r.Synced != "" {
		return r.Synced
	}
	return r.Plain
}

type Client struct {
	httpClient *http.Client
	apiURL     string
	retryDelay time.Duration
}

// NewClient creates an LRCLib client. An empty apiURL uses the public instance.
func NewClient(apiURL string) *Client {
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiURL:     apiURL,
		retryDelay: 2 * time.Second,
	}
}

// Fetch retrieves lyrics for a track.
// Returns empty Result (no error) when lyrics are not found.
// Retries once on transient network errors.
func (c *Client) Fetch(ctx context.Context, meta catalog.Metadata) (Result, error) {
	result, err := c.doFetch(ctx, meta)
	if err == nil || !isTransient(err) {
		return result, err
	}

	select {
	case <-ctx.Done():
		return Result{}, err
	case <-time.After(c.retryDelay):
	}
	return c.doFetch(ctx, meta)
}

func isTransient(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}

func (c *Client) doFetch(ctx context.Context, meta catalog.Metadata) (Result, error) {
	params := url.Values{}
	params.Set("artist_name", meta.PrimaryArtist())
	params.Set("track_name", meta.Title)
	if meta.Album != "" {
		params.Set("album_name", meta.Album)
	}
	if meta.DurationMs > 0 {
		params.Set("duration", strconv.FormatInt(meta.DurationMs/1000, 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create lrclib request: %w", err)
	}
	req.Header.Set("User-Agent", "trackbot/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("lrclib request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Result{}, nil
	case resp.StatusCode != http.StatusOK:
		return Result{}, fmt.Errorf("lrclib returned status %d", resp.StatusCode)
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return Result{}, fmt.Errorf("failed to decode lrclib response: %w", err)
	}
	if apiResp.Instrumental {
		return Result{}, nil
	}

	return Result{Synced: apiResp.SyncedLyrics, Plain: apiResp.PlainLyrics}, nil
}

type apiResponse struct {
	Instrumental bool   `json:"instrumental"`
	SyncedLyrics string `json:"syncedLyrics"`
	PlainLyrics  string `json:"plainLyrics"`
}
