// Package musicbrainz looks up recordings in the MusicBrainz database and
// points artwork at the Cover Art Archive.
package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"trackbot/internal/catalog"
	"trackbot/internal/metadata"
	"trackbot/internal/provider"
)

const minInterval = time.Second

// Client is a MusicBrainz Web API client that implements metadata.Provider.
type Client struct {
	httpClient  *http.Client
	apiURL      string
	artURL      string
	mu          sync.Mutex
	lastRequest time.Time
}

// New creates a new MusicBrainz client.
func New() *Client {
	return &Client{
		httpClient: provider.NewHTTPClient(),
		apiURL:     "https://musicbrainz.org/ws/2",
		artURL:     "https://coverartarchive.org",
	}
}

func (c *Client) Name() string { return "musicbrainz" }

// Search queries the MusicBrainz recording search API and returns matching tracks.
func (c *Client) Search(ctx context.Context, query metadata.SearchQuery) ([]metadata.TrackInfo, error) {
	q := buildQuery(query)
	if q == "" {
		return nil, nil
	}

	if err := c.rateLimit(ctx); err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/recording?query=%s&fmt=json&limit=5", c.apiURL, url.QueryEscape(q))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create musicbrainz request: %w", err)
	}
	req.Header.Set("User-Agent", provider.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("musicbrainz search request failed: %v: %w", err, catalog.ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, provider.StatusError("musicbrainz", resp)
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode musicbrainz response: %v: %w", err, catalog.ErrUnavailable)
	}

	return c.parseRecordings(searchResp.Recordings), nil
}

// rateLimit enforces MusicBrainz's 1 request/second limit.
func (c *Client) rateLimit(ctx context.Context) error {
	c.mu.Lock()
	wait := minInterval - time.Since(c.lastRequest)
	c.lastRequest = time.Now().Add(max(wait, 0))
	c.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// doWithRetry executes the request, retrying once on 429/503.
func (c *Client) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return resp, nil
	}
	resp.Body.Close()

	retryAfter := 2
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if parsed, err := strconv.Atoi(ra); err == nil {
			retryAfter = parsed
		}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Duration(retryAfter) * time.Second):
	}

	c.mu.Lock()
	c.lastRequest = time.Now()
	c.mu.Unlock()
	return c.httpClient.Do(req.Clone(ctx))
}

func buildQuery(query metadata.SearchQuery) string {
	var parts []string
	if query.Title != "" {
		parts = append(parts, fmt.Sprintf("recording:%q", query.Title))
	}
	if query.Artist != "" {
		parts = append(parts, fmt.Sprintf("artist:%q", query.Artist))
	}
	if query.Album != "" {
		parts = append(parts, fmt.Sprintf("release:%q", query.Album))
	}
	return strings.Join(parts, " AND ")
}

func (c *Client) parseRecordings(recordings []recording) []metadata.TrackInfo {
	var results []metadata.TrackInfo
	for _, rec := range recordings {
		info := metadata.TrackInfo{
			Title:    rec.Title,
			Artist:   joinArtistCredits(rec.ArtistCredit),
			Duration: time.Duration(rec.Length) * time.Millisecond,
		}

		if len(rec.Releases) > 0 {
			rel := pickBestRelease(rec.Releases)
			info.Album = rel.Title
			info.ArtworkURL = fmt.Sprintf("%s/release/%s/front-500", c.artURL, rel.ID)
		}

		results = append(results, info)
	}
	return results
}

func joinArtistCredits(credits []artistCredit) string {
	var parts []string
	for _, ac := range credits {
		parts = append(parts, ac.Artist.Name)
	}
	return strings.Join(parts, ", ")
}

// pickBestRelease prefers official albums that are not compilations,
// then the earliest date.
func pickBestRelease(releases []release) release {
	best := releases[0]
	bestScore := releaseScore(best)

	for _, rel := range releases[1:] {
		s := releaseScore(rel)
		if s > bestScore || (s == bestScore && rel.Date != "" && (best.Date == "" || rel.Date < best.Date)) {
			best = rel
			bestScore = s
		}
	}
	return best
}

func releaseScore(rel release) int {
	score := 0
	if rel.Status == "Official" {
		score += 4
	}
	if rel.ReleaseGroup.PrimaryType == "Album" {
		score += 2
	}
	if len(rel.ReleaseGroup.SecondaryTypes) == 0 {
		score++
	}
	return score
}

// MusicBrainz API response types

type searchResponse struct {
	Recordings []recording `json:"recordings"`
}

type recording struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Length       int            `json:"length"`
	ArtistCredit []artistCredit `json:"artist-credit"`
	Releases     []release      `json:"releases"`
}

type artistCredit struct {
	Artist artistInfo `json:"artist"`
}

type artistInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type release struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Status       string       `json:"status"`
	Date         string       `json:"date"`
	ReleaseGroup releaseGroup `json:"release-group"`
}

type releaseGroup struct {
	PrimaryType    string   `json:"primary-type"`
	SecondaryTypes []string `json:"secondary-types"`
}
