// Package deezer looks up track metadata through the public Deezer API.
package deezer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"trackbot/internal/metadata"
	"trackbot/internal/provider"
)

// Client is a Deezer API client that implements metadata.Provider.
type Client struct {
	httpClient *http.Client
	apiURL     string
}

// New creates a new Deezer client.
func New() *Client {
	return &Client{
		httpClient: provider.NewHTTPClient(),
		apiURL:     "https://api.deezer.com",
	}
}

func (c *Client) Name() string { return "deezer" }

// Search queries the Deezer search API and returns matching tracks.
func (c *Client) Search(ctx context.Context, query metadata.SearchQuery) ([]metadata.TrackInfo, error) {
	q := buildQuery(query)
	if q == "" {
		return nil, nil
	}

	var searchResp searchResponse
	reqURL := fmt.Sprintf("%s/search?q=%s&limit=5", c.apiURL, url.QueryEscape(q))
	if err := provider.GetJSON(ctx, c.httpClient, "deezer", reqURL, nil, &searchResp); err != nil {
		return nil, err
	}
	if searchResp.Error != nil {
		return nil, fmt.Errorf("deezer API error: %s", searchResp.Error.Message)
	}

	return parseResults(searchResp.Data), nil
}

func buildQuery(query metadata.SearchQuery) string {
	escape := func(s string) string {
		return strings.ReplaceAll(s, "\"", "")
	}
	var parts []string
	if query.Title != "" {
		parts = append(parts, "track:\""+escape(query.Title)+"\"")
	}
	if query.Artist != "" {
		parts = append(parts, "artist:\""+escape(query.Artist)+"\"")
	}
	if query.Album != "" {
		parts = append(parts, "album:\""+escape(query.Album)+"\"")
	}
	return strings.Join(parts, " ")
}

func parseResults(items []trackItem) []metadata.TrackInfo {
	var results []metadata.TrackInfo
	for _, item := range items {
		artworkURL := item.Album.CoverXL
		if artworkURL == "" {
			artworkURL = item.Album.CoverBig
		}

		results = append(results, metadata.TrackInfo{
			Title:      item.TitleShort,
			Artist:     item.Artist.Name,
			Album:      item.Album.Title,
			ArtworkURL: artworkURL,
			Duration:   time.Duration(item.Duration) * time.Second,
		})
	}
	return results
}

// Deezer API response types

type searchResponse struct {
	Data  []trackItem `json:"data"`
	Error *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type trackItem struct {
	ID         int       `json:"id"`
	Title      string    `json:"title"`
	TitleShort string    `json:"title_short"`
	Duration   int       `json:"duration"`
	Artist     artist    `json:"artist"`
	Album      albumInfo `json:"album"`
}

type artist struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type albumInfo struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	CoverBig string `json:"cover_big"`
	CoverXL  string `json:"cover_xl"`
}
