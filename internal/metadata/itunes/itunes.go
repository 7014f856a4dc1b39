// Package itunes looks up track metadata through the iTunes Search API.
package itunes

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

// Client is an iTunes Search API client that implements metadata.Provider.
type Client struct {
	httpClient *http.Client
	apiURL     string
}

// New creates a new iTunes client.
func New() *Client {
	return &Client{
		httpClient: provider.NewHTTPClient(),
		apiURL:     "https://itunes.apple.com/search",
	}
}

func (c *Client) Name() string { return "itunes" }

// Search queries the iTunes Search API and returns matching tracks.
func (c *Client) Search(ctx context.Context, query metadata.SearchQuery) ([]metadata.TrackInfo, error) {
	term := buildTerm(query)
	if term == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("term", term)
	params.Set("media", "music")
	params.Set("entity", "song")
	params.Set("limit", "5")

	var searchResp searchResponse
	reqURL := fmt.Sprintf("%s?%s", c.apiURL, params.Encode())
	if err := provider.GetJSON(ctx, c.httpClient, "itunes", reqURL, nil, &searchResp); err != nil {
		return nil, err
	}

	return parseResults(searchResp.Results), nil
}

func buildTerm(query metadata.SearchQuery) string {
	var parts []string
	if query.Title != "" {
		parts = append(parts, query.Title)
	}
	if query.Artist != "" {
		parts = append(parts, query.Artist)
	}
	return strings.Join(parts, " ")
}

func parseResults(items []resultItem) []metadata.TrackInfo {
	var results []metadata.TrackInfo
	for _, item := range items {
		// Upgrade to 600x600 artwork
		artworkURL := strings.Replace(item.ArtworkURL100, "100x100", "600x600", 1)

		results = append(results, metadata.TrackInfo{
			Title:      item.TrackName,
			Artist:     item.ArtistName,
			Album:      item.CollectionName,
			ArtworkURL: artworkURL,
			Duration:   time.Duration(item.TrackTimeMillis) * time.Millisecond,
		})
	}
	return results
}

// iTunes Search API response types

type searchResponse struct {
	ResultCount int          `json:"resultCount"`
	Results     []resultItem `json:"results"`
}

type resultItem struct {
	TrackName       string `json:"trackName"`
	ArtistName      string `json:"artistName"`
	CollectionName  string `json:"collectionName"`
	TrackTimeMillis int    `json:"trackTimeMillis"`
	ArtworkURL100   string `json:"artworkUrl100"`
}
