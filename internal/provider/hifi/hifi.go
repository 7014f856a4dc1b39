// Package hifi talks to a token-authenticated Qobuz-style catalog API.
package hifi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"trackbot/internal/catalog"
	"trackbot/internal/provider"
)

const (
	pageSize = 25
	// defaultQuality is the highest lossless format id the API offers.
	defaultQuality = 27
)

// Client is a hifi API client that implements catalog.Provider.
type Client struct {
	httpClient *http.Client
	apiURL     string
	webURL     string
	token      string
	quality    int
}

// New creates a client. webURL is the public site used to build canonical track URLs.
func New(apiURL, webURL, token string, quality int) *Client {
	if webURL == "" {
		webURL = "https://open.qobuz.com"
	}
	if quality == 0 {
		quality = defaultQuality
	}
	return &Client{
		httpClient: provider.NewHTTPClient(),
		apiURL:     apiURL,
		webURL:     webURL,
		token:      token,
		quality:    quality,
	}
}

func (c *Client) Name() string { return "hifi" }

func (c *Client) header() http.Header {
	h := http.Header{}
	if c.token != "" {
		h.Set("X-User-Auth-Token", c.token)
	}
	return h
}

// Search queries the catalog and returns one page of tracks.
func (c *Client) Search(ctx context.Context, query string, page int) ([]catalog.Track, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", strconv.Itoa(pageSize))
	params.Set("offset", strconv.Itoa(page*pageSize))

	var resp searchResponse
	err := provider.GetJSON(ctx, c.httpClient, "hifi", c.apiURL+"/track/search?"+params.Encode(), c.header(), &resp)
	if err != nil {
		return nil, fmt.Errorf("hifi search: %v: %w", err, catalog.ErrUnavailable)
	}

	tracks := make([]catalog.Track, 0, len(resp.Tracks.Items))
	for _, item := range resp.Tracks.Items {
		tracks = append(tracks, c.toTrack(item))
	}
	return tracks, nil
}

func (c *Client) toTrack(item trackItem) catalog.Track {
	id := strconv.FormatInt(item.ID, 10)

	var artists []string
	if item.Performer.Name != "" {
		artists = append(artists, item.Performer.Name)
	}
	if item.Album.Artist.Name != "" && item.Album.Artist.Name != item.Performer.Name {
		artists = append(artists, item.Album.Artist.Name)
	}

	title := item.Title
	if item.Version != "" {
		title = fmt.Sprintf("%s (%s)", item.Title, item.Version)
	}

	return catalog.Track{
		Reference: catalog.Reference{
			ID:       id,
			Provider: "hifi",
			URL:      c.webURL + "/track/" + id,
			CoverURL: item.Album.Image.Large,
		},
		Metadata: catalog.Metadata{
			Title:      title,
			Artists:    artists,
			Album:      item.Album.Title,
			DurationMs: item.Duration * 1000,
		},
	}
}

// Resolve asks the API for a signed file URL and opens it.
func (c *Client) Resolve(ctx context.Context, ref catalog.Reference, notify catalog.Notify) (*catalog.Stream, error) {
	params := url.Values{}
	params.Set("track_id", ref.ID)
	params.Set("format_id", strconv.Itoa(c.quality))

	var file fileURLResponse
	if err := provider.GetJSON(ctx, c.httpClient, "hifi", c.apiURL+"/track/getFileUrl?"+params.Encode(), c.header(), &file); err != nil {
		return nil, err
	}
	if file.URL == "" {
		return nil, fmt.Errorf("hifi track %s has no stream url: %w", ref.ID, catalog.ErrNotFound)
	}

	return provider.OpenStream(ctx, "hifi", file.URL, nil, file.MimeType)
}

// hifi API response types

type searchResponse struct {
	Tracks struct {
		Items []trackItem `json:"items"`
	} `json:"tracks"`
}

type trackItem struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Version   string    `json:"version"`
	Duration  int64     `json:"duration"`
	Performer person    `json:"performer"`
	Album     albumInfo `json:"album"`
}

type person struct {
	Name string `json:"name"`
}

type albumInfo struct {
	Title  string `json:"title"`
	Artist person `json:"artist"`
	Image  struct {
		Small string `json:"small"`
		Large string `json:"large"`
	} `json:"image"`
}

type fileURLResponse struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	FormatID int    `json:"format_id"`
}
