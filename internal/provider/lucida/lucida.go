// Package lucida implements catalog.Provider on top of a lucida aggregator,
// which proxies several streaming services and negotiates a download region.
package lucida

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"trackbot/internal/catalog"
	"trackbot/internal/provider"
)

// Services the aggregator can search and download from.
var Services = []string{"tidal", "qobuz", "deezer", "amazon", "soundcloud", "yandex"}

// IsService reports whether name is a known upstream service.
func IsService(name string) bool {
	for _, s := range Services {
		if s == name {
			return true
		}
	}
	return false
}

// Country is a download region offered for a service.
type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Client is a lucida API client that implements catalog.Provider and catalog.ServiceSearcher.
type Client struct {
	httpClient   *http.Client
	apiURL       string
	service      string
	pollInterval time.Duration
	maxPolls     int
}

// New creates a client. service is used when a search names none.
func New(apiURL, service string) *Client {
	if service == "" {
		service = "tidal"
	}
	return &Client{
		httpClient:   provider.NewHTTPClient(),
		apiURL:       strings.TrimRight(apiURL, "/"),
		service:      service,
		pollInterval: time.Second,
		maxPolls:     180,
	}
}

func (c *Client) Name() string { return "lucida" }

// HasService reports whether the aggregator proxies name.
func (c *Client) HasService(name string) bool { return IsService(name) }

// Countries lists the regions available for service.
func (c *Client) Countries(ctx context.Context, service string) ([]Country, error) {
	var resp countriesResponse
	if err := provider.GetJSON(ctx, c.httpClient, "lucida", c.apiURL+"/api/countries?input="+url.QueryEscape(service), nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("lucida countries for %s: %s: %w", service, resp.Error, catalog.ErrUnavailable)
	}
	return resp.Countries, nil
}

// Search queries the default service. The aggregator returns a single page.
func (c *Client) Search(ctx context.Context, query string, page int) ([]catalog.Track, error) {
	if page > 0 {
		return nil, nil
	}
	return c.SearchService(ctx, c.service, query)
}

// SearchService queries a named service in its first available country.
func (c *Client) SearchService(ctx context.Context, service, query string) ([]catalog.Track, error) {
	countries, err := c.Countries(ctx, service)
	if err != nil {
		return nil, fmt.Errorf("lucida search: %v: %w", err, catalog.ErrUnavailable)
	}
	if len(countries) == 0 {
		return nil, fmt.Errorf("lucida offers no countries for %s: %w", service, catalog.ErrUnavailable)
	}

	params := url.Values{}
	params.Set("service", service)
	params.Set("country", countries[0].Code)
	params.Set("query", query)

	var resp searchResponse
	if err := provider.GetJSON(ctx, c.httpClient, "lucida", c.apiURL+"/api/search?"+params.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("lucida search: %v: %w", err, catalog.ErrUnavailable)
	}
	if !resp.Success {
		return nil, fmt.Errorf("lucida search: %s: %w", resp.Error, catalog.ErrUnavailable)
	}

	tracks := make([]catalog.Track, 0, len(resp.Results.Tracks))
	for _, item := range resp.Results.Tracks {
		tracks = append(tracks, toTrack(service, item))
	}
	return tracks, nil
}

func toTrack(service string, item trackItem) catalog.Track {
	var artists []string
	for _, a := range item.Artists {
		if a.Name != "" {
			artists = append(artists, a.Name)
		}
	}
	return catalog.Track{
		Reference: catalog.Reference{
			ID:       service + "/" + string(item.ID),
			Provider: "lucida",
			URL:      item.URL,
			CoverURL: item.Album.artwork(),
		},
		Metadata: catalog.Metadata{
			Title:      item.Title,
			Artists:    artists,
			Album:      item.Album.Title,
			DurationMs: item.DurationMs,
		},
	}
}

// Resolve tries every country of the track's service in order and returns
// the first stream that completes. Progress text is reported through notify.
func (c *Client) Resolve(ctx context.Context, ref catalog.Reference, notify catalog.Notify) (*catalog.Stream, error) {
	service, _, ok := strings.Cut(ref.ID, "/")
	if !ok || service == "" {
		service = c.service
	}

	countries, err := c.Countries(ctx, service)
	if err != nil {
		return nil, err
	}
	if len(countries) == 0 {
		return nil, fmt.Errorf("lucida offers no countries for %s: %w", service, catalog.ErrUnavailable)
	}

	var lastErr error
	for _, country := range countries {
		notify(fmt.Sprintf("Requesting {title} (%s)", country.Name))

		stream, err := c.download(ctx, ref.URL, country, notify)
		if err == nil {
			return stream, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("lucida download of %s: %v: %w", ref.URL, ctx.Err(), catalog.ErrUnavailable)
		}
		lastErr = err
	}

	if errors.Is(lastErr, catalog.ErrNotFound) {
		return nil, lastErr
	}
	return nil, fmt.Errorf("lucida could not download %s in %d countries: %v: %w", ref.URL, len(countries), lastErr, catalog.ErrUnavailable)
}

func (c *Client) download(ctx context.Context, trackURL string, country Country, notify catalog.Notify) (*catalog.Stream, error) {
	body, err := json.Marshal(loadRequest{URL: trackURL, Country: country.Code, Downscale: "original", Handoff: true})
	if err != nil {
		return nil, fmt.Errorf("failed to encode lucida load request: %w", err)
	}

	var load loadResponse
	if err := provider.PostJSON(ctx, c.httpClient, "lucida", c.apiURL+"/api/load?url=/api/fetch/stream/v2", bytes.NewReader(body), &load); err != nil {
		return nil, err
	}
	if !load.Success || load.Handoff == "" {
		return nil, fmt.Errorf("lucida refused %s in %s: %s: %w", trackURL, country.Code, load.Error, catalog.ErrUnavailable)
	}

	requestURL := c.apiURL + "/api/fetch/request/" + url.PathEscape(load.Handoff)
	if err := c.waitCompleted(ctx, requestURL, notify); err != nil {
		return nil, err
	}

	return provider.OpenStream(ctx, "lucida", requestURL+"/download", nil, "audio/flac")
}

// waitCompleted polls a handoff until the aggregator has the file ready.
func (c *Client) waitCompleted(ctx context.Context, requestURL string, notify catalog.Notify) error {
	var lastMessage string
	for i := 0; i < c.maxPolls; i++ {
		var status statusResponse
		if err := provider.GetJSON(ctx, c.httpClient, "lucida", requestURL, nil, &status); err != nil {
			return err
		}

		if status.Message != "" && status.Message != lastMessage {
			lastMessage = status.Message
			notify(status.Message)
		}

		switch status.Status {
		case "completed":
			return nil
		case "error":
			return fmt.Errorf("lucida handoff failed: %s: %w", status.Message, catalog.ErrUnavailable)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
	return fmt.Errorf("lucida handoff did not complete after %d polls: %w", c.maxPolls, catalog.ErrUnavailable)
}

// lucida API types

type countriesResponse struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error"`
	Countries []Country `json:"countries"`
}

type searchResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Results struct {
		Tracks []trackItem `json:"tracks"`
	} `json:"results"`
}

type trackItem struct {
	ID         flexID `json:"id"`
	URL        string `json:"url"`
	Title      string `json:"title"`
	DurationMs int64  `json:"durationMs"`
	Artists    []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album albumInfo `json:"album"`
}

// flexID accepts ids sent either as JSON numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("lucida id %s: %w", data, err)
	}
	*f = flexID(n.String())
	return nil
}

type albumInfo struct {
	Title        string    `json:"title"`
	CoverArtwork []artwork `json:"coverArtwork"`
}

type artwork struct {
	URL   string `json:"url"`
	Width int    `json:"width"`
}

// artwork picks the widest cover.
func (a albumInfo) artwork() string {
	best := artwork{}
	for _, art := range a.CoverArtwork {
		if art.URL != "" && art.Width >= best.Width {
			best = art
		}
	}
	return best.URL
}

type loadRequest struct {
	URL       string `json:"url"`
	Country   string `json:"country"`
	Downscale string `json:"downscale"`
	Handoff   bool   `json:"handoff"`
}

type loadResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Handoff string `json:"handoff"`
	Server  string `json:"server"`
}

type statusResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message"`
}
