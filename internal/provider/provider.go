// Package provider holds the HTTP plumbing shared by the music service
// backends in its sub-packages (hifi, yandex, lucida).
//
// The Provider interface itself is defined in internal/catalog, where it is
// consumed. Helpers here translate transport failures into the catalog
// failure classes so every backend reports errors the same way.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"trackbot/internal/catalog"
)

// UserAgent is sent with every outgoing request.
const UserAgent = "trackbot/1.0"

// NewHTTPClient returns the client backends use for API calls.
// Stream downloads use StreamClient, which has no overall timeout.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}

// StreamClient is used for audio bodies that may take minutes to read.
var StreamClient = &http.Client{}

// StatusError maps a non-2xx response to a catalog failure class.
func StatusError(service string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	var class error
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		class = catalog.ErrUnauthenticated
	case http.StatusNotFound, http.StatusGone:
		class = catalog.ErrNotFound
	default:
		class = catalog.ErrUnavailable
	}
	return fmt.Errorf("%s returned %d: %s: %w", service, resp.StatusCode, body, class)
}

// Do sends req with the shared User-Agent and rejects non-2xx responses.
// On success the caller owns resp.Body.
func Do(hc *http.Client, service string, req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", UserAgent)

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %v: %w", service, err, catalog.ErrUnavailable)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, StatusError(service, resp)
	}
	return resp, nil
}

// GetJSON performs a GET and decodes the JSON body into v.
func GetJSON(ctx context.Context, hc *http.Client, service, url string, header http.Header, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", service, err)
	}
	for k, vals := range header {
		req.Header[k] = vals
	}
	return doJSON(hc, service, req, v)
}

// PostJSON sends body as JSON and decodes the JSON response into v.
func PostJSON(ctx context.Context, hc *http.Client, service, url string, body io.Reader, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", service, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return doJSON(hc, service, req, v)
}

func doJSON(hc *http.Client, service string, req *http.Request, v any) error {
	resp, err := Do(hc, service, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s response: %v: %w", service, err, catalog.ErrUnavailable)
	}
	return nil
}

// OpenStream starts downloading an audio body. fallbackType is the type the
// service announced for the file; it wins over any non-audio Content-Type
// the storage host sends.
func OpenStream(ctx context.Context, service, url string, header http.Header, fallbackType string) (*catalog.Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s stream request: %w", service, err)
	}
	for k, vals := range header {
		req.Header[k] = vals
	}

	resp, err := Do(StreamClient, service, req)
	if err != nil {
		return nil, err
	}

	return &catalog.Stream{
		Body:        resp.Body,
		ContentType: streamType(resp.Header.Get("Content-Type"), fallbackType),
		Filename:    dispositionFilename(resp.Header.Get("Content-Disposition")),
	}, nil
}

// streamType keeps a served audio/* type and otherwise uses fallback.
// Hosts commonly send binary/octet-stream or a sniffed text/plain.
func streamType(served, fallback string) string {
	if mt, _, err := mime.ParseMediaType(served); err == nil && strings.HasPrefix(strings.ToLower(mt), "audio/") {
		return served
	}
	if fallback != "" {
		return fallback
	}
	return served
}

func dispositionFilename(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}
