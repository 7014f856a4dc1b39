package deezer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"trackbot/internal/catalog"
	"trackbot/internal/metadata"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c := New()
	c.apiURL = srv.URL
	return c
}

func TestSearch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "trackbot/1.0" {
			t.Errorf("unexpected User-Agent: %s", r.Header.Get("User-Agent"))
		}
		if got := r.URL.Query().Get("q"); got != `track:"Santeria" artist:"Marracash"` {
			t.Errorf("q = %s", got)
		}
		json.NewEncoder(w).Encode(searchResponse{
			Data: []trackItem{
				{
					ID:         1,
					Title:      "Santeria",
					TitleShort: "Santeria",
					Duration:   240,
					Artist:     artist{ID: 100, Name: "Marracash"},
					Album: albumInfo{
						ID:       200,
						Title:    "Santeria",
						CoverBig: "https://example.com/cover-big.jpg",
						CoverXL:  "https://example.com/cover-xl.jpg",
					},
				},
				{
					TitleShort: "Santeria (Live)",
					Artist:     artist{Name: "Marracash"},
					Album:      albumInfo{Title: "Live", CoverBig: "https://example.com/live-big.jpg"},
				},
			},
		})
	})
	c := newTestClient(t, mux)

	results, err := c.Search(context.Background(), metadata.SearchQuery{
		Title:  "Santeria",
		Artist: "Marracash",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	r := results[0]
	if r.Title != "Santeria" || r.Artist != "Marracash" || r.Album != "Santeria" {
		t.Errorf("result = %+v", r)
	}
	if r.ArtworkURL != "https://example.com/cover-xl.jpg" {
		t.Errorf("ArtworkURL = %q, want cover-xl", r.ArtworkURL)
	}
	if r.Duration.Seconds() != 240 {
		t.Errorf("Duration = %v, want 4m0s", r.Duration)
	}
	if results[1].ArtworkURL != "https://example.com/live-big.jpg" {
		t.Errorf("fallback ArtworkURL = %q", results[1].ArtworkURL)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	c := New()
	results, err := c.Search(context.Background(), metadata.SearchQuery{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results != nil {
		t.Errorf("expected nil results for empty query, got %d", len(results))
	}
}

func TestSearchNoResults(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(searchResponse{Data: []trackItem{}})
	}))

	results, err := c.Search(context.Background(), metadata.SearchQuery{Title: "nonexistent"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestSearchAPIError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(searchResponse{
			Error: &apiError{Type: "Exception", Message: "Quota exceeded", Code: 4},
		})
	}))

	if _, err := c.Search(context.Background(), metadata.SearchQuery{Title: "test"}); err == nil {
		t.Fatal("expected error for API error response")
	}
}

func TestSearchHTTPError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := c.Search(context.Background(), metadata.SearchQuery{Title: "test"})
	if !errors.Is(err, catalog.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name  string
		query metadata.SearchQuery
		want  string
	}{
		{
			name:  "all fields",
			query: metadata.SearchQuery{Title: "Santeria", Artist: "Marracash", Album: "Santeria"},
			want:  `track:"Santeria" artist:"Marracash" album:"Santeria"`,
		},
		{
			name:  "title only",
			query: metadata.SearchQuery{Title: "Santeria"},
			want:  `track:"Santeria"`,
		},
		{
			name:  "quotes stripped",
			query: metadata.SearchQuery{Title: `Say "Hi"`, Artist: "Marracash"},
			want:  `track:"Say Hi" artist:"Marracash"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildQuery(tt.query)
			if got != tt.want {
				t.Errorf("buildQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}
