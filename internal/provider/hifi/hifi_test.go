package hifi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"trackbot/internal/catalog"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/track/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-User-Auth-Token") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("query") != "santeria" || r.URL.Query().Get("offset") != "25" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		var resp searchResponse
		resp.Tracks.Items = []trackItem{
			{
				ID:        1,
				Title:     "Santeria",
				Version:   "Remastered",
				Duration:  183,
				Performer: person{Name: "Sublime"},
				Album:     albumInfo{Title: "Sublime"},
			},
			{ID: 2, Title: "Orphan"},
		}
		resp.Tracks.Items[0].Album.Image.Large = "https://img.example/1.jpg"
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/track/getFileUrl", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("track_id") {
		case "1":
			if r.URL.Query().Get("format_id") != "27" {
				t.Errorf("format_id = %s", r.URL.Query().Get("format_id"))
			}
			json.NewEncoder(w).Encode(fileURLResponse{URL: srv.URL + "/file/1", MimeType: "audio/flac"})
		case "3":
			json.NewEncoder(w).Encode(fileURLResponse{})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	mux.HandleFunc("/file/1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fLaC"))
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSearch(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL, "https://web.example", "secret", 0)

	tracks, err := c.Search(context.Background(), "santeria", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(tracks))
	}

	tr := tracks[0]
	if tr.Title != "Santeria (Remastered)" {
		t.Errorf("Title = %q", tr.Title)
	}
	if tr.PrimaryArtist() != "Sublime" {
		t.Errorf("PrimaryArtist = %q", tr.PrimaryArtist())
	}
	if tr.URL != "https://web.example/track/1" {
		t.Errorf("URL = %q", tr.URL)
	}
	if tr.CoverURL != "https://img.example/1.jpg" {
		t.Errorf("CoverURL = %q", tr.CoverURL)
	}
	if tr.DurationMs != 183000 {
		t.Errorf("DurationMs = %d", tr.DurationMs)
	}
	if tr.Provider != "hifi" {
		t.Errorf("Provider = %q", tr.Provider)
	}
	if err := tracks[1].Validate(); !errors.Is(err, catalog.ErrNoArtist) {
		t.Errorf("orphan track Validate = %v, want ErrNoArtist", err)
	}
}

func TestSearchUnauthenticatedIsUnavailable(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL, "", "wrong", 0)

	_, err := c.Search(context.Background(), "santeria", 1)
	if !errors.Is(err, catalog.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestResolve(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL, "", "secret", 0)

	s, err := c.Resolve(context.Background(), catalog.Reference{ID: "1"}, func(string) {})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	defer s.Body.Close()

	body, _ := io.ReadAll(s.Body)
	if string(body) != "fLaC" {
		t.Errorf("body = %q", body)
	}
	if s.ContentType != "audio/flac" {
		t.Errorf("ContentType = %q", s.ContentType)
	}
}

func TestResolveFailures(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL, "", "secret", 0)

	tests := []struct {
		id   string
		want error
	}{
		{"2", catalog.ErrNotFound},
		{"3", catalog.ErrNotFound},
	}
	for _, tt := range tests {
		_, err := c.Resolve(context.Background(), catalog.Reference{ID: tt.id}, func(string) {})
		if !errors.Is(err, tt.want) {
			t.Errorf("Resolve(%s) err = %v, want %v", tt.id, err, tt.want)
		}
	}

	down := New("http://127.0.0.1:1", "", "secret", 0)
	if _, err := down.Resolve(context.Background(), catalog.Reference{ID: "1"}, func(string) {}); !errors.Is(err, catalog.ErrUnavailable) {
		t.Errorf("unreachable api err = %v, want ErrUnavailable", err)
	}
}
