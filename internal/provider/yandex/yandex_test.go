package yandex

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"trackbot/internal/catalog"
)

func newTestServer(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "OAuth tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("text") != "kino" || r.URL.Query().Get("type") != "track" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		var resp searchResponse
		resp.Result.Tracks.Results = []trackItem{
			{
				ID: "42", Title: "Gruppa krovi", DurationMs: 285000, Available: true,
				CoverURI: "avatars.example/get-music-content/1/%%",
				Artists:  []artist{{ID: 1, Name: "Kino"}},
				Albums:   []albumInfo{{ID: 7, Title: "Gruppa krovi"}},
			},
			{ID: "43", Title: "Locked", Available: false, Artists: []artist{{Name: "Kino"}}},
		}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/tracks/42/download-info", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(downloadInfoResponse{Result: []downloadInfo{
			{Codec: "mp3", BitrateInKbps: 192, DownloadInfoURL: srv.URL + "/info?id=mp3-192"},
			{Codec: "mp3", BitrateInKbps: 320, DownloadInfoURL: srv.URL + "/info?id=mp3-320"},
			{Codec: "aac", BitrateInKbps: 64, Preview: true, DownloadInfoURL: srv.URL + "/info?id=preview"},
		}})
	})
	mux.HandleFunc("/tracks/44/download-info", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(downloadInfoResponse{})
	})
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") != "mp3-320" {
			t.Errorf("picked %s, want mp3-320", r.URL.Query().Get("id"))
		}
		if r.URL.Query().Get("format") != "json" {
			t.Error("format=json not requested")
		}
		host := strings.TrimPrefix(srv.URL, "http://")
		json.NewEncoder(w).Encode(storageLocation{Host: host, Path: "/music/42.mp3", TS: "abc", S: "salt"})
	})
	mux.HandleFunc("/get-mp3/", func(w http.ResponseWriter, r *http.Request) {
		sum := md5.Sum([]byte(signSalt + "music/42.mp3" + "salt"))
		want := "/get-mp3/" + hex.EncodeToString(sum[:]) + "/abc/music/42.mp3"
		if r.URL.Path != want {
			t.Errorf("storage path = %s, want %s", r.URL.Path, want)
		}
		w.Write([]byte("ID3"))
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := New(srv.URL, "https://music.example", "tok")
	c.storageScheme = "http"
	return srv, c
}

func TestSearch(t *testing.T) {
	_, c := newTestServer(t)

	tracks, err := c.Search(context.Background(), "kino", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("expected 1 available track, got %d", len(tracks))
	}

	tr := tracks[0]
	if tr.URL != "https://music.example/album/7/track/42" {
		t.Errorf("URL = %q", tr.URL)
	}
	if tr.CoverURL != "https://avatars.example/get-music-content/1/400x400" {
		t.Errorf("CoverURL = %q", tr.CoverURL)
	}
	if tr.PrimaryArtist() != "Kino" || tr.Album != "Gruppa krovi" || tr.DurationMs != 285000 {
		t.Errorf("metadata = %+v", tr.Metadata)
	}
}

func TestSearchBadToken(t *testing.T) {
	srv, _ := newTestServer(t)
	c := New(srv.URL, "", "bad")

	if _, err := c.Search(context.Background(), "kino", 0); !errors.Is(err, catalog.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestResolvePicksBestCodec(t *testing.T) {
	_, c := newTestServer(t)

	s, err := c.Resolve(context.Background(), catalog.Reference{ID: "42"}, func(string) {})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	defer s.Body.Close()

	body, _ := io.ReadAll(s.Body)
	if string(body) != "ID3" {
		t.Errorf("body = %q", body)
	}
	if s.ContentType != "audio/mpeg" {
		t.Errorf("ContentType = %q", s.ContentType)
	}
}

func TestResolveNoCodec(t *testing.T) {
	_, c := newTestServer(t)

	if _, err := c.Resolve(context.Background(), catalog.Reference{ID: "44"}, func(string) {}); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := c.Resolve(context.Background(), catalog.Reference{ID: "45"}, func(string) {}); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("unknown track err = %v, want ErrNotFound", err)
	}
}

func TestPickBest(t *testing.T) {
	got, ok := pickBest([]downloadInfo{
		{Codec: "mp3", BitrateInKbps: 320, DownloadInfoURL: "u1"},
		{Codec: "flac", BitrateInKbps: 0, DownloadInfoURL: "u2"},
		{Codec: "opus", BitrateInKbps: 999, DownloadInfoURL: "u3"},
	})
	if !ok || got.Codec != "flac" {
		t.Errorf("pickBest = %+v, %v; want flac", got, ok)
	}
	if _, ok := pickBest(nil); ok {
		t.Error("pickBest(nil) should report no candidate")
	}
}
