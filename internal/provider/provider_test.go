package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"trackbot/internal/catalog"
)

func TestStatusClasses(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, catalog.ErrUnauthenticated},
		{http.StatusForbidden, catalog.ErrUnauthenticated},
		{http.StatusNotFound, catalog.ErrNotFound},
		{http.StatusGone, catalog.ErrNotFound},
		{http.StatusTooManyRequests, catalog.ErrUnavailable},
		{http.StatusBadGateway, catalog.ErrUnavailable},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		var v struct{}
		err := GetJSON(context.Background(), NewHTTPClient(), "svc", srv.URL, nil, &v)
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: err = %v, want %v", tt.status, err, tt.want)
		}
		srv.Close()
	}
}

func TestNetworkFailureIsUnavailable(t *testing.T) {
	var v struct{}
	err := GetJSON(context.Background(), NewHTTPClient(), "svc", "http://127.0.0.1:1/x", nil, &v)
	if !errors.Is(err, catalog.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestBadJSONIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	var v struct{}
	err := GetJSON(context.Background(), NewHTTPClient(), "svc", srv.URL, nil, &v)
	if !errors.Is(err, catalog.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestGetJSONSendsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != UserAgent {
			t.Errorf("unexpected User-Agent: %s", r.Header.Get("User-Agent"))
		}
		if r.Header.Get("Authorization") != "OAuth t" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var v struct {
		OK bool `json:"ok"`
	}
	h := http.Header{"Authorization": []string{"OAuth t"}}
	if err := GetJSON(context.Background(), NewHTTPClient(), "svc", srv.URL, h, &v); err != nil {
		t.Fatal(err)
	}
	if !v.OK {
		t.Error("body not decoded")
	}
}

func TestOpenStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/typed":
			w.Header().Set("Content-Type", "audio/mpeg")
			w.Header().Set("Content-Disposition", `attachment; filename="Band - Song.mp3"`)
		case "/untyped":
			w.Header().Set("Content-Type", "application/octet-stream")
		}
		w.Write([]byte("audio"))
	}))
	defer srv.Close()

	s, err := OpenStream(context.Background(), "svc", srv.URL+"/typed", nil, "audio/flac")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(s.Body)
	s.Body.Close()
	if string(body) != "audio" || s.ContentType != "audio/mpeg" || s.Filename != "Band - Song.mp3" {
		t.Errorf("stream = %q %q %q", body, s.ContentType, s.Filename)
	}

	s, err = OpenStream(context.Background(), "svc", srv.URL+"/untyped", nil, "audio/flac")
	if err != nil {
		t.Fatal(err)
	}
	s.Body.Close()
	if s.ContentType != "audio/flac" {
		t.Errorf("fallback content type = %q", s.ContentType)
	}
}

func TestOpenStreamPrefersAnnouncedType(t *testing.T) {
	tests := []struct {
		served   string
		fallback string
		want     string
	}{
		{"binary/octet-stream", "audio/flac", "audio/flac"},
		{"text/plain; charset=utf-8", "audio/flac", "audio/flac"},
		{"application/octet-stream", "audio/mpeg", "audio/mpeg"},
		{"", "audio/mp4", "audio/mp4"},
		{"audio/mpeg", "audio/flac", "audio/mpeg"},
		{"Audio/FLAC", "", "Audio/FLAC"},
		{"text/plain", "", "text/plain"},
	}

	for _, tt := range tests {
		t.Run(tt.served, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header()["Content-Type"] = []string{tt.served}
				w.Write([]byte("fLaC"))
			}))
			defer srv.Close()

			s, err := OpenStream(context.Background(), "svc", srv.URL, nil, tt.fallback)
			if err != nil {
				t.Fatal(err)
			}
			s.Body.Close()
			if s.ContentType != tt.want {
				t.Errorf("ContentType = %q, want %q", s.ContentType, tt.want)
			}
		})
	}
}
