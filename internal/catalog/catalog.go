// Package catalog defines tracks as the music services describe them and the
// Provider contract every service backend implements.
//
// Provider implementations live in internal/provider; consumers (pipeline,
// bot) depend only on this package and dispatch through a Registry.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Provider failure classes. Backends wrap one of these so callers can use errors.Is.
var (
	ErrUnavailable     = errors.New("service unavailable")
	ErrUnauthenticated = errors.New("service rejected credentials")
	ErrNotFound        = errors.New("track not found")
)

// ErrNoArtist is returned by Track.Validate for tracks without any artist.
var ErrNoArtist = errors.New("track has no artists")

// ErrUnknownProvider is returned by the Registry for tags it has no backend for.
var ErrUnknownProvider = errors.New("unknown provider")

// Tag names a provider backend, e.g. "hifi" or "lucida".
type Tag string

// Reference identifies one piece of audio on a remote service.
// URL is canonical and doubles as the media cache key.
type Reference struct {
	ID       string
	Provider Tag
	URL      string
	CoverURL string
}

// Metadata holds the descriptive fields used for tagging and display.
type Metadata struct {
	Title      string
	Artists    []string
	Album      string
	DurationMs int64
}

// PrimaryArtist returns the first listed artist.
// Tracks reaching callers have passed Validate, so the list is non-empty.
func (m Metadata) PrimaryArtist() string {
	if len(m.Artists) == 0 {
		return ""
	}
	return m.Artists[0]
}

// Duration converts DurationMs to a time.Duration.
func (m Metadata) Duration() time.Duration {
	return time.Duration(m.DurationMs) * time.Millisecond
}

// Track is a search result: where to get it and what it is.
type Track struct {
	Reference
	Metadata
}

// Validate rejects tracks that cannot be acquired or displayed.
func (t Track) Validate() error {
	if t.URL == "" {
		return fmt.Errorf("track %q: missing source url", t.ID)
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("track %q: missing title", t.ID)
	}
	for _, a := range t.Artists {
		if strings.TrimSpace(a) != "" {
			return nil
		}
	}
	return fmt.Errorf("track %q: %w", t.ID, ErrNoArtist)
}

// Display renders "Artist - Title".
func (t Track) Display() string {
	return t.PrimaryArtist() + " - " + t.Title
}

// Stream is a resolved audio body. The caller must close Body.
type Stream struct {
	Body        io.ReadCloser
	ContentType string
	// Filename is the name suggested by the service, if any.
	Filename string
}

// Notify receives free-text progress while a provider negotiates a download.
// The text may contain a {title} placeholder.
type Notify func(text string)

// Provider resolves references to audio streams and queries to track lists.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, page int) ([]Track, error)
	Resolve(ctx context.Context, ref Reference, notify Notify) (*Stream, error)
}

// ServiceSearcher is implemented by aggregators that can search a named upstream service.
type ServiceSearcher interface {
	HasService(name string) bool
	SearchService(ctx context.Context, service, query string) ([]Track, error)
}

// KeepValid drops tracks failing Validate, reporting each through drop.
func KeepValid(tracks []Track, drop func(Track, error)) []Track {
	valid := tracks[:0]
	for _, t := range tracks {
		if err := t.Validate(); err != nil {
			if drop != nil {
				drop(t, err)
			}
			continue
		}
		valid = append(valid, t)
	}
	return valid
}
