package metadata

import (
	"context"
	"strings"
	"time"
	"unicode"

	"trackbot/internal/catalog"
	"trackbot/internal/logger"
)

const defaultConfidenceThreshold = 0.7

// durationTolerance is how far a match's duration may drift before its
// score is halved.
const durationTolerance = 5 * time.Second

// Enricher fills a track's missing album and cover from metadata sources.
// Sources are asked in order and the first confident match ends the lookup,
// so slower or rate-limited sources are only reached when needed.
type Enricher struct {
	sources   []Provider
	logger    *logger.Logger
	threshold float64
}

// NewEnricher creates an Enricher over sources.
// If threshold is 0, the default (0.7) is used.
func NewEnricher(sources []Provider, log *logger.Logger, threshold float64) *Enricher {
	if threshold <= 0 {
		threshold = defaultConfidenceThreshold
	}
	return &Enricher{
		sources:   sources,
		logger:    log.Component("metadata"),
		threshold: threshold,
	}
}

// Enrich returns track with empty Album and CoverURL filled from the first
// confident match. Fields the source service provided are never replaced,
// and lookup failures return the track unchanged.
func (e *Enricher) Enrich(ctx context.Context, track catalog.Track) catalog.Track {
	if track.Album != "" && track.CoverURL != "" {
		return track
	}

	query := QueryFor(track.Metadata)
	if query.Title == "" {
		return track
	}

	best, ok := e.lookup(ctx, query, track)
	if !ok {
		return track
	}

	if track.Album == "" {
		track.Album = best.Album
	}
	if track.CoverURL == "" {
		track.CoverURL = best.ArtworkURL
	}
	return track
}

// lookup walks the sources and returns the first match above the threshold.
// A match that lacks everything the track is missing does not count.
func (e *Enricher) lookup(ctx context.Context, query SearchQuery, track catalog.Track) (TrackInfo, bool) {
	for _, src := range e.sources {
		if ctx.Err() != nil {
			return TrackInfo{}, false
		}

		results, err := src.Search(ctx, query)
		if err != nil {
			e.logger.Debug("lookup for %s on %s failed: %v", track.Display(), src.Name(), err)
			continue
		}

		var best TrackInfo
		for _, result := range results {
			if (track.Album != "" || result.Album == "") && (track.CoverURL != "" || result.ArtworkURL == "") {
				continue
			}
			result.Confidence = score(query, track.Duration(), result)
			if result.Confidence > best.Confidence {
				best = result
			}
		}

		if best.Confidence >= e.threshold {
			e.logger.Debug("match for %s from %s: %q by %q (confidence: %.2f)", track.Display(), src.Name(), best.Title, best.Artist, best.Confidence)
			return best, true
		}
		e.logger.Debug("no confident match for %s from %s", track.Display(), src.Name())
	}
	return TrackInfo{}, false
}

// score computes a similarity score (0.0-1.0) between the query and a result.
func score(query SearchQuery, duration time.Duration, result TrackInfo) float64 {
	titleScore := similarity(normalize(query.Title), normalize(result.Title))
	artistScore := similarity(normalize(query.Artist), normalize(result.Artist))

	s := titleScore
	if query.Artist != "" {
		// Weight: 60% title, 40% artist
		s = titleScore*0.6 + artistScore*0.4
	}

	if duration > 0 && result.Duration > 0 {
		diff := duration - result.Duration
		if diff < 0 {
			diff = -diff
		}
		if diff > durationTolerance {
			s /= 2
		}
	}
	return s
}

// similarity returns how similar two strings are (0.0-1.0).
// Uses both token overlap and compact string comparison to handle cases
// like "theweeknd" vs "the weeknd".
func similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	compactA := strings.ReplaceAll(a, " ", "")
	compactB := strings.ReplaceAll(b, " ", "")
	if compactA == compactB {
		return 1.0
	}

	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0.0
	}

	setB := make(map[string]bool, len(tokensB))
	for _, t := range tokensB {
		setB[t] = true
	}

	matches := 0
	for _, t := range tokensA {
		if setB[t] {
			matches++
		}
	}

	return float64(matches) / float64(max(len(tokensA), len(tokensB)))
}

// normalize lowercases and strips non-alphanumeric characters for comparison.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
