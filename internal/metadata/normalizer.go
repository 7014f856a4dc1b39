package metadata

import (
	"regexp"
	"strings"

	"trackbot/internal/catalog"
)

// Version markers streaming services append to titles. They rarely match
// across catalogs, so they are dropped before searching.
var titleCleanupPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*[\(\[]\s*(?:\d{4}\s+)?remaster(?:ed)?(?:\s+\d{4})?(?:\s+version)?\s*[\)\]]`),
	regexp.MustCompile(`(?i)\s+-\s+(?:\d{4}\s+)?remaster(?:ed)?(?:\s+\d{4})?(?:\s+version)?$`),
	regexp.MustCompile(`(?i)\s*[\(\[]\s*explicit\s*[\)\]]`),
	regexp.MustCompile(`(?i)\s*[\(\[]\s*clean\s*[\)\]]`),
	regexp.MustCompile(`(?i)\s*[\(\[]\s*(?:album|single|radio)\s+version\s*[\)\]]`),
}

// Pattern to extract featuring artists from the title
var featuringPattern = regexp.MustCompile(`(?i)\s*[\(\[]\s*(?:feat\.?|ft\.?|featuring|with)\s+([^\)\]]+)[\)\]]`)

// NormalizeQuery cleans a title and artist for searching.
func NormalizeQuery(title, artist string) SearchQuery {
	title = strings.TrimSpace(title)
	artist = strings.TrimSpace(artist)

	if title == "" {
		return SearchQuery{Artist: artist}
	}

	for _, p := range titleCleanupPatterns {
		title = p.ReplaceAllString(title, "")
	}
	title = featuringPattern.ReplaceAllString(title, "")

	return SearchQuery{
		Title:  strings.TrimSpace(title),
		Artist: artist,
	}
}

// QueryFor builds the search query for a catalog track.
func QueryFor(meta catalog.Metadata) SearchQuery {
	q := NormalizeQuery(meta.Title, meta.PrimaryArtist())
	q.Album = meta.Album
	return q
}
