// Package tagger turns a raw downloaded stream into the final tagged file.
package tagger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
	"go.senan.xyz/taglib"

	"trackbot/internal/catalog"
	"trackbot/internal/logger"
	"trackbot/pkg/utils"
)

// lyricsTag is the TagLib property name for unsynced lyrics.
const lyricsTag = "LYRICS"

// ErrUnknownFormat is returned when neither the content type nor the
// suggested file name reveal the container.
var ErrUnknownFormat = errors.New("unknown audio format")

var extensions = map[string]string{
	"audio/flac":   ".flac",
	"audio/x-flac": ".flac",
	"audio/mpeg":   ".mp3",
	"audio/mp3":    ".mp3",
	"audio/mp4":    ".m4a",
	"audio/x-m4a":  ".m4a",
	"audio/aac":    ".m4a",
	"audio/ogg":    ".ogg",
	"audio/opus":   ".opus",
	"audio/wav":    ".wav",
	"audio/x-wav":  ".wav",
}

var contentTypes = map[string]string{
	".flac": "audio/flac",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".wav":  "audio/wav",
}

// Extension picks a file extension for an audio stream. The content type
// wins; the provider's suggested file name is the fallback.
func Extension(contentType, filename string) (string, error) {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if ext, ok := extensions[strings.ToLower(mt)]; ok {
			return ext, nil
		}
	}
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" {
		if _, ok := contentTypes[ext]; ok {
			return ext, nil
		}
	}
	return "", fmt.Errorf("%w: content type %q, file %q", ErrUnknownFormat, contentType, filename)
}

// ContentType is the inverse of Extension for the formats we produce.
func ContentType(ext string) string {
	if ct, ok := contentTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	return "application/octet-stream"
}

// RawName is the working file name for a not yet processed stream.
func RawName(meta catalog.Metadata, ext string) string {
	base := slug.Make(meta.Title)
	if base == "" {
		base = "track"
	}
	return base + "_raw" + ext
}

// OutputName is "<artist> - <title><ext>" with unsafe characters replaced.
func OutputName(meta catalog.Metadata, ext string) string {
	return utils.SanitizeFilename(meta.PrimaryArtist()+" - "+meta.Title) + ext
}

// Input describes one processing job. All paths live in WorkDir.
type Input struct {
	WorkDir     string
	RawPath     string
	ContentType string
	// CoverPath is optional; an empty path means no embedded artwork.
	CoverPath string
	Lyrics    string
	Meta      catalog.Metadata
}

// Output is the final file ready for upload.
type Output struct {
	Path        string
	ContentType string
}

// Processor remuxes with ffmpeg (when configured) and writes tags with TagLib.
type Processor struct {
	ffmpegPath string
	log        *logger.Logger
}

// New creates a Processor. An empty ffmpegPath skips remuxing and only renames.
func New(ffmpegPath string, log *logger.Logger) *Processor {
	return &Processor{ffmpegPath: ffmpegPath, log: log.Component("tagger")}
}

// Process produces the tagged output file for in.
func (p *Processor) Process(ctx context.Context, in Input) (Output, error) {
	ext := filepath.Ext(in.RawPath)
	if ext == "" {
		var err error
		if ext, err = Extension(in.ContentType, ""); err != nil {
			return Output{}, err
		}
	}

	out := filepath.Join(in.WorkDir, OutputName(in.Meta, ext))
	if err := p.remux(ctx, in.RawPath, out); err != nil {
		return Output{}, err
	}

	if err := WriteTags(out, in.Meta, in.Lyrics); err != nil {
		return Output{}, err
	}

	if in.CoverPath != "" {
		art, err := os.ReadFile(in.CoverPath)
		if err != nil {
			p.log.Warn("skipping artwork for %s: %v", in.Meta.Title, err)
		} else if err := WriteArtwork(out, art); err != nil {
			// Some containers reject embedded pictures; the audio is still usable.
			p.log.Warn("%v", err)
		}
	}

	return Output{Path: out, ContentType: ContentType(ext)}, nil
}

// remux copies the audio streams into a clean container, dropping whatever
// metadata and embedded images the service shipped.
func (p *Processor) remux(ctx context.Context, src, dst string) error {
	if p.ffmpegPath == "" {
		return utils.MoveFile(src, dst)
	}

	cmd := exec.CommandContext(ctx, p.ffmpegPath,
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", src,
		"-map", "0:a", "-map_metadata", "-1",
		"-c", "copy",
		dst,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg remux of %s failed: %w: %s", filepath.Base(src), err, strings.TrimSpace(stderr.String()))
	}
	p.log.Debug("remuxed %s -> %s", filepath.Base(src), filepath.Base(dst))
	return nil
}

// WriteTags writes title, artists, album and lyrics to an audio file.
func WriteTags(path string, meta catalog.Metadata, lyrics string) error {
	tags := make(map[string][]string)

	if meta.Title != "" {
		tags[taglib.Title] = []string{meta.Title}
	}
	if artist := meta.PrimaryArtist(); artist != "" {
		tags[taglib.Artist] = []string{artist}
	}
	if meta.Album != "" {
		tags[taglib.Album] = []string{meta.Album}
	}
	if lyrics != "" {
		tags[lyricsTag] = []string{lyrics}
	}

	if err := taglib.WriteTags(path, tags, 0); err != nil {
		return fmt.Errorf("failed to write tags to %s: %w", path, err)
	}
	return nil
}

// WriteArtwork embeds artwork image data into an audio file.
func WriteArtwork(path string, imageData []byte) error {
	if len(imageData) == 0 {
		return nil
	}
	if err := taglib.WriteImage(path, imageData); err != nil {
		return fmt.Errorf("failed to write artwork to %s: %w", path, err)
	}
	return nil
}
