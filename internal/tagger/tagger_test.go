package tagger

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"go.senan.xyz/taglib"

	"trackbot/internal/catalog"
	"trackbot/internal/logger"
)

// createTestAudioFile generates a minimal MP3 using ffmpeg.
// Skips the test if ffmpeg is not available.
func createTestAudioFile(t *testing.T, dir, name string) string {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available, skipping tagger test")
	}

	path := filepath.Join(dir, name)
	cmd := exec.Command("ffmpeg", "-f", "lavfi", "-i", "anullsrc=r=44100:cl=mono", "-t", "0.1", "-q:a", "9", path)
	if err := cmd.Run(); err != nil {
		t.Fatalf("failed to create test audio file: %v", err)
	}
	return path
}

// Minimal valid JPEG (smallest valid JFIF)
var fakeImage = []byte{
	0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46, 0x49, 0x46, 0x00, 0x01,
	0x01, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0xFF, 0xD9,
}

func firstTag(tags map[string][]string, key string) string {
	if vals, ok := tags[key]; ok && len(vals) > 0 {
		return vals[0]
	}
	return ""
}

func TestExtension(t *testing.T) {
	tests := []struct {
		contentType string
		filename    string
		want        string
		wantErr     bool
	}{
		{"audio/flac", "", ".flac", false},
		{"audio/mpeg; charset=binary", "", ".mp3", false},
		{"AUDIO/MP4", "", ".m4a", false},
		{"application/octet-stream", "Song.FLAC", ".flac", false},
		{"", "track.opus", ".opus", false},
		{"text/html", "index.html", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		got, err := Extension(tt.contentType, tt.filename)
		if (err != nil) != tt.wantErr {
			t.Errorf("Extension(%q, %q) error = %v, wantErr %v", tt.contentType, tt.filename, err, tt.wantErr)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrUnknownFormat) {
			t.Errorf("Extension(%q, %q) error = %v, want ErrUnknownFormat", tt.contentType, tt.filename, err)
		}
		if got != tt.want {
			t.Errorf("Extension(%q, %q) = %q, want %q", tt.contentType, tt.filename, got, tt.want)
		}
	}
}

func TestNames(t *testing.T) {
	meta := catalog.Metadata{Title: "Who: Are/You?", Artists: []string{"AC/DC", "Guest"}}

	if got := OutputName(meta, ".flac"); got != "AC_DC - Who_ Are_You_.flac" {
		t.Errorf("OutputName = %q", got)
	}
	if got := RawName(meta, ".flac"); got != "who-are-you_raw.flac" {
		t.Errorf("RawName = %q", got)
	}
	if got := RawName(catalog.Metadata{}, ".mp3"); got != "track_raw.mp3" {
		t.Errorf("RawName(empty) = %q", got)
	}
}

func TestProcessWithoutFFmpeg(t *testing.T) {
	dir := t.TempDir()
	raw := createTestAudioFile(t, dir, "song_raw.mp3")
	cover := filepath.Join(dir, "cover.jpg")
	if err := os.WriteFile(cover, fakeImage, 0644); err != nil {
		t.Fatal(err)
	}

	p := New("", logger.Nop())
	out, err := p.Process(context.Background(), Input{
		WorkDir:     dir,
		RawPath:     raw,
		ContentType: "audio/mpeg",
		CoverPath:   cover,
		Lyrics:      "la la la",
		Meta:        catalog.Metadata{Title: "Test Song", Artists: []string{"Test Artist"}, Album: "Test Album"},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if filepath.Base(out.Path) != "Test Artist - Test Song.mp3" {
		t.Errorf("output name = %q", filepath.Base(out.Path))
	}
	if out.ContentType != "audio/mpeg" {
		t.Errorf("ContentType = %q", out.ContentType)
	}
	if _, err := os.Stat(raw); !os.IsNotExist(err) {
		t.Error("raw file should have been moved")
	}

	tags, err := taglib.ReadTags(out.Path)
	if err != nil {
		t.Fatalf("failed to read tags: %v", err)
	}
	checks := map[string]string{
		taglib.Title:  "Test Song",
		taglib.Artist: "Test Artist",
		taglib.Album:  "Test Album",
		lyricsTag:     "la la la",
	}
	for key, want := range checks {
		if got := firstTag(tags, key); got != want {
			t.Errorf("tag %s = %q, want %q", key, got, want)
		}
	}

	img, err := taglib.ReadImage(out.Path)
	if err != nil {
		t.Fatalf("failed to read image: %v", err)
	}
	if len(img) == 0 {
		t.Error("expected embedded image data, got empty")
	}
}

func TestProcessRemux(t *testing.T) {
	dir := t.TempDir()
	raw := createTestAudioFile(t, dir, "song_raw.mp3")

	p := New("ffmpeg", logger.Nop())
	out, err := p.Process(context.Background(), Input{
		WorkDir:     dir,
		RawPath:     raw,
		ContentType: "audio/mpeg",
		Meta:        catalog.Metadata{Title: "Remuxed", Artists: []string{"Band"}},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	tags, err := taglib.ReadTags(out.Path)
	if err != nil {
		t.Fatalf("failed to read tags: %v", err)
	}
	if got := firstTag(tags, taglib.Title); got != "Remuxed" {
		t.Errorf("title = %q", got)
	}
}

func TestProcessRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "garbage_raw.flac")
	if err := os.WriteFile(raw, []byte("not audio"), 0644); err != nil {
		t.Fatal(err)
	}

	p := New("", logger.Nop())
	_, err := p.Process(context.Background(), Input{
		WorkDir: dir,
		RawPath: raw,
		Meta:    catalog.Metadata{Title: "x", Artists: []string{"y"}},
	})
	if err == nil {
		t.Error("expected error tagging a non-audio file")
	}
}

func TestWriteArtworkEmpty(t *testing.T) {
	if err := WriteArtwork("/nonexistent", nil); err != nil {
		t.Errorf("expected nil error for empty image, got %v", err)
	}
}

func TestWriteTagsNonexistentFile(t *testing.T) {
	err := WriteTags("/nonexistent/file.mp3", catalog.Metadata{Title: "x"}, "")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}
