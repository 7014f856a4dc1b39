package web

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"trackbot/internal/logger"
	"trackbot/internal/media"
	"trackbot/internal/transport"
)

func newTestGateway(t *testing.T, retention time.Duration) *Gateway {
	t.Helper()
	uploads, err := OpenUploads(filepath.Join(t.TempDir(), "media"), retention, logger.Nop())
	if err != nil {
		t.Fatalf("OpenUploads: %v", err)
	}
	return NewGateway(NewMessageManager(), uploads, logger.Nop())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestUploadCopiesFile(t *testing.T) {
	gw := newTestGateway(t, time.Hour)
	src := writeFile(t, "Band - Song.FLAC", "fLaC")

	raw, err := gw.Upload(context.Background(), src)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	id := string(raw)
	if !strings.HasSuffix(id, ".flac") {
		t.Errorf("id = %q, want a .flac suffix", id)
	}

	path, ok := gw.Uploads.Path(id)
	if !ok {
		t.Fatal("uploaded id should resolve")
	}
	data, _ := os.ReadFile(path)
	if string(data) != "fLaC" {
		t.Errorf("stored content = %q", data)
	}
	if _, err := os.Stat(src); err != nil {
		t.Error("source must be left in place")
	}
}

func TestUploadsPathRejectsTraversal(t *testing.T) {
	gw := newTestGateway(t, time.Hour)
	for _, id := range []string{"", "../x", "a/b"} {
		if _, ok := gw.Uploads.Path(id); ok {
			t.Errorf("Path(%q) should not resolve", id)
		}
	}
}

func TestUploadsSweep(t *testing.T) {
	gw := newTestGateway(t, time.Hour)
	raw, _ := gw.Upload(context.Background(), writeFile(t, "a.mp3", "a"))
	id := string(raw)

	if n := gw.Uploads.Sweep(); n != 0 {
		t.Errorf("fresh upload swept: %d", n)
	}

	gw.Uploads.mu.Lock()
	gw.Uploads.files[id] = time.Now().Add(-2 * time.Hour)
	gw.Uploads.mu.Unlock()

	if n := gw.Uploads.Sweep(); n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}
	if _, ok := gw.Uploads.Path(id); ok {
		t.Error("swept upload should not resolve")
	}
	if _, err := os.Stat(filepath.Join(gw.Uploads.dir, id)); !os.IsNotExist(err) {
		t.Error("swept file should be deleted")
	}
}

func TestOpenUploadsRegistersExisting(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "kept.mp3"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0644)

	u, err := OpenUploads(dir, time.Hour, logger.Nop())
	if err != nil {
		t.Fatalf("OpenUploads: %v", err)
	}
	if _, ok := u.Path("kept.mp3"); !ok {
		t.Error("existing upload should resolve after reopening")
	}
	if _, ok := u.Path(".hidden"); ok {
		t.Error("dot files are not uploads")
	}
}

func TestEditMessageText(t *testing.T) {
	gw := newTestGateway(t, time.Hour)
	msg := gw.Messages.Create("r", "", "")

	applied, err := gw.EditMessage(context.Background(), transport.MessageID(msg.ID), transport.Edit{Text: "Downloading audio", Button: "Downloading..."})
	if err != nil || !applied {
		t.Fatalf("EditMessage = %v, %v", applied, err)
	}

	got, _ := gw.Messages.Get(msg.ID)
	if got.Text != "Downloading audio" || got.Button != "Downloading..." || got.Status != StatusRunning {
		t.Errorf("message = %+v", got)
	}
}

func TestEditMessageUnknown(t *testing.T) {
	gw := newTestGateway(t, time.Hour)

	_, err := gw.EditMessage(context.Background(), "missing", transport.Edit{Text: "x"})
	if !errors.Is(err, ErrUnknownMessage) {
		t.Errorf("err = %v, want ErrUnknownMessage", err)
	}
}

func TestEditMessageMedia(t *testing.T) {
	gw := newTestGateway(t, time.Hour)
	msg := gw.Messages.Create("r", "", "")
	file, _ := gw.Upload(context.Background(), writeFile(t, "a.flac", "a"))
	thumb, _ := gw.Upload(context.Background(), writeFile(t, "c.jpg", "c"))

	applied, err := gw.EditMessage(context.Background(), transport.MessageID(msg.ID), transport.Edit{Media: &transport.Media{
		File:      media.Handle{Raw: file, ContentType: "audio/flac"},
		Thumb:     &media.Handle{Raw: thumb, ContentType: "image/jpeg"},
		Title:     "Song",
		Performer: "Band",
		Duration:  3 * time.Minute,
	}})
	if err != nil || !applied {
		t.Fatalf("EditMessage = %v, %v", applied, err)
	}

	got, _ := gw.Messages.Get(msg.ID)
	if got.Status != StatusCompleted || got.Audio == nil {
		t.Fatalf("message = %+v", got)
	}
	if got.Audio.FileID != string(file) || got.Audio.ThumbID != string(thumb) || got.Audio.DurationSec != 180 {
		t.Errorf("audio = %+v", got.Audio)
	}
}

func TestEditMessageExpiredMedia(t *testing.T) {
	gw := newTestGateway(t, time.Hour)
	msg := gw.Messages.Create("r", "", "")
	file, _ := gw.Upload(context.Background(), writeFile(t, "a.flac", "a"))
	thumb, _ := gw.Upload(context.Background(), writeFile(t, "c.jpg", "c"))

	gw.Uploads.mu.Lock()
	gw.Uploads.files[string(thumb)] = time.Now().Add(-2 * time.Hour)
	gw.Uploads.mu.Unlock()

	applied, err := gw.EditMessage(context.Background(), transport.MessageID(msg.ID), transport.Edit{Media: &transport.Media{
		File:  media.Handle{Raw: file},
		Thumb: &media.Handle{Raw: thumb},
	}})
	if err != nil || applied {
		t.Errorf("expired thumbnail: EditMessage = %v, %v, want false, nil", applied, err)
	}

	applied, err = gw.EditMessage(context.Background(), transport.MessageID(msg.ID), transport.Edit{Media: &transport.Media{
		File: media.Handle{Raw: []byte("never-uploaded.flac")},
	}})
	if err != nil || applied {
		t.Errorf("unknown file: EditMessage = %v, %v, want false, nil", applied, err)
	}

	if got, _ := gw.Messages.Get(msg.ID); got.Audio != nil {
		t.Error("refused edits must not change the message")
	}
}

func TestAnswerInlineIsTakenOnce(t *testing.T) {
	gw := newTestGateway(t, time.Hour)
	gw.AnswerInline(context.Background(), "q", []transport.InlineResult{{ID: "a"}})

	if res, ok := gw.takeAnswer("q"); !ok || len(res) != 1 {
		t.Errorf("takeAnswer = %v, %v", res, ok)
	}
	if _, ok := gw.takeAnswer("q"); ok {
		t.Error("answer should be removed after it was taken")
	}
}
