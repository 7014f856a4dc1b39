package importer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"trackbot/internal/logger"
)

// fakeBeet writes a script that records its arguments.
func fakeBeet(t *testing.T, exit int) (string, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	dir := t.TempDir()
	record := filepath.Join(dir, "args")
	script := filepath.Join(dir, "beet")
	body := "#!/bin/sh\necho \"$@\" > " + record + "\necho imported\nexit " + strconv.Itoa(exit) + "\n"
	if err := os.WriteFile(script, []byte(body), 0755); err != nil {
		t.Fatal(err)
	}
	return script, record
}

func TestImport(t *testing.T) {
	script, record := fakeBeet(t, 0)
	track := filepath.Join(t.TempDir(), "Band - Song.flac")
	os.WriteFile(track, []byte("fLaC"), 0644)

	out := &bytes.Buffer{}
	if err := New(script, out, logger.Nop()).Import(context.Background(), track); err != nil {
		t.Fatalf("Import: %v", err)
	}

	args, _ := os.ReadFile(record)
	want := "import --move --quiet --singletons " + track
	if strings.TrimSpace(string(args)) != want {
		t.Errorf("args = %q, want %q", args, want)
	}
	if !strings.Contains(out.String(), "imported") {
		t.Errorf("output = %q", out.String())
	}
}

func TestImportFailure(t *testing.T) {
	script, _ := fakeBeet(t, 1)
	track := filepath.Join(t.TempDir(), "a.mp3")
	os.WriteFile(track, []byte("x"), 0644)

	if err := New(script, &bytes.Buffer{}, logger.Nop()).Import(context.Background(), track); err == nil {
		t.Error("expected an error for a failing beets run")
	}
}

func TestImportValidatesInput(t *testing.T) {
	imp := New("beet", &bytes.Buffer{}, logger.Nop())
	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing.flac")} {
		if err := imp.Import(context.Background(), path); err == nil {
			t.Errorf("Import(%q) should fail", path)
		}
	}
}
