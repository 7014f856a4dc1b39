package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"trackbot/internal/logger"
	"trackbot/pkg/utils"
)

const (
	keyPrefix       = "++media+"
	partPayload     = "payload"
	partContentType = "content_type"
)

// FileKey derives the on-disk name for one part of a cached entry.
// Path separators and colons are replaced so the URL is a flat file name.
func FileKey(url, part string) string {
	name := keyPrefix + url + "+" + part
	name = strings.ReplaceAll(name, "/", "+")
	return strings.ReplaceAll(name, ":", "+")
}

// FileStore persists each entry as two sibling files: the raw handle bytes
// and the content type as plain text.
type FileStore struct {
	dir string
	log *logger.Logger
}

func NewFileStore(dir string, log *logger.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir, log: log.Component("media/file")}, nil
}

func (s *FileStore) Get(_ context.Context, key string) (Handle, bool) {
	payloadPath := filepath.Join(s.dir, FileKey(key, partPayload))

	raw, err := os.ReadFile(payloadPath)
	if err != nil {
		s.readFailed(key, err)
		return Handle{}, false
	}
	ct, err := os.ReadFile(filepath.Join(s.dir, FileKey(key, partContentType)))
	if err != nil {
		s.readFailed(key, err)
		return Handle{}, false
	}

	return Handle{Raw: raw, ContentType: string(ct), LocalPath: payloadPath}, true
}

func (s *FileStore) readFailed(key string, err error) {
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	s.log.Warn("treating %s as a miss: %v", key, err)
}

func (s *FileStore) Put(_ context.Context, key string, h Handle) Handle {
	if err := utils.WriteFileAtomic(filepath.Join(s.dir, FileKey(key, partPayload)), h.Raw, 0644); err != nil {
		s.log.Warn("failed to persist %s: %v", key, err)
		return h
	}
	if err := utils.WriteFileAtomic(filepath.Join(s.dir, FileKey(key, partContentType)), []byte(h.ContentType), 0644); err != nil {
		s.log.Warn("failed to persist content type of %s: %v", key, err)
	}
	return h
}

func (s *FileStore) Clear(context.Context) {
	matches, err := filepath.Glob(filepath.Join(s.dir, keyPrefix+"*"))
	if err != nil {
		s.log.Warn("failed to list cache entries: %v", err)
		return
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("failed to remove %s: %v", m, err)
		}
	}
}

func (s *FileStore) Close() error { return nil }
