package web

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"trackbot/internal/logger"
	"trackbot/pkg/utils"
)

// Uploads stores files pushed through the gateway. Each upload is copied
// into dir as <uuid><ext>; the id doubles as the media handle's wire form.
// Uploads older than the retention window are swept and their handles stop
// resolving, like expired file references on a real messenger.
type Uploads struct {
	dir       string
	retention time.Duration
	log       *logger.Logger

	mu    sync.RWMutex
	files map[string]time.Time
}

// OpenUploads prepares dir and registers the uploads already in it.
func OpenUploads(dir string, retention time.Duration, log *logger.Logger) (*Uploads, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media dir: %w", err)
	}

	u := &Uploads{
		dir:       dir,
		retention: retention,
		log:       log.Component("uploads"),
		files:     make(map[string]time.Time),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list media dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		u.files[e.Name()] = info.ModTime()
	}
	return u, nil
}

// Upload copies path into the media dir and returns its id.
func (u *Uploads) Upload(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := uuid.NewString() + strings.ToLower(filepath.Ext(path))
	if err := utils.CopyFile(path, filepath.Join(u.dir, id), false); err != nil {
		return nil, fmt.Errorf("failed to store upload %s: %w", filepath.Base(path), err)
	}

	u.mu.Lock()
	u.files[id] = time.Now()
	u.mu.Unlock()

	u.log.Debug("stored %s as %s", filepath.Base(path), id)
	return []byte(id), nil
}

// Path returns the file behind id while it is within retention.
func (u *Uploads) Path(id string) (string, bool) {
	if id == "" || id != filepath.Base(id) {
		return "", false
	}

	u.mu.RLock()
	created, ok := u.files[id]
	u.mu.RUnlock()
	if !ok || time.Since(created) > u.retention {
		return "", false
	}
	return filepath.Join(u.dir, id), true
}

// Sweep deletes uploads older than the retention window.
func (u *Uploads) Sweep() int {
	cutoff := time.Now().Add(-u.retention)

	u.mu.Lock()
	var expired []string
	for id, created := range u.files {
		if created.Before(cutoff) {
			expired = append(expired, id)
			delete(u.files, id)
		}
	}
	u.mu.Unlock()

	for _, id := range expired {
		if err := os.Remove(filepath.Join(u.dir, id)); err != nil && !os.IsNotExist(err) {
			u.log.Warn("failed to remove %s: %v", id, err)
		}
	}
	if len(expired) > 0 {
		u.log.Info("swept %d expired uploads", len(expired))
	}
	return len(expired)
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
func (u *Uploads) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				u.Sweep()
			}
		}
	}()
}
