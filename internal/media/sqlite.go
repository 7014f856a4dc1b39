package media

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"trackbot/internal/logger"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const schema = `
CREATE TABLE IF NOT EXISTS media_cache (
	url          TEXT PRIMARY KEY,
	payload      BLOB NOT NULL,
	content_type TEXT NOT NULL,
	local_path   TEXT NOT NULL DEFAULT '',
	updated_at   INTEGER NOT NULL
)`

// SQLiteStore keeps handles in a single SQLite table.
type SQLiteStore struct {
	db   *sql.DB
	path string
	log  *logger.Logger
}

// OpenSQLite opens (or creates) media.db inside dir.
func OpenSQLite(dir string, log *logger.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "media.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init media cache schema: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath, log: log.Component("media/sqlite")}, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (Handle, bool) {
	var h Handle
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT payload, content_type, local_path FROM media_cache WHERE url = ?`, key,
		).Scan(&h.Raw, &h.ContentType, &h.LocalPath)
	})
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.Warn("treating %s as a miss: %v", key, err)
		}
		return Handle{}, false
	}
	return h, true
}

func (s *SQLiteStore) Put(ctx context.Context, key string, h Handle) Handle {
	err := retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO media_cache (url, payload, content_type, local_path, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(url) DO UPDATE SET
				payload = excluded.payload,
				content_type = excluded.content_type,
				local_path = excluded.local_path,
				updated_at = excluded.updated_at`,
			key, h.Raw, h.ContentType, h.LocalPath, time.Now().Unix())
		return err
	})
	if err != nil {
		s.log.Warn("failed to persist %s: %v", key, err)
	}
	return h
}

func (s *SQLiteStore) Clear(ctx context.Context) {
	err := retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM media_cache`)
		return err
	})
	if err != nil {
		s.log.Warn("failed to clear media cache: %v", err)
	}
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
