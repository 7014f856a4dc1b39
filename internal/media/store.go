// Package media caches uploaded-media handles keyed by an asset's canonical URL.
//
// Every store fails open: a durable backend that cannot be read or written
// logs the problem and behaves like a miss (Get) or a no-op (Put).
package media

import (
	"context"
	"fmt"
	"sync"

	"trackbot/internal/logger"
)

// Handle points into the transport's media store.
// Raw is the transport's wire encoding of the upload and is opaque here.
type Handle struct {
	Raw         []byte
	ContentType string
	// LocalPath is an optional durable copy of the payload.
	LocalPath string
}

// Store maps asset URLs to handles. Implementations are safe for concurrent use
// and never take a global lock across Get/Put.
type Store interface {
	Get(ctx context.Context, key string) (Handle, bool)
	// Put stores h under key, overwriting any previous entry, and returns h.
	Put(ctx context.Context, key string, h Handle) Handle
	// Clear drops every entry.
	Clear(ctx context.Context)
	Close() error
}

// Open builds the store for a configured backend. Durable backends are
// fronted by a MemoryStore.
func Open(backend, dir string, log *logger.Logger) (Store, error) {
	switch backend {
	case "memory":
		return NewMemoryStore(), nil
	case "file":
		fs, err := NewFileStore(dir, log)
		if err != nil {
			return nil, err
		}
		return NewTiered(NewMemoryStore(), fs), nil
	case "sqlite":
		ss, err := OpenSQLite(dir, log)
		if err != nil {
			return nil, err
		}
		return NewTiered(NewMemoryStore(), ss), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}

// MemoryStore keeps handles in a sync.Map for the life of the process.
type MemoryStore struct {
	entries sync.Map
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(_ context.Context, key string) (Handle, bool) {
	v, ok := m.entries.Load(key)
	if !ok {
		return Handle{}, false
	}
	return v.(Handle), true
}

func (m *MemoryStore) Put(_ context.Context, key string, h Handle) Handle {
	m.entries.Store(key, h)
	return h
}

func (m *MemoryStore) Clear(context.Context) {
	m.entries.Clear()
}

func (m *MemoryStore) Close() error { return nil }

// Tiered reads through a fast front store to a durable back store.
type Tiered struct {
	front Store
	back  Store
}

func NewTiered(front, back Store) *Tiered {
	return &Tiered{front: front, back: back}
}

// Get checks the front first; back hits are promoted.
func (t *Tiered) Get(ctx context.Context, key string) (Handle, bool) {
	if h, ok := t.front.Get(ctx, key); ok {
		return h, true
	}
	h, ok := t.back.Get(ctx, key)
	if !ok {
		return Handle{}, false
	}
	t.front.Put(ctx, key, h)
	return h, true
}

func (t *Tiered) Put(ctx context.Context, key string, h Handle) Handle {
	t.back.Put(ctx, key, h)
	return t.front.Put(ctx, key, h)
}

func (t *Tiered) Clear(ctx context.Context) {
	t.front.Clear(ctx)
	t.back.Clear(ctx)
}

func (t *Tiered) Close() error {
	if err := t.front.Close(); err != nil {
		return err
	}
	return t.back.Close()
}
