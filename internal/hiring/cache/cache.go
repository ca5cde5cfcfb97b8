// Package cache keeps a local copy of the job collection for fast reads and
// writes and reconciles it with the remote collection store.
package cache

import (
	"context"
	"sync"

	"github.com/gartstein/hiring/internal/hiring/models"
)

// Cache holds one copy of the collection. Version is the remote version the
// copy was last reconciled with, not a hash of the cached jobs.
type Cache interface {
	// Load reports ok=false when the cache was never populated.
	Load(ctx context.Context) (col models.Collection, ok bool, err error)
	Store(ctx context.Context, col models.Collection) error
	Clear(ctx context.Context) error
}

// Remote is the authoritative collection store.
type Remote interface {
	Load(ctx context.Context) (models.Collection, error)
	Save(ctx context.Context, jobs []models.Job, expectedVersion string) (string, error)
}

// MemoryCache is a process-local Cache. It stores deep copies so callers can
// keep mutating what they passed in or got back.
type MemoryCache struct {
	mu   sync.RWMutex
	data []byte
	ver  string
	ok   bool
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (m *MemoryCache) Load(_ context.Context) (models.Collection, bool, error) {
	m.mu.RLock()
	data, ver, ok := m.data, m.ver, m.ok
	m.mu.RUnlock()

	if !ok {
		return models.Collection{}, false, nil
	}
	jobs, err := models.Decode(data)
	if err != nil {
		return models.Collection{}, false, err
	}
	return models.Collection{Jobs: jobs, Version: ver}, true, nil
}

func (m *MemoryCache) Store(_ context.Context, col models.Collection) error {
	data, err := models.Encode(col.Jobs)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data, m.ver, m.ok = data, col.Version, true
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Clear(_ context.Context) error {
	m.mu.Lock()
	m.data, m.ver, m.ok = nil, "", false
	m.mu.Unlock()
	return nil
}
