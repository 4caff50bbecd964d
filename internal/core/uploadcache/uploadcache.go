// Package uploadcache holds uploaded files on disk for a short window so a
// later conversion request can reference them by id instead of re-uploading.
package uploadcache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/doc2md/doc2md/internal/core"
)

// Entry describes one cached upload.
type Entry struct {
	ID        string
	Name      string
	MediaType string
	Size      int64
	ExpiresAt time.Time
}

type entry struct {
	Entry
	path  string
	timer core.Timer
}

// Cache is a disk-backed upload store with per-entry timed expiry. The
// in-memory index owns the lifecycle; files on disk without an index entry
// are unreachable garbage.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry

	dir    string
	ttl    time.Duration
	clock  core.Clock
	sched  core.Scheduler
	logger *zap.Logger
}

func New(dir string, ttl time.Duration, clock core.Clock, sched core.Scheduler, logger *zap.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload cache dir: %w", err)
	}
	return &Cache{
		entries: make(map[string]*entry),
		dir:     dir,
		ttl:     ttl,
		clock:   clock,
		sched:   sched,
		logger:  logger,
	}, nil
}

// Put stores data under a fresh id and schedules its expiry.
func (c *Cache) Put(data []byte, name, mediaType string) (Entry, error) {
	id := uuid.New().String()
	path := filepath.Join(c.dir, id)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return Entry{}, fmt.Errorf("write cached upload: %w", err)
	}

	e := &entry{
		Entry: Entry{
			ID:        id,
			Name:      name,
			MediaType: mediaType,
			Size:      int64(len(data)),
			ExpiresAt: c.clock.Now().Add(c.ttl),
		},
		path: path,
	}

	c.mu.Lock()
	c.entries[id] = e
	e.timer = c.sched.AfterFunc(c.ttl, func() { c.expire(id) })
	c.mu.Unlock()

	c.logger.Info("Upload cached",
		zap.String("file_id", id),
		zap.String("name", name),
		zap.Int64("size", e.Size),
	)
	return e.Entry, nil
}

// Get returns the cached bytes and metadata. A missing or expired id yields
// ErrCacheEntryExpired; the caller cannot tell the two apart and should not.
func (c *Cache) Get(id string) ([]byte, Entry, error) {
	c.mu.Lock()
	e, ok := c.entries[id]
	c.mu.Unlock()
	if !ok {
		return nil, Entry{}, fmt.Errorf("upload %s: %w", id, core.ErrCacheEntryExpired)
	}
	if c.clock.Now().After(e.ExpiresAt) {
		c.remove(id)
		return nil, Entry{}, fmt.Errorf("upload %s: %w", id, core.ErrCacheEntryExpired)
	}

	data, err := os.ReadFile(e.path)
	if err != nil {
		c.remove(id)
		// A delete or expiry racing this read unlinks the file first; that
		// must look like an expired entry, not a filesystem fault.
		if os.IsNotExist(err) {
			return nil, Entry{}, fmt.Errorf("upload %s: %w", id, core.ErrCacheEntryExpired)
		}
		return nil, Entry{}, fmt.Errorf("read cached upload %s: %w", id, err)
	}
	return data, e.Entry, nil
}

// Delete drops an entry ahead of its expiry. Deleting an unknown id is a
// no-op; the expiry timer and an explicit delete may race and both win.
func (c *Cache) Delete(id string) {
	c.remove(id)
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) expire(id string) {
	c.logger.Debug("Upload expired", zap.String("file_id", id))
	c.remove(id)
}

// remove drops the index entry before unlinking the file, so a concurrent
// Get either sees the full entry or none of it.
func (c *Cache) remove(id string) {
	c.mu.Lock()
	e, ok := c.entries[id]
	if ok {
		delete(c.entries, id)
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	c.mu.Unlock()
	if ok {
		if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("Failed to remove cached upload", zap.String("file_id", id), zap.Error(err))
		}
	}
}
