package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/attachment-triage/internal/core"
)

// MemoryCache is an in-memory implementation of the VerdictCache interface.
type MemoryCache struct {
	entries     map[string]*core.CacheEntry
	mu          sync.RWMutex
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewMemoryCache creates a new in-memory cache with background cleanup.
func NewMemoryCache(logger *zap.Logger, cleanupFreq time.Duration) *MemoryCache {
	c := &MemoryCache{
		entries:     make(map[string]*core.CacheEntry),
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}
	if cleanupFreq > 0 {
		go c.startCleanupTask()
	}
	return c
}

// Get retrieves a cached entry for an email id.
func (c *MemoryCache) Get(ctx context.Context, emailID string) (*core.CacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[emailID]
	if !ok || time.Now().After(entry.ExpiresAt) {
		return nil, core.ErrCacheMiss
	}
	return entry, nil
}

// Set stores a cache entry.
func (c *MemoryCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[entry.EmailID] = entry
	return nil
}

// Delete removes a cache entry.
func (c *MemoryCache) Delete(ctx context.Context, emailID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, emailID)
	return nil
}

// Cleanup removes expired entries.
func (c *MemoryCache) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, id)
			removed++
		}
	}
	if removed > 0 {
		c.logger.Debug("Cleaned up expired cache entries", zap.Int("removed", removed))
	}
	return nil
}

// Stop terminates the background cleanup task.
func (c *MemoryCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *MemoryCache) startCleanupTask() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.Cleanup(context.Background()); err != nil {
				c.logger.Error("Cache cleanup failed", zap.Error(err))
			}
		case <-c.stopCh:
			return
		}
	}
}
