package statuscache

import (
	"context"
	"sync"
	"time"

	"github.com/Ramsey-B/fescue/pkg/metrics"
	"github.com/Ramsey-B/fescue/pkg/models"
)

// MemoryCache is a process-local cache. It suits a single instance; use RedisCache
// when several instances serve the same profiles.
type MemoryCache struct {
	entries map[string]*cacheEntry
	mu      sync.RWMutex
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	status    models.StatusResult
	expiresAt time.Time
}

func NewMemoryCache(config Config) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*cacheEntry),
		maxSize: config.MaxSize,
		ttl:     config.TTL,
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, profileID string) (*models.StatusResult, bool, error) {
	c.mu.RLock()
	entry, exists := c.entries[profileID]
	c.mu.RUnlock()

	if !exists || !c.now().Before(entry.expiresAt) {
		metrics.StatusCacheLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}

	metrics.StatusCacheLookups.WithLabelValues("hit").Inc()
	status := entry.status
	return &status, true, nil
}

func (c *MemoryCache) Set(_ context.Context, profileID string, status *models.StatusResult) error {
	if status == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[profileID]; !exists && c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evict()
	}

	c.entries[profileID] = &cacheEntry{
		status:    *status,
		expiresAt: c.now().Add(c.ttl),
	}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, profileID string) error {
	c.mu.Lock()
	delete(c.entries, profileID)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evict drops expired entries, then half of the rest if still full. Lock must be held.
func (c *MemoryCache) evict() {
	now := c.now()
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
	if len(c.entries) < c.maxSize {
		return
	}

	target := len(c.entries) / 2
	count := 0
	for key := range c.entries {
		delete(c.entries, key)
		count++
		if count >= target {
			break
		}
	}
}
