package cache

import (
	"context"
	"sync"
	"time"

	"github.com/pharmatrace/trace-engine/internal/domain"
)

// DefaultCapacity bounds the in-memory prefix cache
const DefaultCapacity = 10000

type memoryEntry struct {
	info      *domain.CompanyInfo
	expiresAt time.Time
	storedAt  time.Time
}

// MemoryCache is a process-local PrefixCache with per-entry TTL and a
// capacity bound. When full, the oldest entry is evicted. Expired entries are
// dropped lazily on read and on eviction.
type MemoryCache struct {
	mu       sync.Mutex
	entries  map[string]memoryEntry
	capacity int
	now      func() time.Time
}

// MemoryOption customizes a MemoryCache
type MemoryOption func(*MemoryCache)

// WithClock replaces the clock used for expiry
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) { c.now = now }
}

// NewMemoryCache creates a cache. capacity <= 0 uses DefaultCapacity.
func NewMemoryCache(capacity int, opts ...MemoryOption) *MemoryCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &MemoryCache{
		entries:  make(map[string]memoryEntry),
		capacity: capacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *MemoryCache) Get(_ context.Context, prefix string) (*domain.CompanyInfo, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[prefix]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, prefix)
		return nil, false, nil
	}
	return cloneInfo(e.info), true, nil
}

func (c *MemoryCache) Set(_ context.Context, prefix string, info *domain.CompanyInfo, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[prefix]; !exists && len(c.entries) >= c.capacity {
		c.evict(now)
	}
	c.entries[prefix] = memoryEntry{info: cloneInfo(info), expiresAt: now.Add(ttl), storedAt: now}
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, prefix)
	return nil
}

// Len returns the number of stored entries, expired ones included
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evict drops expired entries, or the oldest one if none has expired.
// Caller holds mu.
func (c *MemoryCache) evict(now time.Time) {
	var oldestKey string
	var oldest time.Time
	expired := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			expired++
			continue
		}
		if oldestKey == "" || e.storedAt.Before(oldest) {
			oldestKey, oldest = k, e.storedAt
		}
	}
	if expired == 0 && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func cloneInfo(info *domain.CompanyInfo) *domain.CompanyInfo {
	if info == nil {
		return nil
	}
	cp := *info
	return &cp
}
