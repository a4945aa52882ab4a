package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/felixgeelhaar/tracetm/domain/cache"
)

// DefaultCacheSize bounds a cache created without WithMaxSize.
const DefaultCacheSize = 1000

type cacheEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

func (e *cacheEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Cache is an in-memory LRU implementation of cache.Cache with optional TTLs.
type Cache struct {
	mu      sync.Mutex
	index   map[string]*list.Element
	order   *list.List // front is most recently used
	maxSize int
	now     func() time.Time
	hits    int64
	misses  int64
}

// CacheOption configures the cache.
type CacheOption func(*Cache)

// WithMaxSize sets the maximum number of entries.
func WithMaxSize(size int) CacheOption {
	return func(c *Cache) {
		if size > 0 {
			c.maxSize = size
		}
	}
}

// WithClock replaces the time source used for expiry.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCache creates an empty cache.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		index:   make(map[string]*list.Element),
		order:   list.New(),
		maxSize: DefaultCacheSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves a copy of a cached value.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		c.misses++
		return nil, false, nil
	}

	entry := el.Value.(*cacheEntry)
	if entry.expired(c.now()) {
		c.remove(el)
		c.misses++
		return nil, false, nil
	}

	c.order.MoveToFront(el)
	c.hits++
	return append([]byte(nil), entry.value...), true, nil
}

// Set stores a copy of value, evicting the least recently used entry when full.
func (c *Cache) Set(ctx context.Context, key string, value []byte, opts cache.SetOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return cache.ErrInvalidKey
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &cacheEntry{
		key:   key,
		value: append([]byte(nil), value...),
	}
	if opts.TTL > 0 {
		entry.expiresAt = c.now().Add(opts.TTL)
	}

	if el, ok := c.index[key]; ok {
		el.Value = entry
		c.order.MoveToFront(el)
		return nil
	}

	for c.order.Len() >= c.maxSize {
		c.remove(c.order.Back())
	}
	c.index[key] = c.order.PushFront(entry)
	return nil
}

// Delete removes a value from the cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		c.remove(el)
	}
	return nil
}

// Exists reports whether key holds an unexpired value. It does not touch recency.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		return false, nil
	}
	return !el.Value.(*cacheEntry).expired(c.now()), nil
}

// Clear removes all entries from the cache.
func (c *Cache) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.index = make(map[string]*list.Element)
	c.order.Init()
	return nil
}

// Stats returns cache statistics.
func (c *Cache) Stats() cache.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return cache.Stats{
		Hits:    c.hits,
		Misses:  c.misses,
		Size:    int64(c.order.Len()),
		MaxSize: int64(c.maxSize),
	}
}

// Cleanup removes expired entries and returns how many were dropped.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var removed int
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*cacheEntry).expired(now) {
			c.remove(el)
			removed++
		}
		el = next
	}
	return removed
}

// Size returns the current number of entries.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// remove must be called with the lock held.
func (c *Cache) remove(el *list.Element) {
	c.order.Remove(el)
	delete(c.index, el.Value.(*cacheEntry).key)
}

var (
	_ cache.Cache         = (*Cache)(nil)
	_ cache.StatsProvider = (*Cache)(nil)
)
