package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryCache is an in-process Cache bounded by MaxEntries.
// Entries live on a recency list; the least recently used one is evicted first.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	recency    *list.List // front is the most recently used
	defaultTTL time.Duration
	maxEntries int
	now        func() time.Time

	hits   atomic.Int64
	misses atomic.Int64

	closed atomic.Bool
	stopCh chan struct{}
	done   chan struct{}
}

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewMemoryCache starts a memory cache with a background sweeper of expired entries.
func NewMemoryCache(opts *Options) *MemoryCache {
	if opts == nil {
		opts = DefaultOptions()
	}

	c := &MemoryCache{
		entries:    make(map[string]*list.Element),
		recency:    list.New(),
		defaultTTL: opts.DefaultTTL,
		maxEntries: opts.MaxEntries,
		now:        opts.Now,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	if c.maxEntries <= 0 {
		c.maxEntries = 10000
	}
	if c.now == nil {
		c.now = time.Now
	}

	interval := opts.CleanupInterval
	if interval <= 0 {
		interval = time.Minute
	}
	go c.sweep(interval)

	return c
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil, ErrKeyNotFound
	}
	e := el.Value.(*memoryEntry)
	if e.expired(c.now()) {
		c.removeElement(el)
		c.misses.Add(1)
		return nil, ErrKeyNotFound
	}

	c.hits.Add(1)
	c.recency.MoveToFront(el)
	return append([]byte(nil), e.value...), nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}

	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	e := &memoryEntry{key: key, value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value = e
		c.recency.MoveToFront(el)
		return nil
	}

	for c.recency.Len() >= c.maxEntries {
		c.removeElement(c.recency.Back())
	}
	c.entries[key] = c.recency.PushFront(e)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}

	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		c.removeElement(el)
	}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Keys(_ context.Context, pattern string) ([]string, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	var keys []string
	for key, el := range c.entries {
		if !el.Value.(*memoryEntry).expired(now) && matchPattern(pattern, key) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (c *MemoryCache) DeleteByPattern(_ context.Context, pattern string) (int64, error) {
	if c.closed.Load() {
		return 0, ErrCacheClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var n int64
	for key, el := range c.entries {
		if matchPattern(pattern, key) {
			c.removeElement(el)
			n++
		}
	}
	return n, nil
}

func (c *MemoryCache) Stats(_ context.Context) (*Stats, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}

	stats := &Stats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		KeysByPrefix: make(map[string]int64),
		Backend:      BackendMemory,
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	for el := c.recency.Front(); el != nil; el = el.Next() {
		e := el.Value.(*memoryEntry)
		if e.expired(now) {
			continue
		}
		stats.TotalKeys++
		stats.MemoryBytes += int64(len(e.value))
		stats.KeysByPrefix[modulePrefix(e.key)]++
	}
	return stats, nil
}

func (c *MemoryCache) Ping(context.Context) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	return nil
}

// Close stops the sweeper and drops every entry. Subsequent calls are no-ops.
func (c *MemoryCache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.stopCh)
	<-c.done

	c.mu.Lock()
	c.entries = make(map[string]*list.Element)
	c.recency.Init()
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) sweep(interval time.Duration) {
	defer close(c.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

// cleanup removes expired entries.
func (c *MemoryCache) cleanup() {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for el := c.recency.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*memoryEntry).expired(now) {
			c.removeElement(el)
		}
		el = prev
	}
}

// removeElement must be called with mu held.
func (c *MemoryCache) removeElement(el *list.Element) {
	c.recency.Remove(el)
	delete(c.entries, el.Value.(*memoryEntry).key)
}

// matchPattern reports whether key matches a Redis style glob where '*'
// stands for any run of characters. Other characters match literally.
func matchPattern(pattern, key string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == key
	}

	if !strings.HasPrefix(key, parts[0]) {
		return false
	}
	key = key[len(parts[0]):]

	last := parts[len(parts)-1]
	for _, mid := range parts[1 : len(parts)-1] {
		i := strings.Index(key, mid)
		if i < 0 {
			return false
		}
		key = key[i+len(mid):]
	}
	return strings.HasSuffix(key, last)
}

// modulePrefix returns "prefix:module" of a Layer key.
func modulePrefix(key string) string {
	prefix, rest, ok := strings.Cut(key, ":")
	if !ok {
		return "other"
	}
	module, _, _ := strings.Cut(rest, ":")
	return prefix + ":" + module
}
