// Package cache holds backend data in memory between refreshes. Entries past
// their refresh interval are stale but may still be served while a refresh is
// failing; entries past twice the interval are very stale and are dropped.
package cache

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"
)

// Cache is a thread-safe store of values of one type, keyed by name
type Cache[T any] struct {
	entries map[string]Entry[T]
	mutex   sync.RWMutex
	now     func() time.Time
}

// Entry is a cached value with the metadata needed to judge its age
type Entry[T any] struct {
	Value           T
	CreatedAt       time.Time
	RefreshInterval time.Duration
	Source          string
}

// Stale reports whether the entry is past its refresh interval
func (e Entry[T]) Stale(now time.Time) bool {
	return now.After(e.CreatedAt.Add(e.RefreshInterval))
}

// VeryStale reports whether the entry is past twice its refresh interval
func (e Entry[T]) VeryStale(now time.Time) bool {
	return now.After(e.CreatedAt.Add(2 * e.RefreshInterval))
}

// New creates an empty cache
func New[T any]() *Cache[T] {
	return &Cache[T]{
		entries: make(map[string]Entry[T]),
		now:     time.Now,
	}
}

// Set stores value under key until it goes stale after refreshInterval
func (c *Cache[T]) Set(key string, value T, refreshInterval time.Duration, source string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = Entry[T]{
		Value:           value,
		CreatedAt:       c.now(),
		RefreshInterval: refreshInterval,
		Source:          source,
	}
}

// Get returns the value under key if it is not stale
func (c *Cache[T]) Get(key string) (T, bool) {
	entry, exists := c.GetWithMetadata(key)
	if !exists || entry.Stale(c.now()) {
		var zero T
		return zero, false
	}
	return entry.Value, true
}

// GetWithMetadata returns the entry under key regardless of age
func (c *Cache[T]) GetWithMetadata(key string) (Entry[T], bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.entries[key]
	return entry, exists
}

// IsVeryStale reports whether the entry under key is missing or too old to serve
func (c *Cache[T]) IsVeryStale(key string) bool {
	entry, exists := c.GetWithMetadata(key)
	return !exists || entry.VeryStale(c.now())
}

// CleanupStale removes entries too old to serve and returns how many it removed
func (c *Cache[T]) CleanupStale() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	var removed int
	for key, entry := range c.entries {
		if entry.VeryStale(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// StartPeriodicCleanup starts a goroutine that periodically cleans up stale entries
func (c *Cache[T]) StartPeriodicCleanup(ctx context.Context, interval time.Duration) {
	ctx = logging.EnsureLogger(ctx)
	go func() {
		defer func() {
			// Recover from any panics in the cache cleanup goroutine
			if r := recover(); r != nil {
				err, _ := errors.ParseStack(debug.Stack())
				skipFrames := 3
				numFrames := 5
				logging.Errorw(ctx, "Cache cleanup: recovered from panic",
					"error", r, "error.stack_trace", err.MinimalStack(skipFrames, numFrames))
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := c.CleanupStale(); removed > 0 {
					logging.Infow(ctx, "Cache cleanup: removed stale entries", "removed", removed)
				}
			}
		}
	}()
}
