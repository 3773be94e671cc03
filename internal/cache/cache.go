// Package cache provides a process-owned, TTL-classed memoization store
// for upstream REST responses. Expiry is lazy: stale entries are ignored
// at read time, never swept. The store is reset on process restart.
package cache

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Class names a cache expiration duration applied to a category of payloads.
type Class int

const (
	// ClassLive covers live price and detail lookups.
	ClassLive Class = iota

	// ClassHistorical covers chart and history payloads.
	ClassHistorical

	// ClassNews covers news and search-adjacent content.
	ClassNews
)

// String returns the class name for logging.
func (c Class) String() string {
	switch c {
	case ClassLive:
		return "live"
	case ClassHistorical:
		return "historical"
	case ClassNews:
		return "news"
	}
	return "unknown"
}

// TTLs maps each class to its expiration duration.
type TTLs struct {
	Live       time.Duration
	Historical time.Duration
	News       time.Duration
}

// DefaultTTLs returns the standard per-class durations.
func DefaultTTLs() TTLs {
	return TTLs{
		Live:       60 * time.Second,
		Historical: 5 * time.Minute,
		News:       15 * time.Minute,
	}
}

type entry struct {
	payload  json.RawMessage
	storedAt time.Time
	ttl      time.Duration
}

// Cache is a concurrency-safe key-value store with lazy TTL expiry.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry

	ttls   TTLs
	logger *slog.Logger

	// now is swappable for TTL boundary tests.
	now func() time.Time
}

// New creates a Cache with the given per-class TTLs.
func New(ttls TTLs, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		entries: make(map[string]entry),
		ttls:    ttls,
		logger:  logger,
		now:     time.Now,
	}
}

// Key derives a cache key from an endpoint name and request parameters.
func Key(endpoint string, params ...string) string {
	if len(params) == 0 {
		return endpoint
	}
	return endpoint + ":" + strings.Join(params, ":")
}

// Get returns the payload stored under key if it has not expired.
// Stale entries are left in place; they are simply not served.
func (c *Cache) Get(key string) (json.RawMessage, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) >= e.ttl {
		return nil, false
	}
	return e.payload, true
}

// Put stores payload under key with the TTL of the given class,
// overwriting any previous entry.
func (c *Cache) Put(key string, payload json.RawMessage, class Class) {
	ttl := c.ttlFor(class)

	c.mu.Lock()
	c.entries[key] = entry{
		payload:  payload,
		storedAt: c.now(),
		ttl:      ttl,
	}
	c.mu.Unlock()

	c.logger.Debug("cache put", "key", key, "class", class.String(), "ttl", ttl)
}

// Len returns the number of entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) ttlFor(class Class) time.Duration {
	switch class {
	case ClassHistorical:
		return c.ttls.Historical
	case ClassNews:
		return c.ttls.News
	default:
		return c.ttls.Live
	}
}
