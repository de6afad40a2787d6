package places

import (
	"net/url"
	"slices"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/poiesic/placefinder/core"
)

const (
	// DefaultCacheTTL is how long a successful provider response is reused.
	DefaultCacheTTL = 5 * time.Minute

	defaultCacheEntries = 4096
)

// CacheEntry is one stored provider response.
type CacheEntry struct {
	Key        string
	Candidates []core.ExternalCandidate
	StoredAt   time.Time
}

// Cache is a TTL cache of provider responses shared by every search.
// Entries are keyed by a canonical form of (endpoint, params) and are valid
// while now - StoredAt < TTL. Safe for concurrent use.
type Cache struct {
	store *ristretto.Cache[uint64, *CacheEntry]
	ttl   time.Duration
	now   func() time.Time
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCache creates a cache holding up to maxEntries responses for ttl.
func NewCache(ttl time.Duration, maxEntries int64, opts ...CacheOption) (*Cache, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultCacheEntries
	}

	store, err := ristretto.NewCache(&ristretto.Config[uint64, *CacheEntry]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
		// Cost counts entries, not bytes.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}

	c := &Cache{store: store, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CacheKey builds the canonical key for a request. Parameters are sorted so
// logically identical requests share one entry.
func CacheKey(endpoint Endpoint, params url.Values) string {
	return string(endpoint) + "?" + params.Encode()
}

// Get returns a copy of the cached candidates for key if the entry is still valid.
func (c *Cache) Get(key string) ([]core.ExternalCandidate, bool) {
	entry, ok := c.store.Get(hashKey(key))
	if !ok || entry == nil || entry.Key != key {
		return nil, false
	}
	if c.now().Sub(entry.StoredAt) >= c.ttl {
		return nil, false
	}
	return slices.Clone(entry.Candidates), true
}

// Set stores candidates under key. The write is visible to Get on return.
func (c *Cache) Set(key string, candidates []core.ExternalCandidate) {
	entry := &CacheEntry{
		Key:        key,
		Candidates: slices.Clone(candidates),
		StoredAt:   c.now(),
	}
	// ristretto's own TTL only reclaims memory; validity is decided in Get.
	c.store.SetWithTTL(hashKey(key), entry, 1, c.ttl+time.Minute)
	c.store.Wait()
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.store.Clear()
}

// Close stops the cache's background goroutines.
func (c *Cache) Close() {
	c.store.Close()
}

func hashKey(key string) uint64 {
	return uint64(core.IDFromContent(key))
}
