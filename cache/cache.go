package cache

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache is a bounded lookup cache that sits in front of index searches.
// Entries are scoped by index name so one Cache can serve a whole
// database. A nil *Cache, or one built with maxEntries 0, never hits.
type Cache struct {
	store      *ristretto.Cache[string, string]
	maxEntries int64
}

// Metrics reports cache effectiveness.
type Metrics struct {
	Hits   uint64  `json:"hits"`
	Misses uint64  `json:"misses"`
	Ratio  float64 `json:"ratio"`
}

// NewCache creates a cache holding at most maxEntries lookups.
func NewCache(maxEntries int64) (*Cache, error) {
	if maxEntries < 0 {
		return nil, fmt.Errorf("cache size must not be negative, got %d", maxEntries)
	}
	if maxEntries == 0 {
		return &Cache{}, nil
	}

	store, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		Metrics:            true,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	return &Cache{store: store, maxEntries: maxEntries}, nil
}

func (cache *Cache) enabled() bool {
	return cache != nil && cache.store != nil
}

func cacheKey(index, key string) string {
	return index + "\x00" + key
}
