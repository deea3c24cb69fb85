package cache

// Wait blocks until buffered writes have been applied.
func (cache *Cache) Wait() {
	if !cache.enabled() {
		return
	}
	cache.store.Wait()
}

func (cache *Cache) GetMaxSize() int64 {
	if cache == nil {
		return 0
	}
	return cache.maxEntries
}

func (cache *Cache) Metrics() Metrics {
	if !cache.enabled() || cache.store.Metrics == nil {
		return Metrics{}
	}
	m := cache.store.Metrics
	return Metrics{
		Hits:   m.Hits(),
		Misses: m.Misses(),
		Ratio:  m.Ratio(),
	}
}

// Clear empties the cache.
func (cache *Cache) Clear() {
	if !cache.enabled() {
		return
	}
	cache.store.Clear()
}

// Close stops the cache's background goroutines. The cache must not be
// used afterwards.
func (cache *Cache) Close() {
	if !cache.enabled() {
		return
	}
	cache.store.Close()
}
