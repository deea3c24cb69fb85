package cache

// Find returns the cached value for key in index.
func (cache *Cache) Find(index, key string) (string, bool) {
	if !cache.enabled() {
		return "", false
	}
	return cache.store.Get(cacheKey(index, key))
}
