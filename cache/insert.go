package cache

// Insert records value for key in index. Admission is best effort: the
// cache may drop the item, and it becomes visible to Find only once the
// write buffers drain (see Wait).
func (cache *Cache) Insert(index, key, value string) {
	if !cache.enabled() {
		return
	}
	cache.store.Set(cacheKey(index, key), value, 1)
}
