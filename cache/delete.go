package cache

// Invalidate drops any cached value for key in index. Writers call it
// after changing the value stored in the tree.
func (cache *Cache) Invalidate(index, key string) {
	if !cache.enabled() {
		return
	}
	cache.store.Del(cacheKey(index, key))
}
