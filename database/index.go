package database

import (
	"fmt"
	"log/slog"
	"sync"

	"fileindex/btree"
	"fileindex/cache"
)

// Index is a named B-tree of file locations. It serialises writers and
// lets readers share the tree, and keeps a lookup cache coherent with it.
type Index struct {
	name   string
	mu     sync.RWMutex
	tree   *btree.BTree
	cache  *cache.Cache
	logger *slog.Logger

	// version counts mutations; committed is the version last snapshotted.
	version   uint64
	committed uint64
}

func newIndex(name string, tree *btree.BTree, c *cache.Cache, logger *slog.Logger) *Index {
	return &Index{
		name:   name,
		tree:   tree,
		cache:  c,
		logger: logger.With("index", name),
	}
}

func (ix *Index) Name() string {
	return ix.name
}

func (ix *Index) Degree() int {
	return ix.tree.Degree()
}

// Insert stores value under key, replacing any previous value. It
// reports whether the key was new.
func (ix *Index) Insert(key, value string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	inserted := ix.tree.Insert(key, value)
	ix.cache.Invalidate(ix.name, key)
	ix.version++

	ix.logger.Debug("insert", "key", key, "new", inserted)
	return inserted
}

// InsertUnique stores value under key unless the key already exists, in
// which case it returns btree.ErrDuplicateKey.
func (ix *Index) InsertUnique(key, value string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.tree.InsertUnique(key, value); err != nil {
		return err
	}
	ix.cache.Invalidate(ix.name, key)
	ix.version++
	return nil
}

// Find returns the value stored under key.
func (ix *Index) Find(key string) (string, bool) {
	if val, ok := ix.cache.Find(ix.name, key); ok {
		return val, true
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	val, found := ix.tree.Search(key)
	if found {
		// Populated under the read lock so a concurrent Insert cannot
		// invalidate before this stale value lands.
		ix.cache.Insert(ix.name, key, val)
	}
	return val, found
}

// Get is Find with ErrKeyNotFound for a missing key.
func (ix *Index) Get(key string) (string, error) {
	if val, found := ix.Find(key); found {
		return val, nil
	}
	return "", fmt.Errorf("%w: %q", ErrKeyNotFound, key)
}

// Entries returns every entry in key order.
func (ix *Index) Entries() []btree.Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.tree.Entries()
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.tree.Len()
}

func (ix *Index) Stats() btree.Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.tree.Stats()
}

func (ix *Index) Validate() error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.tree.Validate()
}

// View runs fn with shared access to the underlying tree. fn must not
// modify it.
func (ix *Index) View(fn func(*btree.BTree)) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	fn(ix.tree)
}

// Dirty reports whether the index changed since it was last committed.
func (ix *Index) Dirty() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.version != ix.committed
}

// capture returns the entries to snapshot along with the version they
// reflect. ok is false if nothing changed since the last commit.
func (ix *Index) capture(force bool) (entries []btree.Entry, version uint64, ok bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.version == ix.committed && !force {
		return nil, ix.version, false
	}
	return ix.tree.Entries(), ix.version, true
}

func (ix *Index) markCommitted(version uint64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if version > ix.committed {
		ix.committed = version
	}
}

// replace swaps in a freshly restored tree.
func (ix *Index) replace(tree *btree.BTree) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.tree = tree
	ix.version++
	ix.committed = ix.version
	ix.cache.Clear()
}
