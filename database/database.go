package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"fileindex/btree"
	"fileindex/cache"
	"fileindex/logging"
	"fileindex/snapshot"
)

const (
	manifestFile = "manifest.json"
	snapshotDir  = "snapshots"
)

var (
	ErrIndexNotFound = errors.New("index not found")
	ErrIndexExists   = errors.New("index already exists")
	ErrInvalidName   = errors.New("invalid index name")
	ErrKeyNotFound   = errors.New("key not found")
)

// IndexInfo is what the manifest records about one index.
type IndexInfo struct {
	Degree int    `json:"degree"`
	Head   string `json:"head,omitempty"`
}

// DBManifest tracks the DB ID plus every index and the snapshot it is
// restored from on load.
type DBManifest struct {
	DBID    string               `json:"db_id"`
	Indexes map[string]IndexInfo `json:"indexes"`
}

// Options configures how a database persists and caches its indexes.
type Options struct {
	Codec     snapshot.Codec
	CacheSize int64
	Logger    *slog.Logger
}

// Database wraps the manifest plus loaded index objects.
type Database struct {
	manifestPath string
	manifest     DBManifest
	indexes      map[string]*Index
	store        *snapshot.Store
	cache        *cache.Cache
	logger       *slog.Logger
	lock         sync.RWMutex
}

// NewDatabaseID returns a short random database ID such as db_1a2b3c4d.
func NewDatabaseID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate uuid: %w", err)
	}
	return "db_" + strings.Split(id.String(), "-")[0], nil
}

func open(dbPath string, manifest DBManifest, opts Options) (*Database, error) {
	store, err := snapshot.Open(filepath.Join(dbPath, snapshotDir), opts.Codec)
	if err != nil {
		return nil, err
	}
	c, err := cache.NewCache(opts.CacheSize)
	if err != nil {
		return nil, err
	}
	if manifest.Indexes == nil {
		manifest.Indexes = make(map[string]IndexInfo)
	}

	return &Database{
		manifestPath: filepath.Join(dbPath, manifestFile),
		manifest:     manifest,
		indexes:      make(map[string]*Index),
		store:        store,
		cache:        c,
		logger:       logging.OrDiscard(opts.Logger).With("db", manifest.DBID),
	}, nil
}

// NewDatabase creates the database directory and manifest. An existing
// manifest at dbPath is loaded instead of being overwritten.
func NewDatabase(dbPath string, dbID string, opts Options) (*Database, error) {
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	if _, err := os.Stat(filepath.Join(dbPath, manifestFile)); err == nil {
		return LoadDatabase(dbPath, opts)
	}

	db, err := open(dbPath, DBManifest{DBID: dbID}, opts)
	if err != nil {
		return nil, err
	}
	if err := db.saveManifest(); err != nil {
		return nil, fmt.Errorf("failed to create new manifest: %w", err)
	}

	db.logger.Info("database created", "path", dbPath)
	return db, nil
}

// LoadDatabase opens an existing database. Indexes are restored lazily
// on first use.
func LoadDatabase(dbPath string, opts Options) (*Database, error) {
	data, err := os.ReadFile(filepath.Join(dbPath, manifestFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	var m DBManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	return open(dbPath, m, opts)
}

func (db *Database) ID() string {
	return db.manifest.DBID
}

func validateName(name string) error {
	if name == "" || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// CreateIndex adds an empty index with the given minimum degree.
func (db *Database) CreateIndex(name string, degree int) error {
	if err := validateName(name); err != nil {
		return err
	}

	db.lock.Lock()
	defer db.lock.Unlock()

	if _, exists := db.manifest.Indexes[name]; exists {
		return fmt.Errorf("%w: %q", ErrIndexExists, name)
	}

	tree, err := btree.NewBTree(degree)
	if err != nil {
		return fmt.Errorf("failed to create btree for index %q: %w", name, err)
	}
	db.indexes[name] = newIndex(name, tree, db.cache, db.logger)

	db.manifest.Indexes[name] = IndexInfo{Degree: degree}
	if err := db.saveManifest(); err != nil {
		return fmt.Errorf("failed to save manifest after creating index: %w", err)
	}

	db.logger.Info("index created", "index", name, "degree", degree)
	return nil
}

// GetIndex returns the named index, restoring it from its head snapshot
// if it is not loaded yet.
func (db *Database) GetIndex(name string) (*Index, error) {
	db.lock.Lock()
	defer db.lock.Unlock()
	return db.getIndexLocked(name)
}

func (db *Database) getIndexLocked(name string) (*Index, error) {
	if ix, ok := db.indexes[name]; ok {
		return ix, nil
	}

	info, exists := db.manifest.Indexes[name]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrIndexNotFound, name)
	}

	var entries []btree.Entry
	if info.Head != "" {
		snap, err := db.store.Find(name, info.Head)
		if err != nil {
			return nil, fmt.Errorf("failed to find head snapshot of index %q: %w", name, err)
		}
		if entries, err = db.store.Read(snap); err != nil {
			return nil, fmt.Errorf("failed to read head snapshot of index %q: %w", name, err)
		}
	}

	tree, err := btree.Load(info.Degree, entries)
	if err != nil {
		return nil, fmt.Errorf("failed to load btree for index %q: %w", name, err)
	}

	ix := newIndex(name, tree, db.cache, db.logger)
	db.indexes[name] = ix

	db.logger.Debug("index loaded", "index", name, "entries", tree.Len(), "head", info.Head)
	return ix, nil
}

// ListIndexes returns the names of all indexes in sorted order.
func (db *Database) ListIndexes() []string {
	db.lock.RLock()
	defer db.lock.RUnlock()

	names := make([]string, 0, len(db.manifest.Indexes))
	for name := range db.manifest.Indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Commit snapshots every loaded index that changed since its last
// commit and makes the new snapshots the heads. Indexes are written in
// parallel.
func (db *Database) Commit(ctx context.Context, message string) ([]snapshot.Snapshot, error) {
	db.lock.Lock()
	defer db.lock.Unlock()
	return db.commitLocked(ctx, message, false)
}

// Checkpoint snapshots every index in the database, changed or not.
func (db *Database) Checkpoint(ctx context.Context, message string) ([]snapshot.Snapshot, error) {
	db.lock.Lock()
	defer db.lock.Unlock()

	for name := range db.manifest.Indexes {
		if _, err := db.getIndexLocked(name); err != nil {
			return nil, err
		}
	}
	return db.commitLocked(ctx, message, true)
}

func (db *Database) commitLocked(ctx context.Context, message string, force bool) ([]snapshot.Snapshot, error) {
	loaded := make([]*Index, 0, len(db.indexes))
	for _, ix := range db.indexes {
		loaded = append(loaded, ix)
	}
	sort.Slice(loaded, func(i, j int) bool { return loaded[i].name < loaded[j].name })

	results := make([]*snapshot.Snapshot, len(loaded))
	g, ctx := errgroup.WithContext(ctx)
	for i, ix := range loaded {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entries, version, ok := ix.capture(force)
			if !ok {
				return nil
			}
			snap, err := db.store.Write(ix.name, message, entries)
			if err != nil {
				return fmt.Errorf("failed to snapshot index %q: %w", ix.name, err)
			}
			ix.markCommitted(version)
			results[i] = &snap
			return nil
		})
	}
	err := g.Wait()

	// Heads advance for every snapshot that was written, even if a
	// sibling failed.
	var snaps []snapshot.Snapshot
	for _, snap := range results {
		if snap == nil {
			continue
		}
		info := db.manifest.Indexes[snap.Index]
		info.Head = snap.ID
		db.manifest.Indexes[snap.Index] = info
		snaps = append(snaps, *snap)
	}
	if len(snaps) > 0 {
		if serr := db.saveManifest(); serr != nil {
			return snaps, errors.Join(err, fmt.Errorf("failed to save manifest: %w", serr))
		}
	}
	if err != nil {
		return snaps, err
	}

	db.logger.Info("commit", "message", message, "snapshots", len(snaps))
	return snaps, nil
}

// Snapshots lists the snapshots of the named index, oldest first.
func (db *Database) Snapshots(name string) ([]snapshot.Snapshot, error) {
	if name != "" {
		db.lock.RLock()
		_, exists := db.manifest.Indexes[name]
		db.lock.RUnlock()
		if !exists {
			return nil, fmt.Errorf("%w: %q", ErrIndexNotFound, name)
		}
	}
	return db.store.List(name)
}

// Head returns the snapshot ID the named index is restored from.
func (db *Database) Head(name string) (string, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	info, exists := db.manifest.Indexes[name]
	if !exists {
		return "", fmt.Errorf("%w: %q", ErrIndexNotFound, name)
	}
	return info.Head, nil
}

// Restore replaces the contents of the named index with a snapshot and
// makes that snapshot its head. Uncommitted changes are discarded.
func (db *Database) Restore(name, ref string) error {
	db.lock.Lock()
	defer db.lock.Unlock()

	ix, err := db.getIndexLocked(name)
	if err != nil {
		return err
	}

	snap, err := db.store.Find(name, ref)
	if err != nil {
		return err
	}
	entries, err := db.store.Read(snap)
	if err != nil {
		return err
	}

	info := db.manifest.Indexes[name]
	tree, err := btree.Load(info.Degree, entries)
	if err != nil {
		return fmt.Errorf("failed to rebuild index %q: %w", name, err)
	}
	ix.replace(tree)

	info.Head = snap.ID
	db.manifest.Indexes[name] = info
	if err := db.saveManifest(); err != nil {
		return fmt.Errorf("failed to save manifest: %w", err)
	}

	db.logger.Info("restore", "index", name, "snapshot", snap.ID, "entries", len(entries))
	return nil
}

// CacheMetrics reports hit and miss counts of the lookup cache shared by
// the database's indexes.
func (db *Database) CacheMetrics() cache.Metrics {
	return db.cache.Metrics()
}

func (db *Database) saveManifest() error {
	data, err := json.MarshalIndent(db.manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return os.WriteFile(db.manifestPath, data, 0644)
}

// Close commits pending changes and releases the lookup cache.
func (db *Database) Close() error {
	_, err := db.Commit(context.Background(), "close")
	db.cache.Close()
	if err != nil {
		return fmt.Errorf("failed to commit on close: %w", err)
	}
	return nil
}

// ListDatabases returns the IDs of databases under root.
func ListDatabases(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	dbIDs := []string{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}

		manifest := filepath.Join(root, e.Name(), manifestFile)
		if _, err := os.Stat(manifest); err == nil {
			dbIDs = append(dbIDs, e.Name())
		}
	}
	return dbIDs, nil
}
