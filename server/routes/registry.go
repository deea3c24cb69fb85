package routes

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"

	"fileindex/database"
)

var (
	ErrDatabaseNotFound = errors.New("database not found")
	ErrBadDatabaseID    = errors.New("invalid database id")
)

// Registry keeps the databases opened by the server so each one is loaded
// once and shared across requests.
type Registry struct {
	root   string
	degree int
	opts   database.Options

	mu     sync.Mutex
	openDB map[string]*database.Database
}

// NewRegistry serves databases stored under root. degree is used for
// indexes created without an explicit one.
func NewRegistry(root string, degree int, opts database.Options) *Registry {
	return &Registry{
		root:   root,
		degree: degree,
		opts:   opts,
		openDB: make(map[string]*database.Database),
	}
}

func (r *Registry) basePath(dbID string) (string, error) {
	if dbID == "" || dbID == "." || dbID == ".." || filepath.Base(dbID) != dbID {
		return "", fmt.Errorf("%w: %q", ErrBadDatabaseID, dbID)
	}
	return filepath.Join(r.root, dbID), nil
}

// Get returns the open database with the given ID, loading it from disk
// on first use.
func (r *Registry) Get(dbID string) (*database.Database, error) {
	path, err := r.basePath(dbID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if db, ok := r.openDB[dbID]; ok {
		return db, nil
	}

	db, err := database.LoadDatabase(path, r.opts)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", ErrDatabaseNotFound, dbID)
	}
	if err != nil {
		return nil, err
	}
	r.openDB[dbID] = db
	return db, nil
}

// Create makes a new database with a fresh ID.
func (r *Registry) Create() (string, error) {
	dbID, err := database.NewDatabaseID()
	if err != nil {
		return "", err
	}
	path, err := r.basePath(dbID)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	db, err := database.NewDatabase(path, dbID, r.opts)
	if err != nil {
		return "", err
	}
	r.openDB[dbID] = db
	return dbID, nil
}

// List returns the IDs of every database under the registry root.
func (r *Registry) List() ([]string, error) {
	ids, err := database.ListDatabases(r.root)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// Close commits and closes every open database.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for id, db := range r.openDB {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
		delete(r.openDB, id)
	}
	return errors.Join(errs...)
}
