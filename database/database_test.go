package database_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-faker/faker/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fileindex/btree"
	"fileindex/database"
	"fileindex/snapshot"
)

func testOptions() database.Options {
	return database.Options{Codec: snapshot.CodecZstd, CacheSize: 128}
}

func newTestDatabase(t *testing.T) (*database.Database, string) {
	t.Helper()
	dbID, err := database.NewDatabaseID()
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), dbID)
	db, err := database.NewDatabase(dbPath, dbID, testOptions())
	require.NoError(t, err)
	return db, dbPath
}

func TestNewDatabaseID(t *testing.T) {
	id, err := database.NewDatabaseID()
	require.NoError(t, err)
	assert.Regexp(t, `^db_[0-9a-f]{8}$`, id)
}

func TestCreateAndGetIndex(t *testing.T) {
	db, _ := newTestDatabase(t)
	defer db.Close()

	require.NoError(t, db.CreateIndex("photos", 3))
	require.NoError(t, db.CreateIndex("docs", 2))

	err := db.CreateIndex("photos", 3)
	assert.ErrorIs(t, err, database.ErrIndexExists)

	err = db.CreateIndex("", 3)
	assert.ErrorIs(t, err, database.ErrInvalidName)

	err = db.CreateIndex("bad", 1)
	assert.ErrorIs(t, err, btree.ErrInvalidDegree)

	assert.Equal(t, []string{"docs", "photos"}, db.ListIndexes())

	_, err = db.GetIndex("music")
	assert.ErrorIs(t, err, database.ErrIndexNotFound)

	ix, err := db.GetIndex("photos")
	require.NoError(t, err)
	assert.Equal(t, "photos", ix.Name())
	assert.Equal(t, 3, ix.Degree())
}

func TestIndexInsertFind(t *testing.T) {
	db, _ := newTestDatabase(t)
	defer db.Close()

	require.NoError(t, db.CreateIndex("files", 2))
	ix, err := db.GetIndex("files")
	require.NoError(t, err)

	assert.True(t, ix.Insert("a.txt", "/disk/1"))
	assert.True(t, ix.Insert("b.txt", "/disk/2"))

	val, found := ix.Find("a.txt")
	require.True(t, found)
	assert.Equal(t, "/disk/1", val)

	// A cached value must not survive an overwrite.
	assert.False(t, ix.Insert("a.txt", "/disk/9"))
	val, found = ix.Find("a.txt")
	require.True(t, found)
	assert.Equal(t, "/disk/9", val)

	err = ix.InsertUnique("b.txt", "/disk/3")
	assert.ErrorIs(t, err, btree.ErrDuplicateKey)
	val, _ = ix.Find("b.txt")
	assert.Equal(t, "/disk/2", val)

	_, found = ix.Find("z.txt")
	assert.False(t, found)

	assert.Equal(t, 2, ix.Len())
	require.NoError(t, ix.Validate())
}

func TestCommitAndReopen(t *testing.T) {
	db, dbPath := newTestDatabase(t)

	require.NoError(t, db.CreateIndex("files", 3))
	ix, err := db.GetIndex("files")
	require.NoError(t, err)

	for i := range 200 {
		ix.Insert(fmt.Sprintf("file%03d.txt", i), fmt.Sprintf("/vol/%d", i))
	}
	assert.True(t, ix.Dirty())

	snaps, err := db.Commit(context.Background(), "initial import")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "files", snaps[0].Index)
	assert.Equal(t, 200, snaps[0].Entries)
	assert.False(t, ix.Dirty())

	head, err := db.Head("files")
	require.NoError(t, err)
	assert.Equal(t, snaps[0].ID, head)

	// Nothing changed, so nothing is written.
	snaps, err = db.Commit(context.Background(), "noop")
	require.NoError(t, err)
	assert.Empty(t, snaps)

	require.NoError(t, db.Close())

	reopened, err := database.LoadDatabase(dbPath, testOptions())
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, db.ID(), reopened.ID())

	ix, err = reopened.GetIndex("files")
	require.NoError(t, err)
	assert.Equal(t, 200, ix.Len())
	assert.Equal(t, 3, ix.Degree())

	val, found := ix.Find("file123.txt")
	require.True(t, found)
	assert.Equal(t, "/vol/123", val)
	require.NoError(t, ix.Validate())
}

func TestCloseCommitsPendingChanges(t *testing.T) {
	db, dbPath := newTestDatabase(t)

	require.NoError(t, db.CreateIndex("files", 2))
	ix, err := db.GetIndex("files")
	require.NoError(t, err)
	ix.Insert("notes.md", "/home/notes.md")
	require.NoError(t, db.Close())

	reopened, err := database.NewDatabase(dbPath, "ignored", testOptions())
	require.NoError(t, err)
	defer reopened.Close()

	ix, err = reopened.GetIndex("files")
	require.NoError(t, err)
	val, found := ix.Find("notes.md")
	require.True(t, found)
	assert.Equal(t, "/home/notes.md", val)

	snaps, err := reopened.Snapshots("files")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "close", snaps[0].Message)
}

func TestRestore(t *testing.T) {
	db, _ := newTestDatabase(t)
	defer db.Close()

	require.NoError(t, db.CreateIndex("files", 2))
	ix, err := db.GetIndex("files")
	require.NoError(t, err)

	ix.Insert("a.txt", "/v1/a")
	ix.Insert("b.txt", "/v1/b")
	first, err := db.Commit(context.Background(), "v1")
	require.NoError(t, err)
	require.Len(t, first, 1)

	ix.Insert("a.txt", "/v2/a")
	ix.Insert("c.txt", "/v2/c")
	second, err := db.Commit(context.Background(), "v2")
	require.NoError(t, err)
	require.Len(t, second, 1)

	// Warm the cache with the v2 value.
	val, _ := ix.Find("a.txt")
	assert.Equal(t, "/v2/a", val)

	require.NoError(t, db.Restore("files", first[0].Digest.Encoded()[:10]))

	val, found := ix.Find("a.txt")
	require.True(t, found)
	assert.Equal(t, "/v1/a", val)
	_, found = ix.Find("c.txt")
	assert.False(t, found)
	assert.Equal(t, 2, ix.Len())
	assert.False(t, ix.Dirty())

	head, err := db.Head("files")
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, head)

	snaps, err := db.Snapshots("files")
	require.NoError(t, err)
	assert.Len(t, snaps, 2)

	err = db.Restore("files", "does-not-exist")
	assert.ErrorIs(t, err, snapshot.ErrNotFound)

	err = db.Restore("music", first[0].ID)
	assert.ErrorIs(t, err, database.ErrIndexNotFound)

	_, err = db.Snapshots("music")
	assert.ErrorIs(t, err, database.ErrIndexNotFound)
}

func TestConcurrentInserts(t *testing.T) {
	db, _ := newTestDatabase(t)
	defer db.Close()

	require.NoError(t, db.CreateIndex("files", 4))
	ix, err := db.GetIndex("files")
	require.NoError(t, err)

	const workers, perWorker = 8, 250
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				key := fmt.Sprintf("w%d/file%d", w, i)
				ix.Insert(key, key)
				if val, found := ix.Find(key); !found || val != key {
					t.Errorf("lookup of %q returned %q, %v", key, val, found)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, ix.Len())
	require.NoError(t, ix.Validate())
}

func TestCommitMultipleIndexes(t *testing.T) {
	db, _ := newTestDatabase(t)
	defer db.Close()

	names := []string{"audio", "docs", "photos"}
	for _, name := range names {
		require.NoError(t, db.CreateIndex(name, 3))
		ix, err := db.GetIndex(name)
		require.NoError(t, err)
		for range 50 {
			ix.Insert(faker.Username()+".dat", faker.URL())
		}
	}

	snaps, err := db.Commit(context.Background(), "bulk")
	require.NoError(t, err)
	require.Len(t, snaps, len(names))
	for i, name := range names {
		assert.Equal(t, name, snaps[i].Index)
	}

	all, err := db.Snapshots("")
	require.NoError(t, err)
	assert.Len(t, all, len(names))
}

func TestCommitCancelled(t *testing.T) {
	db, _ := newTestDatabase(t)
	defer db.Close()

	require.NoError(t, db.CreateIndex("files", 2))
	ix, err := db.GetIndex("files")
	require.NoError(t, err)
	ix.Insert("a.txt", "/a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = db.Commit(ctx, "cancelled")
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, ix.Dirty())
}

func TestListDatabases(t *testing.T) {
	root := t.TempDir()

	ids, err := database.ListDatabases(filepath.Join(root, "missing"))
	require.NoError(t, err)
	assert.Empty(t, ids)

	for _, id := range []string{"db_a", "db_b"} {
		db, err := database.NewDatabase(filepath.Join(root, id), id, testOptions())
		require.NoError(t, err)
		require.NoError(t, db.Close())
	}

	ids, err = database.ListDatabases(root)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"db_a", "db_b"}, ids)
}

// TestInsertFindTiming logs throughput for a moderately sized index.
func TestInsertFindTiming(t *testing.T) {
	db, _ := newTestDatabase(t)
	defer db.Close()

	require.NoError(t, db.CreateIndex("bench", 8))
	ix, err := db.GetIndex("bench")
	require.NoError(t, err)

	const count = 5000
	keys := make([]string, count)
	for i := range keys {
		keys[i] = fmt.Sprintf("key_%d", i)
	}

	start := time.Now()
	for _, k := range keys {
		ix.Insert(k, "loc_"+k)
	}
	insertTime := time.Since(start)

	start = time.Now()
	for _, k := range keys {
		val, found := ix.Find(k)
		require.True(t, found)
		require.Equal(t, "loc_"+k, val)
	}
	findTime := time.Since(start)

	t.Logf("Insert: %d ops in %v (%.2f ops/sec)", count, insertTime, float64(count)/insertTime.Seconds())
	t.Logf("Find: %d ops in %v (%.2f ops/sec)", count, findTime, float64(count)/findTime.Seconds())

	stats := ix.Stats()
	assert.Equal(t, count, stats.Entries)
	assert.GreaterOrEqual(t, stats.Height, 2)
}

func TestCheckpointSnapshotsEveryIndex(t *testing.T) {
	db, dbPath := newTestDatabase(t)

	require.NoError(t, db.CreateIndex("docs", 2))
	require.NoError(t, db.CreateIndex("photos", 2))
	ix, err := db.GetIndex("photos")
	require.NoError(t, err)
	ix.Insert("cat.jpg", "/mnt/cat.jpg")
	_, err = db.Commit(context.Background(), "photos")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// After a reopen nothing is loaded or dirty, yet both are captured.
	db, err = database.LoadDatabase(dbPath, testOptions())
	require.NoError(t, err)
	defer db.Close()

	snaps, err := db.Checkpoint(context.Background(), "release")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "docs", snaps[0].Index)
	assert.Equal(t, 0, snaps[0].Entries)
	assert.Equal(t, "photos", snaps[1].Index)
	assert.Equal(t, 1, snaps[1].Entries)
}

func TestGetMissingKey(t *testing.T) {
	db, _ := newTestDatabase(t)
	defer db.Close()

	require.NoError(t, db.CreateIndex("files", 2))
	ix, err := db.GetIndex("files")
	require.NoError(t, err)

	_, err = ix.Get("nope")
	assert.ErrorIs(t, err, database.ErrKeyNotFound)

	ix.Insert("yes", "/y")
	val, err := ix.Get("yes")
	require.NoError(t, err)
	assert.Equal(t, "/y", val)
}

func TestCacheMetrics(t *testing.T) {
	db, _ := newTestDatabase(t)
	defer db.Close()

	require.NoError(t, db.CreateIndex("files", 2))
	ix, err := db.GetIndex("files")
	require.NoError(t, err)
	ix.Insert("a", "/a")

	_, found := ix.Find("a")
	require.True(t, found)
	_, found = ix.Find("missing")
	require.False(t, found)

	m := db.CacheMetrics()
	assert.Equal(t, uint64(2), m.Misses)
}
