package snapshot

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fileindex/btree"
)

func sampleEntries(n int) []btree.Entry {
	entries := make([]btree.Entry, n)
	for i := range entries {
		entries[i] = btree.Entry{
			Key:   fmt.Sprintf("file%04d.txt", i),
			Value: fmt.Sprintf("/data/%d", i),
		}
	}
	return entries
}

func TestWriteRead(t *testing.T) {
	for _, codec := range []Codec{CodecNone, CodecZstd, CodecSnappy} {
		t.Run(codec.String(), func(t *testing.T) {
			store, err := Open(t.TempDir(), codec)
			require.NoError(t, err)

			entries := sampleEntries(250)
			snap, err := store.Write("photos", "first", entries)
			require.NoError(t, err)
			assert.Equal(t, "photos", snap.Index)
			assert.Equal(t, codec, snap.Codec)
			assert.Equal(t, 250, snap.Entries)
			assert.Equal(t, uint64(1), snap.Seq)
			require.NoError(t, snap.Digest.Validate())

			got, err := store.Read(snap)
			require.NoError(t, err)
			assert.Equal(t, entries, got)
		})
	}
}

func TestWriteEmpty(t *testing.T) {
	store, err := Open(t.TempDir(), CodecZstd)
	require.NoError(t, err)

	snap, err := store.Write("empty", "", nil)
	require.NoError(t, err)

	got, err := store.Read(snap)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadDetectsTampering(t *testing.T) {
	store, err := Open(t.TempDir(), CodecNone)
	require.NoError(t, err)

	snap, err := store.Write("photos", "", sampleEntries(3))
	require.NoError(t, err)

	path := store.objectPath(snap.Digest, snap.Codec)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-3] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err = store.Read(snap)
	assert.ErrorIs(t, err, ErrDigestMismatch)
}

func TestListAndFind(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir, CodecSnappy)
	require.NoError(t, err)

	first, err := store.Write("photos", "one", sampleEntries(1))
	require.NoError(t, err)
	second, err := store.Write("photos", "two", sampleEntries(2))
	require.NoError(t, err)
	other, err := store.Write("docs", "three", sampleEntries(3))
	require.NoError(t, err)

	// Records survive reopening the store.
	store, err = Open(dir, CodecZstd)
	require.NoError(t, err)

	photos, err := store.List("photos")
	require.NoError(t, err)
	require.Len(t, photos, 2)
	assert.Equal(t, first.ID, photos[0].ID)
	assert.Equal(t, second.ID, photos[1].ID)

	all, err := store.List("")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	found, err := store.Find("photos", second.ID)
	require.NoError(t, err)
	assert.Equal(t, second, found)

	found, err = store.Find("photos", string(first.Digest))
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	found, err = store.Find("docs", other.Digest.Encoded()[:12])
	require.NoError(t, err)
	assert.Equal(t, other.ID, found.ID)

	_, err = store.Find("docs", first.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Find("photos", "")
	assert.ErrorIs(t, err, ErrNotFound)

	// Snapshots written before the reopen are still readable under their
	// original codec.
	got, err := store.Read(second)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestIdenticalPayloadsShareObject(t *testing.T) {
	store, err := Open(t.TempDir(), CodecZstd)
	require.NoError(t, err)

	a, err := store.Write("photos", "a", sampleEntries(5))
	require.NoError(t, err)
	b, err := store.Write("photos", "b", sampleEntries(5))
	require.NoError(t, err)

	assert.Equal(t, a.Digest, b.Digest)
	assert.NotEqual(t, a.ID, b.ID)

	found, err := store.Find("photos", a.Digest.Encoded()[:8])
	require.NoError(t, err)
	assert.Equal(t, b.ID, found.ID, "newest snapshot wins for a shared digest")
}

func TestParseCodec(t *testing.T) {
	for _, name := range []string{"none", "zstd", "snappy"} {
		c, err := ParseCodec(name)
		require.NoError(t, err)
		assert.Equal(t, name, c.String())
	}

	_, err := ParseCodec("lz4")
	assert.Error(t, err)

	var c Codec
	require.NoError(t, c.UnmarshalText([]byte("snappy")))
	assert.Equal(t, CodecSnappy, c)
}
