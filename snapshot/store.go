// Package snapshot persists whole-index dumps as compressed,
// content-addressed objects plus a log of snapshot records.
//
// Layout under the store directory:
//
//	objects/sha256/ab/cdef...<codec>   compressed newline-delimited JSON entries
//	snapshots.json                     records keyed by snapshot ID
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opencontainers/go-digest"

	"fileindex/btree"
)

const (
	objectsDir = "objects"
	logFile    = "snapshots.json"
)

var (
	ErrNotFound       = errors.New("snapshot not found")
	ErrAmbiguous      = errors.New("snapshot reference is ambiguous")
	ErrDigestMismatch = errors.New("snapshot digest mismatch")
)

// Snapshot is a single record in the snapshot log.
type Snapshot struct {
	ID        string        `json:"id"`
	Seq       uint64        `json:"seq"`
	Index     string        `json:"index"`
	Digest    digest.Digest `json:"digest"`
	Codec     Codec         `json:"codec"`
	Message   string        `json:"message"`
	Timestamp string        `json:"timestamp"`
	Entries   int           `json:"entries"`
}

// Store writes and reads snapshots under one directory. It is safe for
// concurrent use.
type Store struct {
	dir   string
	codec Codec
	mu    sync.Mutex
}

// Open prepares dir for use as a snapshot store. New objects are written
// with codec; existing objects are read with the codec they were written
// with.
func Open(dir string, codec Codec) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, objectsDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &Store{dir: dir, codec: codec}, nil
}

func (s *Store) Codec() Codec {
	return s.codec
}

func (s *Store) objectPath(dgst digest.Digest, codec Codec) string {
	hex := dgst.Encoded()
	return filepath.Join(s.dir, objectsDir, dgst.Algorithm().String(), hex[:2], hex[2:]+"."+codec.String())
}

// Write stores entries as a new snapshot of index and records it in the
// log. Entries are expected in key order, as btree.Entries returns them.
func (s *Store) Write(index, message string, entries []btree.Entry) (Snapshot, error) {
	var payload bytes.Buffer
	enc := json.NewEncoder(&payload)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return Snapshot{}, fmt.Errorf("failed to encode entry %q: %w", e.Key, err)
		}
	}

	dgst := digest.FromBytes(payload.Bytes())
	objPath := s.objectPath(dgst, s.codec)

	if _, err := os.Stat(objPath); errors.Is(err, os.ErrNotExist) {
		data, err := s.codec.compress(payload.Bytes())
		if err != nil {
			return Snapshot{}, err
		}
		if err := writeFileAtomic(objPath, data); err != nil {
			return Snapshot{}, fmt.Errorf("failed to write snapshot object: %w", err)
		}
	} else if err != nil {
		return Snapshot{}, fmt.Errorf("failed to stat snapshot object: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return Snapshot{}, err
	}

	var seq uint64
	for _, r := range records {
		seq = max(seq, r.Seq)
	}

	snap := Snapshot{
		ID:        uuid.New().String(),
		Seq:       seq + 1,
		Index:     index,
		Digest:    dgst,
		Codec:     s.codec,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Entries:   len(entries),
	}
	records[snap.ID] = snap

	if err := s.save(records); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Read loads the entries captured by snap and verifies them against its
// digest.
func (s *Store) Read(snap Snapshot) ([]btree.Entry, error) {
	if err := snap.Digest.Validate(); err != nil {
		return nil, fmt.Errorf("invalid snapshot digest %q: %w", snap.Digest, err)
	}

	data, err := os.ReadFile(s.objectPath(snap.Digest, snap.Codec))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot object: %w", err)
	}

	payload, err := snap.Codec.decompress(data)
	if err != nil {
		return nil, err
	}
	if got := digest.FromBytes(payload); got != snap.Digest {
		return nil, fmt.Errorf("%w: object %s hashes to %s", ErrDigestMismatch, snap.Digest, got)
	}

	entries := make([]btree.Entry, 0, snap.Entries)
	dec := json.NewDecoder(bytes.NewReader(payload))
	for dec.More() {
		var e btree.Entry
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// List returns the snapshots of index, oldest first. An empty index
// lists every snapshot in the store.
func (s *Store) List(index string) ([]Snapshot, error) {
	s.mu.Lock()
	records, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	list := make([]Snapshot, 0, len(records))
	for _, r := range records {
		if index == "" || r.Index == index {
			list = append(list, r)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Seq < list[j].Seq
	})
	return list, nil
}

// Find resolves ref to a snapshot of index. ref may be a snapshot ID, a
// full digest, or an unambiguous prefix of the digest's hex encoding.
// When several snapshots share a digest the newest wins.
func (s *Store) Find(index, ref string) (Snapshot, error) {
	list, err := s.List(index)
	if err != nil {
		return Snapshot{}, err
	}

	var match *Snapshot
	for i := len(list) - 1; i >= 0; i-- {
		snap := &list[i]
		switch {
		case snap.ID == ref, string(snap.Digest) == ref:
			return *snap, nil
		case ref != "" && strings.HasPrefix(snap.Digest.Encoded(), ref):
			if match != nil && match.Digest != snap.Digest {
				return Snapshot{}, fmt.Errorf("%w: %q", ErrAmbiguous, ref)
			}
			if match == nil {
				match = snap
			}
		}
	}
	if match == nil {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrNotFound, ref)
	}
	return *match, nil
}

func (s *Store) load() (map[string]Snapshot, error) {
	records := make(map[string]Snapshot)

	data, err := os.ReadFile(filepath.Join(s.dir, logFile))
	if errors.Is(err, os.ErrNotExist) {
		return records, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshots file: %w", err)
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse snapshots file: %w", err)
	}
	return records, nil
}

func (s *Store) save(records map[string]Snapshot) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshots: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.dir, logFile), data); err != nil {
		return fmt.Errorf("failed to write snapshots file: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
