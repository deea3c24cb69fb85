package btree

import (
	"errors"
	"fmt"
)

const (
	// MinDegree is the smallest minimum degree a tree accepts.
	MinDegree = 2
	// DefaultDegree is used by callers that do not pick one.
	DefaultDegree = 3
)

var (
	ErrInvalidDegree = errors.New("btree: minimum degree must be at least 2")
	ErrDuplicateKey  = errors.New("btree: duplicate key")
	ErrCorrupt       = errors.New("btree: invariant violated")
)

// BTree is an in-memory B-tree of minimum degree t. Every node holds at
// most 2t-1 entries and every non-root node at least t-1.
//
// A BTree is not safe for concurrent use; wrap it (see database.Index).
type BTree struct {
	root   *Node
	degree int
	size   int
}

func NewBTree(degree int) (*BTree, error) {
	if degree < MinDegree {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidDegree, degree)
	}

	return &BTree{
		root:   newNode(true),
		degree: degree,
	}, nil
}

// Load builds a tree of the given degree holding entries. Later entries
// overwrite earlier ones with the same key.
func Load(degree int, entries []Entry) (*BTree, error) {
	bt, err := NewBTree(degree)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		bt.Insert(e.Key, e.Value)
	}
	return bt, nil
}

func (bt *BTree) maxEntries() int {
	return 2*bt.degree - 1
}

// Degree returns the minimum degree t.
func (bt *BTree) Degree() int {
	return bt.degree
}

// Len returns the number of distinct keys.
func (bt *BTree) Len() int {
	return bt.size
}

// Root exposes the root node for read-only inspection. Callers must not
// mutate the returned structure.
func (bt *BTree) Root() *Node {
	return bt.root
}
