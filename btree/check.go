package btree

import "fmt"

// Validate walks the whole tree and reports the first structural
// invariant it finds broken, wrapped in ErrCorrupt.
func (bt *BTree) Validate() error {
	v := validator{
		maxEntries: bt.maxEntries(),
		minEntries: bt.degree - 1,
		leafDepth:  -1,
	}
	if err := v.check(bt.root, "root", 0, nil, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if v.count != bt.size {
		return fmt.Errorf("%w: tree holds %d entries, size says %d", ErrCorrupt, v.count, bt.size)
	}
	return nil
}

type validator struct {
	maxEntries int
	minEntries int
	leafDepth  int
	count      int
}

// check verifies node and its subtree. lo and hi, when non-nil, are
// exclusive bounds every key in the subtree must fall between.
func (v *validator) check(node *Node, path string, depth int, lo, hi *string) error {
	n := len(node.Entries)
	if n > v.maxEntries {
		return fmt.Errorf("%s: %d entries exceeds maximum %d", path, n, v.maxEntries)
	}
	if depth > 0 && n < v.minEntries {
		return fmt.Errorf("%s: %d entries below minimum %d", path, n, v.minEntries)
	}

	for i, e := range node.Entries {
		if i > 0 && node.Entries[i-1].Key >= e.Key {
			return fmt.Errorf("%s: entries %d and %d out of order (%q, %q)", path, i-1, i, node.Entries[i-1].Key, e.Key)
		}
		if lo != nil && e.Key <= *lo {
			return fmt.Errorf("%s: key %q not above separator %q", path, e.Key, *lo)
		}
		if hi != nil && e.Key >= *hi {
			return fmt.Errorf("%s: key %q not below separator %q", path, e.Key, *hi)
		}
	}
	v.count += n

	if node.IsLeaf {
		if len(node.Children) != 0 {
			return fmt.Errorf("%s: leaf has %d children", path, len(node.Children))
		}
		if v.leafDepth == -1 {
			v.leafDepth = depth
		} else if v.leafDepth != depth {
			return fmt.Errorf("%s: leaf at depth %d, expected %d", path, depth, v.leafDepth)
		}
		return nil
	}

	if len(node.Children) != n+1 {
		return fmt.Errorf("%s: %d children for %d entries", path, len(node.Children), n)
	}
	for i, child := range node.Children {
		childLo, childHi := lo, hi
		if i > 0 {
			childLo = &node.Entries[i-1].Key
		}
		if i < n {
			childHi = &node.Entries[i].Key
		}
		if err := v.check(child, fmt.Sprintf("%s/%d", path, i), depth+1, childLo, childHi); err != nil {
			return err
		}
	}
	return nil
}
