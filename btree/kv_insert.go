package btree

// Insert stores value under key. If the key is already present its value
// is replaced and Insert reports false; otherwise a new entry is added
// and Insert reports true.
func (bt *BTree) Insert(key, value string) bool {
	root := bt.root

	if len(root.Entries) == bt.maxEntries() {
		newRoot := newNode(false)
		newRoot.Children = []*Node{root}
		bt.root = newRoot

		bt.splitChild(newRoot, 0)
	}

	inserted := bt.insertNonFull(bt.root, Entry{Key: key, Value: value})
	if inserted {
		bt.size++
	}
	return inserted
}

// InsertUnique stores value under key only if the key is absent.
func (bt *BTree) InsertUnique(key, value string) error {
	if _, found := bt.Search(key); found {
		return ErrDuplicateKey
	}
	bt.Insert(key, value)
	return nil
}

// splitChild splits the full child at parent.Children[index]. The median
// entry moves up into parent and the upper half moves into a new sibling
// placed right after the child.
func (bt *BTree) splitChild(parent *Node, index int) {
	t := bt.degree
	child := parent.Children[index]

	sibling := newNode(child.IsLeaf)
	sibling.Entries = make([]Entry, t-1)
	copy(sibling.Entries, child.Entries[t:])

	if !child.IsLeaf {
		sibling.Children = make([]*Node, t)
		copy(sibling.Children, child.Children[t:])
		clear(child.Children[t:])
		child.Children = child.Children[:t]
	}

	middle := child.Entries[t-1]
	clear(child.Entries[t-1:])
	child.Entries = child.Entries[:t-1]

	parent.insertEntryAt(index, middle)
	parent.insertChildAt(index+1, sibling)
}

// insertNonFull places e in the subtree rooted at node, which must have
// room for one more entry.
func (bt *BTree) insertNonFull(node *Node, e Entry) bool {
	i, found := node.search(e.Key)
	if found {
		node.Entries[i].Value = e.Value
		return false
	}

	if node.IsLeaf {
		node.insertEntryAt(i, e)
		return true
	}

	if len(node.Children[i].Entries) == bt.maxEntries() {
		bt.splitChild(node, i)

		// The promoted median may be the key itself, or may send us right.
		switch promoted := node.Entries[i].Key; {
		case e.Key == promoted:
			node.Entries[i].Value = e.Value
			return false
		case e.Key > promoted:
			i++
		}
	}

	return bt.insertNonFull(node.Children[i], e)
}
