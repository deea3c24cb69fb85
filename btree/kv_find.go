package btree

// Search returns the value stored under key. The boolean is false when
// the key is absent.
func (bt *BTree) Search(key string) (string, bool) {
	return bt.findInNode(bt.root, key)
}

func (bt *BTree) findInNode(node *Node, key string) (string, bool) {
	i, found := node.search(key)
	if found {
		return node.Entries[i].Value, true
	}

	if node.IsLeaf {
		return "", false
	}

	return bt.findInNode(node.Children[i], key)
}
