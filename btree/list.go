package btree

// Stats summarises the shape of a tree.
type Stats struct {
	Degree  int `json:"degree"`
	Entries int `json:"entries"`
	Nodes   int `json:"nodes"`
	Leaves  int `json:"leaves"`
	Height  int `json:"height"`
}

// Walk calls fn for every entry in ascending key order until fn returns
// false.
func (bt *BTree) Walk(fn func(Entry) bool) {
	walkNode(bt.root, fn)
}

func walkNode(node *Node, fn func(Entry) bool) bool {
	for i, e := range node.Entries {
		if !node.IsLeaf && !walkNode(node.Children[i], fn) {
			return false
		}
		if !fn(e) {
			return false
		}
	}
	if !node.IsLeaf {
		return walkNode(node.Children[len(node.Entries)], fn)
	}
	return true
}

// Entries returns every entry in ascending key order.
func (bt *BTree) Entries() []Entry {
	entries := make([]Entry, 0, bt.size)
	bt.Walk(func(e Entry) bool {
		entries = append(entries, e)
		return true
	})
	return entries
}

// Height returns the number of levels; a tree with only a root leaf has
// height 1.
func (bt *BTree) Height() int {
	h := 1
	for n := bt.root; !n.IsLeaf; n = n.Children[0] {
		h++
	}
	return h
}

func (bt *BTree) Stats() Stats {
	s := Stats{
		Degree:  bt.degree,
		Entries: bt.size,
		Height:  bt.Height(),
	}

	var count func(*Node)
	count = func(n *Node) {
		s.Nodes++
		if n.IsLeaf {
			s.Leaves++
			return
		}
		for _, c := range n.Children {
			count(c)
		}
	}
	count(bt.root)

	return s
}
