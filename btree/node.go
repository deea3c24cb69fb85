package btree

// Entry is a key/value pair stored in the B-tree. Keys are file names,
// values are their locations.
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Node is a single B-tree node. Entries are kept sorted by key; an
// internal node always has one more child than it has entries.
type Node struct {
	IsLeaf   bool    `json:"is_leaf"`
	Entries  []Entry `json:"entries"`
	Children []*Node `json:"children,omitempty"`
}

func newNode(isLeaf bool) *Node {
	return &Node{
		IsLeaf:  isLeaf,
		Entries: []Entry{},
	}
}

// search returns the index of key in the node if present. Otherwise it
// returns the position the key would occupy, which is also the index of
// the child to descend into.
func (n *Node) search(key string) (int, bool) {
	low, high := 0, len(n.Entries)
	for low < high {
		mid := (low + high) / 2
		switch k := n.Entries[mid].Key; {
		case key > k:
			low = mid + 1
		case key < k:
			high = mid
		default:
			return mid, true
		}
	}
	return low, false
}

func (n *Node) insertEntryAt(pos int, e Entry) {
	n.Entries = append(n.Entries, Entry{})
	copy(n.Entries[pos+1:], n.Entries[pos:])
	n.Entries[pos] = e
}

func (n *Node) insertChildAt(pos int, child *Node) {
	n.Children = append(n.Children, nil)
	copy(n.Children[pos+1:], n.Children[pos:])
	n.Children[pos] = child
}
