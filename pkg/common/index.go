package common

import "github.com/tidwall/btree"

type indexItem struct {
	Path  string
	First int // position of the first entry with this path
	Count int
}

// PathIndex maps entry paths to their position in an Archive. The archive's
// entry slice remains the source of truth; rebuild the index after mutating it.
type PathIndex struct {
	tree *btree.BTreeG[*indexItem]
}

func NewPathIndex(archive *Archive) *PathIndex {
	compare := func(a, b *indexItem) bool {
		return a.Path < b.Path
	}

	idx := &PathIndex{tree: btree.NewBTreeG(compare)}
	for i, entry := range archive.Entries {
		if item, found := idx.tree.Get(&indexItem{Path: entry.Path}); found {
			item.Count++
			continue
		}
		idx.tree.Set(&indexItem{Path: entry.Path, First: i, Count: 1})
	}

	return idx
}

// Lookup returns the position of the first entry with the given path.
func (idx *PathIndex) Lookup(path string) (int, bool) {
	item, found := idx.tree.Get(&indexItem{Path: path})
	if !found {
		return -1, false
	}
	return item.First, true
}

func (idx *PathIndex) Len() int {
	return idx.tree.Len()
}

// Paths returns every distinct path in lexical order.
func (idx *PathIndex) Paths() []string {
	paths := make([]string, 0, idx.tree.Len())
	idx.tree.Scan(func(item *indexItem) bool {
		paths = append(paths, item.Path)
		return true
	})
	return paths
}

// Duplicates returns the paths that appear more than once, in lexical order.
func (idx *PathIndex) Duplicates() []string {
	var paths []string
	idx.tree.Scan(func(item *indexItem) bool {
		if item.Count > 1 {
			paths = append(paths, item.Path)
		}
		return true
	})
	return paths
}
