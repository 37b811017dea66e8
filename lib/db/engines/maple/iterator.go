package maple

import (
	"bytes"

	"github.com/google/btree"
)

// iterator walks a private clone of the tree.
// Every move is a fresh O(log n) descent from the root, so no node pointers are kept.
type iterator struct {
	tree  *btree.BTreeG[entry]
	cur   entry
	valid bool
	err   error
}

func (it *iterator) SeekGE(key []byte) bool {
	if it.tree == nil {
		return false
	}
	it.valid = false
	it.tree.AscendGreaterOrEqual(entry{key: key}, func(e entry) bool {
		it.cur, it.valid = e, true
		return false
	})
	return it.valid
}

func (it *iterator) SeekLT(key []byte) bool {
	if it.tree == nil {
		return false
	}
	it.valid = false
	it.tree.DescendLessOrEqual(entry{key: key}, func(e entry) bool {
		if bytes.Equal(e.key, key) {
			return true
		}
		it.cur, it.valid = e, true
		return false
	})
	return it.valid
}

func (it *iterator) First() bool {
	if it.tree == nil {
		return false
	}
	it.cur, it.valid = it.tree.Min()
	return it.valid
}

func (it *iterator) Last() bool {
	if it.tree == nil {
		return false
	}
	it.cur, it.valid = it.tree.Max()
	return it.valid
}

func (it *iterator) Next() bool {
	if !it.valid {
		return false
	}
	pivot := it.cur.key
	it.valid = false
	it.tree.AscendGreaterOrEqual(entry{key: pivot}, func(e entry) bool {
		if bytes.Equal(e.key, pivot) {
			return true
		}
		it.cur, it.valid = e, true
		return false
	})
	return it.valid
}

func (it *iterator) Prev() bool {
	if !it.valid {
		return false
	}
	return it.SeekLT(it.cur.key)
}

func (it *iterator) Valid() bool {
	return it.valid
}

func (it *iterator) Key() []byte {
	if !it.valid {
		return nil
	}
	return it.cur.key
}

func (it *iterator) Value() []byte {
	if !it.valid {
		return nil
	}
	return it.cur.value
}

func (it *iterator) Error() error {
	return it.err
}

func (it *iterator) Close() error {
	it.tree = nil
	it.valid = false
	return nil
}
