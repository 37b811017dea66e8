package iterator

import (
	"bytes"

	"github.com/DazeHolic/lvdb/lib/db"
)

// Direction of a range scan
type Direction int

const (
	Forward Direction = iota
	Backward
)

// Iterator is a bounded, limited, directional cursor over a db.KVDB.
//
// A forward iterator covers (start, end]: it resumes strictly after start and
// includes end. A backward iterator walks from start (inclusive) down to end
// (exclusive), so the keys of New(a, b) are exactly the keys of NewReverse(b, a)
// in reverse order. An empty end means unbounded.
//
// The Iterator owns its engine cursor; Close releases it.
type Iterator struct {
	it        db.Iterator
	direction Direction
	end       []byte
	limit     int
	started   bool
	done      bool
}

// New creates a forward iterator over (start, end] returning at most limit entries
func New(kvdb db.KVDB, start, end []byte, limit int) *Iterator {
	it := kvdb.NewIterator()
	if it.SeekGE(start) && bytes.Equal(it.Key(), start) {
		it.Next()
	}
	return &Iterator{
		it:        it,
		direction: Forward,
		end:       append([]byte(nil), end...),
		limit:     limit,
	}
}

// NewReverse creates a backward iterator from start (inclusive) down to end (exclusive)
// returning at most limit entries
func NewReverse(kvdb db.KVDB, start, end []byte, limit int) *Iterator {
	it := kvdb.NewIterator()

	// position on the first key greater than start, then step back
	successor := append(append([]byte(nil), start...), 0x00)
	if it.SeekGE(successor) {
		it.Prev()
	} else {
		it.Last()
	}
	return &Iterator{
		it:        it,
		direction: Backward,
		end:       append([]byte(nil), end...),
		limit:     limit,
	}
}

// Next advances to the next entry. It returns false once the bound, the limit
// or the end of the store is reached.
func (i *Iterator) Next() bool {
	if i.done {
		return false
	}
	if i.limit <= 0 {
		i.done = true
		return false
	}

	if i.started {
		if i.direction == Forward {
			i.it.Next()
		} else {
			i.it.Prev()
		}
	}
	i.started = true

	if !i.it.Valid() {
		i.done = true
		return false
	}

	if len(i.end) > 0 {
		cmp := bytes.Compare(i.it.Key(), i.end)
		if (i.direction == Forward && cmp > 0) || (i.direction == Backward && cmp <= 0) {
			i.done = true
			return false
		}
	}

	i.limit--
	return true
}

// Skip advances over up to n entries and reports whether the iterator is still positioned
func (i *Iterator) Skip(n int) bool {
	for ; n > 0; n-- {
		if !i.Next() {
			return false
		}
	}
	return true
}

// Key returns the raw key of the current entry, valid until the next call to Next
func (i *Iterator) Key() []byte {
	return i.it.Key()
}

// Value returns the raw value of the current entry, valid until the next call to Next
func (i *Iterator) Value() []byte {
	return i.it.Value()
}

// Error returns the error of the underlying cursor, if any
func (i *Iterator) Error() error {
	return i.it.Error()
}

// Close releases the engine cursor
func (i *Iterator) Close() error {
	i.done = true
	return i.it.Close()
}
