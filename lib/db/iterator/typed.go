package iterator

import (
	"github.com/DazeHolic/lvdb/lib/db/keys"
)

// --------------------------------------------------------------------------
// Plain key-value
// --------------------------------------------------------------------------

// Plain decodes plain key-value entries and skips everything else
type Plain struct {
	it    *Iterator
	key   string
	value []byte
}

func NewPlain(it *Iterator) *Plain {
	return &Plain{it: it}
}

func (p *Plain) Next() bool {
	for p.it.Next() {
		key, err := keys.DecodeKV(p.it.Key())
		if err != nil {
			continue
		}
		p.key = key
		p.value = append([]byte(nil), p.it.Value()...)
		return true
	}
	return false
}

func (p *Plain) Key() string   { return p.key }
func (p *Plain) Value() []byte { return p.value }
func (p *Plain) Close() error  { return p.it.Close() }

// --------------------------------------------------------------------------
// Hash fields
// --------------------------------------------------------------------------

// HashField decodes the fields of one hash. It stops at the first field of another hash.
type HashField struct {
	it    *Iterator
	name  string
	field string
	value []byte
}

func NewHashField(it *Iterator, name string) *HashField {
	return &HashField{it: it, name: name}
}

func (h *HashField) Next() bool {
	for h.it.Next() {
		name, field, err := keys.DecodeHash(h.it.Key())
		if err != nil {
			continue
		}
		if name != h.name {
			return false
		}
		h.field = field
		h.value = append([]byte(nil), h.it.Value()...)
		return true
	}
	return false
}

func (h *HashField) Name() string  { return h.name }
func (h *HashField) Field() string { return h.field }
func (h *HashField) Value() []byte { return h.value }
func (h *HashField) Close() error  { return h.it.Close() }

// --------------------------------------------------------------------------
// Sorted set members
// --------------------------------------------------------------------------

// ScoredMember walks the score index of one sorted set in score order
type ScoredMember struct {
	it     *Iterator
	name   string
	member string
	score  int64
}

func NewScoredMember(it *Iterator, name string) *ScoredMember {
	return &ScoredMember{it: it, name: name}
}

func (z *ScoredMember) Next() bool {
	for z.it.Next() {
		name, member, score, err := keys.DecodeZScore(z.it.Key())
		if err != nil {
			continue
		}
		if name != z.name {
			return false
		}
		z.member = member
		z.score = score
		return true
	}
	return false
}

func (z *ScoredMember) Name() string   { return z.name }
func (z *ScoredMember) Member() string { return z.member }
func (z *ScoredMember) Score() int64   { return z.score }
func (z *ScoredMember) Close() error   { return z.it.Close() }
func (z *ScoredMember) Error() error   { return z.it.Error() }

// --------------------------------------------------------------------------
// Queue items
// --------------------------------------------------------------------------

// QueueItem walks the items of one queue in sequence order, skipping the pointer slots
type QueueItem struct {
	it    *Iterator
	name  string
	seq   uint64
	value []byte
}

func NewQueueItem(it *Iterator, name string) *QueueItem {
	return &QueueItem{it: it, name: name}
}

func (q *QueueItem) Next() bool {
	for q.it.Next() {
		name, seq, err := keys.DecodeQItem(q.it.Key())
		if err != nil {
			continue
		}
		if name != q.name {
			return false
		}
		if seq < keys.QItemMinSeq {
			continue
		}
		q.seq = seq
		q.value = append([]byte(nil), q.it.Value()...)
		return true
	}
	return false
}

func (q *QueueItem) Seq() uint64   { return q.seq }
func (q *QueueItem) Value() []byte { return q.value }
func (q *QueueItem) Close() error  { return q.it.Close() }

// --------------------------------------------------------------------------
// Collection names
// --------------------------------------------------------------------------

// Names lists collection names from their size entries (H|name, Z|name, Q|name)
// or meta keys. decode selects the tag.
type Names struct {
	it     *Iterator
	decode func([]byte) (string, error)
	name   string
	value  []byte
}

func NewNames(it *Iterator, decode func([]byte) (string, error)) *Names {
	return &Names{it: it, decode: decode}
}

func (n *Names) Next() bool {
	for n.it.Next() {
		name, err := n.decode(n.it.Key())
		if err != nil {
			continue
		}
		n.name = name
		n.value = append([]byte(nil), n.it.Value()...)
		return true
	}
	return false
}

func (n *Names) Name() string  { return n.name }
func (n *Names) Value() []byte { return n.value }
func (n *Names) Close() error  { return n.it.Close() }
