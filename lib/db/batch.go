package db

// OpKind is the kind of a staged batch operation
type OpKind uint8

const (
	OpSet OpKind = iota + 1
	OpDelete
)

// BatchOp is one staged write
type BatchOp struct {
	Kind  OpKind
	Key   []byte
	Value []byte
}

// Batch collects writes that an engine applies atomically with KVDB.Write.
// A Batch is not safe for concurrent use.
type Batch struct {
	ops  []BatchOp
	size int
}

// NewBatch creates an empty batch
func NewBatch() *Batch {
	return &Batch{}
}

// Set stages a put. Key and value are copied.
func (b *Batch) Set(key, value []byte) {
	b.ops = append(b.ops, BatchOp{
		Kind:  OpSet,
		Key:   append([]byte(nil), key...),
		Value: append([]byte(nil), value...),
	})
	b.size += len(key) + len(value)
}

// Delete stages a delete. The key is copied.
func (b *Batch) Delete(key []byte) {
	b.ops = append(b.ops, BatchOp{
		Kind: OpDelete,
		Key:  append([]byte(nil), key...),
	})
	b.size += len(key)
}

// Len returns the number of staged operations
func (b *Batch) Len() int {
	return len(b.ops)
}

// Size returns the number of key and value bytes staged
func (b *Batch) Size() int {
	return b.size
}

// Ops returns the staged operations in insertion order
func (b *Batch) Ops() []BatchOp {
	return b.ops
}

// Reset discards all staged operations
func (b *Batch) Reset() {
	b.ops = b.ops[:0]
	b.size = 0
}
