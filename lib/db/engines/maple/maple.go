package maple

import (
	"bytes"
	"io"
	"sync"
	"sync/atomic"

	"github.com/DazeHolic/lvdb/lib/db"
	"github.com/DazeHolic/lvdb/lib/db/util"
	"github.com/google/btree"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	defaultDegree   = 32   // B-tree degree
	samplesForInfo  = 1000 // entries sampled by GetInfo
	entryOverhead   = 48   // estimated bytes per entry besides key and value
	freeListEntries = 1024 // nodes kept for reuse by the tree
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// entry is one key value pair stored in the tree.
// Entries are never mutated after insertion, a write replaces the whole entry.
type entry struct {
	key   []byte
	value []byte
}

func lessEntry(a, b entry) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// mapleImpl implements an in-memory ordered database on a copy-on-write B-tree
type mapleImpl struct {
	mu     sync.RWMutex
	tree   *btree.BTreeG[entry]
	degree int
	closed atomic.Bool
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	Degree int // B-tree degree (0 = use default)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		Degree: defaultDegree,
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
func NewMapleDB(opts *DBOptions) db.KVDB {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Degree < 2 {
		opts.Degree = defaultDegree
	}

	return &mapleImpl{
		tree:   newTree(opts.Degree),
		degree: opts.Degree,
	}
}

func newTree(degree int) *btree.BTreeG[entry] {
	return btree.NewWithFreeListG[entry](degree, lessEntry, btree.NewFreeListG[entry](freeListEntries))
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Set inserts or updates an entry.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Set(key, value []byte) error {
	if maple.closed.Load() {
		return db.ErrClosed
	}
	e := entry{
		key:   append([]byte(nil), key...),
		value: append([]byte(nil), value...),
	}

	maple.mu.Lock()
	defer maple.mu.Unlock()
	maple.tree.ReplaceOrInsert(e)
	return nil
}

// Delete removes an entry.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Delete(key []byte) error {
	if maple.closed.Load() {
		return db.ErrClosed
	}

	maple.mu.Lock()
	defer maple.mu.Unlock()
	maple.tree.Delete(entry{key: key})
	return nil
}

// Write applies all operations of the batch under one exclusive lock,
// so readers and new iterators see either none or all of them.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Write(batch *db.Batch) error {
	if maple.closed.Load() {
		return db.ErrClosed
	}

	maple.mu.Lock()
	defer maple.mu.Unlock()
	for _, op := range batch.Ops() {
		switch op.Kind {
		case db.OpSet:
			// batch ops already own copies of key and value
			maple.tree.ReplaceOrInsert(entry{key: op.Key, value: op.Value})
		case db.OpDelete:
			maple.tree.Delete(entry{key: op.Key})
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get retrieves a copy of the value for a key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(key []byte) ([]byte, bool, error) {
	if maple.closed.Load() {
		return nil, false, db.ErrClosed
	}

	maple.mu.RLock()
	e, ok := maple.tree.Get(entry{key: key})
	maple.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

// NewIterator returns a cursor over a lazy clone of the tree.
// Writes after this call are not visible to the iterator.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) NewIterator() db.Iterator {
	if maple.closed.Load() {
		return &iterator{err: db.ErrClosed}
	}

	// Clone marks the shared nodes read-only, it must not run concurrently with any other tree access
	maple.mu.Lock()
	snapshot := maple.tree.Clone()
	maple.mu.Unlock()

	return &iterator{tree: snapshot}
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save writes a consistent snapshot of the database to w.
// Concurrent writes are allowed while Save runs; they are not part of the snapshot.
func (maple *mapleImpl) Save(w io.Writer) error {
	it := maple.NewIterator()
	defer it.Close()
	return util.WriteSnapshot(w, it)
}

// Load replaces the content of the database with the snapshot read from r.
// The current content stays untouched if the snapshot is invalid.
func (maple *mapleImpl) Load(r io.Reader) error {
	if maple.closed.Load() {
		return db.ErrClosed
	}

	tree := newTree(maple.degree)
	err := util.ReadSnapshot(r, func(key, value []byte) error {
		tree.ReplaceOrInsert(entry{key: key, value: value})
		return nil
	})
	if err != nil {
		return err
	}

	maple.mu.Lock()
	maple.tree = tree
	maple.mu.Unlock()
	return nil
}

// Compact is a no-op, deleted entries are released immediately
func (maple *mapleImpl) Compact() error {
	return nil
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {
	maple.mu.RLock()
	keyCount := maple.tree.Len()
	maple.mu.RUnlock()

	sample := util.NewSizeSample()
	it := maple.NewIterator()
	for ok := it.First(); ok && sample.Count() < samplesForInfo; ok = it.Next() {
		sample.Add(len(it.Key()) + len(it.Value()))
	}
	_ = it.Close()

	meta := &struct {
		Degree int    `json:"degree"`
		Info   string `json:"info"`
	}{
		Degree: maple.degree,
		Info:   "SizeBytes is estimated from a sample of the first entries.",
	}

	return db.DatabaseInfo{
		SizeBytes: sample.EstimateEntrySize(entryOverhead) * keyCount,
		KeyCount:  keyCount,
		DbType:    db.ImplMaple,
		SupportedFeatures: []db.Feature{
			db.FeatureSet, db.FeatureGet, db.FeatureDelete,
			db.FeatureBatch, db.FeatureIterate,
			db.FeatureSave, db.FeatureLoad,
		},
		Metadata: meta,
	}
}

// SupportsFeature checks if this implementation supports a specific KVDB feature
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureSet |
		db.FeatureGet |
		db.FeatureDelete |
		db.FeatureBatch |
		db.FeatureIterate |
		db.FeatureSave |
		db.FeatureLoad
	return supportedFeatures&feature == feature
}

// Close releases the tree. All later calls return db.ErrClosed.
func (maple *mapleImpl) Close() error {
	if !maple.closed.CompareAndSwap(false, true) {
		return nil
	}
	maple.mu.Lock()
	maple.tree = newTree(maple.degree)
	maple.mu.Unlock()
	return nil
}
