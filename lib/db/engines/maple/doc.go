// Package maple implements an in-memory ordered key-value database (KVDB) on top of
// a copy-on-write B-tree (github.com/google/btree). It provides a complete
// implementation of the db.KVDB interface and is used for tests, benchmarks and
// shards that do not need durability.
//
// Key Components:
//
//   - mapleImpl: The database structure implementing db.KVDB. A single RWMutex guards
//     the tree. Point reads take the read lock, writes and batches take the write lock,
//     so a batch is applied atomically with respect to readers.
//
//   - Iterators: NewIterator clones the tree lazily (btree.BTreeG.Clone). The clone
//     shares all nodes with the live tree and later writes copy the nodes they touch,
//     so an iterator sees a stable view without blocking writers.
//
//   - Persistence Format: Save and Load use the portable snapshot format of the
//     util package. Save walks a clone, Load builds a new tree and swaps it in only
//     after the whole snapshot was read.
//
// Entries are immutable once inserted: Set and batch writes always replace the entry,
// which is what makes sharing nodes between the live tree and iterator clones safe.
package maple
