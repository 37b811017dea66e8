// Package db provides a standardized interface for ordered key-value database implementations.
// It defines the KVDB interface that every storage engine of lvdb satisfies, so the layers above
// (binlog, typed store, replication) never depend on a concrete engine.
//
// Key Components:
//
//   - KVDB Interface: point reads and writes, atomic batches (Write), ordered iteration
//     (NewIterator), compaction and snapshot persistence (Save, Load).
//
//   - Batch: an engine neutral list of staged Set and Delete operations. The binlog
//     transaction stages both the data mutation and its log record into one Batch so that
//     they become visible together.
//
//   - Iterator: a bidirectional cursor with SeekGE/SeekLT positioning. Keys are compared as
//     raw bytes, which is what the key codec relies on to keep typed collections contiguous.
//
//   - Feature Flags: the Feature type defines capability flags that implementations
//     advertise through SupportsFeature.
//
//   - Database Information: DatabaseInfo reports size estimates, implementation type and
//     implementation specific metadata.
//
// Related Packages:
//
// The engines/pebbledb package provides the persistent engine built on cockroachdb/pebble.
// The engines/maple package provides an in-memory engine built on a copy-on-write B-tree,
// used for tests and ephemeral shards.
//
// The testing package (github.com/DazeHolic/lvdb/lib/db/testing) provides standardized tests
// and benchmarks for every KVDB implementation:
//   - RunKVDBTests: Runs a standardized test suite to validate implementations
//   - RunKVDBBenchmarks: Provides performance benchmarks for comparing implementations
package db
