// Package pebbledb implements the db.KVDB interface on top of cockroachdb/pebble,
// the LSM engine lvdb uses for persistent shards.
//
// Batches are translated into native pebble batches, so a binlog record and the data
// mutation it describes are committed by a single pebble WAL write. Pebble iterators are
// returned as they are because they already satisfy db.Iterator; each iterator reads from
// an implicit snapshot taken when it is created.
//
// For tests the engine can run on pebble's in-memory filesystem (Options.InMemory).
package pebbledb
