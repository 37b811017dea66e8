// Package iterator provides bounded range scans over a db.KVDB.
//
// Iterator applies an exclusive start, an inclusive end, a result limit and a direction to an
// engine cursor. The typed wrappers (Plain, HashField, ScoredMember, QueueItem, Names) decode
// raw entries into the fields of one collection. Entries that do not decode as the expected
// type are skipped; the collection wrappers stop at the first entry of another collection.
package iterator
