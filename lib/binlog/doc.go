// Package binlog implements the write-ahead log that every replicated mutation passes through.
//
// A Record names one mutation (type, command and encoded key, never the value).
// Records are numbered by a Queue and stored in the same engine as the data under
// the 0x01 tag, so a data write and its record commit in one atomic batch through a
// Transaction. Followers tail the queue by sequence number (see package replication).
package binlog
